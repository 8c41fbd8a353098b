package api

import "time"

// dateTimeFormat is the timestamp layout in API payloads.
const dateTimeFormat = time.RFC3339Nano

// Stage describes a pipeline column.
type Stage struct {
	ID                    string `json:"id,omitempty"`
	FamilyID              string `json:"familyId,omitempty"`
	Name                  string `json:"name"`
	Color                 string `json:"color,omitempty"`
	Position              int    `json:"position"`
	ExternalStatusMapping string `json:"externalStatusMapping,omitempty"`
	IsHidden              bool   `json:"isHidden"`
	CreatedAt             string `json:"createdAt,omitempty"`
	UpdatedAt             string `json:"updatedAt,omitempty"`
}

// CreateStageRequest is the body of POST /api/stages.
type CreateStageRequest struct {
	Name                  string `json:"name"`
	Color                 string `json:"color,omitempty"`
	ExternalStatusMapping string `json:"externalStatusMapping,omitempty"`
	IsHidden              bool   `json:"isHidden"`
}

// VisibilityRequest is the body of PUT /api/stages/{id}/visibility.
type VisibilityRequest struct {
	Hidden bool `json:"hidden"`
}

// PositionRequest is the body of PUT /api/stages/{id}/position.
type PositionRequest struct {
	Position int `json:"position"`
}

// DeleteStageResponse reports how many orders were moved off a deleted stage.
type DeleteStageResponse struct {
	Reassigned int `json:"reassigned"`
}

// Money is an order total.
type Money struct {
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency,omitempty"`
}

// LineItem is one product line of an order.
type LineItem struct {
	Title    string `json:"title"`
	Variant  string `json:"variant,omitempty"`
	Quantity int    `json:"quantity"`
}

// Order is the read-only snapshot mirrored from the Order Source.
type Order struct {
	ID           string            `json:"id"`
	Customer     string            `json:"customer,omitempty"`
	Total        Money             `json:"total"`
	LineItems    []LineItem        `json:"lineItems,omitempty"`
	CreatedAt    string            `json:"createdAt,omitempty"`
	SourceStatus string            `json:"sourceStatus,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Closed       bool              `json:"closed,omitempty"`
}

// Assignment is the workflow state of one order.
type Assignment struct {
	OrderID     string `json:"orderId"`
	StageID     string `json:"stageId"`
	AssignedTo  string `json:"assignedTo,omitempty"`
	Priority    int    `json:"priority"`
	Notes       string `json:"notes,omitempty"`
	LastUpdated string `json:"lastUpdated,omitempty"`
	Order       Order  `json:"order"`
}

// AssignmentDetail is the response of GET /api/orders/{id}.
type AssignmentDetail struct {
	Assignment
	ExternalStatus string `json:"externalStatus,omitempty"`
}

// Board is the response of GET /api/board.
type Board struct {
	Stages      []Stage      `json:"stages"`
	Assignments []Assignment `json:"assignments"`
}

// AssignmentPatch is the body of PUT /api/orders/{id}.
type AssignmentPatch struct {
	StageID    *string `json:"stageId,omitempty"`
	AssignedTo *string `json:"assignedTo,omitempty"`
	Priority   *int    `json:"priority,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

// BulkUpdateRequest is the body of POST /api/bulk-update.
type BulkUpdateRequest struct {
	OrderIDs   []string `json:"orderIds"`
	StageID    *string  `json:"stageId,omitempty"`
	AssignedTo *string  `json:"assignedTo,omitempty"`
	Priority   *int     `json:"priority,omitempty"`
}

// HistoryEntry is one audit record. FromStageID is null on the entry written
// when the order was first observed.
type HistoryEntry struct {
	ID          int64   `json:"id"`
	OrderID     string  `json:"orderId"`
	FromStageID *string `json:"fromStageId"`
	ToStageID   string  `json:"toStageId"`
	ChangedBy   string  `json:"changedBy"`
	Notes       string  `json:"notes,omitempty"`
	ChangedAt   string  `json:"changedAt"`
}

// StageStats summarises one stage.
type StageStats struct {
	StageID     string `json:"stageId"`
	TotalOrders int    `json:"totalOrders"`
	RushOrders  int    `json:"rushOrders"`
}

// Stats is the response of GET /api/stats.
type Stats struct {
	PerStage         []StageStats `json:"perStage"`
	TotalOrders      int          `json:"totalOrders"`
	UnassignedOrders int          `json:"unassignedOrders"`
}

// SyncRequest is the body of POST /api/orders/sync.
type SyncRequest struct {
	Orders []Order `json:"orders"`
}

// SyncResponse reports the outcome of an ingestion call.
type SyncResponse struct {
	Created   int `json:"created"`
	Refreshed int `json:"refreshed"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status        string   `json:"status"`
	SchemaVersion int      `json:"schemaVersion"`
	MissingTables []string `json:"missingTables,omitempty"`
	Stages        int      `json:"stages"`
	Assignments   int      `json:"assignments"`
	History       int      `json:"historyEntries"`
	Error         string   `json:"error,omitempty"`
}
