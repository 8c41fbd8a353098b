package api

import (
	"fmt"
	"time"

	"familyboard/internal/board"
	"familyboard/internal/boardview"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime parses an API timestamp. An empty value is the zero time.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q: %v", board.ErrInvalidInput, value, err)
	}
	return t.UTC(), nil
}

func parseTimeLenient(value string) time.Time {
	t, err := ParseTime(value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FromStage converts a domain stage to its API representation.
func FromStage(s board.Stage) Stage {
	return Stage{
		ID:                    s.ID,
		FamilyID:              s.FamilyID,
		Name:                  s.Name,
		Color:                 s.Color,
		Position:              s.Position,
		ExternalStatusMapping: s.ExternalStatus,
		IsHidden:              s.Hidden,
		CreatedAt:             formatTime(s.CreatedAt),
		UpdatedAt:             formatTime(s.UpdatedAt),
	}
}

// FromStages converts a slice of stages. The result is never nil.
func FromStages(stages []board.Stage) []Stage {
	out := make([]Stage, 0, len(stages))
	for _, s := range stages {
		out = append(out, FromStage(s))
	}
	return out
}

// ToStage converts an API stage to the domain type.
func (s Stage) ToStage() board.Stage {
	return board.Stage{
		ID:             s.ID,
		FamilyID:       s.FamilyID,
		Name:           s.Name,
		Color:          s.Color,
		Position:       s.Position,
		ExternalStatus: s.ExternalStatusMapping,
		Hidden:         s.IsHidden,
		CreatedAt:      parseTimeLenient(s.CreatedAt),
		UpdatedAt:      parseTimeLenient(s.UpdatedAt),
	}
}

// ToStages converts a slice of API stages.
func ToStages(stages []Stage) []board.Stage {
	out := make([]board.Stage, 0, len(stages))
	for _, s := range stages {
		out = append(out, s.ToStage())
	}
	return out
}

// FromOrder converts an order snapshot.
func FromOrder(o board.OrderSnapshot) Order {
	dto := Order{
		ID:           o.ID,
		Customer:     o.Customer,
		Total:        Money{AmountCents: o.Total.AmountCents, Currency: o.Total.Currency},
		CreatedAt:    formatTime(o.CreatedAt),
		SourceStatus: o.SourceStatus,
		Tags:         o.Tags,
		Metadata:     o.Metadata,
		Closed:       o.Closed,
	}
	for _, item := range o.LineItems {
		dto.LineItems = append(dto.LineItems, LineItem(item))
	}
	return dto
}

// ToOrder converts an API order to a snapshot, rejecting malformed timestamps.
func (o Order) ToOrder() (board.OrderSnapshot, error) {
	created, err := ParseTime(o.CreatedAt)
	if err != nil {
		return board.OrderSnapshot{}, err
	}
	return o.snapshot(created), nil
}

func (o Order) snapshot(created time.Time) board.OrderSnapshot {
	snapshot := board.OrderSnapshot{
		ID:           o.ID,
		Customer:     o.Customer,
		Total:        board.Money{AmountCents: o.Total.AmountCents, Currency: o.Total.Currency},
		CreatedAt:    created,
		SourceStatus: o.SourceStatus,
		Tags:         o.Tags,
		Metadata:     o.Metadata,
		Closed:       o.Closed,
	}
	for _, item := range o.LineItems {
		snapshot.LineItems = append(snapshot.LineItems, board.LineItem(item))
	}
	return snapshot
}

// FromAssignment converts an assignment.
func FromAssignment(a board.Assignment) Assignment {
	return Assignment{
		OrderID:     a.OrderID,
		StageID:     a.StageID,
		AssignedTo:  a.AssignedTo,
		Priority:    int(a.Priority),
		Notes:       a.Notes,
		LastUpdated: formatTime(a.LastUpdated),
		Order:       FromOrder(a.Order),
	}
}

// ToAssignment converts an API assignment. The family is not on the wire and
// is left empty.
func (a Assignment) ToAssignment() board.Assignment {
	order := a.Order.snapshot(parseTimeLenient(a.Order.CreatedAt))
	if order.ID == "" {
		order.ID = a.OrderID
	}
	return board.Assignment{
		OrderID:     a.OrderID,
		StageID:     a.StageID,
		AssignedTo:  a.AssignedTo,
		Priority:    board.Priority(a.Priority),
		Notes:       a.Notes,
		LastUpdated: parseTimeLenient(a.LastUpdated),
		Order:       order,
	}
}

// FromBoard converts a board.
func FromBoard(b board.Board) Board {
	out := Board{Stages: FromStages(b.Stages), Assignments: make([]Assignment, 0, len(b.Assignments))}
	for _, a := range b.Assignments {
		out.Assignments = append(out.Assignments, FromAssignment(a))
	}
	return out
}

// ToBoard converts an API board.
func (b Board) ToBoard() board.Board {
	out := board.Board{Stages: ToStages(b.Stages), Assignments: make([]board.Assignment, 0, len(b.Assignments))}
	for _, a := range b.Assignments {
		out.Assignments = append(out.Assignments, a.ToAssignment())
	}
	return out
}

// FromHistory converts audit entries. The result is never nil.
func FromHistory(entries []board.HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		dto := HistoryEntry{
			ID:        e.ID,
			OrderID:   e.OrderID,
			ToStageID: e.ToStageID,
			ChangedBy: e.ChangedBy,
			Notes:     e.Notes,
			ChangedAt: formatTime(e.ChangedAt),
		}
		if e.FromStageID != "" {
			from := e.FromStageID
			dto.FromStageID = &from
		}
		out = append(out, dto)
	}
	return out
}

// ToHistory converts API audit entries.
func ToHistory(entries []HistoryEntry) []board.HistoryEntry {
	out := make([]board.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		entry := board.HistoryEntry{
			ID:        e.ID,
			OrderID:   e.OrderID,
			ToStageID: e.ToStageID,
			ChangedBy: e.ChangedBy,
			Notes:     e.Notes,
			ChangedAt: parseTimeLenient(e.ChangedAt),
		}
		if e.FromStageID != nil {
			entry.FromStageID = *e.FromStageID
		}
		out = append(out, entry)
	}
	return out
}

// FromStats converts composed statistics.
func FromStats(s boardview.Stats) Stats {
	out := Stats{
		PerStage:         make([]StageStats, 0, len(s.PerStage)),
		TotalOrders:      s.TotalOrders,
		UnassignedOrders: s.UnassignedOrders,
	}
	for _, entry := range s.PerStage {
		out.PerStage = append(out.PerStage, StageStats(entry))
	}
	return out
}

// ToStats converts API statistics.
func (s Stats) ToStats() boardview.Stats {
	out := boardview.Stats{
		PerStage:         make([]boardview.StageStats, 0, len(s.PerStage)),
		TotalOrders:      s.TotalOrders,
		UnassignedOrders: s.UnassignedOrders,
	}
	for _, entry := range s.PerStage {
		out.PerStage = append(out.PerStage, boardview.StageStats(entry))
	}
	return out
}

func priorityPointer(value *int) *board.Priority {
	if value == nil {
		return nil
	}
	p := board.Priority(*value)
	return &p
}

func intPointer(value *board.Priority) *int {
	if value == nil {
		return nil
	}
	v := int(*value)
	return &v
}

// ToPatch converts the wire patch. Range checks happen in board.Patch.Validate.
func (p AssignmentPatch) ToPatch() board.Patch {
	return board.Patch{
		StageID:    p.StageID,
		AssignedTo: p.AssignedTo,
		Priority:   priorityPointer(p.Priority),
		Notes:      p.Notes,
	}
}

// FromPatch converts a domain patch for the wire.
func FromPatch(p board.Patch) AssignmentPatch {
	return AssignmentPatch{
		StageID:    p.StageID,
		AssignedTo: p.AssignedTo,
		Priority:   intPointer(p.Priority),
		Notes:      p.Notes,
	}
}

// Patch returns the bulk request fields as a domain patch.
func (r BulkUpdateRequest) Patch() board.Patch {
	return board.Patch{
		StageID:    r.StageID,
		AssignedTo: r.AssignedTo,
		Priority:   priorityPointer(r.Priority),
	}
}
