package board

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// OrderSourceActor is recorded as ChangedBy on the history entry written when
// an order is first observed.
const OrderSourceActor = "order-source"

// Priority is the urgency tier of an assignment.
type Priority int

const (
	PriorityNormal Priority = 0
	PriorityHigh   Priority = 1
	PriorityRush   Priority = 2
)

// Valid reports whether p is one of the known tiers.
func (p Priority) Valid() bool {
	return p >= PriorityNormal && p <= PriorityRush
}

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityRush:
		return "rush"
	default:
		return strconv.Itoa(int(p))
	}
}

// ParsePriority accepts either the tier name or its numeric value.
func ParsePriority(value string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "normal", "0":
		return PriorityNormal, true
	case "high", "1":
		return PriorityHigh, true
	case "rush", "2":
		return PriorityRush, true
	default:
		return 0, false
	}
}

// Stage is one column of a family pipeline.
type Stage struct {
	ID             string
	FamilyID       string
	Name           string
	Color          string
	Position       int
	ExternalStatus string
	Hidden         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LineItem is one line of a mirrored order.
type LineItem struct {
	Title    string
	Variant  string
	Quantity int
}

// Money is an amount in minor units.
type Money struct {
	AmountCents int64
	Currency    string
}

// OrderSnapshot is the read-only copy of an Order Source order. It is used
// for display and filtering only.
type OrderSnapshot struct {
	ID           string
	Customer     string
	Total        Money
	LineItems    []LineItem
	CreatedAt    time.Time
	SourceStatus string
	Tags         []string
	Metadata     map[string]string
	Closed       bool
}

// Assignment is the current workflow state of one tracked order.
type Assignment struct {
	OrderID     string
	FamilyID    string
	StageID     string
	AssignedTo  string
	Priority    Priority
	Notes       string
	LastUpdated time.Time
	Order       OrderSnapshot
}

// TimeInStage is the elapsed time since the assignment was last mutated.
func (a Assignment) TimeInStage(now time.Time) time.Duration {
	if a.LastUpdated.IsZero() {
		return 0
	}
	d := now.Sub(a.LastUpdated)
	if d < 0 {
		return 0
	}
	return d
}

// IsRush reports whether the assignment is in the highest urgency tier.
func (a Assignment) IsRush() bool { return a.Priority == PriorityRush }

// IsUnassigned reports whether nobody owns the order.
func (a Assignment) IsUnassigned() bool { return strings.TrimSpace(a.AssignedTo) == "" }

// HistoryEntry is an immutable audit record of one transition. FromStageID is
// empty for the entry written when the order was first placed.
type HistoryEntry struct {
	ID          int64
	OrderID     string
	FromStageID string
	ToStageID   string
	ChangedBy   string
	Notes       string
	ChangedAt   time.Time
}

// IsInitial reports whether the entry records the first placement of an order.
func (h HistoryEntry) IsInitial() bool { return h.FromStageID == "" }

// Patch is a partial assignment update. Nil fields are left untouched; an
// empty AssignedTo clears the owner.
type Patch struct {
	StageID    *string
	AssignedTo *string
	Priority   *Priority
	Notes      *string
}

// IsEmpty reports whether the patch sets no field.
func (p Patch) IsEmpty() bool {
	return p.StageID == nil && p.AssignedTo == nil && p.Priority == nil && p.Notes == nil
}

// Validate checks field values that do not need persistence to verify.
func (p Patch) Validate() error {
	if p.Priority != nil && !p.Priority.Valid() {
		return InvalidInputf("priority %d out of range", int(*p.Priority))
	}
	if p.StageID != nil && strings.TrimSpace(*p.StageID) == "" {
		return InvalidInputf("stage id must not be blank")
	}
	return nil
}

// ApplyTo returns a copy of a with the non-stage fields of the patch applied
// and reports whether any of them changed. The stage is handled by the
// transition engine and is deliberately left alone here.
func (p Patch) ApplyTo(a Assignment) (Assignment, bool) {
	changed := false
	if p.AssignedTo != nil {
		owner := strings.TrimSpace(*p.AssignedTo)
		if owner != a.AssignedTo {
			a.AssignedTo = owner
			changed = true
		}
	}
	if p.Priority != nil && *p.Priority != a.Priority {
		a.Priority = *p.Priority
		changed = true
	}
	if p.Notes != nil && *p.Notes != a.Notes {
		a.Notes = *p.Notes
		changed = true
	}
	return a, changed
}

// ChangesStage reports whether the patch moves a to another stage.
func (p Patch) ChangesStage(a Assignment) bool {
	return p.StageID != nil && *p.StageID != a.StageID
}

// Filters narrows the board view without affecting persisted state. Zero
// bounds are open.
type Filters struct {
	From time.Time
	To   time.Time
	Tags []string
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f.From.IsZero() && f.To.IsZero() && len(f.Tags) == 0
}

// Board is the authoritative state of one family pipeline: every stage
// (hidden included) and every open assignment.
type Board struct {
	Stages      []Stage
	Assignments []Assignment
}

// AssignmentByID finds an assignment on the board.
func (b Board) AssignmentByID(orderID string) (Assignment, bool) {
	for _, a := range b.Assignments {
		if a.OrderID == orderID {
			return a, true
		}
	}
	return Assignment{}, false
}

// Clone copies the slices so the result can be modified without touching b.
// Order snapshots are shared; they are read-only.
func (b Board) Clone() Board {
	out := Board{
		Stages:      make([]Stage, len(b.Stages)),
		Assignments: make([]Assignment, len(b.Assignments)),
	}
	copy(out.Stages, b.Stages)
	copy(out.Assignments, b.Assignments)
	return out
}

// SortStages orders stages by position in place.
func SortStages(stages []Stage) {
	sort.SliceStable(stages, func(i, j int) bool {
		return stages[i].Position < stages[j].Position
	})
}
