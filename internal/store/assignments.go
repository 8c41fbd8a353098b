package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"familyboard/internal/board"
)

const assignmentColumns = "order_id, family_id, stage_id, assigned_to, priority, notes, last_updated, order_json, order_created_at, closed"

// orderDoc is the persisted shape of the read-only order snapshot.
type orderDoc struct {
	Customer     string            `json:"customer,omitempty"`
	AmountCents  int64             `json:"amount_cents"`
	Currency     string            `json:"currency,omitempty"`
	LineItems    []lineItemDoc     `json:"line_items,omitempty"`
	SourceStatus string            `json:"source_status,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type lineItemDoc struct {
	Title    string `json:"title"`
	Variant  string `json:"variant,omitempty"`
	Quantity int    `json:"quantity"`
}

func encodeOrder(order board.OrderSnapshot) (string, error) {
	doc := orderDoc{
		Customer:     order.Customer,
		AmountCents:  order.Total.AmountCents,
		Currency:     order.Total.Currency,
		SourceStatus: order.SourceStatus,
		Tags:         order.Tags,
		Metadata:     order.Metadata,
	}
	for _, item := range order.LineItems {
		doc.LineItems = append(doc.LineItems, lineItemDoc(item))
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal order snapshot: %w", err)
	}
	return string(data), nil
}

func decodeOrder(orderID, raw string) (board.OrderSnapshot, error) {
	order := board.OrderSnapshot{ID: orderID}
	if raw == "" {
		return order, nil
	}
	var doc orderDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return order, fmt.Errorf("unmarshal order snapshot: %w", err)
	}
	order.Customer = doc.Customer
	order.Total = board.Money{AmountCents: doc.AmountCents, Currency: doc.Currency}
	order.SourceStatus = doc.SourceStatus
	order.Tags = doc.Tags
	order.Metadata = doc.Metadata
	for _, item := range doc.LineItems {
		order.LineItems = append(order.LineItems, board.LineItem(item))
	}
	return order, nil
}

func scanAssignment(scanner rowScanner) (board.Assignment, error) {
	var (
		a            board.Assignment
		assignedTo   sql.NullString
		priority     int64
		notes        sql.NullString
		lastUpdated  sql.NullString
		orderJSON    sql.NullString
		orderCreated sql.NullString
		closed       int64
	)
	if err := scanner.Scan(
		&a.OrderID,
		&a.FamilyID,
		&a.StageID,
		&assignedTo,
		&priority,
		&notes,
		&lastUpdated,
		&orderJSON,
		&orderCreated,
		&closed,
	); err != nil {
		return board.Assignment{}, err
	}
	a.AssignedTo = assignedTo.String
	a.Priority = board.Priority(priority)
	a.Notes = notes.String
	a.LastUpdated = parseNullTime(lastUpdated)

	order, err := decodeOrder(a.OrderID, orderJSON.String)
	if err != nil {
		return board.Assignment{}, err
	}
	order.CreatedAt = parseNullTime(orderCreated)
	order.Closed = closed != 0
	a.Order = order
	return a, nil
}

func (q queries) listAssignments(ctx context.Context, query string, args ...any) ([]board.Assignment, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []board.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAssignment fetches the assignment of an order. It returns nil when the
// order has never been observed.
func (q queries) GetAssignment(ctx context.Context, orderID string) (*board.Assignment, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE order_id = ?`, orderID)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return &a, nil
}

// GetAssignments fetches several assignments keyed by order id. Unknown ids
// are absent from the result.
func (q queries) GetAssignments(ctx context.Context, orderIDs []string) (map[string]board.Assignment, error) {
	out := make(map[string]board.Assignment, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}
	items, err := q.listAssignments(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE order_id IN (`+makePlaceholders(len(orderIDs))+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	for _, a := range items {
		out[a.OrderID] = a
	}
	return out, nil
}

// ListOpenAssignments returns every assignment of a family whose order is not
// closed upstream, oldest order first.
func (q queries) ListOpenAssignments(ctx context.Context, familyID string) ([]board.Assignment, error) {
	return q.listAssignments(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
         WHERE family_id = ? AND closed = 0
         ORDER BY order_created_at, order_id`,
		familyID)
}

// ListStageAssignments returns every assignment referencing a stage.
func (q queries) ListStageAssignments(ctx context.Context, stageID string) ([]board.Assignment, error) {
	return q.listAssignments(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE stage_id = ? ORDER BY order_id`,
		stageID)
}

// InsertAssignment stores the assignment of a newly observed order.
func (q queries) InsertAssignment(ctx context.Context, a board.Assignment) error {
	orderJSON, err := encodeOrder(a.Order)
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx,
		`INSERT INTO assignments (`+assignmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.OrderID,
		a.FamilyID,
		a.StageID,
		nullableString(a.AssignedTo),
		int(a.Priority),
		nullableString(a.Notes),
		formatTime(a.LastUpdated),
		orderJSON,
		nullableTime(a.Order.CreatedAt),
		boolToInt(a.Order.Closed),
	)
	if err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

// UpdateAssignment persists the workflow fields of an assignment. The order
// snapshot is left untouched.
func (q queries) UpdateAssignment(ctx context.Context, a board.Assignment) error {
	res, err := q.q.ExecContext(ctx,
		`UPDATE assignments
         SET stage_id = ?, assigned_to = ?, priority = ?, notes = ?, last_updated = ?
         WHERE order_id = ?`,
		a.StageID,
		nullableString(a.AssignedTo),
		int(a.Priority),
		nullableString(a.Notes),
		formatTime(a.LastUpdated),
		a.OrderID,
	)
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update assignment %s: %w", a.OrderID, board.ErrOrderNotFound)
	}
	return nil
}

// UpdateOrderSnapshot refreshes the mirrored order data without touching the
// workflow fields or last_updated.
func (q queries) UpdateOrderSnapshot(ctx context.Context, order board.OrderSnapshot) error {
	orderJSON, err := encodeOrder(order)
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx,
		`UPDATE assignments SET order_json = ?, order_created_at = ?, closed = ? WHERE order_id = ?`,
		orderJSON,
		nullableTime(order.CreatedAt),
		boolToInt(order.Closed),
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("update order snapshot: %w", err)
	}
	return nil
}
