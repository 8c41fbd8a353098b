package store

import (
	"context"
	"database/sql"
	"fmt"

	"familyboard/internal/board"
)

const historyColumns = "id, order_id, from_stage_id, to_stage_id, changed_by, notes, changed_at"

// InsertHistory appends an entry to the audit trail and assigns its id.
func (q queries) InsertHistory(ctx context.Context, entry *board.HistoryEntry) error {
	res, err := q.q.ExecContext(ctx,
		`INSERT INTO stage_history (order_id, from_stage_id, to_stage_id, changed_by, notes, changed_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		entry.OrderID,
		nullableString(entry.FromStageID),
		entry.ToStageID,
		entry.ChangedBy,
		nullableString(entry.Notes),
		formatTime(entry.ChangedAt),
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("history insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListHistory returns the audit trail of an order, oldest first.
func (q queries) ListHistory(ctx context.Context, orderID string) ([]board.HistoryEntry, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM stage_history WHERE order_id = ? ORDER BY changed_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []board.HistoryEntry
	for rows.Next() {
		var (
			entry     board.HistoryEntry
			from      sql.NullString
			notes     sql.NullString
			changedAt sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.OrderID, &from, &entry.ToStageID, &entry.ChangedBy, &notes, &changedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entry.FromStageID = from.String
		entry.Notes = notes.String
		entry.ChangedAt = parseNullTime(changedAt)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountHistory counts audit entries of an order.
func (q queries) CountHistory(ctx context.Context, orderID string) (int, error) {
	var count int
	if err := q.q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM stage_history WHERE order_id = ?`, orderID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return count, nil
}
