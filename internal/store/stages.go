package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"familyboard/internal/board"
)

const stageColumns = "id, family_id, name, color, position, external_status, is_hidden, created_at, updated_at"

func scanStage(scanner rowScanner) (board.Stage, error) {
	var (
		stage     board.Stage
		color     sql.NullString
		external  sql.NullString
		hidden    int64
		createdAt sql.NullString
		updatedAt sql.NullString
	)
	if err := scanner.Scan(
		&stage.ID,
		&stage.FamilyID,
		&stage.Name,
		&color,
		&stage.Position,
		&external,
		&hidden,
		&createdAt,
		&updatedAt,
	); err != nil {
		return board.Stage{}, err
	}
	stage.Color = color.String
	stage.ExternalStatus = external.String
	stage.Hidden = hidden != 0
	stage.CreatedAt = parseNullTime(createdAt)
	stage.UpdatedAt = parseNullTime(updatedAt)
	return stage, nil
}

// ListStages returns every stage of a family ordered by position.
func (q queries) ListStages(ctx context.Context, familyID string) ([]board.Stage, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+stageColumns+` FROM stages WHERE family_id = ? ORDER BY position`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var stages []board.Stage
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}

// GetStage fetches a stage by id. It returns nil when the stage does not exist.
func (q queries) GetStage(ctx context.Context, id string) (*board.Stage, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+stageColumns+` FROM stages WHERE id = ?`, id)
	stage, err := scanStage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stage: %w", err)
	}
	return &stage, nil
}

// InsertStage stores a new stage.
func (q queries) InsertStage(ctx context.Context, stage board.Stage) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO stages (`+stageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stage.ID,
		stage.FamilyID,
		stage.Name,
		nullableString(stage.Color),
		stage.Position,
		nullableString(stage.ExternalStatus),
		boolToInt(stage.Hidden),
		formatTime(stage.CreatedAt),
		formatTime(stage.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert stage: %w", err)
	}
	return nil
}

// UpdateStage rewrites the mutable columns of a stage.
func (q queries) UpdateStage(ctx context.Context, stage board.Stage) error {
	_, err := q.q.ExecContext(ctx,
		`UPDATE stages
         SET name = ?, color = ?, position = ?, external_status = ?, is_hidden = ?, updated_at = ?
         WHERE id = ?`,
		stage.Name,
		nullableString(stage.Color),
		stage.Position,
		nullableString(stage.ExternalStatus),
		boolToInt(stage.Hidden),
		formatTime(stage.UpdatedAt),
		stage.ID,
	)
	if err != nil {
		return fmt.Errorf("update stage: %w", err)
	}
	return nil
}

// SetStagePosition moves a single stage. Callers reordering several stages
// must park them on temporary positions first to satisfy the unique index.
func (q queries) SetStagePosition(ctx context.Context, id string, position int) error {
	if _, err := q.q.ExecContext(ctx, `UPDATE stages SET position = ? WHERE id = ?`, position, id); err != nil {
		return fmt.Errorf("set stage position: %w", err)
	}
	return nil
}

// DeleteStage removes a stage row. The foreign key on assignments rejects the
// delete while any assignment still references it.
func (q queries) DeleteStage(ctx context.Context, id string) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM stages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete stage: %w", err)
	}
	return nil
}

// CountStageAssignments counts assignments referencing a stage, closed ones included.
func (q queries) CountStageAssignments(ctx context.Context, stageID string) (int, error) {
	var count int
	if err := q.q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM assignments WHERE stage_id = ?`, stageID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count stage assignments: %w", err)
	}
	return count, nil
}
