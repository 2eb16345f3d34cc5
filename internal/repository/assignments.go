package repository

import (
	"context"

	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/domain"
)

func (r *Repository) GetAssignmentsByShiftID(ctx context.Context, shiftID int64) ([]*domain.Assignment, error) {
	query := `
		SELECT shift_id, user_id, display_name, assigned_at
		FROM shift_assignments
		WHERE shift_id = $1
		ORDER BY display_name, user_id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := []*domain.Assignment{}
	for rows.Next() {
		assignment := &domain.Assignment{}
		dst := []any{&assignment.ShiftID, &assignment.UserID, &assignment.DisplayName, &assignment.AssignedAt}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return assignments, nil
}

// GetUserShiftHistory 返回用户被分配过的所有班次，最近的在前
func (r *Repository) GetUserShiftHistory(ctx context.Context, userID string) ([]*domain.ShiftHistoryEntry, error) {
	query := `
		SELECT s.id, s.shift_type, s.required_people, sa.assigned_at
		FROM shift_assignments sa
		JOIN shifts s ON s.id = sa.shift_id
		WHERE sa.user_id = $1
		ORDER BY sa.assigned_at DESC, s.id DESC
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []*domain.ShiftHistoryEntry{}
	for rows.Next() {
		entry := &domain.ShiftHistoryEntry{}
		dst := []any{&entry.ID, &entry.ShiftType, &entry.RequiredPeople, &entry.AssignedAt}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		history = append(history, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return history, nil
}
