package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/domain"
)

// resolutionTx 在整个抽签过程中持有班次记录的行锁
type resolutionTx struct {
	ctx    context.Context
	cancel context.CancelFunc
	tx     *sql.Tx
	shift  *domain.Shift
}

func (r *Repository) BeginResolution(ctx context.Context, shiftID int64) (domain.ResolutionTx, error) {
	ctx, cancel := r.transactionContext(ctx)

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		cancel()
		return nil, err
	}

	query := `
		SELECT shift_type, required_people, status, created_at
		FROM shifts WHERE id = $1
		FOR UPDATE
	`

	shift := &domain.Shift{
		ID: shiftID,
	}

	dst := []any{&shift.ShiftType, &shift.RequiredPeople, &shift.Status, &shift.CreatedAt}
	if err := tx.QueryRowContext(ctx, query, shiftID).Scan(dst...); err != nil {
		_ = tx.Rollback()
		cancel()
		return nil, fmt.Errorf("%w: %d", notFound(err), shiftID)
	}

	return &resolutionTx{
		ctx:    ctx,
		cancel: cancel,
		tx:     tx,
		shift:  shift,
	}, nil
}

func (t *resolutionTx) Shift() *domain.Shift {
	return t.shift
}

func (t *resolutionTx) Applications() ([]*domain.Application, error) {
	query := `
		SELECT id, shift_id, user_id, display_name, applied_at
		FROM shift_applications
		WHERE shift_id = $1
		ORDER BY applied_at, id
	`

	rows, err := t.tx.QueryContext(t.ctx, query, t.shift.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applications := []*domain.Application{}
	for rows.Next() {
		application := &domain.Application{}
		if err := scanApplication(rows, application); err != nil {
			return nil, err
		}
		applications = append(applications, application)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return applications, nil
}

func (t *resolutionTx) InsertAssignments(assignments []*domain.Assignment) error {
	query := `
		INSERT INTO shift_assignments (shift_id, user_id, display_name, assigned_at)
		VALUES ($1, $2, $3, $4)
	`

	for _, a := range assignments {
		if _, err := t.tx.ExecContext(t.ctx, query, a.ShiftID, a.UserID, a.DisplayName, a.AssignedAt); err != nil {
			return err
		}
	}

	return nil
}

func (t *resolutionTx) MarkCompleted() error {
	query := `
		UPDATE shifts SET status = $1
		WHERE id = $2 AND status = $3
	`

	result, err := t.tx.ExecContext(t.ctx, query, string(domain.ShiftStatusCompleted), t.shift.ID, string(domain.ShiftStatusOpen))
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: 班次 %d 已经完成抽签", domain.ErrInvalidState, t.shift.ID)
	}

	return nil
}

// ClearApplications 删除该班次的所有报名，抽签完成后报名记录不再保留
func (t *resolutionTx) ClearApplications() error {
	query := `DELETE FROM shift_applications WHERE shift_id = $1`
	if _, err := t.tx.ExecContext(t.ctx, query, t.shift.ID); err != nil {
		return err
	}

	return nil
}

func (t *resolutionTx) Commit() error {
	defer t.cancel()

	return t.tx.Commit()
}

func (t *resolutionTx) Rollback() error {
	defer t.cancel()

	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}

	return nil
}
