package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/domain"
)

const applicationUniqueConstraint = "shift_applications_shift_id_user_id_key"

// InsertApplication 在共享锁下检查班次状态后写入报名。
// 与抽签事务中的 FOR UPDATE 互斥，同一班次的多个报名之间互不阻塞
func (r *Repository) InsertApplication(ctx context.Context, application *domain.Application) error {
	ctx, cancel := r.transactionContext(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var status domain.ShiftStatus
	query := `SELECT status FROM shifts WHERE id = $1 FOR SHARE`
	if err := tx.QueryRowContext(ctx, query, application.ShiftID).Scan(&status); err != nil {
		return fmt.Errorf("%w: %d", notFound(err), application.ShiftID)
	}
	if status != domain.ShiftStatusOpen {
		return fmt.Errorf("%w: 班次 %d 已经完成抽签", domain.ErrInvalidState, application.ShiftID)
	}

	query = `
		INSERT INTO shift_applications (shift_id, user_id, display_name)
		VALUES ($1, $2, $3)
		RETURNING id, applied_at
	`

	args := []any{application.ShiftID, application.UserID, application.DisplayName}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&application.ID, &application.AppliedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == applicationUniqueConstraint {
			// 事务已经失效，需要在事务外读取首次报名的时间
			_ = tx.Rollback()
			return r.duplicateApplication(ctx, application.ShiftID, application.UserID)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func (r *Repository) duplicateApplication(ctx context.Context, shiftID int64, userID string) error {
	query := `
		SELECT applied_at FROM shift_applications
		WHERE shift_id = $1 AND user_id = $2
	`

	dupErr := &domain.DuplicateApplicationError{
		ShiftID: shiftID,
		UserID:  userID,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, shiftID, userID).Scan(&dupErr.AppliedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// 回滚后到读取之间班次完成了抽签，报名已被清空
			return fmt.Errorf("%w: 班次 %d 已经完成抽签", domain.ErrInvalidState, shiftID)
		}
		return err
	}

	return dupErr
}

func (r *Repository) GetApplicationsByShiftID(ctx context.Context, shiftID int64) ([]*domain.Application, error) {
	query := `
		SELECT id, shift_id, user_id, display_name, applied_at
		FROM shift_applications
		WHERE shift_id = $1
		ORDER BY applied_at, id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, shiftID)
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
