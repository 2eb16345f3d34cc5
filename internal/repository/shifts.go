package repository

import (
	"context"
	"fmt"

	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/domain"
)

func (r *Repository) CreateShift(ctx context.Context, shift *domain.Shift) error {
	query := `
		INSERT INTO shifts (shift_type, required_people)
		VALUES ($1, $2)
		RETURNING id, status, created_at
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	dst := []any{&shift.ID, &shift.Status, &shift.CreatedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, shift.ShiftType, shift.RequiredPeople).Scan(dst...); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetShiftByID(ctx context.Context, id int64) (*domain.Shift, error) {
	query := `
		SELECT shift_type, required_people, status, created_at
		FROM shifts WHERE id = $1
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	shift := &domain.Shift{
		ID: id,
	}

	dst := []any{&shift.ShiftType, &shift.RequiredPeople, &shift.Status, &shift.CreatedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, fmt.Errorf("%w: %d", notFound(err), id)
	}

	return shift, nil
}

func (r *Repository) GetAllShifts(ctx context.Context, filter domain.ShiftFilter) ([]*domain.Shift, error) {
	query := `
		SELECT id, shift_type, required_people, status, created_at
		FROM shifts
		WHERE ($1::text = '' OR status = $1::text)
		ORDER BY id DESC
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, string(filter.Status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shifts := []*domain.Shift{}
	shiftsMap := make(map[int64]*domain.Shift) // shiftID -> shift
	for rows.Next() {
		shift := &domain.Shift{}
		dst := []any{&shift.ID, &shift.ShiftType, &shift.RequiredPeople, &shift.Status, &shift.CreatedAt}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		shifts = append(shifts, shift)
		shiftsMap[shift.ID] = shift
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !filter.WithApplications || len(shifts) == 0 {
		return shifts, nil
	}

	for _, shift := range shifts {
		shift.Applications = []*domain.Application{}
	}

	query = `
		SELECT sa.id, sa.shift_id, sa.user_id, sa.display_name, sa.applied_at
		FROM shift_applications sa
		JOIN shifts s ON s.id = sa.shift_id
		WHERE ($1::text = '' OR s.status = $1::text)
		ORDER BY sa.applied_at, sa.id
	`

	appRows, err := r.dbpool.QueryContext(ctx, query, string(filter.Status))
	if err != nil {
		return nil, err
	}
	defer appRows.Close()

	for appRows.Next() {
		application := &domain.Application{}
		if err := scanApplication(appRows, application); err != nil {
			return nil, err
		}
		// 两次查询之间可能有新班次被创建，忽略不在列表中的报名
		if shift, ok := shiftsMap[application.ShiftID]; ok {
			shift.Applications = append(shift.Applications, application)
		}
	}

	if err := appRows.Err(); err != nil {
		return nil, err
	}

	for _, shift := range shifts {
		count := int32(len(shift.Applications))
		shift.ApplicantCount = &count
	}

	return shifts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner, application *domain.Application) error {
	dst := []any{
		&application.ID,
		&application.ShiftID,
		&application.UserID,
		&application.DisplayName,
		&application.AppliedAt,
	}
	return row.Scan(dst...)
}
