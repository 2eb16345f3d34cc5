package repository

import (
	"context"

	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/domain"
)

// UpsertUserProfile 写入最新的用户资料，以最后一次写入为准
func (r *Repository) UpsertUserProfile(ctx context.Context, profile *domain.UserProfile) error {
	query := `
		INSERT INTO users (user_id, display_name, picture_url, last_active)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET
			display_name = EXCLUDED.display_name,
			picture_url = EXCLUDED.picture_url,
			last_active = EXCLUDED.last_active
		RETURNING last_active
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{profile.UserID, profile.DisplayName, profile.PictureURL}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&profile.LastActive); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	query := `
		SELECT display_name, picture_url, last_active
		FROM users WHERE user_id = $1
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	profile := &domain.UserProfile{
		UserID: userID,
	}

	dst := []any{&profile.DisplayName, &profile.PictureURL, &profile.LastActive}
	if err := r.dbpool.QueryRowContext(ctx, query, userID).Scan(dst...); err != nil {
		return nil, notFound(err)
	}

	return profile, nil
}
