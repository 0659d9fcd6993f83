package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"experiences/api/internal/permission"
)

// PermissionStore implements permission.Store on experience_edit_permissions.
type PermissionStore struct {
	db *sql.DB
}

func NewPermissionStore(db *sql.DB) *PermissionStore {
	return &PermissionStore{db: db}
}

func (s *PermissionStore) GetByExperienceID(ctx context.Context, experienceID int64) (*permission.Permission, error) {
	var (
		p         permission.Permission
		expiresAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, experience_id, user_id, approved, created_at, expires_at
		FROM experience_edit_permissions WHERE experience_id = $1
	`, experienceID).Scan(&p.ID, &p.ExperienceID, &p.UserID, &p.Approved, &p.CreatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get edit permission: %w", err)
	}
	if expiresAt.Valid {
		p.ExpiresAt = &expiresAt.Time
	}
	return &p, nil
}

func (s *PermissionStore) Add(ctx context.Context, p *permission.Permission) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO experience_edit_permissions (experience_id, user_id, approved, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, p.ExperienceID, p.UserID, p.Approved, p.CreatedAt, p.ExpiresAt).Scan(&p.ID)
	if isUniqueViolation(err) {
		return permission.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert edit permission: %w", err)
	}
	return nil
}

func (s *PermissionStore) Update(ctx context.Context, p *permission.Permission) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE experience_edit_permissions SET approved = $2, created_at = $3, expires_at = $4
		WHERE experience_id = $1
	`, p.ExperienceID, p.Approved, p.CreatedAt, p.ExpiresAt)
	if err != nil {
		return fmt.Errorf("update edit permission: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return permission.ErrNotRequested
	}
	return nil
}

func (s *PermissionStore) ListAll(ctx context.Context) ([]permission.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.experience_id, p.user_id, p.approved, p.created_at, p.expires_at,
			COALESCE(e.name_experiences, ''), COALESCE(u.username, '')
		FROM experience_edit_permissions p
		LEFT JOIN experiences e ON e.id = p.experience_id
		LEFT JOIN users u ON u.id = p.user_id
		ORDER BY p.created_at DESC, p.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list edit permissions: %w", err)
	}
	defer rows.Close()

	items := make([]permission.Listing, 0)
	for rows.Next() {
		var (
			item      permission.Listing
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&item.ID, &item.ExperienceID, &item.UserID, &item.Approved, &item.CreatedAt, &expiresAt,
			&item.ExperienceName, &item.UserName); err != nil {
			return nil, fmt.Errorf("scan edit permission: %w", err)
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			item.ExpiresAt = &t
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
