package store

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore groups the repositories that share one connection pool.
type PostgresStore struct {
	db          *sql.DB
	experiences *ExperienceStore
	permissions *PermissionStore
	users       *UserStore
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:          db,
		experiences: &ExperienceStore{db: db},
		permissions: &PermissionStore{db: db},
		users:       &UserStore{db: db},
	}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Experiences() *ExperienceStore {
	return s.experiences
}

func (s *PostgresStore) Permissions() *PermissionStore {
	return s.permissions
}

func (s *PostgresStore) Users() *UserStore {
	return s.users
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	return nil
}
