package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrUserNotFound = errors.New("user not found")

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `
	u.id, u.username, u.email, u.password_hash,
	COALESCE(p.first_name, ''), COALESCE(p.last_name, ''), u.created_at`

func scanUser(row rowScanner) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.CreatedAt)
	return user, err
}

func (s *UserStore) GetUserByID(ctx context.Context, id int64) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users u LEFT JOIN persons p ON p.id = u.person_id WHERE u.id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return user, nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users u LEFT JOIN persons p ON p.id = u.person_id WHERE LOWER(u.email) = $1
	`, strings.ToLower(strings.TrimSpace(email))))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (s *UserStore) RolesForUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.name FROM user_roles ur JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1 ORDER BY r.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("roles for user %d: %w", userID, err)
	}
	defer rows.Close()

	roles := make([]string, 0)
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CreateUser inserts a user with its person row and role memberships.
// Used by the seed command and integration tests.
func (s *UserStore) CreateUser(ctx context.Context, user *User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var personID sql.NullInt64
	if user.FirstName != "" || user.LastName != "" {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO persons (first_name, last_name) VALUES ($1, $2) RETURNING id
		`, user.FirstName, user.LastName).Scan(&personID); err != nil {
			return fmt.Errorf("insert person: %w", err)
		}
	}
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash, person_id) VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, user.Username, strings.ToLower(user.Email), user.PasswordHash, personID).Scan(&user.ID, &user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s already exists", user.Username)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	for _, role := range user.Roles {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_roles (user_id, role_id) SELECT $1, id FROM roles WHERE name = $2
		`, user.ID, role); err != nil {
			return fmt.Errorf("assign role %s: %w", role, err)
		}
	}
	return tx.Commit()
}
