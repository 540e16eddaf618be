package auth

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ziadkadry99/classrag/internal/access"
	"github.com/ziadkadry99/classrag/internal/db"
)

// User is a stored account.
type User struct {
	ID           string
	Email        string
	Name         string
	Role         access.Role
	PasswordHash string
}

// Store persists user accounts in SQLite.
type Store struct {
	db *db.DB
}

// NewStore creates a user store over an opened database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// CreateUser inserts a new user. If u.ID is empty a UUID is generated.
func (s *Store) CreateUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if !u.Role.Valid() {
		return User{}, fmt.Errorf("invalid role %q", u.Role)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, role, password_hash)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, string(u.Role), u.PasswordHash)
	if err != nil {
		return User{}, fmt.Errorf("creating user %s: %w", u.Email, err)
	}
	return u, nil
}

// GetByEmail returns the user with the given email, or (nil, nil) if no
// such user exists.
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, role, password_hash FROM users WHERE email = ?`, email)

	var (
		u    User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", email, err)
	}
	u.Role = access.Role(role)
	return &u, nil
}

// ListUsers returns all users ordered by email.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, name, role, password_hash FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			u    User
			role string
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &role, &u.PasswordHash); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		u.Role = access.Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

// Authenticate verifies an email/password pair and returns the matching
// principal. Every failure mode is the same opaque error so callers
// cannot distinguish unknown users from wrong passwords.
func (s *Store) Authenticate(ctx context.Context, email, password string) (access.Principal, error) {
	u, err := s.GetByEmail(ctx, email)
	if err != nil {
		return access.Principal{}, err
	}
	if u == nil || !CheckPassword(password, u.PasswordHash) {
		return access.Principal{}, fmt.Errorf("invalid credentials")
	}
	return access.Principal{ID: u.ID, Role: u.Role}, nil
}
