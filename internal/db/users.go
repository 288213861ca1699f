package db

import (
	"database/sql"
	"fmt"
	"time"
)

type User struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	Email     *string   `json:"email,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateUserInput struct {
	Handle       string
	Email        string
	PasswordHash string
	Role         string
}

func (db *DB) CreateUser(input CreateUserInput) (*User, error) {
	id := NewID()
	var emailPtr *string
	if input.Email != "" {
		emailPtr = &input.Email
	}
	role := input.Role
	if role == "" {
		role = "reporter"
	}
	_, err := db.Exec(`
		INSERT INTO users (id, handle, email, password_hash, role)
		VALUES (?, ?, ?, ?, ?)`, id, input.Handle, emailPtr, input.PasswordHash, role)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return &User{
		ID:     id,
		Handle: input.Handle,
		Email:  emailPtr,
		Role:   role,
	}, nil
}

func (db *DB) GetUserByHandle(handle string) (*User, string, error) {
	u := &User{}
	var email sql.NullString
	var passwordHash string
	err := db.QueryRow(`
		SELECT id, handle, email, password_hash, role, created_at
		FROM users WHERE handle = ?`, handle).Scan(
		&u.ID, &u.Handle, &email, &passwordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, "", err
	}
	if email.Valid {
		u.Email = &email.String
	}
	return u, passwordHash, nil
}

func (db *DB) GetUserByID(id string) (*User, error) {
	u := &User{}
	var email sql.NullString
	err := db.QueryRow(`
		SELECT id, handle, email, role, created_at
		FROM users WHERE id = ?`, id).Scan(
		&u.ID, &u.Handle, &email, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	if email.Valid {
		u.Email = &email.String
	}
	return u, nil
}
