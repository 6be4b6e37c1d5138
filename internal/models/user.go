package models

import "time"

// UserRole classifies platform accounts.
type UserRole string

// Supported roles.
const (
	RoleStudent    UserRole = "STUDENT"
	RoleInstructor UserRole = "INSTRUCTOR"
	RoleAdmin      UserRole = "ADMIN"
)

// User is a platform account. Students are users with role STUDENT.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"full_name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         UserRole  `db:"role" json:"role"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Student is the catalog view of a user as seen by the enrollment engine.
type Student struct {
	ID       string   `db:"id" json:"id"`
	Email    string   `db:"email" json:"email"`
	FullName string   `db:"full_name" json:"full_name"`
	Role     UserRole `db:"role" json:"role"`
	Active   bool     `db:"active" json:"active"`
}
