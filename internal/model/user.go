package model

import "time"

// Role names recognised by the permission table.
const (
	RoleAdmin    = "admin"
	RoleSubadmin = "subadmin"
	RoleEditor   = "editor"
	RoleScanner  = "scanner"
)

// ValidRole reports whether r is one of the fixed roles.
func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleSubadmin, RoleEditor, RoleScanner:
		return true
	}
	return false
}

// User represents an operator account as stored in the `users` table.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique, lower-cased email address.
//	PasswordHash – bcrypt hashed password.
//	Role         – one of admin, subadmin, editor, scanner.
//	TokenVersion – incremented to invalidate every outstanding access token.
//	IsActive     – inactive accounts cannot authenticate.
//	CreatedAt    – timestamp of creation.
//	LastLogin    – timestamp of the last successful login (nil if never).
type User struct {
	ID           uint64     `json:"id"`            // users.id
	Email        string     `json:"email"`         // users.email
	PasswordHash string     `json:"-"`             // users.password_hash
	Role         string     `json:"role"`          // users.role
	TokenVersion int        `json:"token_version"` // users.token_version
	IsActive     bool       `json:"is_active"`     // users.is_active
	CreatedAt    time.Time  `json:"created_at"`    // users.created_at
	LastLogin    *time.Time `json:"last_login"`    // users.last_login (nullable)
}

// Actor is the authenticated principal performing an operation.
type Actor struct {
	ID           uint64 `json:"id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
}

// Anonymous reports whether no principal has been resolved.
func (a Actor) Anonymous() bool { return a.ID == 0 || a.Role == "" }

// ActorOf returns the actor view of a user.
func ActorOf(u User) Actor {
	return Actor{ID: u.ID, Email: u.Email, Role: u.Role, TokenVersion: u.TokenVersion}
}
