package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/ticket-gate/internal/model"
)

// UserRepo persists operator accounts in the users table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,password_hash,role,token_version,is_active,created_at,last_login"

func scanUser(s rowScanner) (*model.User, error) {
	var (
		u         model.User
		lastLogin sql.NullTime
	)
	if err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.TokenVersion, &u.IsActive, &u.CreatedAt, &lastLogin); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		u.LastLogin = &t
	}
	return &u, nil
}

// Create inserts u and fills in its ID. The email is normalized first.
// Returns ErrConflict when the email is taken.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.TokenVersion == 0 {
		u.TokenVersion = 1
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, token_version, is_active, created_at) VALUES (?,?,?,?,?,?)",
		u.Email, u.PasswordHash, u.Role, u.TokenVersion, u.IsActive, u.CreatedAt)
	if err != nil {
		return unavailable("create user", duplicateKey(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return unavailable("create user", err)
	}
	u.ID = uint64(id)
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	return userResult(u, err)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	return userResult(u, err)
}

func userResult(u *model.User, err error) (*model.User, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get user", err)
	}
	return u, nil
}

// List returns every user ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, unavailable("list users", err)
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, unavailable("scan user", err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list users", err)
	}
	return out, nil
}

// Delete removes a user. Tickets scanned by the user keep their
// scanned_by value.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return unavailable("delete user", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return unavailable("delete user", err)
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

// BumpTokenVersion increments the user's token_version, invalidating
// every access token issued before, and returns the new version.
func (r *UserRepo) BumpTokenVersion(ctx context.Context, id uint64) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, unavailable("begin revoke", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx, "UPDATE users SET token_version = token_version + 1 WHERE id=?", id)
	if err != nil {
		return 0, unavailable("revoke sessions", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, unavailable("revoke sessions", err)
	} else if n == 0 {
		return 0, ErrNotFound
	}
	var ver int
	if err := tx.QueryRowContext(ctx, "SELECT token_version FROM users WHERE id=?", id).Scan(&ver); err != nil {
		return 0, unavailable("revoke sessions", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, unavailable("commit revoke", err)
	}
	committed = true
	return ver, nil
}

// TouchLogin records a successful login.
func (r *UserRepo) TouchLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET last_login=? WHERE id=?", at.UTC(), id)
	return unavailable("touch login", err)
}
