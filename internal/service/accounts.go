package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ticket-gate/internal/access"
	"github.com/iliyamo/ticket-gate/internal/model"
	"github.com/iliyamo/ticket-gate/internal/repository"
	"github.com/iliyamo/ticket-gate/internal/utils"
)

// AccountsConfig holds the token and hashing parameters.
type AccountsConfig struct {
	JWTSecret      string
	AccessTokenTTL int // minutes
	BcryptCost     int
}

// Accounts authenticates operators and manages their accounts.
type Accounts struct {
	users UserStore
	cfg   AccountsConfig
}

// NewAccounts returns an Accounts service.
func NewAccounts(users UserStore, cfg AccountsConfig) *Accounts {
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 60
	}
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = 12
	}
	return &Accounts{users: users, cfg: cfg}
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        model.Actor `json:"user"`
}

// Login verifies email and password and issues an access token bound to
// the user's current token version.
func (a *Accounts) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	u, err := a.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		utils.BurnVerify(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	tok, err := utils.NewAccessToken(a.cfg.JWTSecret, u.ID, u.Role, u.TokenVersion, a.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	if err := a.users.TouchLogin(ctx, u.ID, time.Now()); err != nil {
		log.Warn().Err(err).Uint64("user_id", u.ID).Msg("could not record last login")
	}
	log.Info().Uint64("user_id", u.ID).Str("role", u.Role).Msg("login")
	return &LoginResult{AccessToken: tok.Token, TokenType: "Bearer", ExpiresAt: tok.Exp, User: model.ActorOf(*u)}, nil
}

// ResolveActor turns a bearer token into the actor it names. Tokens for
// deleted or inactive users, or carrying a stale version, are rejected
// with access.ErrUnauthenticated.
func (a *Accounts) ResolveActor(ctx context.Context, raw string) (model.Actor, error) {
	claims, err := utils.ParseAccessToken(a.cfg.JWTSecret, raw)
	if err != nil {
		return model.Actor{}, access.ErrUnauthenticated
	}
	id, err := claims.UserID()
	if err != nil {
		return model.Actor{}, access.ErrUnauthenticated
	}
	u, err := a.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Actor{}, access.ErrUnauthenticated
	}
	if err != nil {
		return model.Actor{}, err
	}
	if !u.IsActive || u.TokenVersion != claims.Version {
		return model.Actor{}, access.ErrUnauthenticated
	}
	return model.ActorOf(*u), nil
}

// NewUser is the input of CreateUser.
type NewUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// CreateUser adds an operator account.
func (a *Accounts) CreateUser(ctx context.Context, actor model.Actor, in NewUser) (*model.User, error) {
	if err := access.Authorize(actor, access.CreateUser); err != nil {
		return nil, err
	}
	return a.createUser(ctx, in)
}

// Bootstrap creates an account without a permission check. It exists for
// the command that seeds the first admin.
func (a *Accounts) Bootstrap(ctx context.Context, in NewUser) (*model.User, error) {
	return a.createUser(ctx, in)
}

func (a *Accounts) createUser(ctx context.Context, in NewUser) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	if !model.ValidRole(in.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	hash, err := utils.HashPassword(in.Password, a.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{Email: email, PasswordHash: hash, Role: in.Role, TokenVersion: 1, IsActive: true}
	if err := a.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: email already registered", repository.ErrConflict)
		}
		return nil, err
	}
	log.Info().Uint64("user_id", u.ID).Str("role", u.Role).Msg("user created")
	return u, nil
}

// ListUsers returns every account.
func (a *Accounts) ListUsers(ctx context.Context, actor model.Actor) ([]model.User, error) {
	if err := access.Authorize(actor, access.CreateUser); err != nil {
		return nil, err
	}
	return a.users.List(ctx)
}

// DeleteUser removes an account. Actors cannot delete themselves.
func (a *Accounts) DeleteUser(ctx context.Context, actor model.Actor, id uint64) error {
	if err := access.Authorize(actor, access.CreateUser); err != nil {
		return err
	}
	if id == actor.ID {
		return fmt.Errorf("%w: cannot delete your own account", ErrInvalidInput)
	}
	return a.users.Delete(ctx, id)
}

// RevokeSessions bumps the token version of user id so every access token
// issued to it so far stops working. It returns the new version.
func (a *Accounts) RevokeSessions(ctx context.Context, actor model.Actor, id uint64) (int, error) {
	if err := access.Authorize(actor, access.CreateUser); err != nil {
		return 0, err
	}
	v, err := a.users.BumpTokenVersion(ctx, id)
	if err != nil {
		return 0, err
	}
	log.Info().Uint64("user_id", id).Int("token_version", v).Uint64("actor_id", actor.ID).Msg("sessions revoked")
	return v, nil
}
