// Command createadmin creates an operator account directly in MySQL. It is
// how the first admin gets in; later accounts are created over the API.
//
// Usage:
//
//	createadmin -email admin@example.com -password 's3cret-pass' [-role admin]
//
// The database settings are read from the same environment variables as
// the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ticket-gate/internal/config"
	"github.com/iliyamo/ticket-gate/internal/database"
	"github.com/iliyamo/ticket-gate/internal/logging"
	"github.com/iliyamo/ticket-gate/internal/model"
	"github.com/iliyamo/ticket-gate/internal/repository"
	"github.com/iliyamo/ticket-gate/internal/service"
)

func main() {
	email := flag.String("email", "", "account email")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "account password (default $ADMIN_PASSWORD)")
	role := flag.String("role", model.RoleAdmin, "admin, subadmin, editor or scanner")
	flag.Parse()

	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if cfg.StoreBackend != config.BackendMySQL {
		log.Fatal().Str("store", cfg.StoreBackend).Msg("createadmin needs STORE_BACKEND=mysql")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	accounts := service.NewAccounts(repository.NewUserRepo(db), service.AccountsConfig{
		JWTSecret:  cfg.JWTSecret,
		BcryptCost: cfg.BcryptCost,
	})
	u, err := accounts.Bootstrap(ctx, service.NewUser{Email: *email, Password: *password, Role: *role})
	if err != nil {
		log.Fatal().Err(err).Msg("create account")
	}
	fmt.Printf("created %s account %s (id %d)\n", u.Role, u.Email, u.ID)
}
