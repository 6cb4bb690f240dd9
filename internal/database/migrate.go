package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the DDL statements applied by Migrate, in order. Every
// statement is idempotent. tickets.scanned_by has no foreign key: it keeps
// the id of the scanning account even after that account is deleted.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		email          VARCHAR(255) NOT NULL,
		password_hash  VARCHAR(255) NOT NULL,
		role           ENUM('admin','subadmin','editor','scanner') NOT NULL,
		token_version  INT NOT NULL DEFAULT 1,
		is_active      BOOLEAN NOT NULL DEFAULT TRUE,
		created_at     DATETIME(6) NOT NULL,
		last_login     DATETIME(6) NULL,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS ticket_sequences (
		name   VARCHAR(64) NOT NULL PRIMARY KEY,
		value  BIGINT UNSIGNED NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS tickets (
		ticket_id       CHAR(36) NOT NULL PRIMARY KEY,
		ticket_number   VARCHAR(32) NOT NULL,
		name            VARCHAR(255) NOT NULL,
		id_card_number  VARCHAR(128) NOT NULL,
		date_of_birth   VARCHAR(32) NOT NULL,
		phone_number    VARCHAR(64) NOT NULL,
		event           VARCHAR(255) NOT NULL,
		used            BOOLEAN NOT NULL DEFAULT FALSE,
		scanned_at      DATETIME(6) NULL,
		scanned_by      BIGINT UNSIGNED NULL,
		created_at      DATETIME(6) NOT NULL,
		updated_at      DATETIME(6) NOT NULL,
		UNIQUE KEY uq_tickets_number (ticket_number),
		UNIQUE KEY uq_tickets_identity_event (id_card_number, event),
		KEY ix_tickets_event_used (event, used),
		KEY ix_tickets_event_scanned_by (event, scanned_by),
		KEY ix_tickets_scanned_at (scanned_at),
		CONSTRAINT ck_tickets_checkin CHECK (
			(used = FALSE AND scanned_at IS NULL AND scanned_by IS NULL) OR
			(used = TRUE AND scanned_at IS NOT NULL AND scanned_by IS NOT NULL)
		)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS events (
		id          CHAR(36) NOT NULL PRIMARY KEY,
		name        VARCHAR(255) NOT NULL,
		date        DATE NOT NULL,
		location    VARCHAR(255) NOT NULL DEFAULT '',
		created_at  DATETIME(6) NOT NULL,
		UNIQUE KEY uq_events_name_date (name, date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing table. Existing tables are left untouched.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
