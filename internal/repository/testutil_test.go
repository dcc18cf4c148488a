package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
)

// setupTestDB connects to the MySQL instance named by TEST_DB_DSN (or the
// DB_* variables) and rebuilds the schema from scratch.  Tests that need a
// database skip when none is reachable, so the pure-logic suite still runs
// everywhere.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		host := os.Getenv("DB_HOST")
		if host == "" {
			t.Skip("no TEST_DB_DSN or DB_HOST; skipping database test")
		}
		port := os.Getenv("DB_PORT")
		if port == "" {
			port = "3306"
		}
		name := os.Getenv("TEST_DB_NAME")
		if name == "" {
			name = "venue_scheduler_test"
		}
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=false&loc=UTC&multiStatements=true",
			os.Getenv("DB_USER"), os.Getenv("DB_PASS"), host, port, name)
	}

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		t.Skipf("mysql unreachable: %v", err)
	}

	for _, stmt := range []string{
		`SET FOREIGN_KEY_CHECKS = 0`,
		`DROP TABLE IF EXISTS tickets`,
		`DROP TABLE IF EXISTS assignments`,
		`DROP TABLE IF EXISTS venue_slots`,
		`DROP TABLE IF EXISTS events`,
		`DROP TABLE IF EXISTS venues`,
		`DROP TABLE IF EXISTS refresh_tokens`,
		`DROP TABLE IF EXISTS users`,
		`SET FOREIGN_KEY_CHECKS = 1`,
		`CREATE TABLE users (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			email VARCHAR(255) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(16) NOT NULL DEFAULT 'VIEWER',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uq_users_email (email)
		) ENGINE=InnoDB`,
		`CREATE TABLE refresh_tokens (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			user_id BIGINT UNSIGNED NOT NULL,
			token_hash CHAR(64) NOT NULL,
			expires_at DATETIME NOT NULL,
			revoked_at DATETIME NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			KEY idx_refresh_tokens_hash (token_hash)
		) ENGINE=InnoDB`,
		`CREATE TABLE venues (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			owner_id BIGINT UNSIGNED NOT NULL,
			city VARCHAR(128) NOT NULL,
			name VARCHAR(255) NOT NULL,
			capacity INT UNSIGNED NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uq_venues_owner_name (owner_id, name)
		) ENGINE=InnoDB`,
		`CREATE TABLE events (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			owner_id BIGINT UNSIGNED NOT NULL,
			title VARCHAR(255) NOT NULL,
			description TEXT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB`,
		`CREATE TABLE venue_slots (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			venue_id BIGINT UNSIGNED NOT NULL,
			starts_at DATETIME NOT NULL,
			ends_at DATETIME NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			is_vacant BOOLEAN NOT NULL DEFAULT TRUE,
			created_by BIGINT UNSIGNED NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			KEY idx_venue_slots_venue_time (venue_id, starts_at, ends_at)
		) ENGINE=InnoDB`,
		`CREATE TABLE assignments (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			event_id BIGINT UNSIGNED NOT NULL,
			slot_id BIGINT UNSIGNED NOT NULL,
			venue_id BIGINT UNSIGNED NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_by BIGINT UNSIGNED NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uq_assignments_event_slot (event_id, slot_id),
			KEY idx_assignments_slot_active (slot_id, is_active)
		) ENGINE=InnoDB`,
		`CREATE TABLE tickets (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			assignment_id BIGINT UNSIGNED NOT NULL,
			row_label VARCHAR(3) NOT NULL,
			seat_column INT UNSIGNED NOT NULL,
			location VARCHAR(16) NOT NULL,
			category VARCHAR(16) NOT NULL,
			price_cents INT UNSIGNED NOT NULL,
			is_vacant BOOLEAN NOT NULL DEFAULT TRUE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			booking_ref VARCHAR(64) NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uq_tickets_assignment_location (assignment_id, row_label, seat_column)
		) ENGINE=InnoDB`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err, "schema statement failed")
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// seedOwner inserts a user and returns its ID.
func seedOwner(t *testing.T, db *sql.DB, email string) uint64 {
	t.Helper()
	res, err := db.Exec(
		`INSERT INTO users (email, password_hash, role) VALUES (?, 'x', 'ORGANIZER')`, email)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return uint64(id)
}

// seedVenue inserts a venue and returns its ID.
func seedVenue(t *testing.T, db *sql.DB, ownerID uint64, name string, capacity uint32) uint64 {
	t.Helper()
	res, err := db.Exec(
		`INSERT INTO venues (owner_id, city, name, capacity) VALUES (?, 'Berlin', ?, ?)`,
		ownerID, name, capacity)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return uint64(id)
}

// seedEvent inserts an event and returns its ID.
func seedEvent(t *testing.T, db *sql.DB, ownerID uint64, title string) uint64 {
	t.Helper()
	res, err := db.Exec(
		`INSERT INTO events (owner_id, title) VALUES (?, ?)`, ownerID, title)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return uint64(id)
}
