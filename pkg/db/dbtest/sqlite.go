// Package dbtest opens throwaway sqlite databases that mirror the Postgres schema
// closely enough for repository and transactional service tests.
package dbtest

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const schema = `
CREATE TABLE users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	name TEXT NOT NULL,
	role TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT 1,
	last_login_at DATETIME,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE projects (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	category TEXT,
	funding_goal NUMERIC NOT NULL,
	current_funding NUMERIC NOT NULL DEFAULT 0,
	pledged_funding NUMERIC NOT NULL DEFAULT 0,
	project_progress REAL NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	sdgs TEXT NOT NULL DEFAULT '{}',
	rejection_reason TEXT,
	reviewed_by TEXT,
	reviewed_at DATETIME,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE milestones (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	due_date DATETIME NOT NULL,
	completion_percentage REAL NOT NULL,
	estimated_funding NUMERIC NOT NULL,
	status TEXT NOT NULL,
	completion_details TEXT,
	completion_date DATETIME,
	verification_documents TEXT NOT NULL DEFAULT '[]',
	started_at DATETIME,
	submitted_at DATETIME,
	approved_by TEXT,
	approved_at DATETIME,
	rejected_by TEXT,
	rejected_at DATETIME,
	rejection_reason TEXT,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE verifications (
	id TEXT PRIMARY KEY,
	milestone_id TEXT NOT NULL,
	project_id TEXT NOT NULL,
	verifier_id TEXT NOT NULL,
	verifier_role TEXT NOT NULL,
	rating_completion INTEGER,
	rating_documentation INTEGER,
	rating_quality INTEGER,
	rating_average INTEGER,
	criteria_verified TEXT NOT NULL DEFAULT '{}',
	comment TEXT,
	created_at DATETIME
);
CREATE UNIQUE INDEX ux_verifications_milestone_verifier ON verifications (milestone_id, verifier_id);
CREATE TABLE escrow_transactions (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	milestone_id TEXT NOT NULL,
	amount NUMERIC NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	released_by TEXT NOT NULL,
	released_at DATETIME NOT NULL,
	note TEXT,
	created_at DATETIME
);
CREATE UNIQUE INDEX ux_escrow_milestone_payment ON escrow_transactions (milestone_id) WHERE type = 'milestone_payment';
CREATE TABLE wallet_transactions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	project_id TEXT NOT NULL,
	escrow_transaction_id TEXT,
	direction TEXT NOT NULL,
	amount NUMERIC NOT NULL,
	description TEXT NOT NULL,
	created_at DATETIME
);
CREATE TABLE investments (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	investor_id TEXT NOT NULL,
	amount NUMERIC NOT NULL,
	created_at DATETIME
);
CREATE TABLE investment_disbursements (
	id TEXT PRIMARY KEY,
	investment_id TEXT NOT NULL,
	milestone_id TEXT NOT NULL,
	amount NUMERIC NOT NULL,
	released BOOLEAN NOT NULL DEFAULT 0,
	released_at DATETIME,
	escrow_transaction_id TEXT,
	created_at DATETIME
);
CREATE TABLE release_rules (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	name TEXT NOT NULL,
	conditions TEXT NOT NULL,
	actions TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT 1,
	last_evaluated_at DATETIME,
	triggered_at DATETIME,
	created_by TEXT NOT NULL,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE messages (
	id TEXT PRIMARY KEY,
	sender_id TEXT NOT NULL,
	recipient_id TEXT NOT NULL,
	project_id TEXT,
	body TEXT NOT NULL,
	read_at DATETIME,
	created_at DATETIME
);
CREATE TABLE notifications (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	message TEXT NOT NULL,
	link TEXT,
	read_at DATETIME,
	created_at DATETIME
);
CREATE TABLE outbox_events (
	id TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at DATETIME,
	published_at DATETIME,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	last_error TEXT
);
CREATE TABLE outbox_dlq (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL UNIQUE,
	event_type TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	payload_json TEXT NOT NULL,
	error_reason TEXT NOT NULL,
	error_message TEXT,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	failed_at DATETIME
);
`

// Open returns an isolated in-memory sqlite database with the full schema applied.
// The pool is pinned to one connection so every query sees the same memory database.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_loc=UTC"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v\n%s", err, stmt)
		}
	}
	return conn
}
