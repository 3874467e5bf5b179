// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Use setupTestDB()
// and the seed* helpers instead.
package sqlite_test

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/dispatch/internal/db"
	"github.com/example/dispatch/internal/models"
	"github.com/example/dispatch/internal/ports/secondary"
)

// baseTime is a fixed instant all repository tests are anchored to.
var baseTime = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

// setupTestDB creates an in-memory database with the authoritative schema.
// The pool is limited to one connection so every query sees the same
// in-memory database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	// Use the authoritative schema from schema.go
	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// newTaskRecord returns an OPEN urgent task for serviceOrderID due four hours after baseTime.
func newTaskRecord(id, serviceOrderID string) *secondary.TaskRecord {
	return &secondary.TaskRecord{
		ID:             id,
		TaskType:       models.TaskTypePaymentFailed,
		Priority:       models.PriorityUrgent,
		Status:         models.TaskStatusOpen,
		ServiceOrderID: serviceOrderID,
		Context:        []byte(`{"paymentId":"PAY-1","amount":120.5,"currency":"EUR"}`),
		CountryCode:    "FR",
		BusinessUnit:   "LM",
		CreatedBy:      "op-alice",
		CreatedAt:      baseTime,
		UpdatedAt:      baseTime,
		SLADeadline:    baseTime.Add(4 * time.Hour),
	}
}

// seedTask inserts a task through SQL so tests can set any column.
func seedTask(t *testing.T, db *sql.DB, id, serviceOrderID string, status models.TaskStatus, assignedTo string, deadline time.Time) {
	t.Helper()
	var assignee any
	if assignedTo != "" {
		assignee = assignedTo
	}
	stamp := baseTime.Format("2006-01-02T15:04:05.000000Z")
	_, err := db.Exec(`
		INSERT INTO tasks (id, task_type, priority, status, service_order_id, assigned_to, created_by, created_at, updated_at, sla_deadline)
		VALUES (?, 'PAYMENT_FAILED', 'URGENT', ?, ?, ?, 'op-alice', ?, ?, ?)`,
		id, status, serviceOrderID, assignee, stamp, stamp, deadline.UTC().Format("2006-01-02T15:04:05.000000Z"))
	if err != nil {
		t.Fatalf("failed to seed task: %v", err)
	}
}
