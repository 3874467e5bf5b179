package db

// SchemaSQL is the complete schema for fresh installs.
//
// # Schema Drift Protection
//
// This is the SINGLE SOURCE OF TRUTH for the SQLite schema. Repository tests
// load it via GetSchemaSQL() instead of declaring their own tables, so a
// column referenced in code but missing here fails with "no such column".
//
// Timestamps are stored as fixed-width UTC text (see the sqlite adapter) so
// range filters and ORDER BY compare them correctly.
const SchemaSQL = `
-- Service order mirror (read-only upstream data consulted at task creation)
CREATE TABLE IF NOT EXISTS service_orders (
	id TEXT PRIMARY KEY,
	country_code TEXT NOT NULL,
	business_unit TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);

-- Operator directory used for auto-assignment
CREATE TABLE IF NOT EXISTS operators (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	country_code TEXT NOT NULL,
	task_types TEXT NOT NULL DEFAULT '',
	active INTEGER NOT NULL DEFAULT 1,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_operators_country ON operators(country_code);

-- Tasks
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	task_type TEXT NOT NULL,
	priority TEXT NOT NULL CHECK(priority IN ('URGENT', 'HIGH', 'MEDIUM', 'LOW')),
	status TEXT NOT NULL CHECK(status IN ('OPEN', 'ASSIGNED', 'IN_PROGRESS', 'COMPLETED', 'CANCELLED')),
	service_order_id TEXT NOT NULL,
	context TEXT NOT NULL DEFAULT '{}',
	country_code TEXT NOT NULL DEFAULT '',
	business_unit TEXT NOT NULL DEFAULT '',
	assigned_to TEXT,
	assigned_by TEXT,
	assigned_at TEXT,
	created_by TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	started_at TEXT,
	completed_at TEXT,
	completed_by TEXT,
	cancelled_at TEXT,
	cancelled_by TEXT,
	cancellation_reason TEXT,
	sla_deadline TEXT NOT NULL,
	sla_paused INTEGER NOT NULL DEFAULT 0,
	sla_paused_at TEXT,
	total_paused_micros INTEGER NOT NULL DEFAULT 0 CHECK(total_paused_micros >= 0),
	escalation_level INTEGER NOT NULL DEFAULT 0,
	escalated_at TEXT,
	last_escalated_tier INTEGER NOT NULL DEFAULT 0,
	resolution_notes TEXT,
	resolution_time INTEGER,
	within_sla INTEGER,
	version INTEGER NOT NULL DEFAULT 1
);

-- At most one active task per (service order, task type)
CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_one_active
	ON tasks(service_order_id, task_type)
	WHERE status IN ('OPEN', 'ASSIGNED', 'IN_PROGRESS');

CREATE INDEX IF NOT EXISTS idx_tasks_status_deadline ON tasks(status, sla_deadline);
CREATE INDEX IF NOT EXISTS idx_tasks_assigned_to ON tasks(assigned_to, status);
CREATE INDEX IF NOT EXISTS idx_tasks_completed_by ON tasks(completed_by, completed_at);
CREATE INDEX IF NOT EXISTS idx_tasks_service_order ON tasks(service_order_id);

-- Append-only audit log
CREATE TABLE IF NOT EXISTS task_audit_log (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	action TEXT NOT NULL CHECK(action IN ('CREATED', 'ASSIGNED', 'STARTED', 'COMPLETED', 'CANCELLED', 'UPDATED', 'ESCALATED')),
	performed_by TEXT NOT NULL,
	performed_at TEXT NOT NULL,
	details TEXT,
	notes TEXT,
	FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE,
	UNIQUE(task_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_audit_task ON task_audit_log(task_id, seq);
`

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
