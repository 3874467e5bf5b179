package postgres

// SchemaSQL is the PostgreSQL schema. It mirrors the SQLite schema with
// native types: timestamptz for instants, jsonb for context and details.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS service_orders (
	id TEXT PRIMARY KEY,
	country_code TEXT NOT NULL,
	business_unit TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS operators (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	country_code TEXT NOT NULL,
	task_types TEXT[] NOT NULL DEFAULT '{}',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_operators_country ON operators(country_code);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	task_type TEXT NOT NULL,
	priority TEXT NOT NULL CHECK (priority IN ('URGENT', 'HIGH', 'MEDIUM', 'LOW')),
	status TEXT NOT NULL CHECK (status IN ('OPEN', 'ASSIGNED', 'IN_PROGRESS', 'COMPLETED', 'CANCELLED')),
	service_order_id TEXT NOT NULL,
	context JSONB NOT NULL DEFAULT '{}',
	country_code TEXT NOT NULL DEFAULT '',
	business_unit TEXT NOT NULL DEFAULT '',
	assigned_to TEXT,
	assigned_by TEXT,
	assigned_at TIMESTAMPTZ,
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	completed_by TEXT,
	cancelled_at TIMESTAMPTZ,
	cancelled_by TEXT,
	cancellation_reason TEXT,
	sla_deadline TIMESTAMPTZ NOT NULL,
	sla_paused BOOLEAN NOT NULL DEFAULT FALSE,
	sla_paused_at TIMESTAMPTZ,
	total_paused_micros BIGINT NOT NULL DEFAULT 0 CHECK (total_paused_micros >= 0),
	escalation_level INTEGER NOT NULL DEFAULT 0,
	escalated_at TIMESTAMPTZ,
	last_escalated_tier INTEGER NOT NULL DEFAULT 0,
	resolution_notes TEXT,
	resolution_time INTEGER,
	within_sla BOOLEAN,
	version BIGINT NOT NULL DEFAULT 1
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_one_active
	ON tasks(service_order_id, task_type)
	WHERE status IN ('OPEN', 'ASSIGNED', 'IN_PROGRESS');

CREATE INDEX IF NOT EXISTS idx_tasks_status_deadline ON tasks(status, sla_deadline);
CREATE INDEX IF NOT EXISTS idx_tasks_assigned_to ON tasks(assigned_to, status);
CREATE INDEX IF NOT EXISTS idx_tasks_completed_by ON tasks(completed_by, completed_at);
CREATE INDEX IF NOT EXISTS idx_tasks_service_order ON tasks(service_order_id);

CREATE TABLE IF NOT EXISTS task_audit_log (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	seq BIGINT NOT NULL,
	action TEXT NOT NULL CHECK (action IN ('CREATED', 'ASSIGNED', 'STARTED', 'COMPLETED', 'CANCELLED', 'UPDATED', 'ESCALATED')),
	performed_by TEXT NOT NULL,
	performed_at TIMESTAMPTZ NOT NULL,
	details JSONB,
	notes TEXT,
	UNIQUE (task_id, seq)
);
`
