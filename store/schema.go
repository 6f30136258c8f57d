package store

// schema is applied on every Open; statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id                TEXT PRIMARY KEY,
	status            TEXT NOT NULL DEFAULT 'idle',
	active_session_id TEXT,
	updated_at_ns     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS requests (
	id             TEXT PRIMARY KEY,
	project_id     TEXT NOT NULL,
	prompt         TEXT NOT NULL,
	mode           TEXT NOT NULL,
	cli_type       TEXT NOT NULL,
	model          TEXT,
	status         TEXT NOT NULL,
	session_id     TEXT,
	enqueued_at_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_project_enqueued
	ON requests(project_id, enqueued_at_ns);

CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	project_id    TEXT NOT NULL,
	cli_type      TEXT NOT NULL,
	state         TEXT NOT NULL,
	exit_reason   TEXT,
	started_at_ns INTEGER NOT NULL,
	ended_at_ns   INTEGER
);
CREATE INDEX IF NOT EXISTS idx_sessions_project_started
	ON sessions(project_id, started_at_ns);

CREATE TABLE IF NOT EXISTS messages (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	project_id    TEXT NOT NULL,
	role          TEXT NOT NULL,
	content       TEXT NOT NULL DEFAULT '',
	finalized     INTEGER NOT NULL DEFAULT 0,
	created_at_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session_created
	ON messages(session_id, created_at_ns);
CREATE INDEX IF NOT EXISTS idx_messages_project_created
	ON messages(project_id, created_at_ns);

CREATE TABLE IF NOT EXISTS tool_usages (
	id            TEXT PRIMARY KEY,
	message_id    TEXT NOT NULL REFERENCES messages(id),
	session_id    TEXT NOT NULL,
	tool_name     TEXT NOT NULL,
	input         TEXT,
	seq           INTEGER NOT NULL,
	output        TEXT,
	duration_ms   INTEGER,
	created_at_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tool_usages_session_seq
	ON tool_usages(session_id, seq);
`
