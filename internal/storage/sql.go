package storage

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time    TIMESTAMP NOT NULL,
    stop_time     TIMESTAMP,
    source_type   TEXT      NOT NULL,
    source_name   TEXT      NOT NULL,
    format        TEXT,
    config        TEXT,
    cycles        INTEGER   NOT NULL DEFAULT 0,
    results       INTEGER   NOT NULL DEFAULT 0,
    no_data       INTEGER   NOT NULL DEFAULT 0,
    no_lock       INTEGER   NOT NULL DEFAULT 0,
    monitor_skips INTEGER   NOT NULL DEFAULT 0,
    samples       INTEGER   NOT NULL DEFAULT 0,
    error         TEXT
)`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions (start_time)`

	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      source_type,
                      source_name,
                      format,
                      config)
VALUES (?, ?, ?, ?, ?)`

	closeSessionSQL = `
UPDATE sessions
SET stop_time     = ?,
    cycles        = ?,
    results       = ?,
    no_data       = ?,
    no_lock       = ?,
    monitor_skips = ?,
    samples       = ?,
    error         = ?
WHERE id = ?
  AND stop_time IS NULL`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    stop_time,
    source_type,
    source_name,
    format,
    config,
    cycles,
    results,
    no_data,
    no_lock,
    monitor_skips,
    samples,
    error
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    stop_time,
    source_type,
    source_name,
    format,
    config,
    cycles,
    results,
    no_data,
    no_lock,
    monitor_skips,
    samples,
    error
FROM sessions
ORDER BY start_time, id`
)
