package store

import "context"

// Schema statements are idempotent so they can run on every startup.
// The unique index on attendance (event_id, student_id) is the
// correctness guarantee for at-most-once registration; application-level
// existence checks are only a fast path for friendlier errors.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS areas (
		id          UUID PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		code        TEXT NOT NULL UNIQUE,
		color       TEXT NOT NULL DEFAULT '#4CAF50',
		active      BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS devices (
		id         UUID PRIMARY KEY,
		code       TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL,
		location   TEXT NOT NULL DEFAULT '',
		note       TEXT NOT NULL DEFAULT '',
		active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id              UUID PRIMARY KEY,
		name            TEXT NOT NULL,
		id_type         TEXT NOT NULL DEFAULT 'CC',
		national_id     TEXT NOT NULL,
		carnet_code     TEXT NOT NULL,
		email           TEXT NOT NULL,
		enrollment_type TEXT NOT NULL DEFAULT '',
		faculty         TEXT NOT NULL DEFAULT '',
		program         TEXT NOT NULL DEFAULT '',
		semester        TEXT NOT NULL DEFAULT '',
		district        TEXT NOT NULL DEFAULT '',
		period          TEXT NOT NULL,
		active          BOOLEAN NOT NULL DEFAULT TRUE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (carnet_code, period),
		UNIQUE (national_id, period)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		first_name    TEXT NOT NULL,
		last_name     TEXT NOT NULL,
		cedula        TEXT NOT NULL UNIQUE,
		position      TEXT NOT NULL DEFAULT '',
		area_id       UUID NOT NULL REFERENCES areas(id),
		handle        TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'professional',
		created_by    UUID REFERENCES users(id),
		active        BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id          UUID PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		event_date  DATE NOT NULL,
		start_time  TEXT NOT NULL,
		end_time    TEXT NOT NULL,
		starts_at   TIMESTAMPTZ NOT NULL,
		ends_at     TIMESTAMPTZ NOT NULL,
		place       TEXT NOT NULL,
		image_url   TEXT NOT NULL DEFAULT '',
		period      TEXT NOT NULL,
		area_id     UUID NOT NULL REFERENCES areas(id),
		created_by  UUID NOT NULL REFERENCES users(id),
		device_id   UUID REFERENCES devices(id),
		active      BOOLEAN NOT NULL DEFAULT TRUE,
		finalized   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_due ON events (ends_at, finalized)`,
	`CREATE INDEX IF NOT EXISTS idx_events_area_period ON events (area_id, period)`,
	`CREATE INDEX IF NOT EXISTS idx_events_creator ON events (created_by)`,
	`CREATE TABLE IF NOT EXISTS event_photos (
		id          UUID PRIMARY KEY,
		event_id    UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		url         TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id            UUID PRIMARY KEY,
		event_id      UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		student_id    UUID NOT NULL REFERENCES students(id),
		device_id     UUID REFERENCES devices(id),
		scanned_code  TEXT NOT NULL,
		method        TEXT NOT NULL DEFAULT 'device',
		registered_by UUID REFERENCES users(id),
		registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (event_id, student_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_event_time ON attendance (event_id, registered_at DESC)`,
	`CREATE TABLE IF NOT EXISTS attendance_export (
		attendance_id  UUID PRIMARY KEY,
		event_name     TEXT NOT NULL,
		event_date     DATE NOT NULL,
		event_period   TEXT NOT NULL,
		student_name   TEXT NOT NULL,
		national_id    TEXT NOT NULL,
		carnet_code    TEXT NOT NULL,
		email          TEXT NOT NULL,
		faculty        TEXT NOT NULL,
		program        TEXT NOT NULL,
		method         TEXT NOT NULL,
		registered_at  TIMESTAMPTZ NOT NULL,
		materialized_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate applies the schema.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
