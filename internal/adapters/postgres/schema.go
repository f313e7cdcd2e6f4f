// Package postgres is the system of record: candidates, job applications,
// interviews and interviewers.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id          BIGSERIAL PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT,
	location    TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS candidates (
	id             BIGSERIAL PRIMARY KEY,
	unique_id      TEXT UNIQUE,
	name           TEXT NOT NULL,
	email          TEXT NOT NULL,
	phone_number   TEXT,
	score          DOUBLE PRECISION,
	summary        TEXT,
	matched_skills TEXT[] NOT NULL DEFAULT '{}',
	status         TEXT NOT NULL DEFAULT 'IN_PROCESS'
);

CREATE TABLE IF NOT EXISTS interviewers (
	id        BIGSERIAL PRIMARY KEY,
	full_name TEXT NOT NULL,
	email     TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS job_applications (
	id               BIGSERIAL PRIMARY KEY,
	job_id           BIGINT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	candidate_id     BIGINT NOT NULL REFERENCES candidates(id) ON DELETE CASCADE,
	application_date TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (job_id, candidate_id)
);

CREATE TABLE IF NOT EXISTS interviews (
	id                    BIGSERIAL PRIMARY KEY,
	job_application_id    BIGINT NOT NULL UNIQUE REFERENCES job_applications(id) ON DELETE CASCADE,
	round1_details        JSONB,
	round2_details        JSONB,
	round3_details        JSONB,
	round1_interviewer_id BIGINT REFERENCES interviewers(id),
	round2_interviewer_id BIGINT REFERENCES interviewers(id),
	round3_interviewer_id BIGINT REFERENCES interviewers(id),
	round1_done           BOOLEAN NOT NULL DEFAULT false,
	round2_done           BOOLEAN NOT NULL DEFAULT false,
	round3_done           BOOLEAN NOT NULL DEFAULT false,
	feedback_summary      TEXT
);

CREATE TABLE IF NOT EXISTS stage_transitions (
	id                BIGSERIAL PRIMARY KEY,
	candidate_id      BIGINT NOT NULL,
	from_status       TEXT NOT NULL,
	to_status         TEXT NOT NULL,
	interviewer_email TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_log (
	id            BIGSERIAL PRIMARY KEY,
	event_type    TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	resource_id   TEXT NOT NULL,
	details       JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
