package preferences

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	apperrors "hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ui_preferences (
	job_id        INTEGER PRIMARY KEY,
	active_filter TEXT NOT NULL,
	expanded_ids  TEXT NOT NULL DEFAULT '[]',
	updated_at    TEXT NOT NULL
);`

// SQLiteStore is the pipelinectl default: one row per job in a local file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates the table when missing.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("create ui_preferences", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, jobID int64) (models.UIState, bool, error) {
	var filter, ids string
	err := s.db.QueryRowContext(ctx,
		`SELECT active_filter, expanded_ids FROM ui_preferences WHERE job_id = ?`, jobID,
	).Scan(&filter, &ids)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UIState{}, false, nil
	}
	if err != nil {
		return models.UIState{}, false, apperrors.NewDatabaseQueryFailedError("select ui_preferences", err)
	}

	state := models.UIState{ActiveFilter: filter}
	if err := json.Unmarshal([]byte(ids), &state.ExpandedCandidateIDs); err != nil {
		return models.UIState{}, false, apperrors.NewInternalError("decode expanded ids", err)
	}
	return state.Normalize(), true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, jobID int64, state models.UIState) error {
	state = state.Normalize()
	ids, err := json.Marshal(state.ExpandedCandidateIDs)
	if err != nil {
		return apperrors.NewInternalError("encode expanded ids", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ui_preferences (job_id, active_filter, expanded_ids, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			active_filter = excluded.active_filter,
			expanded_ids  = excluded.expanded_ids,
			updated_at    = excluded.updated_at`,
		jobID, state.ActiveFilter, string(ids), s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return apperrors.NewDatabaseQueryFailedError("upsert ui_preferences", err)
	}
	return nil
}
