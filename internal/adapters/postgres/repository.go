package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	apperrors "hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/pipeline/stage"
)

const uniqueViolation = "23505"

type Repository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRepository(db *sql.DB, log logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"adapter": "postgres"}),
	}
}

const rosterQuery = `
	SELECT c.id, c.unique_id, c.name, c.email, c.phone_number, c.status,
	       c.score, c.summary, c.matched_skills,
	       ja.id, ja.application_date,
	       i.id, i.round1_details, i.round2_details, i.round3_details, i.feedback_summary
	FROM candidates c
	JOIN job_applications ja ON ja.candidate_id = c.id AND ja.job_id = $1
	LEFT JOIN interviews i ON i.job_application_id = ja.id
	ORDER BY ja.application_date, c.id`

// FetchRoster returns every candidate who applied to jobID. An unknown job
// is a NotFound error; a known job without applicants is an empty roster.
func (r *Repository) FetchRoster(ctx context.Context, jobID int64) ([]models.Candidate, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1)`, jobID).Scan(&exists)
	if err != nil {
		return nil, queryError(ctx, "job exists", err)
	}
	if !exists {
		return nil, apperrors.NewJobNotFoundError(jobID)
	}

	rows, err := r.db.QueryContext(ctx, rosterQuery, jobID)
	if err != nil {
		return nil, queryError(ctx, "roster", err)
	}
	defer rows.Close()

	roster := []models.Candidate{}
	for rows.Next() {
		rec, err := scanCandidate(rows)
		if err != nil {
			return nil, queryError(ctx, "roster scan", err)
		}
		rec.JobID = &jobID
		c, err := rec.Normalize()
		if err != nil {
			return nil, apperrors.NewInternalError("malformed candidate row", err)
		}
		roster = append(roster, c)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(ctx, "roster", err)
	}
	return roster, nil
}

func scanCandidate(rows *sql.Rows) (models.CandidateRecord, error) {
	var (
		id, appID                              int64
		interviewID                            sql.NullInt64
		name, email, status                    string
		uniqueID, phone, summary, feedbackSumm sql.NullString
		score                                  sql.NullFloat64
		skills                                 pq.StringArray
		appliedAt                              sql.NullTime
		r1, r2, r3                             []byte
	)
	if err := rows.Scan(&id, &uniqueID, &name, &email, &phone, &status,
		&score, &summary, &skills,
		&appID, &appliedAt,
		&interviewID, &r1, &r2, &r3, &feedbackSumm); err != nil {
		return models.CandidateRecord{}, err
	}

	rec := models.CandidateRecord{
		ID:               &id,
		UniqueID:         nullString(uniqueID),
		Name:             &name,
		Email:            &email,
		PhoneNumber:      nullString(phone),
		Status:           &status,
		MatchedSkills:    []string(skills),
		Summary:          nullString(summary),
		JobApplicationID: &appID,
		FeedbackSummary:  nullString(feedbackSumm),
	}
	if score.Valid {
		rec.Score = &score.Float64
	}
	if appliedAt.Valid {
		rec.ApplicationDate = &appliedAt.Time
	}
	if interviewID.Valid {
		rec.InterviewID = &interviewID.Int64
	}

	var err error
	if rec.Round1Details, err = decodeRound(r1); err != nil {
		return rec, err
	}
	if rec.Round2Details, err = decodeRound(r2); err != nil {
		return rec, err
	}
	if rec.Round3Details, err = decodeRound(r3); err != nil {
		return rec, err
	}
	return rec, nil
}

// UpdateStatus re-checks the stage edge under a row lock, so a stale or
// illegal change is refused with STALE_STAGE. A round status with an
// interview id and interviewer email also books that round's interviewer.
func (r *Repository) UpdateStatus(ctx context.Context, update models.StatusUpdate) error {
	target, err := stage.ParseStatus(string(update.Status))
	if err != nil {
		return apperrors.NewValidationError(apperrors.FieldError{Field: "status", Message: err.Error(), Code: "ENUM"})
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return queryError(ctx, "begin", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM candidates WHERE id = $1 FOR UPDATE`, update.CandidateID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewCandidateNotFoundError(update.CandidateID)
	}
	if err != nil {
		return queryError(ctx, "lock candidate", err)
	}

	from, err := stage.ParseStatus(current)
	if err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("candidate %d has unknown status %q", update.CandidateID, current), err)
	}
	if !stage.CanTransition(from, target) {
		return apperrors.NewStaleStageError(update.CandidateID, string(from), string(target))
	}

	if _, err := tx.ExecContext(ctx, `UPDATE candidates SET status = $1 WHERE id = $2`, string(update.Status), update.CandidateID); err != nil {
		return queryError(ctx, "update status", err)
	}

	if round, ok := target.Round(); ok && update.InterviewID != nil && update.InterviewerEmail != "" {
		if err := r.bindInterviewer(ctx, tx, *update.InterviewID, round, update.InterviewerEmail); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return queryError(ctx, "commit", err)
	}

	// History is non-critical.
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO stage_transitions (candidate_id, from_status, to_status, interviewer_email)
		VALUES ($1, $2, $3, $4)`,
		update.CandidateID, current, string(update.Status), nullIfEmpty(update.InterviewerEmail),
	); err != nil {
		r.logger.Warn("stage history insert failed", map[string]interface{}{
			"candidateId": update.CandidateID,
			"error":       err,
		})
	}

	r.logger.Info("candidate status updated", map[string]interface{}{
		"candidateId": update.CandidateID,
		"from":        current,
		"to":          update.Status,
	})
	return nil
}

func (r *Repository) bindInterviewer(ctx context.Context, tx *sql.Tx, interviewID int64, round int, email string) error {
	if round < 1 || round > 3 {
		return apperrors.NewValidationError(apperrors.FieldError{
			Field:   "round",
			Message: fmt.Sprintf("invalid round number: %d", round),
			Code:    "RANGE",
		})
	}

	var interviewerID int64
	var fullName string
	err := tx.QueryRowContext(ctx, `SELECT id, full_name FROM interviewers WHERE email = $1`, email).Scan(&interviewerID, &fullName)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewInterviewerNotFoundError("email: " + email)
	}
	if err != nil {
		return queryError(ctx, "find interviewer", err)
	}

	// round is 1-3, so the column names below are fixed.
	query := fmt.Sprintf(`
		UPDATE interviews
		SET round%[1]d_interviewer_id = $1,
		    round%[1]d_details = COALESCE(round%[1]d_details, '{}'::jsonb) || jsonb_build_object('interviewerName', $2::text, 'interviewerEmail', $3::text)
		WHERE id = $4`, round)
	res, err := tx.ExecContext(ctx, query, interviewerID, fullName, email, interviewID)
	if err != nil {
		return queryError(ctx, "bind interviewer", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewInterviewNotFoundError(fmt.Sprintf("interviewId: %d", interviewID))
	}
	return nil
}

const interviewColumns = `
	SELECT i.id, ja.id, j.id, j.title, j.location,
	       c.id, c.name, c.email, c.score, c.matched_skills, c.summary,
	       i.round1_details, i.round2_details, i.round3_details, i.feedback_summary
	FROM interviews i
	JOIN job_applications ja ON ja.id = i.job_application_id
	JOIN jobs j ON j.id = ja.job_id
	JOIN candidates c ON c.id = ja.candidate_id`

const pendingClause = `
	((i.round1_interviewer_id = $1 AND NOT i.round1_done)
	 OR (i.round2_interviewer_id = $1 AND NOT i.round2_done)
	 OR (i.round3_interviewer_id = $1 AND NOT i.round3_done))`

const completedClause = `
	((i.round1_interviewer_id = $1 AND i.round1_done)
	 OR (i.round2_interviewer_id = $1 AND i.round2_done)
	 OR (i.round3_interviewer_id = $1 AND i.round3_done))`

// FetchInterviews lists interviews where interviewerID owns a round. An
// interview with any open round for them is pending, never completed.
func (r *Repository) FetchInterviews(ctx context.Context, interviewerID int64, scope models.InterviewScope) ([]models.Interview, error) {
	var query string
	switch scope {
	case models.ScopePending:
		query = interviewColumns + " WHERE " + pendingClause + " ORDER BY i.id"
	case models.ScopeCompleted:
		query = interviewColumns + " WHERE " + completedClause + " AND NOT " + pendingClause + " ORDER BY i.id"
	default:
		return nil, apperrors.NewValidationError(apperrors.FieldError{Field: "scope", Message: "scope must be pending or completed", Code: "ENUM"})
	}

	rows, err := r.db.QueryContext(ctx, query, interviewerID)
	if err != nil {
		return nil, queryError(ctx, "interviews", err)
	}
	defer rows.Close()

	interviews := []models.Interview{}
	for rows.Next() {
		rec, err := scanInterview(rows)
		if err != nil {
			return nil, queryError(ctx, "interviews scan", err)
		}
		iv, err := rec.Normalize()
		if err != nil {
			return nil, apperrors.NewInternalError("malformed interview row", err)
		}
		interviews = append(interviews, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(ctx, "interviews", err)
	}
	return interviews, nil
}

func scanInterview(rows *sql.Rows) (models.InterviewRecord, error) {
	var (
		id, appID, jobID, candID    int64
		title, candName, candEmail  string
		location, summary, feedback sql.NullString
		score                       sql.NullFloat64
		skills                      pq.StringArray
		r1, r2, r3                  []byte
	)
	if err := rows.Scan(&id, &appID, &jobID, &title, &location,
		&candID, &candName, &candEmail, &score, &skills, &summary,
		&r1, &r2, &r3, &feedback); err != nil {
		return models.InterviewRecord{}, err
	}

	rec := models.InterviewRecord{
		InterviewID: &id,
		Feedback:    nullString(feedback),
		Candidate: &models.InterviewCandidateRecord{
			ID:            &candID,
			Name:          &candName,
			Email:         &candEmail,
			MatchedSkills: []string(skills),
			Summary:       nullString(summary),
		},
		JobApplication: &models.JobApplicationInfoRecord{
			ID:          &appID,
			JobID:       &jobID,
			JobTitle:    &title,
			JobLocation: nullString(location),
		},
	}
	if score.Valid {
		rec.Candidate.Score = &score.Float64
	}

	var err error
	if rec.Round1Details, err = decodeRound(r1); err != nil {
		return rec, err
	}
	if rec.Round2Details, err = decodeRound(r2); err != nil {
		return rec, err
	}
	if rec.Round3Details, err = decodeRound(r3); err != nil {
		return rec, err
	}
	return rec, nil
}

// SubmitFeedback stores the given rounds against the job application's
// interview. Rounds left nil keep their stored value; a round written with
// feedback is marked done.
func (r *Repository) SubmitFeedback(ctx context.Context, jobApplicationID int64, update models.FeedbackUpdate) error {
	args := []interface{}{jobApplicationID}
	for n := 1; n <= 3; n++ {
		raw, err := encodeRound(update.Round(n))
		if err != nil {
			return apperrors.NewInternalError("encode round details", err)
		}
		args = append(args, raw)
	}
	for n := 1; n <= 3; n++ {
		args = append(args, update.Round(n).Filled())
	}
	args = append(args, nullIfEmpty(update.Feedback))

	res, err := r.db.ExecContext(ctx, `
		UPDATE interviews SET
			round1_details   = COALESCE($2::jsonb, round1_details),
			round2_details   = COALESCE($3::jsonb, round2_details),
			round3_details   = COALESCE($4::jsonb, round3_details),
			round1_done      = round1_done OR $5,
			round2_done      = round2_done OR $6,
			round3_done      = round3_done OR $7,
			feedback_summary = COALESCE($8, feedback_summary)
		WHERE job_application_id = $1`, args...)
	if err != nil {
		return queryError(ctx, "submit feedback", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewInterviewNotFoundError(fmt.Sprintf("jobApplicationId: %d", jobApplicationID))
	}

	r.logger.Info("interview feedback stored", map[string]interface{}{
		"jobApplicationId": jobApplicationID,
	})
	return nil
}

// ApplyForJob records candidateID's application to jobID together with its
// empty interview sheet. Applying twice is a DUPLICATE_APPLICATION conflict.
func (r *Repository) ApplyForJob(ctx context.Context, jobID, candidateID int64) (models.JobApplication, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM job_applications
			WHERE job_id = $1 AND candidate_id = $2
		)`, jobID, candidateID).Scan(&exists)
	if err != nil {
		return models.JobApplication{}, queryError(ctx, "duplicate check", err)
	}
	if exists {
		return models.JobApplication{}, apperrors.NewDuplicateApplicationError(jobID, candidateID)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.JobApplication{}, queryError(ctx, "begin", err)
	}
	defer tx.Rollback()

	app := models.JobApplication{JobID: jobID, CandidateID: candidateID, AppliedAt: time.Now().UTC()}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO job_applications (job_id, candidate_id, application_date)
		VALUES ($1, $2, $3)
		RETURNING id`, jobID, candidateID, app.AppliedAt).Scan(&app.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.JobApplication{}, apperrors.NewDuplicateApplicationError(jobID, candidateID)
		}
		return models.JobApplication{}, queryError(ctx, "insert application", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO interviews (job_application_id) VALUES ($1)`, app.ID); err != nil {
		return models.JobApplication{}, queryError(ctx, "insert interview", err)
	}
	if err := tx.Commit(); err != nil {
		return models.JobApplication{}, queryError(ctx, "commit", err)
	}

	// Audit entry is non-critical.
	details, _ := json.Marshal(map[string]interface{}{"jobId": jobID, "candidateId": candidateID})
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details)
		VALUES ($1, $2, $3, $4)`,
		"application_created", "job_application", fmt.Sprintf("%d", app.ID), details,
	); err != nil {
		r.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":            err,
			"jobApplicationId": app.ID,
		})
	}

	r.logger.Info("job application created", map[string]interface{}{
		"jobApplicationId": app.ID,
		"jobId":            jobID,
		"candidateId":      candidateID,
	})
	return app, nil
}

func decodeRound(raw []byte) (*models.RoundFeedbackRecord, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rec models.RoundFeedbackRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode round details: %w", err)
	}
	return &rec, nil
}

func encodeRound(fb *models.RoundFeedback) (interface{}, error) {
	if fb == nil {
		return nil, nil
	}
	raw, err := json.Marshal(fb)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func queryError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.NewTimeoutError("postgres", err)
	}
	return apperrors.NewDatabaseQueryFailedError(op, err)
}
