package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/pipeline/stage"
)

var rosterColumns = []string{
	"id", "unique_id", "name", "email", "phone_number", "status",
	"score", "summary", "matched_skills",
	"ja_id", "application_date",
	"interview_id", "round1_details", "round2_details", "round3_details", "feedback_summary",
}

func newMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db, logger.NewTestLogger(t)), mock
}

func TestFetchRoster_Success(t *testing.T) {
	repo, mock := newMock(t)
	applied := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM jobs WHERE id`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`FROM candidates c`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(rosterColumns).
			AddRow(1, "u-1", "Ana Silva", "ana@x.com", nil, "IN_PROCESS_ROUND1",
				82.5, "backend engineer", "{go,sql}",
				11, applied,
				101, []byte(`{"interviewerName":"Kim Lee","interviewerEmail":"kim@x.com"}`), nil, nil, nil).
			AddRow(2, nil, "Bo Chen", "bo@x.com", "5550001111", "IN_PROCESS",
				nil, nil, "{}",
				12, applied,
				nil, nil, nil, nil, nil))

	roster, err := repo.FetchRoster(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, roster, 2)

	ana := roster[0]
	assert.Equal(t, stage.Round1, ana.Stage)
	assert.Equal(t, int64(7), ana.JobID)
	assert.Equal(t, []string{"go", "sql"}, ana.MatchedSkills)
	assert.Equal(t, 82.5, ana.Score)
	require.NotNil(t, ana.InterviewID)
	assert.Equal(t, int64(101), *ana.InterviewID)
	require.NotNil(t, ana.Round1)
	assert.Equal(t, "kim@x.com", ana.Round1.InterviewerEmail)
	assert.False(t, ana.Round1.Filled())
	assert.Nil(t, ana.Round2)

	bo := roster[1]
	assert.Equal(t, stage.Applied, bo.Stage)
	assert.Nil(t, bo.InterviewID)
	assert.Nil(t, bo.Summary)
	assert.Equal(t, []string{}, bo.MatchedSkills)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchRoster_UnknownJob(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`FROM jobs WHERE id`).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := repo.FetchRoster(context.Background(), 404)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeJobNotFound, apperrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchRoster_QueryFailureIsRetryable(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`FROM jobs WHERE id`).WillReturnError(errors.New("connection reset"))

	_, err := repo.FetchRoster(context.Background(), 7)
	require.Error(t, err)
	assert.True(t, apperrors.IsNetwork(err))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestFetchRoster_UnknownStatusIsInternal(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`FROM jobs WHERE id`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`FROM candidates c`).
		WillReturnRows(sqlmock.NewRows(rosterColumns).
			AddRow(1, nil, "Ana", "ana@x.com", nil, "ARCHIVED", nil, nil, "{}", 11, nil, nil, nil, nil, nil, nil))

	_, err := repo.FetchRoster(context.Background(), 7)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
}

func TestUpdateStatus_BindsRoundInterviewer(t *testing.T) {
	repo, mock := newMock(t)
	interviewID := int64(101)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM candidates`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("IN_PROCESS"))
	mock.ExpectExec(`UPDATE candidates SET status`).
		WithArgs("IN_PROCESS_ROUND1", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT id, full_name FROM interviewers`).
		WithArgs("kim@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name"}).AddRow(4, "Kim Lee"))
	mock.ExpectExec(`round1_interviewer_id`).
		WithArgs(int64(4), "Kim Lee", "kim@x.com", int64(101)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(`INSERT INTO stage_transitions`).
		WithArgs(int64(1), "IN_PROCESS", "IN_PROCESS_ROUND1", "kim@x.com").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.UpdateStatus(context.Background(), models.StatusUpdate{
		CandidateID:      1,
		Status:           stage.StatusInProcessRound1,
		InterviewID:      &interviewID,
		InterviewerEmail: "kim@x.com",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_HistoryFailureIsNonCritical(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM candidates`).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("ON_HOLD"))
	mock.ExpectExec(`UPDATE candidates SET status`).
		WithArgs("HIRED", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(`INSERT INTO stage_transitions`).
		WithArgs(int64(3), "ON_HOLD", "HIRED", nil).
		WillReturnError(errors.New("relation does not exist"))

	err := repo.UpdateStatus(context.Background(), models.StatusUpdate{CandidateID: 3, Status: stage.StatusHired})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_StaleStageIsConflict(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM candidates`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("IN_PROCESS_ROUND2"))
	mock.ExpectRollback()

	err := repo.UpdateStatus(context.Background(), models.StatusUpdate{CandidateID: 1, Status: stage.StatusInProcessRound1})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, apperrors.ErrCodeStaleStage, apperrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_UnknownCandidate(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM candidates`).
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	mock.ExpectRollback()

	err := repo.UpdateStatus(context.Background(), models.StatusUpdate{CandidateID: 9, Status: stage.StatusRejected})
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_InvalidStatusNeverReachesDatabase(t *testing.T) {
	repo, mock := newMock(t)

	err := repo.UpdateStatus(context.Background(), models.StatusUpdate{CandidateID: 1, Status: "in_process"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_UnknownInterviewerRollsBack(t *testing.T) {
	repo, mock := newMock(t)
	interviewID := int64(101)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM candidates`).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("IN_PROCESS_ROUND1"))
	mock.ExpectExec(`UPDATE candidates SET status`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT id, full_name FROM interviewers`).
		WithArgs("ghost@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name"}))
	mock.ExpectRollback()

	err := repo.UpdateStatus(context.Background(), models.StatusUpdate{
		CandidateID:      1,
		Status:           stage.StatusInProcessRound2,
		InterviewID:      &interviewID,
		InterviewerEmail: "ghost@x.com",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInterviewerNotFound, apperrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

var interviewRowColumns = []string{
	"id", "ja_id", "job_id", "title", "location",
	"cand_id", "name", "email", "score", "matched_skills", "summary",
	"round1_details", "round2_details", "round3_details", "feedback_summary",
}

func TestFetchInterviews_Pending(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`FROM interviews i`).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(interviewRowColumns).
			AddRow(101, 11, 7, "Backend Engineer", "Lisbon",
				1, "Ana Silva", "ana@x.com", 82.5, "{go}", nil,
				[]byte(`{"interviewerName":"Earlier","feedback":"solid","status":"COMPLETED"}`),
				[]byte(`{"interviewerName":"Kim Lee","interviewerEmail":"kim@x.com"}`),
				nil, "solid"))

	list, err := repo.FetchInterviews(context.Background(), 4, models.ScopePending)
	require.NoError(t, err)
	require.Len(t, list, 1)

	iv := list[0]
	assert.Equal(t, int64(11), iv.JobApplicationID)
	assert.Equal(t, "Backend Engineer", iv.JobTitle)
	assert.Equal(t, "Ana Silva", iv.Candidate.Name)
	assert.True(t, iv.Round1.Filled())
	assert.False(t, iv.Round2.Filled())
	require.NotNil(t, iv.Feedback)
	assert.Equal(t, "solid", *iv.Feedback)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchInterviews_InvalidScope(t *testing.T) {
	repo, _ := newMock(t)
	_, err := repo.FetchInterviews(context.Background(), 4, "archived")
	assert.True(t, apperrors.IsValidation(err))
}

func TestSubmitFeedback(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(`UPDATE interviews SET`).
		WithArgs(int64(11), sqlmock.AnyArg(), sqlmock.AnyArg(), nil, true, true, false, "one\ntwo").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SubmitFeedback(context.Background(), 11, models.FeedbackUpdate{
		Round1Details: &models.RoundFeedback{Feedback: "one", Status: models.RoundStatusCompleted},
		Round2Details: &models.RoundFeedback{InterviewerName: "Kim Lee", Feedback: "two", Status: models.RoundStatusCompleted},
		Feedback:      "one\ntwo",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitFeedback_UnknownApplication(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(`UPDATE interviews SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SubmitFeedback(context.Background(), 99, models.FeedbackUpdate{Feedback: "x"})
	assert.Equal(t, apperrors.ErrCodeInterviewNotFound, apperrors.CodeOf(err))
}

func TestApplyForJob_Success(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(7), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO job_applications`).
		WithArgs(int64(7), int64(1), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(55))
	mock.ExpectExec(`INSERT INTO interviews`).
		WithArgs(int64(55)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs("application_created", "job_application", "55", sqlmock.AnyArg()).
		WillReturnError(errors.New("audit table locked"))

	app, err := repo.ApplyForJob(context.Background(), 7, 1)
	require.NoError(t, err, "audit failures never fail the application")
	assert.Equal(t, int64(55), app.ID)
	assert.False(t, app.AppliedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyForJob_Duplicate(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(7), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := repo.ApplyForJob(context.Background(), 7, 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, apperrors.ErrCodeDuplicateApplication, apperrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyForJob_UniqueViolationRace(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO job_applications`).WillReturnError(&pq.Error{Code: uniqueViolation})
	mock.ExpectRollback()

	_, err := repo.ApplyForJob(context.Background(), 7, 1)
	assert.Equal(t, apperrors.ErrCodeDuplicateApplication, apperrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectory_ListInterviewers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM interviewers`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "email"}).
			AddRow(1, "Ana Silva", "ana@x.com").
			AddRow(2, "Bo Chen", "bo@x.com"))

	list, err := NewDirectory(db).ListInterviewers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Interviewer{
		{ID: 1, FullName: "Ana Silva", Email: "ana@x.com"},
		{ID: 2, FullName: "Bo Chen", Email: "bo@x.com"},
	}, list)
}

func TestQueryError_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	err := queryError(ctx, "roster", errors.New("canceling statement"))
	assert.Equal(t, apperrors.ErrCodeTimeout, apperrors.CodeOf(err))
}
