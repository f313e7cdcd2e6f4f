package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "hiring-pipeline/internal/common/errors"
	httpclient "hiring-pipeline/internal/common/http"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/pipeline/stage"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httpclient.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return httpclient.NewClient(srv.URL+"/api/v1", time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRepository_FetchRoster(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/all-candidates/7", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"id": 1, "name": "Ana Silva", "email": "ana@x.com", "status": "IN_PROCESS_ROUND2",
			 "score": 71, "matchedSkills": ["go"], "interviewId": 30,
			 "round1Details": {"interviewerName": "Kim", "feedback": "good", "status": "COMPLETED"},
			 "round2Details": {}},
			{"id": 2, "name": "Bo Chen", "email": "bo@x.com", "status": "ON_HOLD"}
		]`))
	})

	roster, err := NewRepository(client).FetchRoster(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, roster, 2)

	assert.Equal(t, stage.Round2, roster[0].Stage)
	assert.Equal(t, int64(7), roster[0].JobID)
	assert.True(t, roster[0].Round1.Filled())
	assert.Nil(t, roster[0].Round2, "an empty block normalizes to absent")
	assert.Equal(t, stage.OnHold, roster[1].Stage)
	assert.Nil(t, roster[1].InterviewID)
}

func TestRepository_FetchRoster_MalformedRecord(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id": 1, "name": "Ana", "status": "SHORTLISTED"}]`))
	})

	_, err := NewRepository(client).FetchRoster(context.Background(), 7)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
}

func TestRepository_FetchRoster_JobNotFound(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, apperrors.ErrorBody{Code: apperrors.ErrCodeJobNotFound, Message: "Job not found"})
	})

	_, err := NewRepository(client).FetchRoster(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, apperrors.ErrCodeJobNotFound, apperrors.CodeOf(err))
}

func TestRepository_UpdateStatus(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/update-status", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("id"))
		assert.Equal(t, "IN_PROCESS_ROUND1", q.Get("status"))
		assert.Equal(t, "30", q.Get("interviewId"))
		assert.Equal(t, "kim@x.com", q.Get("interviewerEmail"))
		w.WriteHeader(http.StatusOK)
	})

	interviewID := int64(30)
	err := NewRepository(client).UpdateStatus(context.Background(), models.StatusUpdate{
		CandidateID:      1,
		Status:           stage.StatusInProcessRound1,
		InterviewID:      &interviewID,
		InterviewerEmail: "kim@x.com",
	})
	assert.NoError(t, err)
}

func TestRepository_UpdateStatus_OmitsAbsentBinding(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, hasInterview := r.URL.Query()["interviewId"]
		_, hasEmail := r.URL.Query()["interviewerEmail"]
		assert.False(t, hasInterview)
		assert.False(t, hasEmail)
		writeJSON(w, http.StatusConflict, apperrors.ErrorBody{Code: apperrors.ErrCodeStaleStage, Message: "stale"})
	})

	err := NewRepository(client).UpdateStatus(context.Background(), models.StatusUpdate{CandidateID: 1, Status: stage.StatusRejected})
	assert.True(t, apperrors.IsConflict(err))
}

func TestRepository_FetchInterviews(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/interview/interviewers/4/pending", r.URL.Path)
		_, _ = w.Write([]byte(`[{
			"interviewId": 30,
			"candidate": {"id": 1, "name": "Ana Silva", "email": "ana@x.com"},
			"jobApplication": {"id": 11, "jobTitle": "Backend Engineer"},
			"round1Details": {"interviewerName": "Kim Lee", "interviewerEmail": "kim@x.com"}
		}]`))
	})

	list, err := NewRepository(client).FetchInterviews(context.Background(), 4, models.ScopePending)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(11), list[0].JobApplicationID)
	assert.Equal(t, "Kim Lee", list[0].Round1.InterviewerName)
	assert.False(t, list[0].Round1.Filled())
}

func TestRepository_SubmitFeedback(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/interview/11", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "solid", body["feedback"])
		assert.NotContains(t, body, "round3Details")
		round2, ok := body["round2Details"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "COMPLETED", round2["status"])
		w.WriteHeader(http.StatusOK)
	})

	err := NewRepository(client).SubmitFeedback(context.Background(), 11, models.FeedbackUpdate{
		Round2Details: &models.RoundFeedback{InterviewerName: "Kim", Feedback: "solid", Status: models.RoundStatusCompleted},
		Feedback:      "solid",
	})
	assert.NoError(t, err)
}

func TestRepository_ApplyForJob_Duplicate(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, apperrors.ErrorBody{Code: apperrors.ErrCodeDuplicateApplication, Message: "already applied"})
	})

	_, err := NewRepository(client).ApplyForJob(context.Background(), 7, 1)
	assert.Equal(t, apperrors.ErrCodeDuplicateApplication, apperrors.CodeOf(err))
}

func TestDispatcher_Send(t *testing.T) {
	var got models.EmailRequest
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/email/schedule-invite", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, NewDispatcher(client).Send(context.Background(), "ana@x.com", "Hi", "Body"))
	assert.Equal(t, models.EmailRequest{CandidateEmail: "ana@x.com", Subject: "Hi", Body: "Body"}, got)
}

func TestDispatcher_FailureIsNotificationError(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "smtp down", http.StatusBadGateway)
	})

	err := NewDispatcher(client).Send(context.Background(), "ana@x.com", "Hi", "Body")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotificationSendFailed, apperrors.CodeOf(err))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestDirectory_ListInterviewers(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/admins/interviewers", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id": 1, "fullName": "Ana Silva", "email": "ana@x.com"}]`))
	})

	list, err := NewDirectory(client).ListInterviewers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Interviewer{{ID: 1, FullName: "Ana Silva", Email: "ana@x.com"}}, list)
}

func TestDirectory_Unavailable(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := NewDirectory(client).ListInterviewers(context.Background())
	assert.Equal(t, apperrors.ErrCodeDirectoryUnavailable, apperrors.CodeOf(err))
}
