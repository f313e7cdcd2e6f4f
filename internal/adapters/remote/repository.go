// Package remote talks to the pipeline API over HTTP. It is what the CLI
// hosts the core against.
package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	apperrors "hiring-pipeline/internal/common/errors"
	httpclient "hiring-pipeline/internal/common/http"
	"hiring-pipeline/internal/models"
)

type Repository struct {
	client *httpclient.Client
}

func NewRepository(client *httpclient.Client) *Repository {
	return &Repository{client: client}
}

func (r *Repository) FetchRoster(ctx context.Context, jobID int64) ([]models.Candidate, error) {
	var records []models.CandidateRecord
	if err := r.client.GetJSON(ctx, "FetchRoster", "/all-candidates/"+strconv.FormatInt(jobID, 10), nil, &records); err != nil {
		return nil, err
	}

	roster := make([]models.Candidate, 0, len(records))
	for _, rec := range records {
		if rec.JobID == nil {
			rec.JobID = &jobID
		}
		c, err := rec.Normalize()
		if err != nil {
			return nil, apperrors.NewInternalError("malformed candidate record", err)
		}
		roster = append(roster, c)
	}
	return roster, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, update models.StatusUpdate) error {
	q := url.Values{}
	q.Set("id", strconv.FormatInt(update.CandidateID, 10))
	q.Set("status", string(update.Status))
	if update.InterviewID != nil {
		q.Set("interviewId", strconv.FormatInt(*update.InterviewID, 10))
	}
	if update.InterviewerEmail != "" {
		q.Set("interviewerEmail", update.InterviewerEmail)
	}
	return r.client.Put(ctx, "UpdateStatus", "/update-status", q, nil)
}

func (r *Repository) FetchInterviews(ctx context.Context, interviewerID int64, scope models.InterviewScope) ([]models.Interview, error) {
	var records []models.InterviewRecord
	path := "/interview/interviewers/" + strconv.FormatInt(interviewerID, 10) + "/" + string(scope)
	if err := r.client.GetJSON(ctx, "FetchInterviews", path, nil, &records); err != nil {
		return nil, err
	}

	out := make([]models.Interview, 0, len(records))
	for _, rec := range records {
		iv, err := rec.Normalize()
		if err != nil {
			return nil, apperrors.NewInternalError("malformed interview record", err)
		}
		out = append(out, iv)
	}
	return out, nil
}

func (r *Repository) SubmitFeedback(ctx context.Context, jobApplicationID int64, update models.FeedbackUpdate) error {
	return r.client.SendJSON(ctx, "SubmitFeedback", http.MethodPost,
		"/interview/"+strconv.FormatInt(jobApplicationID, 10), nil, update, nil)
}

// ApplyForJob posts a job application. A duplicate comes back as a
// DUPLICATE_APPLICATION conflict.
func (r *Repository) ApplyForJob(ctx context.Context, jobID, candidateID int64) (models.JobApplication, error) {
	var app models.JobApplication
	err := r.client.SendJSON(ctx, "ApplyForJob", http.MethodPost, "/applications", nil,
		models.ApplyRequest{JobID: jobID, CandidateID: candidateID}, &app)
	return app, err
}
