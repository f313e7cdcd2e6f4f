// Package pipeline declares the collaborators the hiring funnel core talks
// to. Implementations live under internal/adapters.
package pipeline

import (
	"context"

	"hiring-pipeline/internal/models"
)

// CandidateRepository is the system of record for candidates, stages and
// interview feedback.
type CandidateRepository interface {
	// FetchRoster returns the job's candidates. A job without candidates
	// yields a NotFound error.
	FetchRoster(ctx context.Context, jobID int64) ([]models.Candidate, error)
	UpdateStatus(ctx context.Context, update models.StatusUpdate) error
	FetchInterviews(ctx context.Context, interviewerID int64, scope models.InterviewScope) ([]models.Interview, error)
	SubmitFeedback(ctx context.Context, jobApplicationID int64, update models.FeedbackUpdate) error
}

// NotificationDispatcher delivers an email-like message. It reports only
// success or failure.
type NotificationDispatcher interface {
	Send(ctx context.Context, to, subject, body string) error
}

type DirectoryService interface {
	ListInterviewers(ctx context.Context) ([]models.Interviewer, error)
}

// PreferenceStorage persists UI preferences keyed by job id. Load reports
// false when nothing was saved for the job.
type PreferenceStorage interface {
	Load(ctx context.Context, jobID int64) (models.UIState, bool, error)
	Save(ctx context.Context, jobID int64, state models.UIState) error
}

// EventPublisher announces committed stage changes to other systems.
type EventPublisher interface {
	PublishStageChange(ctx context.Context, event models.StageEvent) error
}
