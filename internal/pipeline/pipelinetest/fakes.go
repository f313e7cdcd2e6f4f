// Package pipelinetest provides in-memory collaborators for exercising the
// pipeline core without a server.
package pipelinetest

import (
	"context"
	"sort"
	"sync"

	"github.com/stretchr/testify/mock"

	apperrors "hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/pipeline/stage"
)

// Repository simulates the system of record, including its stage backstop.
// Set a Fail* field to make the matching call fail.
type Repository struct {
	mu sync.Mutex

	rosters    map[int64][]models.Candidate
	interviews map[int64][]models.Interview

	Updates  []models.StatusUpdate
	Feedback map[int64]models.FeedbackUpdate

	FailRoster     error
	FailUpdate     error
	FailInterviews error
	FailFeedback   error

	RosterCalls int
}

func NewRepository() *Repository {
	return &Repository{
		rosters:    make(map[int64][]models.Candidate),
		interviews: make(map[int64][]models.Interview),
		Feedback:   make(map[int64]models.FeedbackUpdate),
	}
}

// AddCandidate seeds c on job jobID.
func (r *Repository) AddCandidate(jobID int64, c models.Candidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.JobID = jobID
	r.rosters[jobID] = append(r.rosters[jobID], c.Clone())
}

// AddInterview seeds an interview assigned to interviewerID.
func (r *Repository) AddInterview(interviewerID int64, iv models.Interview) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interviews[interviewerID] = append(r.interviews[interviewerID], iv)
}

// Stage reports the stored stage of a candidate.
func (r *Repository) Stage(candidateID int64) stage.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.find(candidateID); c != nil {
		return c.Stage
	}
	return ""
}

func (r *Repository) find(candidateID int64) *models.Candidate {
	for job := range r.rosters {
		for i := range r.rosters[job] {
			if r.rosters[job][i].ID == candidateID {
				return &r.rosters[job][i]
			}
		}
	}
	return nil
}

func (r *Repository) FetchRoster(_ context.Context, jobID int64) ([]models.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RosterCalls++
	if r.FailRoster != nil {
		return nil, r.FailRoster
	}
	roster := r.rosters[jobID]
	if len(roster) == 0 {
		return nil, apperrors.NewJobNotFoundError(jobID)
	}
	out := make([]models.Candidate, len(roster))
	for i, c := range roster {
		out[i] = c.Clone()
	}
	return out, nil
}

func (r *Repository) UpdateStatus(_ context.Context, update models.StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUpdate != nil {
		return r.FailUpdate
	}
	c := r.find(update.CandidateID)
	if c == nil {
		return apperrors.NewCandidateNotFoundError(update.CandidateID)
	}
	target, err := stage.ParseStatus(string(update.Status))
	if err != nil {
		return apperrors.NewValidationError(apperrors.FieldError{Field: "status", Message: err.Error()})
	}
	if !stage.CanTransition(c.Stage, target) {
		return apperrors.NewStaleStageError(c.ID, string(c.Stage), string(target))
	}
	c.Stage = target
	r.Updates = append(r.Updates, update)
	return nil
}

func (r *Repository) FetchInterviews(_ context.Context, interviewerID int64, scope models.InterviewScope) ([]models.Interview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailInterviews != nil {
		return nil, r.FailInterviews
	}
	var out []models.Interview
	for _, iv := range r.interviews[interviewerID] {
		done := r.doneFor(iv)
		if (scope == models.ScopeCompleted) == done {
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// doneFor treats an interview as completed once its latest assigned round
// carries feedback.
func (r *Repository) doneFor(iv models.Interview) bool {
	for n := 3; n >= 1; n-- {
		if fb := iv.Round(n); fb != nil {
			return fb.Filled()
		}
	}
	return false
}

func (r *Repository) SubmitFeedback(_ context.Context, jobApplicationID int64, update models.FeedbackUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailFeedback != nil {
		return r.FailFeedback
	}
	r.Feedback[jobApplicationID] = update
	for id := range r.interviews {
		for i := range r.interviews[id] {
			iv := &r.interviews[id][i]
			if iv.JobApplicationID != jobApplicationID {
				continue
			}
			for n := 1; n <= 3; n++ {
				if fb := update.Round(n); fb != nil {
					cp := *fb
					iv.SetRound(n, &cp)
				}
			}
			summary := update.Feedback
			iv.Feedback = &summary
		}
	}
	return nil
}

// Preferences is an in-memory PreferenceStorage.
type Preferences struct {
	mu    sync.Mutex
	data  map[int64]models.UIState
	Loads int
	Saves int

	FailLoad error
	FailSave error
}

func NewPreferences() *Preferences {
	return &Preferences{data: make(map[int64]models.UIState)}
}

func (p *Preferences) Load(_ context.Context, jobID int64) (models.UIState, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Loads++
	if p.FailLoad != nil {
		return models.UIState{}, false, p.FailLoad
	}
	s, ok := p.data[jobID]
	return s, ok, nil
}

func (p *Preferences) Save(_ context.Context, jobID int64, state models.UIState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailSave != nil {
		return p.FailSave
	}
	p.Saves++
	p.data[jobID] = state
	return nil
}

// Stored returns what was persisted for jobID.
func (p *Preferences) Stored(jobID int64) (models.UIState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.data[jobID]
	return s, ok
}

// Directory serves a fixed interviewer list.
type Directory struct {
	Interviewers []models.Interviewer
	Err          error
	Calls        int
}

func (d *Directory) ListInterviewers(context.Context) ([]models.Interviewer, error) {
	d.Calls++
	if d.Err != nil {
		return nil, d.Err
	}
	return append([]models.Interviewer(nil), d.Interviewers...), nil
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishStageChange(ctx context.Context, event models.StageEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
