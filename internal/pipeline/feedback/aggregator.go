// Package feedback collects an interviewer's round feedback and persists it
// against the candidate's job application.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/metrics"
	"hiring-pipeline/internal/common/retry"
	"hiring-pipeline/internal/common/validation"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/pipeline"
)

// RoundPolicy decides what a submission does once all three rounds carry
// feedback.
type RoundPolicy string

const (
	// PolicyOverwrite replaces the round3 feedback.
	PolicyOverwrite RoundPolicy = "overwrite"
	// PolicyReject refuses the submission with ROUNDS_EXHAUSTED.
	PolicyReject RoundPolicy = "reject"
)

const maxRounds = 3

// Input is the interviewer's feedback form. Scores are 1-10; nil means not
// given.
type Input struct {
	FreeText       string `json:"freeText"`
	TechnicalScore *int   `json:"technicalScore,omitempty"`
	BehaviourScore *int   `json:"behaviourScore,omitempty"`
}

// Interviewer is who the submitted feedback is attributed to.
type Interviewer struct {
	ID    int64
	Name  string
	Email string
}

// Refresher re-fetches a roster after feedback lands.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type Options struct {
	CallTimeout time.Duration
	Retry       retry.Config
	RoundPolicy RoundPolicy
}

func DefaultOptions() Options {
	return Options{CallTimeout: 10 * time.Second, Retry: retry.DefaultConfig, RoundPolicy: PolicyOverwrite}
}

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["feedback", "technicalScore", "behaviourScore"],
	"properties": {
		"feedback":       {"type": "string", "minLength": 1},
		"technicalScore": {"type": "integer", "minimum": 1, "maximum": 10},
		"behaviourScore": {"type": "integer", "minimum": 1, "maximum": 10}
	}
}`, map[string]string{
	"feedback":       "Feedback is required",
	"technicalScore": "Technical score must be between 1 and 10",
	"behaviourScore": "Behavioural score must be between 1 and 10",
})

// Aggregator holds one interviewer's pending and completed interviews.
type Aggregator struct {
	repo        pipeline.CandidateRepository
	interviewer Interviewer
	refresher   Refresher
	log         logger.Logger
	opts        Options

	mu      sync.Mutex
	pending []models.Interview
	done    []models.Interview
	drafts  map[int64]Input
}

func New(repo pipeline.CandidateRepository, interviewer Interviewer, log logger.Logger, opts Options) *Aggregator {
	if opts.RoundPolicy == "" {
		opts.RoundPolicy = PolicyOverwrite
	}
	return &Aggregator{
		repo:        repo,
		interviewer: interviewer,
		log: log.WithFields(map[string]interface{}{
			"component":     "feedback-aggregator",
			"interviewerId": interviewer.ID,
		}),
		opts:   opts,
		drafts: make(map[int64]Input),
	}
}

// WithRefresher re-fetches r after every successful submission.
func (a *Aggregator) WithRefresher(r Refresher) *Aggregator {
	a.refresher = r
	return a
}

// Load fetches both the pending and the completed interviews.
func (a *Aggregator) Load(ctx context.Context) error {
	pending, err := a.fetch(ctx, models.ScopePending)
	if err != nil {
		return err
	}
	done, err := a.fetch(ctx, models.ScopeCompleted)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.pending = pending
	a.done = done
	a.mu.Unlock()

	a.log.Debug("interviews loaded", map[string]interface{}{
		"pending": len(pending),
		"done":    len(done),
	})
	return nil
}

func (a *Aggregator) fetch(ctx context.Context, scope models.InterviewScope) ([]models.Interview, error) {
	start := time.Now()
	defer func() {
		metrics.ExternalCallDuration.WithLabelValues("repository", "FetchInterviews").Observe(time.Since(start).Seconds())
	}()

	return retry.Do(ctx, a.opts.Retry, "FetchInterviews", func(ctx context.Context) ([]models.Interview, error) {
		ctx, cancel := a.callContext(ctx)
		defer cancel()
		return a.repo.FetchInterviews(ctx, a.interviewer.ID, scope)
	}, apperrors.IsRetryable)
}

func (a *Aggregator) Pending() []models.Interview {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneAll(a.pending)
}

func (a *Aggregator) Done() []models.Interview {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneAll(a.done)
}

// ActiveSlot is the first round without feedback, or 3 once all are filled.
func ActiveSlot(iv models.Interview) int {
	for n := 1; n <= maxRounds; n++ {
		if !iv.Round(n).Filled() {
			return n
		}
	}
	return maxRounds
}

func exhausted(iv models.Interview) bool {
	for n := 1; n <= maxRounds; n++ {
		if !iv.Round(n).Filled() {
			return false
		}
	}
	return true
}

// SetDraft keeps unsent form input for a candidate.
func (a *Aggregator) SetDraft(candidateID int64, in Input) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.drafts[candidateID] = in
}

func (a *Aggregator) Draft(candidateID int64) (Input, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	in, ok := a.drafts[candidateID]
	return in, ok
}

// Validate reports every invalid field of in at once.
func Validate(in Input) error {
	doc := map[string]interface{}{"feedback": strings.TrimSpace(in.FreeText)}
	if in.TechnicalScore != nil {
		doc["technicalScore"] = *in.TechnicalScore
	}
	if in.BehaviourScore != nil {
		doc["behaviourScore"] = *in.BehaviourScore
	}
	return inputSchema.Validate(doc)
}

// FormatFeedback is the text stored for a round.
func FormatFeedback(in Input) string {
	return fmt.Sprintf("%s\n\nTechnical Score: %d/10\nBehavioural Score: %d/10",
		strings.TrimSpace(in.FreeText), *in.TechnicalScore, *in.BehaviourScore)
}

// Summary joins the written round feedback in round order.
func Summary(iv models.Interview) string {
	var parts []string
	for n := 1; n <= maxRounds; n++ {
		if fb := iv.Round(n); fb.Filled() {
			parts = append(parts, fb.Feedback)
		}
	}
	return strings.Join(parts, "\n")
}

// SubmitFeedback writes in into the candidate's active round. On any failure
// the input is kept as the candidate's draft and the interview stays pending.
func (a *Aggregator) SubmitFeedback(ctx context.Context, candidateID int64, in Input) (models.Interview, error) {
	updated, err := a.submit(ctx, candidateID, in)
	metrics.FeedbackSubmissionsTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		a.SetDraft(candidateID, in)
		return models.Interview{}, err
	}
	return updated, nil
}

func (a *Aggregator) submit(ctx context.Context, candidateID int64, in Input) (models.Interview, error) {
	if err := Validate(in); err != nil {
		return models.Interview{}, err
	}

	iv, ok := a.findPending(candidateID)
	if !ok {
		return models.Interview{}, apperrors.NewInterviewNotFoundError(fmt.Sprintf("candidateId: %d", candidateID))
	}
	if exhausted(iv) && a.opts.RoundPolicy == PolicyReject {
		return models.Interview{}, apperrors.NewRoundsExhaustedError(candidateID)
	}

	slot := ActiveSlot(iv)
	updated := iv.Clone()
	updated.SetRound(slot, a.attribute(iv.Round(slot), in))
	summary := Summary(updated)
	updated.Feedback = &summary

	update := models.FeedbackUpdate{
		Round1Details: updated.Round1,
		Round2Details: updated.Round2,
		Round3Details: updated.Round3,
		Feedback:      summary,
	}
	if err := a.persist(ctx, iv.JobApplicationID, update); err != nil {
		a.log.Error("feedback submission failed", map[string]interface{}{
			"candidateId":      candidateID,
			"jobApplicationId": iv.JobApplicationID,
			"round":            slot,
			"error":            err,
		})
		return models.Interview{}, err
	}

	a.mu.Lock()
	a.pending = removeCandidate(a.pending, candidateID)
	a.done = append(a.done, updated.Clone())
	delete(a.drafts, candidateID)
	a.mu.Unlock()

	a.log.Info("feedback submitted", map[string]interface{}{
		"candidateId":      candidateID,
		"jobApplicationId": iv.JobApplicationID,
		"round":            slot,
	})

	if a.refresher != nil {
		if err := a.refresher.Refresh(ctx); err != nil {
			a.log.Warn("roster refresh after feedback failed", map[string]interface{}{"error": err})
		}
	}
	return updated, nil
}

// attribute fills the round with in. The interviewer bound at assignment is
// kept wherever this aggregator's interviewer has no name or email.
func (a *Aggregator) attribute(existing *models.RoundFeedback, in Input) *models.RoundFeedback {
	fb := models.RoundFeedback{}
	if existing != nil {
		fb.InterviewerName = existing.InterviewerName
		fb.InterviewerEmail = existing.InterviewerEmail
	}
	if name := strings.TrimSpace(a.interviewer.Name); name != "" {
		fb.InterviewerName = name
	}
	if email := strings.TrimSpace(a.interviewer.Email); email != "" {
		fb.InterviewerEmail = email
	}
	fb.Feedback = FormatFeedback(in)
	fb.Status = models.RoundStatusCompleted
	return &fb
}

func (a *Aggregator) persist(ctx context.Context, jobApplicationID int64, update models.FeedbackUpdate) error {
	start := time.Now()
	defer func() {
		metrics.ExternalCallDuration.WithLabelValues("repository", "SubmitFeedback").Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := a.callContext(ctx)
	defer cancel()
	return a.repo.SubmitFeedback(ctx, jobApplicationID, update)
}

func (a *Aggregator) findPending(candidateID int64) (models.Interview, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, iv := range a.pending {
		if iv.Candidate.ID == candidateID {
			return iv.Clone(), true
		}
	}
	return models.Interview{}, false
}

func (a *Aggregator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.opts.CallTimeout)
}

func removeCandidate(list []models.Interview, candidateID int64) []models.Interview {
	out := list[:0]
	for _, iv := range list {
		if iv.Candidate.ID != candidateID {
			out = append(out, iv)
		}
	}
	return out
}

func cloneAll(list []models.Interview) []models.Interview {
	out := make([]models.Interview, len(list))
	for i, iv := range list {
		out[i] = iv.Clone()
	}
	return out
}
