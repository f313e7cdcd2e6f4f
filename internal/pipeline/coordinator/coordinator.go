// Package coordinator validates stage changes and commits them against the
// candidate repository.
package coordinator

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/metrics"
	"hiring-pipeline/internal/common/observability"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/pipeline"
	"hiring-pipeline/internal/pipeline/stage"
	"hiring-pipeline/internal/pipeline/templates"
)

type ResultKind string

const (
	Committed          ResultKind = "committed"
	AwaitingAssignment ResultKind = "awaiting_assignment"
	Rejected           ResultKind = "rejected"
)

// Result is the outcome of a transition request. Reason is set when Kind is
// Rejected, and only then is the accompanying error non-nil.
type Result struct {
	Kind        ResultKind
	CandidateID int64
	From        stage.Stage
	Target      stage.Stage
	Reason      string
}

// Assignment is the interviewer booking that gates a round transition.
type Assignment struct {
	Round            stage.Stage
	InterviewerID    int64
	InterviewerEmail string
	NotificationSent bool
}

// Roster is the view the coordinator reads candidates from and reports
// commits to.
type Roster interface {
	Candidate(id int64) (models.Candidate, bool)
	ApplyCommitted(ctx context.Context, candidateID int64, target stage.Stage) error
}

type Options struct {
	CallTimeout time.Duration
	// OutcomeEmails sends rejection and selection notices after terminal
	// commits. They never undo the commit.
	OutcomeEmails bool
	CompanyName   string
}

type Coordinator struct {
	repo       pipeline.CandidateRepository
	roster     Roster
	dispatcher pipeline.NotificationDispatcher
	events     pipeline.EventPublisher
	obs        *observability.Observability
	log        logger.Logger
	opts       Options

	mu       sync.Mutex
	awaiting map[int64]pendingRequest
}

type pendingRequest struct {
	from        stage.Stage
	target      stage.Stage
	requestedAt time.Time
}

// New wires a coordinator. dispatcher and events may be nil.
func New(
	repo pipeline.CandidateRepository,
	roster Roster,
	dispatcher pipeline.NotificationDispatcher,
	events pipeline.EventPublisher,
	obs *observability.Observability,
	log logger.Logger,
	opts Options,
) *Coordinator {
	if obs == nil {
		obs = observability.NewNoop()
	}
	return &Coordinator{
		repo:       repo,
		roster:     roster,
		dispatcher: dispatcher,
		events:     events,
		obs:        obs,
		log:        log.WithFields(map[string]interface{}{"component": "stage-coordinator"}),
		opts:       opts,
		awaiting:   make(map[int64]pendingRequest),
	}
}

// RequestTransition checks the edge and either commits directly or, for an
// interview round, parks the request until Commit brings a dispatched
// assignment.
func (c *Coordinator) RequestTransition(ctx context.Context, candidateID int64, target stage.Stage) (Result, error) {
	ctx, span := c.obs.StartSpan(ctx, "coordinator.RequestTransition",
		attribute.Int64("candidate.id", candidateID),
		attribute.String("stage.target", string(target)))
	defer span.End()

	cand, ok := c.roster.Candidate(candidateID)
	if !ok {
		return c.reject(ctx, Result{CandidateID: candidateID, Target: target}, apperrors.NewCandidateNotFoundError(candidateID))
	}
	res := Result{CandidateID: candidateID, From: cand.Stage, Target: target}

	if !stage.CanTransition(cand.Stage, target) {
		return c.reject(ctx, res, apperrors.NewIllegalTransitionError(string(cand.Stage), string(target)))
	}

	if target.RequiresAssignment() {
		c.mu.Lock()
		c.awaiting[candidateID] = pendingRequest{from: cand.Stage, target: target, requestedAt: time.Now()}
		c.mu.Unlock()

		metrics.TransitionsTotal.WithLabelValues(string(target), string(AwaitingAssignment)).Inc()
		c.log.Info("transition awaiting interviewer assignment", map[string]interface{}{
			"candidateId": candidateID,
			"from":        cand.Stage,
			"target":      target,
		})
		res.Kind = AwaitingAssignment
		return res, nil
	}

	return c.commit(ctx, cand, target, nil, time.Now())
}

// Commit completes a round transition once the candidate has been notified.
func (c *Coordinator) Commit(ctx context.Context, candidateID int64, target stage.Stage, a Assignment) (Result, error) {
	ctx, span := c.obs.StartSpan(ctx, "coordinator.Commit",
		attribute.Int64("candidate.id", candidateID),
		attribute.String("stage.target", string(target)),
		attribute.String("interviewer.email", a.InterviewerEmail))
	defer span.End()

	res := Result{CandidateID: candidateID, Target: target}

	c.mu.Lock()
	req, ok := c.awaiting[candidateID]
	c.mu.Unlock()
	if !ok || req.target != target {
		return c.reject(ctx, res, apperrors.NewAssignmentRequiredError(string(target), "no transition is awaiting assignment"))
	}
	if a.Round != target {
		return c.reject(ctx, res, apperrors.NewAssignmentRequiredError(string(target), "assignment is for "+string(a.Round)))
	}
	if !a.NotificationSent {
		return c.reject(ctx, res, apperrors.NewAssignmentRequiredError(string(target), "notification has not been sent"))
	}
	if a.InterviewerEmail == "" {
		return c.reject(ctx, res, apperrors.NewAssignmentRequiredError(string(target), "assignment has no interviewer"))
	}

	cand, ok := c.roster.Candidate(candidateID)
	if !ok {
		return c.reject(ctx, res, apperrors.NewCandidateNotFoundError(candidateID))
	}
	if !stage.CanTransition(cand.Stage, target) {
		c.Abandon(candidateID)
		res.From = cand.Stage
		return c.reject(ctx, res, apperrors.NewIllegalTransitionError(string(cand.Stage), string(target)))
	}

	res, err := c.commit(ctx, cand, target, &a, req.requestedAt)
	if err == nil {
		c.Abandon(candidateID)
	}
	return res, err
}

// Pending reports the round a candidate is waiting to enter.
func (c *Coordinator) Pending(candidateID int64) (stage.Stage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.awaiting[candidateID]
	return req.target, ok
}

// Abandon drops a parked request. The candidate's stage is untouched.
func (c *Coordinator) Abandon(candidateID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.awaiting, candidateID)
}

// commit writes the status and only then touches local state. A repository
// failure leaves everything as it was.
func (c *Coordinator) commit(ctx context.Context, cand models.Candidate, target stage.Stage, a *Assignment, requestedAt time.Time) (Result, error) {
	res := Result{CandidateID: cand.ID, From: cand.Stage, Target: target}

	update := models.StatusUpdate{CandidateID: cand.ID, Status: target.Status()}
	if a != nil {
		update.InterviewID = cand.InterviewID
		update.InterviewerEmail = a.InterviewerEmail
	}

	if err := c.updateStatus(ctx, update); err != nil {
		c.log.Error("stage update failed", map[string]interface{}{
			"candidateId": cand.ID,
			"from":        cand.Stage,
			"target":      target,
			"error":       err,
		})
		return c.reject(ctx, res, err)
	}

	metrics.TransitionsTotal.WithLabelValues(string(target), string(Committed)).Inc()
	c.obs.RecordTransition(ctx, string(target), time.Since(requestedAt))
	c.log.Info("stage transition committed", map[string]interface{}{
		"candidateId": cand.ID,
		"from":        cand.Stage,
		"target":      target,
	})

	if err := c.roster.ApplyCommitted(ctx, cand.ID, target); err != nil {
		c.log.Warn("roster refresh after commit failed", map[string]interface{}{
			"candidateId": cand.ID,
			"error":       err,
		})
	}

	c.publish(ctx, cand, target, a)
	c.sendOutcome(ctx, cand, target)

	res.Kind = Committed
	return res, nil
}

func (c *Coordinator) updateStatus(ctx context.Context, update models.StatusUpdate) error {
	start := time.Now()
	defer func() {
		metrics.ExternalCallDuration.WithLabelValues("repository", "UpdateStatus").Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := c.callContext(ctx)
	defer cancel()
	return c.repo.UpdateStatus(ctx, update)
}

func (c *Coordinator) publish(ctx context.Context, cand models.Candidate, target stage.Stage, a *Assignment) {
	if c.events == nil {
		return
	}
	event := models.StageEvent{
		CandidateID: cand.ID,
		JobID:       cand.JobID,
		From:        string(cand.Stage),
		To:          string(target),
		OccurredAt:  time.Now().UTC(),
	}
	if a != nil {
		event.InterviewerEmail = a.InterviewerEmail
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()
	if err := c.events.PublishStageChange(ctx, event); err != nil {
		c.log.Warn("stage event publish failed", map[string]interface{}{
			"candidateId": cand.ID,
			"error":       err,
		})
	}
}

func (c *Coordinator) sendOutcome(ctx context.Context, cand models.Candidate, target stage.Stage) {
	if !c.opts.OutcomeEmails || c.dispatcher == nil || cand.Email == "" {
		return
	}
	var msg templates.Message
	switch target {
	case stage.Rejected:
		msg = templates.RejectionNotice(cand.Name, c.opts.CompanyName)
	case stage.Hired:
		msg = templates.SelectionNotice(cand.Name)
	default:
		return
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()
	err := c.dispatcher.Send(ctx, cand.Email, msg.Subject, msg.Body)
	metrics.DispatchesTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		c.log.Warn("outcome email failed", map[string]interface{}{
			"candidateId": cand.ID,
			"target":      target,
			"error":       err,
		})
	}
}

func (c *Coordinator) reject(ctx context.Context, res Result, err error) (Result, error) {
	res.Kind = Rejected
	res.Reason = err.Error()
	if se, ok := apperrors.As(err); ok {
		res.Reason = se.Message
		if se.Details != "" {
			res.Reason += " (" + se.Details + ")"
		}
	}

	metrics.TransitionsTotal.WithLabelValues(string(res.Target), string(Rejected)).Inc()
	if apperrors.IsPrecondition(err) || apperrors.IsNotFound(err) {
		c.log.Warn("transition rejected", map[string]interface{}{
			"candidateId": res.CandidateID,
			"target":      res.Target,
			"reason":      res.Reason,
		})
	}

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, res.Reason)
	return res, err
}

func (c *Coordinator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.CallTimeout)
}
