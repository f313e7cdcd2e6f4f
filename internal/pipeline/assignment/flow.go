// Package assignment drives the interviewer assignment that gates every
// interview round: pick an interviewer, notify the candidate, then commit.
package assignment

import (
	"context"
	"strings"
	"sync"
	"time"

	apperrors "hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/metrics"
	"hiring-pipeline/internal/common/retry"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/pipeline"
	"hiring-pipeline/internal/pipeline/coordinator"
	"hiring-pipeline/internal/pipeline/stage"
	"hiring-pipeline/internal/pipeline/templates"
)

// State is one phase of the flow: Closed, SelectingInterviewer,
// ComposingNotification or Committing.
type State interface {
	Name() string
	isState()
}

type Closed struct{}

type SelectingInterviewer struct {
	Candidate    models.Candidate
	Target       stage.Stage
	Interviewers []models.Interviewer
	Query        string
	Matches      []models.Interviewer
}

// ComposingNotification holds the editable draft. LastErr is the most recent
// dispatch failure, if any.
type ComposingNotification struct {
	Candidate   models.Candidate
	Target      stage.Stage
	Interviewer models.Interviewer
	Subject     string
	Body        string
	LastErr     error
}

// Committing is entered once the candidate has been notified. The message is
// never sent again from here.
type Committing struct {
	Candidate   models.Candidate
	Target      stage.Stage
	Interviewer models.Interviewer
	LastErr     error
}

func (Closed) Name() string                { return "closed" }
func (SelectingInterviewer) Name() string  { return "selecting_interviewer" }
func (ComposingNotification) Name() string { return "composing_notification" }
func (Committing) Name() string            { return "committing" }

func (Closed) isState()                {}
func (SelectingInterviewer) isState()  {}
func (ComposingNotification) isState() {}
func (Committing) isState()            {}

// Transitioner is the part of the stage coordinator the flow drives.
type Transitioner interface {
	RequestTransition(ctx context.Context, candidateID int64, target stage.Stage) (coordinator.Result, error)
	Commit(ctx context.Context, candidateID int64, target stage.Stage, a coordinator.Assignment) (coordinator.Result, error)
	Abandon(candidateID int64)
}

type Options struct {
	CallTimeout time.Duration
	Retry       retry.Config
}

type Flow struct {
	directory  pipeline.DirectoryService
	dispatcher pipeline.NotificationDispatcher
	coord      Transitioner
	log        logger.Logger
	opts       Options

	mu    sync.Mutex
	state State
}

func New(directory pipeline.DirectoryService, dispatcher pipeline.NotificationDispatcher, coord Transitioner, log logger.Logger, opts Options) *Flow {
	return &Flow{
		directory:  directory,
		dispatcher: dispatcher,
		coord:      coord,
		log:        log.WithFields(map[string]interface{}{"component": "assignment-flow"}),
		opts:       opts,
		state:      Closed{},
	}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Open asks the coordinator for the round transition and, once it is
// awaiting assignment, loads the interviewer directory.
func (f *Flow) Open(ctx context.Context, cand models.Candidate, target stage.Stage) (SelectingInterviewer, error) {
	f.mu.Lock()
	current := f.state
	f.mu.Unlock()
	if _, ok := current.(Closed); !ok {
		return SelectingInterviewer{}, apperrors.NewInvalidFlowStateError("open", current.Name())
	}
	if !target.RequiresAssignment() {
		return SelectingInterviewer{}, apperrors.NewInvalidFlowStateError("open for "+string(target), current.Name())
	}

	res, err := f.coord.RequestTransition(ctx, cand.ID, target)
	if err != nil {
		return SelectingInterviewer{}, err
	}
	if res.Kind != coordinator.AwaitingAssignment {
		return SelectingInterviewer{}, apperrors.NewInternalError("transition did not wait for an assignment: "+string(res.Kind), nil)
	}

	interviewers, err := f.listInterviewers(ctx)
	if err != nil {
		f.coord.Abandon(cand.ID)
		return SelectingInterviewer{}, err
	}

	next := SelectingInterviewer{
		Candidate:    cand,
		Target:       target,
		Interviewers: interviewers,
		Matches:      interviewers,
	}
	f.mu.Lock()
	f.state = next
	f.mu.Unlock()

	f.log.Info("assignment opened", map[string]interface{}{
		"candidateId":  cand.ID,
		"target":       target,
		"interviewers": len(interviewers),
	})
	return next, nil
}

func (f *Flow) listInterviewers(ctx context.Context) ([]models.Interviewer, error) {
	start := time.Now()
	defer func() {
		metrics.ExternalCallDuration.WithLabelValues("directory", "ListInterviewers").Observe(time.Since(start).Seconds())
	}()

	return retry.Do(ctx, f.opts.Retry, "ListInterviewers", func(ctx context.Context) ([]models.Interviewer, error) {
		ctx, cancel := f.callContext(ctx)
		defer cancel()
		return f.directory.ListInterviewers(ctx)
	}, apperrors.IsRetryable)
}

// Search narrows the interviewer list. It only works while selecting.
func (f *Flow) Search(query string) ([]models.Interviewer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sel, ok := f.state.(SelectingInterviewer)
	if !ok {
		return nil, apperrors.NewInvalidFlowStateError("search", f.state.Name())
	}
	sel.Query = query
	sel.Matches = Match(sel.Interviewers, query)
	f.state = sel
	return sel.Matches, nil
}

// Select picks an interviewer from the directory and pre-fills the
// invitation for the round.
func (f *Flow) Select(interviewerID int64) (ComposingNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sel, ok := f.state.(SelectingInterviewer)
	if !ok {
		return ComposingNotification{}, apperrors.NewInvalidFlowStateError("select", f.state.Name())
	}

	var picked *models.Interviewer
	for i := range sel.Interviewers {
		if sel.Interviewers[i].ID == interviewerID {
			picked = &sel.Interviewers[i]
			break
		}
	}
	if picked == nil {
		return ComposingNotification{}, apperrors.NewInterviewerNotFoundError("")
	}

	round, _ := sel.Target.Round()
	msg := templates.InterviewInvitation(sel.Candidate.Name, round)
	next := ComposingNotification{
		Candidate:   sel.Candidate,
		Target:      sel.Target,
		Interviewer: *picked,
		Subject:     msg.Subject,
		Body:        msg.Body,
	}
	f.state = next
	return next, nil
}

func (f *Flow) Draft() (ComposingNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	comp, ok := f.state.(ComposingNotification)
	if !ok {
		return ComposingNotification{}, apperrors.NewInvalidFlowStateError("draft", f.state.Name())
	}
	return comp, nil
}

func (f *Flow) EditDraft(subject, body string) (ComposingNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	comp, ok := f.state.(ComposingNotification)
	if !ok {
		return ComposingNotification{}, apperrors.NewInvalidFlowStateError("edit draft", f.state.Name())
	}
	comp.Subject = subject
	comp.Body = body
	f.state = comp
	return comp, nil
}

// Send dispatches the draft and then commits the round. A failed dispatch
// keeps the draft for another attempt. A failed commit after a successful
// dispatch parks the flow in Committing, where Send retries only the commit.
func (f *Flow) Send(ctx context.Context) (coordinator.Result, error) {
	f.mu.Lock()
	current := f.state
	f.mu.Unlock()

	switch st := current.(type) {
	case ComposingNotification:
		if err := validateDraft(st); err != nil {
			return coordinator.Result{}, err
		}
		if err := f.dispatch(ctx, st); err != nil {
			st.LastErr = err
			f.setState(st)
			return coordinator.Result{}, err
		}
		return f.commit(ctx, Committing{Candidate: st.Candidate, Target: st.Target, Interviewer: st.Interviewer})
	case Committing:
		return f.commit(ctx, st)
	default:
		return coordinator.Result{}, apperrors.NewInvalidFlowStateError("send", current.Name())
	}
}

func validateDraft(d ComposingNotification) error {
	var fields []apperrors.FieldError
	if strings.TrimSpace(d.Subject) == "" {
		fields = append(fields, apperrors.FieldError{Field: "subject", Message: "subject is required", Code: "REQUIRED"})
	}
	if strings.TrimSpace(d.Body) == "" {
		fields = append(fields, apperrors.FieldError{Field: "body", Message: "body is required", Code: "REQUIRED"})
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError(fields...)
	}
	return nil
}

func (f *Flow) dispatch(ctx context.Context, d ComposingNotification) error {
	start := time.Now()
	ctx, cancel := f.callContext(ctx)
	defer cancel()

	err := f.dispatcher.Send(ctx, d.Candidate.Email, d.Subject, d.Body)
	metrics.ExternalCallDuration.WithLabelValues("dispatcher", "Send").Observe(time.Since(start).Seconds())
	metrics.DispatchesTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		f.log.Warn("interview invitation failed", map[string]interface{}{
			"candidateId": d.Candidate.ID,
			"interviewer": d.Interviewer.Email,
			"error":       err,
		})
		if _, ok := apperrors.As(err); !ok {
			err = apperrors.NewNotificationSendFailedError("email", err)
		}
		return err
	}
	return nil
}

func (f *Flow) commit(ctx context.Context, c Committing) (coordinator.Result, error) {
	f.setState(c)

	res, err := f.coord.Commit(ctx, c.Candidate.ID, c.Target, coordinator.Assignment{
		Round:            c.Target,
		InterviewerID:    c.Interviewer.ID,
		InterviewerEmail: c.Interviewer.Email,
		NotificationSent: true,
	})
	if err != nil {
		c.LastErr = err
		f.setState(c)
		return res, err
	}

	f.setState(Closed{})
	f.log.Info("interviewer assigned", map[string]interface{}{
		"candidateId": c.Candidate.ID,
		"target":      c.Target,
		"interviewer": c.Interviewer.Email,
	})
	return res, nil
}

// Back leaves the flow from any phase. Nothing is written.
func (f *Flow) Back() { f.close() }

// Cancel leaves the flow from any phase. Nothing is written.
func (f *Flow) Cancel() { f.close() }

func (f *Flow) close() {
	f.mu.Lock()
	prev := f.state
	f.state = Closed{}
	f.mu.Unlock()

	if id, ok := candidateOf(prev); ok {
		f.coord.Abandon(id)
	}
}

func candidateOf(s State) (int64, bool) {
	switch st := s.(type) {
	case SelectingInterviewer:
		return st.Candidate.ID, true
	case ComposingNotification:
		return st.Candidate.ID, true
	case Committing:
		return st.Candidate.ID, true
	}
	return 0, false
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *Flow) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.opts.CallTimeout)
}

// Match keeps interviewers whose full name or email contains the trimmed
// query, ignoring case. A blank query keeps everyone.
func Match(list []models.Interviewer, query string) []models.Interviewer {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]models.Interviewer(nil), list...)
	}
	var out []models.Interviewer
	for _, iv := range list {
		if strings.Contains(strings.ToLower(iv.FullName), q) || strings.Contains(strings.ToLower(iv.Email), q) {
			out = append(out, iv)
		}
	}
	return out
}
