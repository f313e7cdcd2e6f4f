// Package cli implements pipelinectl: recruiter and interviewer commands
// driving the pipeline core against whatever backends the caller wires.
package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hiring-pipeline/internal/common/config"
	apperrors "hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/observability"
	"hiring-pipeline/internal/common/retry"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/pipeline"
	"hiring-pipeline/internal/pipeline/assignment"
	"hiring-pipeline/internal/pipeline/coordinator"
	"hiring-pipeline/internal/pipeline/feedback"
	"hiring-pipeline/internal/pipeline/stage"
	"hiring-pipeline/internal/pipeline/store"
)

// Backends are the collaborators a session runs against. Events may be nil.
type Backends struct {
	Repository  pipeline.CandidateRepository
	Directory   pipeline.DirectoryService
	Dispatcher  pipeline.NotificationDispatcher
	Events      pipeline.EventPublisher
	Preferences pipeline.PreferenceStorage
}

// Session is one pipelinectl invocation's view of the pipeline.
type Session struct {
	Store       *store.Store
	Coordinator *coordinator.Coordinator
	Flow        *assignment.Flow

	backends Backends
	pipeline config.PipelineConfig
	log      logger.Logger
}

// RetryConfig turns the pipeline settings into the read retry budget.
func RetryConfig(cfg config.PipelineConfig) retry.Config {
	return retry.Config{
		MaxRetries: cfg.RetryBudget,
		BaseDelay:  config.GetDuration(cfg.RetryBaseDelay),
		MaxDelay:   retry.DefaultConfig.MaxDelay,
	}
}

// StoreOptions starts from the store defaults; unset pipeline settings keep
// them.
func StoreOptions(cfg config.PipelineConfig) store.Options {
	opts := store.DefaultOptions()
	if cfg.CallTimeout > 0 {
		opts.CallTimeout = config.GetDuration(cfg.CallTimeout)
	}
	if cfg.RetryBudget > 0 || cfg.RetryBaseDelay > 0 {
		opts.Retry = RetryConfig(cfg)
	}
	return opts
}

// FeedbackOptions starts from the aggregator defaults; unset pipeline
// settings keep them.
func FeedbackOptions(cfg config.PipelineConfig) feedback.Options {
	opts := feedback.DefaultOptions()
	if cfg.CallTimeout > 0 {
		opts.CallTimeout = config.GetDuration(cfg.CallTimeout)
	}
	if cfg.RetryBudget > 0 || cfg.RetryBaseDelay > 0 {
		opts.Retry = RetryConfig(cfg)
	}
	if cfg.Round3Policy != "" {
		opts.RoundPolicy = feedback.RoundPolicy(cfg.Round3Policy)
	}
	return opts
}

func NewSession(b Backends, cfg config.PipelineConfig, obs *observability.Observability, log logger.Logger) *Session {
	storeOpts := StoreOptions(cfg)

	st := store.New(b.Repository, b.Preferences, log, storeOpts)
	coord := coordinator.New(b.Repository, st, b.Dispatcher, b.Events, obs, log, coordinator.Options{
		CallTimeout:   storeOpts.CallTimeout,
		OutcomeEmails: cfg.OutcomeEmails,
		CompanyName:   cfg.CompanyName,
	})
	flow := assignment.New(b.Directory, b.Dispatcher, coord, log, assignment.Options{
		CallTimeout: storeOpts.CallTimeout,
		Retry:       storeOpts.Retry,
	})

	return &Session{
		Store:       st,
		Coordinator: coord,
		Flow:        flow,
		backends:    b,
		pipeline:    cfg,
		log:         log,
	}
}

// OpenJob puts jobID in view and fails when its roster cannot be loaded.
func (s *Session) OpenJob(ctx context.Context, jobID int64) error {
	_, err := s.Store.SwitchJob(ctx, jobID)
	return err
}

func (s *Session) candidate(id int64) (models.Candidate, error) {
	c, ok := s.Store.Candidate(id)
	if !ok {
		return models.Candidate{}, apperrors.NewCandidateNotFoundError(id)
	}
	return c, nil
}

// Move requests a direct transition. Round targets need an interviewer and
// are refused here; see Assign.
func (s *Session) Move(ctx context.Context, candidateID int64, target stage.Stage) (coordinator.Result, error) {
	if target.RequiresAssignment() {
		return coordinator.Result{}, apperrors.NewAssignmentRequiredError(string(target),
			"use assign to pick an interviewer for the round")
	}
	return s.Coordinator.RequestTransition(ctx, candidateID, target)
}

// AssignRequest describes one non-interactive pass through the assignment
// flow. Interviewer is an id or a search query that must match exactly one
// interviewer. Empty Subject or Body keep the template text.
type AssignRequest struct {
	CandidateID int64
	Target      stage.Stage
	Interviewer string
	Subject     string
	Body        string
}

// Assign opens the flow, picks the interviewer, sends the invitation and
// commits the round. Any failure before dispatch closes the flow and leaves
// the candidate untouched.
func (s *Session) Assign(ctx context.Context, req AssignRequest) (coordinator.Result, assignment.ComposingNotification, error) {
	cand, err := s.candidate(req.CandidateID)
	if err != nil {
		return coordinator.Result{}, assignment.ComposingNotification{}, err
	}

	sel, err := s.Flow.Open(ctx, cand, req.Target)
	if err != nil {
		return coordinator.Result{}, assignment.ComposingNotification{}, err
	}

	interviewerID, err := s.resolveInterviewer(sel, req.Interviewer)
	if err != nil {
		s.Flow.Cancel()
		return coordinator.Result{}, assignment.ComposingNotification{}, err
	}

	draft, err := s.Flow.Select(interviewerID)
	if err != nil {
		s.Flow.Cancel()
		return coordinator.Result{}, assignment.ComposingNotification{}, err
	}
	if req.Subject != "" || req.Body != "" {
		subject, body := draft.Subject, draft.Body
		if req.Subject != "" {
			subject = req.Subject
		}
		if req.Body != "" {
			body = req.Body
		}
		if draft, err = s.Flow.EditDraft(subject, body); err != nil {
			s.Flow.Cancel()
			return coordinator.Result{}, assignment.ComposingNotification{}, err
		}
	}

	res, err := s.Flow.Send(ctx)
	if err != nil {
		if _, committing := s.Flow.State().(assignment.Committing); committing {
			// the invitation went out; one more commit attempt before giving up
			s.log.Warn("commit after dispatch failed, retrying once", map[string]interface{}{
				"candidateId": req.CandidateID,
				"error":       err.Error(),
			})
			res, err = s.Flow.Send(ctx)
		}
	}
	if err != nil {
		s.Flow.Cancel()
		return coordinator.Result{}, draft, err
	}
	return res, draft, nil
}

func (s *Session) resolveInterviewer(sel assignment.SelectingInterviewer, ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, apperrors.NewValidationError(apperrors.FieldError{Field: "interviewer", Message: "an interviewer id or name is required"})
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id, nil
	}

	matches, err := s.Flow.Search(ref)
	if err != nil {
		return 0, err
	}
	switch len(matches) {
	case 0:
		return 0, apperrors.NewInterviewerNotFoundError(fmt.Sprintf("query: %s", ref))
	case 1:
		return matches[0].ID, nil
	default:
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, fmt.Sprintf("%s <%s>", m.FullName, m.Email))
		}
		return 0, apperrors.NewValidationError(apperrors.FieldError{
			Field:   "interviewer",
			Message: fmt.Sprintf("%q matches %d interviewers: %s", ref, len(matches), strings.Join(names, ", ")),
		})
	}
}

// Interviewers lists the directory narrowed by query.
func (s *Session) Interviewers(ctx context.Context, query string) ([]models.Interviewer, error) {
	ctx, cancel := context.WithTimeout(ctx, StoreOptions(s.pipeline).CallTimeout)
	defer cancel()

	list, err := s.backends.Directory.ListInterviewers(ctx)
	if err != nil {
		return nil, err
	}
	return assignment.Match(list, query), nil
}

// Feedback builds an aggregator for interviewer. A missing name or email is
// looked up in the directory by id. When a job is in view its roster is
// refreshed after each submission.
func (s *Session) Feedback(ctx context.Context, interviewer feedback.Interviewer) *feedback.Aggregator {
	interviewer = s.identify(ctx, interviewer)
	agg := feedback.New(s.backends.Repository, interviewer, s.log, FeedbackOptions(s.pipeline))
	if _, ok := s.Store.JobID(); ok {
		agg.WithRefresher(s.Store)
	}
	return agg
}

// identify fills the interviewer's name and email from the directory. A
// directory failure leaves them blank; the aggregator then keeps whoever
// was assigned to the round.
func (s *Session) identify(ctx context.Context, who feedback.Interviewer) feedback.Interviewer {
	if strings.TrimSpace(who.Name) != "" && strings.TrimSpace(who.Email) != "" {
		return who
	}
	list, err := s.Interviewers(ctx, "")
	if err != nil {
		s.log.Warn("interviewer lookup failed, keeping the assigned interviewer", map[string]interface{}{
			"interviewerId": who.ID,
			"error":         err.Error(),
		})
		return who
	}
	for _, iv := range list {
		if iv.ID != who.ID {
			continue
		}
		if strings.TrimSpace(who.Name) == "" {
			who.Name = iv.FullName
		}
		if strings.TrimSpace(who.Email) == "" {
			who.Email = iv.Email
		}
		return who
	}
	s.log.Warn("interviewer not in directory", map[string]interface{}{"interviewerId": who.ID})
	return who
}

// DefaultPipelineConfig is what a session uses without a config file.
func DefaultPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		CallTimeout:    int((10 * time.Second).Milliseconds()),
		RetryBudget:    retry.DefaultConfig.MaxRetries,
		RetryBaseDelay: int(retry.DefaultConfig.BaseDelay.Milliseconds()),
		Round3Policy:   config.Round3PolicyOverwrite,
	}
}
