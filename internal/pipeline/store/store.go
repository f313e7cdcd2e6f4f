// Package store holds the roster of the job currently in view together with
// that job's UI preferences.
package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	apperrors "hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/metrics"
	"hiring-pipeline/internal/common/retry"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/pipeline"
	"hiring-pipeline/internal/pipeline/stage"
)

// ViewState is the roster view's lifecycle: Idle, Loading, Loaded or Failed.
type ViewState interface {
	isViewState()
}

type Idle struct{}

type Loading struct {
	JobID int64
}

type Loaded struct {
	JobID  int64
	Roster []models.Candidate
}

// Failed keeps the last good roster, if any, next to the error.
type Failed struct {
	JobID int64
	Err   error
	Stale []models.Candidate
}

func (Idle) isViewState()    {}
func (Loading) isViewState() {}
func (Loaded) isViewState()  {}
func (Failed) isViewState()  {}

type Options struct {
	CallTimeout time.Duration
	Retry       retry.Config
}

func DefaultOptions() Options {
	return Options{CallTimeout: 10 * time.Second, Retry: retry.DefaultConfig}
}

// Store owns the in-memory roster. The mutex guards memory only; callers
// are never serialized against each other.
type Store struct {
	repo  pipeline.CandidateRepository
	prefs pipeline.PreferenceStorage
	log   logger.Logger
	opts  Options

	mu        sync.RWMutex
	jobID     int64
	hasJob    bool
	view      ViewState
	roster    []models.Candidate
	prefCache map[int64]models.UIState
}

func New(repo pipeline.CandidateRepository, prefs pipeline.PreferenceStorage, log logger.Logger, opts Options) *Store {
	return &Store{
		repo:      repo,
		prefs:     prefs,
		log:       log.WithFields(map[string]interface{}{"component": "pipeline-store"}),
		opts:      opts,
		view:      Idle{},
		prefCache: make(map[int64]models.UIState),
	}
}

// SwitchJob puts jobID in view. The previous job's cached preferences are
// evicted; its stored preferences are untouched. The roster is re-fetched
// and a fetch failure is returned after preferences are in place.
func (s *Store) SwitchJob(ctx context.Context, jobID int64) (models.UIState, error) {
	s.mu.Lock()
	if s.hasJob && s.jobID != jobID {
		delete(s.prefCache, s.jobID)
	}
	s.jobID = jobID
	s.hasJob = true
	s.view = Idle{}
	s.roster = nil
	s.mu.Unlock()

	state := s.loadPreferences(ctx, jobID)

	s.mu.Lock()
	if s.jobID == jobID {
		s.prefCache[jobID] = state
	}
	s.mu.Unlock()

	return state, s.Refresh(ctx)
}

// loadPreferences falls back to defaults when storage is empty or failing;
// preferences never block the roster.
func (s *Store) loadPreferences(ctx context.Context, jobID int64) models.UIState {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	state, found, err := s.prefs.Load(ctx, jobID)
	if err != nil {
		s.log.Warn("failed to load preferences, using defaults", map[string]interface{}{
			"jobId": jobID,
			"error": err,
		})
		return models.DefaultUIState()
	}
	if !found {
		return models.DefaultUIState()
	}
	return state.Normalize()
}

// Refresh re-fetches the roster of the job in view. NotFound from the
// repository is an empty roster. Any other failure keeps the previous
// roster and moves the view to Failed.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if !s.hasJob {
		s.mu.Unlock()
		return apperrors.NewInvalidFlowStateError("refresh", "no job is selected")
	}
	jobID := s.jobID
	s.view = Loading{JobID: jobID}
	s.mu.Unlock()

	roster, err := s.fetchRoster(ctx, jobID)
	if err != nil && apperrors.IsNotFound(err) {
		s.log.Info("job has no candidates", map[string]interface{}{"jobId": jobID})
		roster, err = []models.Candidate{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasJob || s.jobID != jobID {
		// the user switched jobs while this fetch was in flight
		return err
	}

	if err != nil {
		s.log.Error("roster refresh failed", map[string]interface{}{
			"jobId": jobID,
			"error": err,
		})
		s.view = Failed{JobID: jobID, Err: err, Stale: cloneAll(s.roster)}
		return err
	}

	s.roster = roster
	s.view = Loaded{JobID: jobID, Roster: cloneAll(roster)}
	metrics.RosterSize.WithLabelValues(strconv.FormatInt(jobID, 10)).Set(float64(len(roster)))
	return nil
}

func (s *Store) fetchRoster(ctx context.Context, jobID int64) ([]models.Candidate, error) {
	start := time.Now()
	defer func() {
		metrics.ExternalCallDuration.WithLabelValues("repository", "FetchRoster").Observe(time.Since(start).Seconds())
	}()

	return retry.Do(ctx, s.opts.Retry, "FetchRoster", func(ctx context.Context) ([]models.Candidate, error) {
		callCtx, cancel := s.callContext(ctx)
		defer cancel()
		return s.repo.FetchRoster(callCtx, jobID)
	}, apperrors.IsRetryable)
}

// ApplyCommitted records an acknowledged stage change in place, then
// re-fetches the roster so counts and feedback match the repository.
func (s *Store) ApplyCommitted(ctx context.Context, candidateID int64, target stage.Stage) error {
	s.mu.Lock()
	for i := range s.roster {
		if s.roster[i].ID == candidateID {
			s.roster[i].Stage = target
			break
		}
	}
	if l, ok := s.view.(Loaded); ok {
		s.view = Loaded{JobID: l.JobID, Roster: cloneAll(s.roster)}
	}
	s.mu.Unlock()

	return s.Refresh(ctx)
}

func (s *Store) View() ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// JobID reports the job in view.
func (s *Store) JobID() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobID, s.hasJob
}

func (s *Store) Roster() []models.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.roster)
}

func (s *Store) Candidate(id int64) (models.Candidate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.roster {
		if c.ID == id {
			return c.Clone(), true
		}
	}
	return models.Candidate{}, false
}

// Counts returns the number of candidates per filter tab, "all" included.
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(stage.Filters()))
	for _, id := range stage.Filters() {
		counts[id] = 0
	}
	for _, c := range s.roster {
		counts[stage.FilterFor(c.Stage)]++
	}
	counts[stage.FilterAll] = len(s.roster)
	return counts
}

// Filtered returns the roster narrowed to the active filter.
func (s *Store) Filtered() []models.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want, single := stage.FilterStage(s.prefCache[s.jobID].ActiveFilter)
	out := make([]models.Candidate, 0, len(s.roster))
	for _, c := range s.roster {
		if !single || c.Stage == want {
			out = append(out, c.Clone())
		}
	}
	return out
}

// Preferences returns the cached preferences of the job in view.
func (s *Store) Preferences() models.UIState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.prefCache[s.jobID]; ok && s.hasJob {
		return state
	}
	return models.DefaultUIState()
}

func (s *Store) SetFilter(ctx context.Context, filterID string) (models.UIState, error) {
	if !stage.ValidFilter(filterID) {
		return s.Preferences(), apperrors.NewValidationError(apperrors.FieldError{
			Field:   "activeFilter",
			Message: "unknown filter " + strconv.Quote(filterID),
		})
	}
	return s.updatePreferences(ctx, func(u models.UIState) models.UIState {
		u.ActiveFilter = filterID
		return u
	})
}

func (s *Store) ToggleExpanded(ctx context.Context, candidateID int64) (models.UIState, error) {
	return s.updatePreferences(ctx, func(u models.UIState) models.UIState {
		return u.Toggle(candidateID)
	})
}

// updatePreferences applies fn to the cache and persists the result. A save
// failure keeps the in-memory change and is reported.
func (s *Store) updatePreferences(ctx context.Context, fn func(models.UIState) models.UIState) (models.UIState, error) {
	s.mu.Lock()
	if !s.hasJob {
		s.mu.Unlock()
		return models.DefaultUIState(), apperrors.NewInvalidFlowStateError("update preferences", "no job is selected")
	}
	jobID := s.jobID
	current, ok := s.prefCache[jobID]
	if !ok {
		current = models.DefaultUIState()
	}
	next := fn(current)
	s.prefCache[jobID] = next
	s.mu.Unlock()

	ctx, cancel := s.callContext(ctx)
	defer cancel()
	if err := s.prefs.Save(ctx, jobID, next); err != nil {
		s.log.Warn("failed to persist preferences", map[string]interface{}{
			"jobId": jobID,
			"error": err,
		})
		return next, err
	}
	return next, nil
}

func (s *Store) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.CallTimeout)
}

func cloneAll(in []models.Candidate) []models.Candidate {
	if in == nil {
		return nil
	}
	out := make([]models.Candidate, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}
