package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	apperrors "hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/validation"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/pipeline/stage"
)

var emailRequestSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["candidateEmail", "subject", "body"],
	"properties": {
		"candidateEmail": {"type": "string", "minLength": 3},
		"subject":        {"type": "string", "minLength": 1},
		"body":           {"type": "string", "minLength": 1}
	}
}`, map[string]string{
	"candidateEmail": "candidate email is required",
	"subject":        "subject must not be empty",
	"body":           "body must not be empty",
})

var applyRequestSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["jobId", "candidateId"],
	"properties": {
		"jobId":       {"type": "integer", "minimum": 1},
		"candidateId": {"type": "integer", "minimum": 1}
	}
}`, map[string]string{
	"jobId":       "jobId must be a positive integer",
	"candidateId": "candidateId must be a positive integer",
})

func pathID(c echo.Context, name string) (int64, error) {
	return parseID(name, c.Param(name))
}

func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError(apperrors.FieldError{
			Field:   name,
			Message: name + " must be a positive integer",
		})
	}
	return id, nil
}

func bindBody(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return apperrors.NewValidationError(apperrors.FieldError{Field: "body", Message: "invalid request body"})
	}
	return nil
}

func (s *Server) handleRoster(c echo.Context) error {
	jobID, err := pathID(c, "jobId")
	if err != nil {
		return err
	}

	ctx, cancel := s.callContext(c)
	defer cancel()

	roster, err := s.deps.Repository.FetchRoster(ctx, jobID)
	if err != nil {
		return err
	}

	out := make([]models.CandidateRecord, 0, len(roster))
	for _, cand := range roster {
		out = append(out, models.NewCandidateRecord(cand))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleUpdateStatus(c echo.Context) error {
	id, err := parseID("id", c.QueryParam("id"))
	if err != nil {
		return err
	}
	target, err := stage.ParseStatus(c.QueryParam("status"))
	if err != nil {
		return apperrors.NewValidationError(apperrors.FieldError{Field: "status", Message: err.Error()})
	}

	update := models.StatusUpdate{
		CandidateID:      id,
		Status:           target.Status(),
		InterviewerEmail: strings.TrimSpace(c.QueryParam("interviewerEmail")),
	}
	if raw := c.QueryParam("interviewId"); raw != "" {
		interviewID, err := parseID("interviewId", raw)
		if err != nil {
			return err
		}
		update.InterviewID = &interviewID
	}
	if update.InterviewerEmail != "" && !validation.ValidateEmail(update.InterviewerEmail) {
		return apperrors.NewValidationError(apperrors.FieldError{Field: "interviewerEmail", Message: "invalid email format"})
	}

	ctx, cancel := s.callContext(c)
	defer cancel()

	if err := s.deps.Repository.UpdateStatus(ctx, update); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleInterviews(c echo.Context) error {
	interviewerID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	scope := models.InterviewScope(c.Param("scope"))
	if !scope.Valid() {
		return apperrors.NewValidationError(apperrors.FieldError{Field: "scope", Message: "scope must be pending or completed"})
	}

	ctx, cancel := s.callContext(c)
	defer cancel()

	list, err := s.deps.Repository.FetchInterviews(ctx, interviewerID, scope)
	if err != nil {
		return err
	}

	out := make([]models.InterviewRecord, 0, len(list))
	for _, iv := range list {
		out = append(out, models.NewInterviewRecord(iv))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleSubmitFeedback(c echo.Context) error {
	appID, err := pathID(c, "appId")
	if err != nil {
		return err
	}

	var update models.FeedbackUpdate
	if err := bindBody(c, &update); err != nil {
		return err
	}
	if update.Round1Details == nil && update.Round2Details == nil && update.Round3Details == nil {
		return apperrors.NewValidationError(apperrors.FieldError{Field: "roundDetails", Message: "at least one round is required"})
	}

	ctx, cancel := s.callContext(c)
	defer cancel()

	if err := s.deps.Repository.SubmitFeedback(ctx, appID, update); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleInterviewers(c echo.Context) error {
	ctx, cancel := s.callContext(c)
	defer cancel()

	list, err := s.deps.Directory.ListInterviewers(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleSendEmail(c echo.Context) error {
	var req models.EmailRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	req.Subject = strings.TrimSpace(req.Subject)
	req.Body = strings.TrimSpace(req.Body)
	if err := emailRequestSchema.Validate(req); err != nil {
		return err
	}
	if !validation.ValidateEmail(req.CandidateEmail) {
		return apperrors.NewValidationError(apperrors.FieldError{Field: "candidateEmail", Message: "invalid email format"})
	}

	ctx, cancel := s.callContext(c)
	defer cancel()

	if err := s.deps.Dispatcher.Send(ctx, req.CandidateEmail, req.Subject, req.Body); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleApply(c echo.Context) error {
	if s.deps.Applications == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "applications are not served here")
	}

	var req models.ApplyRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	if err := applyRequestSchema.Validate(req); err != nil {
		return err
	}

	ctx, cancel := s.callContext(c)
	defer cancel()

	app, err := s.deps.Applications.ApplyForJob(ctx, req.JobID, req.CandidateID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, app)
}
