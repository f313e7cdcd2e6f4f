package remote

import (
	"context"
	"net/http"

	apperrors "hiring-pipeline/internal/common/errors"
	httpclient "hiring-pipeline/internal/common/http"
	"hiring-pipeline/internal/models"
)

// Dispatcher sends candidate emails through the API's schedule-invite
// endpoint.
type Dispatcher struct {
	client *httpclient.Client
}

func NewDispatcher(client *httpclient.Client) *Dispatcher {
	return &Dispatcher{client: client}
}

func (d *Dispatcher) Send(ctx context.Context, to, subject, body string) error {
	err := d.client.SendJSON(ctx, "SendEmail", http.MethodPost, "/email/schedule-invite", nil,
		models.EmailRequest{CandidateEmail: to, Subject: subject, Body: body}, nil)
	if err == nil || apperrors.IsValidation(err) {
		return err
	}
	return apperrors.NewNotificationSendFailedError("email", err)
}

type Directory struct {
	client *httpclient.Client
}

func NewDirectory(client *httpclient.Client) *Directory {
	return &Directory{client: client}
}

func (d *Directory) ListInterviewers(ctx context.Context) ([]models.Interviewer, error) {
	var list []models.Interviewer
	if err := d.client.GetJSON(ctx, "ListInterviewers", "/admins/interviewers", nil, &list); err != nil {
		if apperrors.IsNetwork(err) {
			return nil, apperrors.NewDirectoryUnavailableError(err)
		}
		return nil, err
	}
	if list == nil {
		list = []models.Interviewer{}
	}
	return list, nil
}
