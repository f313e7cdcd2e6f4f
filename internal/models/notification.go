package models

import "time"

// EmailRequest is the body of the schedule-invite endpoint.
type EmailRequest struct {
	CandidateEmail string `json:"candidateEmail"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
}

// StageEvent is published after a committed stage change.
type StageEvent struct {
	EventID          string    `json:"eventId"`
	CandidateID      int64     `json:"candidateId"`
	JobID            int64     `json:"jobId"`
	From             string    `json:"from"`
	To               string    `json:"to"`
	InterviewerEmail string    `json:"interviewerEmail,omitempty"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// ApplyRequest is the body of the application intake endpoint.
type ApplyRequest struct {
	JobID       int64 `json:"jobId"`
	CandidateID int64 `json:"candidateId"`
}
