package models

import (
	"fmt"
	"strings"
	"time"

	"hiring-pipeline/internal/pipeline/stage"
)

// Wire records mirror the JSON the pipeline API exchanges. Every field is
// optional on the wire; Normalize is the one place that decides which
// absences are errors.

type RoundFeedbackRecord struct {
	InterviewerName  *string `json:"interviewerName,omitempty"`
	InterviewerEmail *string `json:"interviewerEmail,omitempty"`
	Feedback         *string `json:"feedback,omitempty"`
	Status           *string `json:"status,omitempty"`
}

type CandidateRecord struct {
	ID               *int64               `json:"id"`
	UniqueID         *string              `json:"uniqueId,omitempty"`
	Name             *string              `json:"name"`
	Email            *string              `json:"email"`
	PhoneNumber      *string              `json:"phoneNumber,omitempty"`
	Status           *string              `json:"status"`
	MatchedSkills    []string             `json:"matchedSkills,omitempty"`
	Score            *float64             `json:"score,omitempty"`
	Summary          *string              `json:"summary,omitempty"`
	JobID            *int64               `json:"jobId,omitempty"`
	JobApplicationID *int64               `json:"jobApplicationId,omitempty"`
	InterviewID      *int64               `json:"interviewId,omitempty"`
	Round1Details    *RoundFeedbackRecord `json:"round1Details,omitempty"`
	Round2Details    *RoundFeedbackRecord `json:"round2Details,omitempty"`
	Round3Details    *RoundFeedbackRecord `json:"round3Details,omitempty"`
	FeedbackSummary  *string              `json:"feedbackSummary,omitempty"`
	ApplicationDate  *time.Time           `json:"applicationDate,omitempty"`
}

type InterviewCandidateRecord struct {
	ID            *int64   `json:"id"`
	Name          *string  `json:"name"`
	Email         *string  `json:"email"`
	Score         *float64 `json:"score,omitempty"`
	MatchedSkills []string `json:"matchedSkills,omitempty"`
	Summary       *string  `json:"summary,omitempty"`
}

type JobApplicationInfoRecord struct {
	ID          *int64  `json:"id"`
	JobID       *int64  `json:"jobId,omitempty"`
	JobTitle    *string `json:"jobTitle,omitempty"`
	JobLocation *string `json:"jobLocation,omitempty"`
}

type InterviewRecord struct {
	InterviewID    *int64                    `json:"interviewId"`
	Feedback       *string                   `json:"feedback,omitempty"`
	Candidate      *InterviewCandidateRecord `json:"candidate"`
	JobApplication *JobApplicationInfoRecord `json:"jobApplication"`
	Round1Details  *RoundFeedbackRecord      `json:"round1Details,omitempty"`
	Round2Details  *RoundFeedbackRecord      `json:"round2Details,omitempty"`
	Round3Details  *RoundFeedbackRecord      `json:"round3Details,omitempty"`
}

// Normalize returns nil for a block with nothing in it.
func (r *RoundFeedbackRecord) Normalize() *RoundFeedback {
	if r == nil {
		return nil
	}
	fb := RoundFeedback{
		InterviewerName:  deref(r.InterviewerName),
		InterviewerEmail: deref(r.InterviewerEmail),
		Feedback:         deref(r.Feedback),
		Status:           deref(r.Status),
	}
	if fb == (RoundFeedback{}) {
		return nil
	}
	return &fb
}

func NewRoundFeedbackRecord(fb *RoundFeedback) *RoundFeedbackRecord {
	if fb == nil {
		return nil
	}
	return &RoundFeedbackRecord{
		InterviewerName:  optional(fb.InterviewerName),
		InterviewerEmail: optional(fb.InterviewerEmail),
		Feedback:         optional(fb.Feedback),
		Status:           optional(fb.Status),
	}
}

// Normalize validates the record into a Candidate. id, name and a known
// status are mandatory; score must be within 0-100.
func (r CandidateRecord) Normalize() (Candidate, error) {
	if r.ID == nil {
		return Candidate{}, fmt.Errorf("candidate record without id")
	}
	if r.Name == nil || strings.TrimSpace(*r.Name) == "" {
		return Candidate{}, fmt.Errorf("candidate %d: missing name", *r.ID)
	}
	if r.Status == nil {
		return Candidate{}, fmt.Errorf("candidate %d: missing status", *r.ID)
	}
	st, err := stage.ParseStatus(*r.Status)
	if err != nil {
		return Candidate{}, fmt.Errorf("candidate %d: %w", *r.ID, err)
	}

	var score float64
	if r.Score != nil {
		score = *r.Score
		if score < 0 || score > 100 {
			return Candidate{}, fmt.Errorf("candidate %d: score %.1f out of range", *r.ID, score)
		}
	}

	c := Candidate{
		ID:               *r.ID,
		UniqueID:         deref(r.UniqueID),
		Name:             *r.Name,
		Email:            deref(r.Email),
		PhoneNumber:      deref(r.PhoneNumber),
		Stage:            st,
		MatchedSkills:    r.MatchedSkills,
		Score:            score,
		Summary:          nonEmpty(r.Summary),
		JobApplicationID: r.JobApplicationID,
		InterviewID:      r.InterviewID,
		Round1:           r.Round1Details.Normalize(),
		Round2:           r.Round2Details.Normalize(),
		Round3:           r.Round3Details.Normalize(),
		FeedbackSummary:  nonEmpty(r.FeedbackSummary),
		AppliedAt:        r.ApplicationDate,
	}
	if r.JobID != nil {
		c.JobID = *r.JobID
	}
	if c.MatchedSkills == nil {
		c.MatchedSkills = []string{}
	}
	return c.Clone(), nil
}

func NewCandidateRecord(c Candidate) CandidateRecord {
	id := c.ID
	score := c.Score
	status := string(c.Stage.Status())
	jobID := c.JobID
	return CandidateRecord{
		ID:               &id,
		UniqueID:         optional(c.UniqueID),
		Name:             optional(c.Name),
		Email:            optional(c.Email),
		PhoneNumber:      optional(c.PhoneNumber),
		Status:           &status,
		MatchedSkills:    c.MatchedSkills,
		Score:            &score,
		Summary:          c.Summary,
		JobID:            &jobID,
		JobApplicationID: c.JobApplicationID,
		InterviewID:      c.InterviewID,
		Round1Details:    NewRoundFeedbackRecord(c.Round1),
		Round2Details:    NewRoundFeedbackRecord(c.Round2),
		Round3Details:    NewRoundFeedbackRecord(c.Round3),
		FeedbackSummary:  c.FeedbackSummary,
		ApplicationDate:  c.AppliedAt,
	}
}

// Normalize validates the record into an Interview. The interview id, the
// job application id and the candidate id are mandatory.
func (r InterviewRecord) Normalize() (Interview, error) {
	if r.InterviewID == nil {
		return Interview{}, fmt.Errorf("interview record without interviewId")
	}
	if r.JobApplication == nil || r.JobApplication.ID == nil {
		return Interview{}, fmt.Errorf("interview %d: missing job application", *r.InterviewID)
	}
	if r.Candidate == nil || r.Candidate.ID == nil {
		return Interview{}, fmt.Errorf("interview %d: missing candidate", *r.InterviewID)
	}

	iv := Interview{
		ID:               *r.InterviewID,
		JobApplicationID: *r.JobApplication.ID,
		JobTitle:         deref(r.JobApplication.JobTitle),
		JobLocation:      deref(r.JobApplication.JobLocation),
		Candidate: InterviewCandidate{
			ID:            *r.Candidate.ID,
			Name:          deref(r.Candidate.Name),
			Email:         deref(r.Candidate.Email),
			MatchedSkills: r.Candidate.MatchedSkills,
			Summary:       nonEmpty(r.Candidate.Summary),
		},
		Round1:   r.Round1Details.Normalize(),
		Round2:   r.Round2Details.Normalize(),
		Round3:   r.Round3Details.Normalize(),
		Feedback: nonEmpty(r.Feedback),
	}
	if r.JobApplication.JobID != nil {
		iv.JobID = *r.JobApplication.JobID
	}
	if r.Candidate.Score != nil {
		iv.Candidate.Score = *r.Candidate.Score
	}
	return iv, nil
}

func NewInterviewRecord(iv Interview) InterviewRecord {
	id, appID, jobID, candID := iv.ID, iv.JobApplicationID, iv.JobID, iv.Candidate.ID
	score := iv.Candidate.Score
	return InterviewRecord{
		InterviewID: &id,
		Feedback:    iv.Feedback,
		Candidate: &InterviewCandidateRecord{
			ID:            &candID,
			Name:          optional(iv.Candidate.Name),
			Email:         optional(iv.Candidate.Email),
			Score:         &score,
			MatchedSkills: iv.Candidate.MatchedSkills,
			Summary:       iv.Candidate.Summary,
		},
		JobApplication: &JobApplicationInfoRecord{
			ID:          &appID,
			JobID:       &jobID,
			JobTitle:    optional(iv.JobTitle),
			JobLocation: optional(iv.JobLocation),
		},
		Round1Details: NewRoundFeedbackRecord(iv.Round1),
		Round2Details: NewRoundFeedbackRecord(iv.Round2),
		Round3Details: NewRoundFeedbackRecord(iv.Round3),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return cloneString(s)
}
