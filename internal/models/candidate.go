package models

import (
	"time"

	"hiring-pipeline/internal/pipeline/stage"
)

// Candidate is one applicant on a job roster. Optional values the repository
// may omit are pointers.
type Candidate struct {
	ID               int64
	UniqueID         string
	Name             string
	Email            string
	PhoneNumber      string
	Stage            stage.Stage
	MatchedSkills    []string
	Score            float64
	Summary          *string
	JobID            int64
	JobApplicationID *int64
	InterviewID      *int64
	Round1           *RoundFeedback
	Round2           *RoundFeedback
	Round3           *RoundFeedback
	FeedbackSummary  *string
	AppliedAt        *time.Time
}

// RoundFeedback is one interview round's block: who interviewed, what they
// wrote and the round status.
type RoundFeedback struct {
	InterviewerName  string `json:"interviewerName,omitempty"`
	InterviewerEmail string `json:"interviewerEmail,omitempty"`
	Feedback         string `json:"feedback,omitempty"`
	Status           string `json:"status,omitempty"`
}

// RoundStatusCompleted marks a round whose feedback has been submitted.
const RoundStatusCompleted = "COMPLETED"

// Filled reports whether feedback has been written for the round.
func (f *RoundFeedback) Filled() bool {
	return f != nil && f.Feedback != ""
}

func (f *RoundFeedback) clone() *RoundFeedback {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

// Round returns the feedback block for round n (1-3).
func (c *Candidate) Round(n int) *RoundFeedback {
	switch n {
	case 1:
		return c.Round1
	case 2:
		return c.Round2
	case 3:
		return c.Round3
	}
	return nil
}

// Clone deep-copies c so roster snapshots never share mutable state.
func (c Candidate) Clone() Candidate {
	out := c
	out.MatchedSkills = cloneStrings(c.MatchedSkills)
	out.Summary = cloneString(c.Summary)
	out.FeedbackSummary = cloneString(c.FeedbackSummary)
	out.JobApplicationID = cloneInt64(c.JobApplicationID)
	out.InterviewID = cloneInt64(c.InterviewID)
	out.Round1 = c.Round1.clone()
	out.Round2 = c.Round2.clone()
	out.Round3 = c.Round3.clone()
	if c.AppliedAt != nil {
		t := *c.AppliedAt
		out.AppliedAt = &t
	}
	return out
}

type JobRequisition struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
}

type JobApplication struct {
	ID          int64     `json:"id"`
	JobID       int64     `json:"jobId"`
	CandidateID int64     `json:"candidateId"`
	AppliedAt   time.Time `json:"applicationDate"`
}

// cloneStrings keeps nil and empty apart.
func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt64(i *int64) *int64 {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
