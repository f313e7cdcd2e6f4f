package models

import "hiring-pipeline/internal/pipeline/stage"

// Interview is an interviewer's view of one candidate's application.
type Interview struct {
	ID               int64
	JobApplicationID int64
	JobID            int64
	JobTitle         string
	JobLocation      string
	Candidate        InterviewCandidate
	Round1           *RoundFeedback
	Round2           *RoundFeedback
	Round3           *RoundFeedback
	Feedback         *string
}

type InterviewCandidate struct {
	ID            int64
	Name          string
	Email         string
	Score         float64
	MatchedSkills []string
	Summary       *string
}

func (i *Interview) Round(n int) *RoundFeedback {
	switch n {
	case 1:
		return i.Round1
	case 2:
		return i.Round2
	case 3:
		return i.Round3
	}
	return nil
}

func (i Interview) Clone() Interview {
	out := i
	out.Candidate.MatchedSkills = cloneStrings(i.Candidate.MatchedSkills)
	out.Candidate.Summary = cloneString(i.Candidate.Summary)
	out.Round1 = i.Round1.clone()
	out.Round2 = i.Round2.clone()
	out.Round3 = i.Round3.clone()
	out.Feedback = cloneString(i.Feedback)
	return out
}

// SetRound replaces the block for round n (1-3).
func (i *Interview) SetRound(n int, fb *RoundFeedback) {
	switch n {
	case 1:
		i.Round1 = fb
	case 2:
		i.Round2 = fb
	case 3:
		i.Round3 = fb
	}
}

// InterviewScope selects an interviewer's pending or completed work.
type InterviewScope string

const (
	ScopePending   InterviewScope = "pending"
	ScopeCompleted InterviewScope = "completed"
)

func (s InterviewScope) Valid() bool {
	return s == ScopePending || s == ScopeCompleted
}

type Interviewer struct {
	ID       int64  `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// StatusUpdate moves a candidate to Status. InterviewID and
// InterviewerEmail bind the round's interviewer when Status is a round.
type StatusUpdate struct {
	CandidateID      int64
	Status           stage.Status
	InterviewID      *int64
	InterviewerEmail string
}

// FeedbackUpdate is the body persisted against a job application. Nil
// rounds are left as stored.
type FeedbackUpdate struct {
	Round1Details *RoundFeedback `json:"round1Details,omitempty"`
	Round2Details *RoundFeedback `json:"round2Details,omitempty"`
	Round3Details *RoundFeedback `json:"round3Details,omitempty"`
	Feedback      string         `json:"feedback"`
}

func (u *FeedbackUpdate) Round(n int) *RoundFeedback {
	switch n {
	case 1:
		return u.Round1Details
	case 2:
		return u.Round2Details
	case 3:
		return u.Round3Details
	}
	return nil
}
