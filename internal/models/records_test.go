package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hiring-pipeline/internal/pipeline/stage"
)

func TestCandidateRecord_Normalize(t *testing.T) {
	raw := `{
		"id": 11,
		"name": "Ana Silva",
		"email": "ana@x.com",
		"status": "IN_PROCESS_ROUND2",
		"score": 81.5,
		"matchedSkills": ["go", "sql"],
		"interviewId": 4,
		"jobApplicationId": 9,
		"round1Details": {"interviewerName": "Bo", "feedback": "strong", "status": "COMPLETED"},
		"round2Details": {},
		"feedbackSummary": ""
	}`

	var rec CandidateRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))

	c, err := rec.Normalize()
	require.NoError(t, err)

	assert.Equal(t, int64(11), c.ID)
	assert.Equal(t, stage.Round2, c.Stage)
	assert.Equal(t, 81.5, c.Score)
	require.NotNil(t, c.Round1)
	assert.Equal(t, "strong", c.Round1.Feedback)
	assert.Nil(t, c.Round2, "an empty block normalizes to absent")
	assert.Nil(t, c.Round3)
	assert.Nil(t, c.FeedbackSummary)
	assert.Nil(t, c.Summary)
	require.NotNil(t, c.InterviewID)
	assert.Equal(t, int64(4), *c.InterviewID)
}

func TestCandidateRecord_NormalizeRejects(t *testing.T) {
	id := int64(3)
	name := "Ana"
	good := "IN_PROCESS"
	bad := "in_process"
	score := 120.0

	tests := []struct {
		name string
		rec  CandidateRecord
		want string
	}{
		{"missing id", CandidateRecord{Name: &name, Status: &good}, "without id"},
		{"missing name", CandidateRecord{ID: &id, Status: &good}, "missing name"},
		{"missing status", CandidateRecord{ID: &id, Name: &name}, "missing status"},
		{"unknown status", CandidateRecord{ID: &id, Name: &name, Status: &bad}, "unknown candidate status"},
		{"score out of range", CandidateRecord{ID: &id, Name: &name, Status: &good, Score: &score}, "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.rec.Normalize()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCandidateRecord_RoundTrip(t *testing.T) {
	summary := "Round one notes"
	appID := int64(8)
	in := Candidate{
		ID:               5,
		Name:             "Ana Silva",
		Email:            "ana@x.com",
		Stage:            stage.OnHold,
		MatchedSkills:    []string{"go"},
		Score:            64,
		JobID:            2,
		JobApplicationID: &appID,
		Round1:           &RoundFeedback{InterviewerName: "Bo", Feedback: "fine", Status: RoundStatusCompleted},
		FeedbackSummary:  &summary,
	}

	out, err := NewCandidateRecord(in).Normalize()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestInterviewRecord_Normalize(t *testing.T) {
	raw := `{
		"interviewId": 4,
		"candidate": {"id": 11, "name": "Ana Silva", "email": "ana@x.com", "score": 70},
		"jobApplication": {"id": 9, "jobTitle": "Backend Engineer"},
		"round1Details": {"interviewerName": "Bo", "interviewerEmail": "bo@x.com"}
	}`
	var rec InterviewRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))

	iv, err := rec.Normalize()
	require.NoError(t, err)
	assert.Equal(t, int64(9), iv.JobApplicationID)
	assert.Equal(t, "Backend Engineer", iv.JobTitle)
	require.NotNil(t, iv.Round1)
	assert.False(t, iv.Round1.Filled())
	assert.Nil(t, iv.Feedback)

	_, err = InterviewRecord{InterviewID: rec.InterviewID}.Normalize()
	assert.ErrorContains(t, err, "missing job application")
}

func TestCandidate_CloneIsDeep(t *testing.T) {
	c := Candidate{ID: 1, MatchedSkills: []string{"go"}, Round1: &RoundFeedback{Feedback: "a"}}
	cp := c.Clone()
	cp.MatchedSkills[0] = "rust"
	cp.Round1.Feedback = "b"

	assert.Equal(t, "go", c.MatchedSkills[0])
	assert.Equal(t, "a", c.Round1.Feedback)
}

func TestClone_KeepsEmptySkillsEmpty(t *testing.T) {
	c := Candidate{ID: 1, MatchedSkills: []string{}}
	assert.Equal(t, []string{}, c.Clone().MatchedSkills)
	assert.Nil(t, Candidate{ID: 2}.Clone().MatchedSkills)

	iv := Interview{ID: 1, Candidate: InterviewCandidate{ID: 1, MatchedSkills: []string{}}}
	assert.Equal(t, []string{}, iv.Clone().Candidate.MatchedSkills)
}

func TestCandidateRecord_NormalizeWithoutSkills(t *testing.T) {
	id, name, status := int64(3), "Cy Diaz", "IN_PROCESS"
	c, err := CandidateRecord{ID: &id, Name: &name, Status: &status}.Normalize()
	require.NoError(t, err)
	assert.NotNil(t, c.MatchedSkills)
	assert.Empty(t, c.MatchedSkills)
}

func TestUIState(t *testing.T) {
	s := DefaultUIState()
	assert.Equal(t, stage.FilterApplied, s.ActiveFilter)

	s = s.Toggle(5).Toggle(2)
	assert.Equal(t, []int64{2, 5}, s.ExpandedCandidateIDs)
	assert.True(t, s.IsExpanded(5))

	s = s.Toggle(5)
	assert.Equal(t, []int64{2}, s.ExpandedCandidateIDs)

	repaired := UIState{ActiveFilter: "archived", ExpandedCandidateIDs: []int64{3, 3, 1}}.Normalize()
	assert.Equal(t, stage.DefaultFilter, repaired.ActiveFilter)
	assert.Equal(t, []int64{1, 3}, repaired.ExpandedCandidateIDs)
}
