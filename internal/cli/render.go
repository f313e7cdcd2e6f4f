package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/pipeline/assignment"
	"hiring-pipeline/internal/pipeline/coordinator"
	"hiring-pipeline/internal/pipeline/feedback"
	"hiring-pipeline/internal/pipeline/stage"
	"hiring-pipeline/internal/pipeline/store"
)

func joinFilters() string {
	return strings.Join(stage.Filters(), "|")
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

type rosterView struct {
	Filter     string                   `json:"filter"`
	Counts     map[string]int           `json:"counts"`
	Expanded   []int64                  `json:"expanded"`
	Candidates []models.CandidateRecord `json:"candidates"`
	Stale      bool                     `json:"stale,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

// staleNotice describes a roster that could not be refreshed. Empty unless
// state is Failed.
func staleNotice(state store.ViewState) string {
	failed, ok := state.(store.Failed)
	if !ok {
		return ""
	}
	if len(failed.Stale) == 0 {
		return fmt.Sprintf("roster for job %d could not be loaded: %v", failed.JobID, failed.Err)
	}
	return fmt.Sprintf("roster for job %d could not be refreshed: %v; showing the last loaded list", failed.JobID, failed.Err)
}

func renderRoster(out io.Writer, asJSON bool, state store.ViewState, prefs models.UIState, counts map[string]int, list []models.Candidate) error {
	failed, isFailed := state.(store.Failed)
	if asJSON {
		view := rosterView{
			Filter:     prefs.ActiveFilter,
			Counts:     counts,
			Expanded:   prefs.ExpandedCandidateIDs,
			Candidates: make([]models.CandidateRecord, 0, len(list)),
			Stale:      isFailed,
		}
		if isFailed {
			view.Error = failed.Err.Error()
		}
		for _, c := range list {
			view.Candidates = append(view.Candidates, models.NewCandidateRecord(c))
		}
		return writeJSON(out, view)
	}

	if notice := staleNotice(state); notice != "" {
		fmt.Fprintln(out, notice)
	}

	tabs := make([]string, 0, len(stage.Filters()))
	for _, id := range stage.Filters() {
		marker := ""
		if id == prefs.ActiveFilter {
			marker = "*"
		}
		tabs = append(tabs, fmt.Sprintf("%s%s(%d)", marker, id, counts[id]))
	}
	fmt.Fprintln(out, strings.Join(tabs, "  "))

	w := newTable(out)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tSTAGE\tSCORE")
	for _, c := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.0f\n", c.ID, c.Name, c.Email, c.Stage.Label(), c.Score)
		if prefs.IsExpanded(c.ID) {
			writeDetails(w, c)
		}
	}
	return w.Flush()
}

func writeDetails(w io.Writer, c models.Candidate) {
	if len(c.MatchedSkills) > 0 {
		fmt.Fprintf(w, "\t  skills: %s\n", strings.Join(c.MatchedSkills, ", "))
	}
	for n := 1; n <= 3; n++ {
		fb := c.Round(n)
		if fb == nil {
			continue
		}
		status := fb.Status
		if status == "" {
			status = "ASSIGNED"
		}
		fmt.Fprintf(w, "\t  round %d: %s (%s)\n", n, fb.InterviewerName, status)
		if fb.Feedback != "" {
			for _, line := range strings.Split(fb.Feedback, "\n") {
				fmt.Fprintf(w, "\t    %s\n", line)
			}
		}
	}
	if c.FeedbackSummary != nil && *c.FeedbackSummary != "" {
		fmt.Fprintf(w, "\t  summary: %s\n", strings.ReplaceAll(*c.FeedbackSummary, "\n", " / "))
	}
}

func renderCandidate(out io.Writer, asJSON bool, c models.Candidate, expanded bool) error {
	if asJSON {
		return writeJSON(out, struct {
			Candidate models.CandidateRecord `json:"candidate"`
			Expanded  bool                   `json:"expanded"`
		}{models.NewCandidateRecord(c), expanded})
	}
	w := newTable(out)
	fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.ID, c.Name, c.Email, c.Stage.Label())
	if expanded {
		writeDetails(w, c)
	} else {
		fmt.Fprintln(w, "\t  (collapsed)")
	}
	return w.Flush()
}

type resultView struct {
	Kind        coordinator.ResultKind `json:"kind"`
	CandidateID int64                  `json:"candidateId"`
	From        stage.Stage            `json:"from"`
	Target      stage.Stage            `json:"target"`
}

func toResultView(res coordinator.Result) resultView {
	return resultView{Kind: res.Kind, CandidateID: res.CandidateID, From: res.From, Target: res.Target}
}

func renderResult(out io.Writer, asJSON bool, res coordinator.Result) error {
	if asJSON {
		return writeJSON(out, toResultView(res))
	}
	_, err := fmt.Fprintf(out, "candidate %d: %s -> %s (%s)\n", res.CandidateID, res.From, res.Target, res.Kind)
	return err
}

func renderAssignment(out io.Writer, asJSON bool, res coordinator.Result, draft assignment.ComposingNotification) error {
	if asJSON {
		return writeJSON(out, struct {
			resultView
			Interviewer models.Interviewer `json:"interviewer"`
			Subject     string             `json:"subject"`
		}{toResultView(res), draft.Interviewer, draft.Subject})
	}
	if err := renderResult(out, false, res); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "invitation %q sent to %s, interviewer %s <%s>\n",
		draft.Subject, draft.Candidate.Email, draft.Interviewer.FullName, draft.Interviewer.Email)
	return err
}

func renderInterviewers(out io.Writer, asJSON bool, list []models.Interviewer) error {
	if asJSON {
		return writeJSON(out, list)
	}
	w := newTable(out)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL")
	for _, iv := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\n", iv.ID, iv.FullName, iv.Email)
	}
	return w.Flush()
}

func renderInterviews(out io.Writer, asJSON bool, list []models.Interview) error {
	if asJSON {
		records := make([]models.InterviewRecord, 0, len(list))
		for _, iv := range list {
			records = append(records, models.NewInterviewRecord(iv))
		}
		return writeJSON(out, records)
	}
	w := newTable(out)
	fmt.Fprintln(w, "CANDIDATE\tNAME\tJOB\tAPPLICATION\tNEXT ROUND")
	for _, iv := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\n", iv.Candidate.ID, iv.Candidate.Name, iv.JobTitle, iv.JobApplicationID, feedback.ActiveSlot(iv))
	}
	return w.Flush()
}
