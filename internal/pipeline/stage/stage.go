// Package stage defines the hiring funnel stages, the legal edges between
// them and the status vocabulary exchanged with the repository.
package stage

import (
	"fmt"
	"regexp"
)

// Stage is a candidate's position in the funnel.
type Stage string

const (
	Applied  Stage = "APPLIED"
	Round1   Stage = "ROUND1"
	Round2   Stage = "ROUND2"
	Round3   Stage = "ROUND3"
	OnHold   Stage = "ON_HOLD"
	Hired    Stage = "HIRED"
	Rejected Stage = "REJECTED"
)

// Status is the wire form of a Stage. The values are case-sensitive.
type Status string

const (
	StatusInProcess       Status = "IN_PROCESS"
	StatusInProcessRound1 Status = "IN_PROCESS_ROUND1"
	StatusInProcessRound2 Status = "IN_PROCESS_ROUND2"
	StatusInProcessRound3 Status = "IN_PROCESS_ROUND3"
	StatusOnHold          Status = "ON_HOLD"
	StatusRejected        Status = "REJECTED"
	StatusHired           Status = "HIRED"
)

// chain is the forward progression. REJECTED sits outside it.
var chain = []Stage{Applied, Round1, Round2, Round3, OnHold, Hired}

var toStatus = map[Stage]Status{
	Applied:  StatusInProcess,
	Round1:   StatusInProcessRound1,
	Round2:   StatusInProcessRound2,
	Round3:   StatusInProcessRound3,
	OnHold:   StatusOnHold,
	Hired:    StatusHired,
	Rejected: StatusRejected,
}

var fromStatus = func() map[Status]Stage {
	m := make(map[Status]Stage, len(toStatus))
	for s, st := range toStatus {
		m[st] = s
	}
	return m
}()

// Ordered lists every stage, forward chain first.
func Ordered() []Stage {
	out := make([]Stage, 0, len(chain)+1)
	out = append(out, chain...)
	return append(out, Rejected)
}

func (s Stage) String() string { return string(s) }

func (s Stage) Valid() bool {
	_, ok := toStatus[s]
	return ok
}

func (s Stage) Status() Status { return toStatus[s] }

// ParseStatus maps a wire status to its Stage. Unknown values are an error.
func ParseStatus(raw string) (Stage, error) {
	s, ok := fromStatus[Status(raw)]
	if !ok {
		return "", fmt.Errorf("unknown candidate status %q", raw)
	}
	return s, nil
}

// ParseStage accepts either a stage name or a wire status.
func ParseStage(raw string) (Stage, error) {
	if s := Stage(raw); s.Valid() {
		return s, nil
	}
	return ParseStatus(raw)
}

// Round returns the interview round number for ROUND1..ROUND3.
func (s Stage) Round() (int, bool) {
	switch s {
	case Round1:
		return 1, true
	case Round2:
		return 2, true
	case Round3:
		return 3, true
	}
	return 0, false
}

func ForRound(n int) (Stage, error) {
	switch n {
	case 1:
		return Round1, nil
	case 2:
		return Round2, nil
	case 3:
		return Round3, nil
	}
	return "", fmt.Errorf("invalid interview round %d", n)
}

func (s Stage) IsTerminal() bool { return s == Hired || s == Rejected }

// RequiresAssignment reports whether entering s needs a dispatched
// interviewer assignment first.
func (s Stage) RequiresAssignment() bool {
	_, ok := s.Round()
	return ok
}

func chainIndex(s Stage) int {
	for i, c := range chain {
		if c == s {
			return i
		}
	}
	return -1
}

// Next returns the adjacent forward stage, if any.
func Next(from Stage) (Stage, bool) {
	i := chainIndex(from)
	if i < 0 || i == len(chain)-1 {
		return "", false
	}
	return chain[i+1], true
}

// CanTransition reports whether from -> to is a legal edge: the adjacent
// forward stage, or REJECTED from any non-terminal stage.
func CanTransition(from, to Stage) bool {
	if !from.Valid() || !to.Valid() || from == to || from.IsTerminal() {
		return false
	}
	if to == Rejected {
		return true
	}
	next, ok := Next(from)
	return ok && next == to
}

// Targets lists every stage reachable from from in one step.
func Targets(from Stage) []Stage {
	var out []Stage
	for _, s := range Ordered() {
		if CanTransition(from, s) {
			out = append(out, s)
		}
	}
	return out
}

var labels = map[Status]string{
	StatusInProcess:       "Applied",
	StatusInProcessRound1: "Round 1",
	StatusInProcessRound2: "Round 2",
	StatusInProcessRound3: "Round 3",
	StatusOnHold:          "On Hold",
	StatusRejected:        "Rejected",
	StatusHired:           "Hired",
}

// longest alternatives first so IN_PROCESS never shadows IN_PROCESS_ROUNDn
var statusToken = regexp.MustCompile(`\b(IN_PROCESS_ROUND[123]|IN_PROCESS|ON_HOLD|REJECTED|HIRED)\b`)

// Humanize replaces whole status tokens in text with display labels.
// Tokens embedded in longer words are left alone.
func Humanize(text string) string {
	return statusToken.ReplaceAllStringFunc(text, func(tok string) string {
		return labels[Status(tok)]
	})
}

// Label is the display label of a stage.
func (s Stage) Label() string { return labels[s.Status()] }
