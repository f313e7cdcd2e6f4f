package stage

// Filter tab ids persisted in UI preferences.
const (
	FilterAll      = "all"
	FilterApplied  = "applied"
	FilterRound1   = "round1"
	FilterRound2   = "round2"
	FilterRound3   = "round3"
	FilterOnHold   = "onhold"
	FilterHired    = "hired"
	FilterRejected = "rejected"

	DefaultFilter = FilterApplied
)

var filterStages = map[string]Stage{
	FilterApplied:  Applied,
	FilterRound1:   Round1,
	FilterRound2:   Round2,
	FilterRound3:   Round3,
	FilterOnHold:   OnHold,
	FilterHired:    Hired,
	FilterRejected: Rejected,
}

// FilterStage returns the stage a filter id selects. "all" selects no single
// stage and reports false.
func FilterStage(id string) (Stage, bool) {
	s, ok := filterStages[id]
	return s, ok
}

func FilterFor(s Stage) string {
	for id, fs := range filterStages {
		if fs == s {
			return id
		}
	}
	return FilterAll
}

func ValidFilter(id string) bool {
	if id == FilterAll {
		return true
	}
	_, ok := filterStages[id]
	return ok
}

// Filters lists the tab ids in display order.
func Filters() []string {
	return []string{FilterAll, FilterApplied, FilterRound1, FilterRound2, FilterRound3, FilterOnHold, FilterHired, FilterRejected}
}
