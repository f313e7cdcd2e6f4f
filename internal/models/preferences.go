package models

import (
	"sort"

	"hiring-pipeline/internal/pipeline/stage"
)

// UIState holds one job's view preferences. It is durable but never
// authoritative over candidate data.
type UIState struct {
	ActiveFilter         string  `json:"activeFilter"`
	ExpandedCandidateIDs []int64 `json:"expandedCandidateIds"`
}

func DefaultUIState() UIState {
	return UIState{ActiveFilter: stage.DefaultFilter, ExpandedCandidateIDs: []int64{}}
}

func (u UIState) IsExpanded(candidateID int64) bool {
	for _, id := range u.ExpandedCandidateIDs {
		if id == candidateID {
			return true
		}
	}
	return false
}

// Toggle returns a copy with candidateID's expansion flipped. The id set
// stays sorted and unique.
func (u UIState) Toggle(candidateID int64) UIState {
	ids := make([]int64, 0, len(u.ExpandedCandidateIDs)+1)
	found := false
	for _, id := range u.ExpandedCandidateIDs {
		if id == candidateID {
			found = true
			continue
		}
		ids = append(ids, id)
	}
	if !found {
		ids = append(ids, candidateID)
	}
	out := UIState{ActiveFilter: u.ActiveFilter, ExpandedCandidateIDs: ids}
	return out.Normalize()
}

// Normalize repairs state loaded from storage: unknown filters fall back to
// the default and duplicate ids are dropped.
func (u UIState) Normalize() UIState {
	if !stage.ValidFilter(u.ActiveFilter) {
		u.ActiveFilter = stage.DefaultFilter
	}
	seen := make(map[int64]bool, len(u.ExpandedCandidateIDs))
	ids := make([]int64, 0, len(u.ExpandedCandidateIDs))
	for _, id := range u.ExpandedCandidateIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	u.ExpandedCandidateIDs = ids
	return u
}
