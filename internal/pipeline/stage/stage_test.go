package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Stage
		want     bool
	}{
		{Applied, Round1, true},
		{Round1, Round2, true},
		{Round2, Round3, true},
		{Round3, OnHold, true},
		{OnHold, Hired, true},

		{Round2, Round1, false},
		{Applied, Round2, false},
		{Applied, Hired, false},
		{Round3, Hired, false},
		{Round1, Round1, false},
		{Hired, OnHold, false},

		{Applied, Rejected, true},
		{Round1, Rejected, true},
		{Round2, Rejected, true},
		{Round3, Rejected, true},
		{OnHold, Rejected, true},
		{Hired, Rejected, false},
		{Rejected, Rejected, false},
		{Rejected, Applied, false},

		{Stage("ROUND4"), Rejected, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTargets(t *testing.T) {
	assert.Equal(t, []Stage{Round1, Rejected}, Targets(Applied))
	assert.Equal(t, []Stage{Hired, Rejected}, Targets(OnHold))
	assert.Empty(t, Targets(Hired))
	assert.Empty(t, Targets(Rejected))
}

func TestStatusRoundTrip(t *testing.T) {
	for _, s := range Ordered() {
		got, err := ParseStatus(string(s.Status()))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("in_process")
	assert.Error(t, err, "status vocabulary is case-sensitive")
	_, err = ParseStatus("")
	assert.Error(t, err)
}

func TestParseStage(t *testing.T) {
	s, err := ParseStage("ON_HOLD")
	require.NoError(t, err)
	assert.Equal(t, OnHold, s)

	s, err = ParseStage("IN_PROCESS_ROUND2")
	require.NoError(t, err)
	assert.Equal(t, Round2, s)

	_, err = ParseStage("ROUND9")
	assert.Error(t, err)
}

func TestRounds(t *testing.T) {
	n, ok := Round3.Round()
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = OnHold.Round()
	assert.False(t, ok)

	s, err := ForRound(2)
	require.NoError(t, err)
	assert.Equal(t, Round2, s)

	_, err = ForRound(4)
	assert.Error(t, err)

	assert.True(t, Round1.RequiresAssignment())
	assert.False(t, Rejected.RequiresAssignment())
	assert.True(t, Hired.IsTerminal())
	assert.False(t, OnHold.IsTerminal())
}

func TestHumanize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"IN_PROCESS", "Applied"},
		{"IN_PROCESS_ROUND1", "Round 1"},
		{"moved from IN_PROCESS_ROUND2 to ON_HOLD", "moved from Round 2 to On Hold"},
		{"HIRED, REJECTED", "Hired, Rejected"},
		{"IN_PROCESS_ROUND4", "IN_PROCESS_ROUND4"},
		{"XIN_PROCESS", "XIN_PROCESS"},
		{"UNHIRED", "UNHIRED"},
		{"hired", "hired"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Humanize(tt.in))
		})
	}
}

func TestFilters(t *testing.T) {
	s, ok := FilterStage(FilterRound1)
	assert.True(t, ok)
	assert.Equal(t, Round1, s)

	_, ok = FilterStage(FilterAll)
	assert.False(t, ok)

	assert.Equal(t, FilterOnHold, FilterFor(OnHold))
	assert.True(t, ValidFilter(FilterAll))
	assert.True(t, ValidFilter(DefaultFilter))
	assert.False(t, ValidFilter("archived"))
	assert.Len(t, Filters(), 8)
}
