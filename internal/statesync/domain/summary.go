package domain

import (
	"fmt"
	"sort"
	"strings"
)

// CountByState tallies records per job state.
func CountByState(records []*JobRecord) map[JobState]int {
	counts := map[JobState]int{}
	for _, record := range records {
		counts[record.State]++
	}
	return counts
}

// SummarizeStates renders per-state counts as a stable one-line summary,
// e.g. "12 RUNNING, 3 PENDING, 1 FAILED". States are ordered by descending
// count, then name.
func SummarizeStates(records []*JobRecord) string {
	counts := CountByState(records)
	if len(counts) == 0 {
		return "no jobs"
	}

	states := make([]JobState, 0, len(counts))
	for state := range counts {
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool {
		if counts[states[i]] != counts[states[j]] {
			return counts[states[i]] > counts[states[j]]
		}
		return states[i] < states[j]
	})

	parts := make([]string, 0, len(states))
	for _, state := range states {
		parts = append(parts, fmt.Sprintf("%d %s", counts[state], state))
	}
	return strings.Join(parts, ", ")
}
