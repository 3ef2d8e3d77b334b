package countdown

import "strings"

// UnknownRound is shown when the schedule has no round labels.
const UnknownRound = "Unknown Round"

func roundIndex(rounds []string, current string) int {
	current = strings.TrimSpace(current)
	for i, r := range rounds {
		if strings.TrimSpace(r) == current {
			return i
		}
	}
	return -1
}

// NextRound moves one round forward, stopping at the last round. An unknown
// current round counts as the first. The bool is false when nothing changes.
func NextRound(rounds []string, current string) (string, bool) {
	idx := roundIndex(rounds, current)
	if idx == -1 {
		idx = 0
	}
	if idx >= len(rounds)-1 {
		return current, false
	}
	return rounds[idx+1], true
}

// PreviousRound moves one round back, stopping at the first round.
func PreviousRound(rounds []string, current string) (string, bool) {
	idx := roundIndex(rounds, current)
	if idx <= 0 {
		return current, false
	}
	return rounds[idx-1], true
}

// EnsureRound replaces a current round that is not in the list with the
// first round, or UnknownRound for an empty list.
func EnsureRound(rounds []string, current string) (string, bool) {
	if roundIndex(rounds, current) != -1 {
		return current, false
	}
	want := UnknownRound
	if len(rounds) > 0 {
		want = rounds[0]
	}
	if want == current {
		return current, false
	}
	return want, true
}

// DisplayRound is the label shown for the current round.
func DisplayRound(rounds []string, current string) string {
	if strings.TrimSpace(current) != "" {
		return current
	}
	if len(rounds) > 0 {
		return rounds[0]
	}
	return UnknownRound
}
