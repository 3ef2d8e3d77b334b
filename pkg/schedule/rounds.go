package schedule

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// PlayoffPrefix marks round labels that are playoff stages rather than clock times.
const PlayoffPrefix = "P"

// textSortLast is the sort value of a missing round label.
const textSortLast = "Zz"

var (
	looksLikeTime = regexp.MustCompile(`^\d.*:`)
	clockTime     = regexp.MustCompile(`(?i)(\d+):(\d+)\s*(AM|PM)?`)
	firstNumber   = regexp.MustCompile(`\d+`)
)

// RoundKey is the sort key of a round label.
type RoundKey struct {
	IsTime    bool
	SortValue string
}

// ParseRoundTime turns a round label into a sort key. Clock times become a
// zero-padded 24 hour "HH:MM"; anything else sorts by its literal text.
func ParseRoundTime(label string) RoundKey {
	if strings.TrimSpace(label) == "" {
		return RoundKey{SortValue: textSortLast}
	}
	if !looksLikeTime.MatchString(label) {
		return RoundKey{SortValue: label}
	}
	parts := clockTime.FindStringSubmatch(label)
	if parts == nil {
		return RoundKey{SortValue: label}
	}
	hour, err := strconv.Atoi(parts[1])
	if err != nil {
		return RoundKey{SortValue: label}
	}
	switch strings.ToUpper(parts[3]) {
	case "PM":
		if hour != 12 {
			hour += 12
		}
	case "AM":
		if hour == 12 {
			hour = 0
		}
	}
	return RoundKey{IsTime: true, SortValue: fmt.Sprintf("%02d:%s", hour, parts[2])}
}

// CompareRoundTimes orders clock times before text, then by sort value.
func CompareRoundTimes(a, b string) int {
	ka, kb := ParseRoundTime(a), ParseRoundTime(b)
	if ka.IsTime != kb.IsTime {
		if ka.IsTime {
			return -1
		}
		return 1
	}
	return strings.Compare(ka.SortValue, kb.SortValue)
}

// SortMatches orders matches by round label, keeping store order for ties.
func SortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return CompareRoundTimes(matches[i].RoundTime, matches[j].RoundTime) < 0
	})
}

// BuildRoundList derives the ordered, de-duplicated list of round labels:
// clock rounds chronologically, then playoff rounds by their numeric suffix.
func BuildRoundList(matches []Match) []string {
	seen := map[string]bool{}
	var regular, playoff []string
	for _, m := range matches {
		label := strings.TrimSpace(m.RoundTime)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		if strings.HasPrefix(label, PlayoffPrefix) {
			playoff = append(playoff, label)
		} else {
			regular = append(regular, label)
		}
	}

	sort.SliceStable(regular, func(i, j int) bool {
		return CompareRoundTimes(regular[i], regular[j]) < 0
	})
	sort.SliceStable(playoff, func(i, j int) bool {
		return playoffNumber(playoff[i]) < playoffNumber(playoff[j])
	})

	return append(regular, playoff...)
}

func playoffNumber(label string) int {
	n, err := strconv.Atoi(firstNumber.FindString(label))
	if err != nil {
		return 0
	}
	return n
}
