package schedule

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

func textValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '{', '[':
		return ""
	}
	return string(raw)
}

func floatValue(raw json.RawMessage) float64 {
	s := strings.TrimSpace(textValue(raw))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func intValue(raw json.RawMessage) int {
	s := strings.TrimSpace(textValue(raw))
	if s == "" {
		return 0
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	return int(floatValue(raw))
}

// sortedKeys orders realtime tree object keys the way the tree does:
// integer keys ascending, then the rest lexicographically. Push IDs are
// time-ordered, so lexicographic order is insertion order.
func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ki, kj := keyFromObject(keys[i]), keyFromObject(keys[j])
		switch {
		case ki.index && kj.index:
			a, _ := strconv.Atoi(ki.raw)
			b, _ := strconv.Atoi(kj.raw)
			return a < b
		case ki.index != kj.index:
			return ki.index
		}
		return keys[i] < keys[j]
	})
	return keys
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// DecodeHistory reads a history list stored either as a JSON array or as a
// push-keyed object. Entries that are not objects are skipped.
func DecodeHistory(raw json.RawMessage) []HistoryRecord {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil
		}
		for _, k := range sortedKeys(obj) {
			items = append(items, obj[k])
		}
	default:
		return nil
	}

	var out []HistoryRecord
	for _, item := range items {
		var rec HistoryRecord
		if isNull(item) || json.Unmarshal(item, &rec) != nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// DecodeSchedule normalizes a realtime schedule subtree into an ordered list.
// Array positions and object keys become the FirebaseIndex of each match.
func DecodeSchedule(raw json.RawMessage) ([]Match, error) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return []Match{}, nil
	}
	out := []Match{}
	appendMatch := func(key Key, item json.RawMessage) error {
		if isNull(item) {
			return nil
		}
		var m Match
		if err := json.Unmarshal(item, &m); err != nil {
			return xerrors.Errorf("consistency error. schedule entry %s: %w", key, err)
		}
		if m.Team1 == "" && m.Team2 == "" {
			return nil
		}
		m.FirebaseIndex = key
		out = append(out, m)
		return nil
	}

	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, xerrors.Errorf("consistency error. schedule array: %w", err)
		}
		for i, item := range items {
			if err := appendMatch(IndexKey(i), item); err != nil {
				return nil, err
			}
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, xerrors.Errorf("consistency error. schedule object: %w", err)
		}
		for _, k := range sortedKeys(obj) {
			if err := appendMatch(keyFromObject(k), obj[k]); err != nil {
				return nil, err
			}
		}
	default:
		return nil, xerrors.Errorf("consistency error. schedule is neither array nor object")
	}
	return out, nil
}

// DecodeStandings reads a standings subtree, dropping rows without a team.
func DecodeStandings(raw json.RawMessage) ([]StandingsEntry, error) {
	raw = bytes.TrimSpace(raw)
	out := []StandingsEntry{}
	if isNull(raw) {
		return out, nil
	}
	var items []json.RawMessage
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, xerrors.Errorf("consistency error. standings array: %w", err)
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, xerrors.Errorf("consistency error. standings object: %w", err)
		}
		for _, k := range sortedKeys(obj) {
			items = append(items, obj[k])
		}
	default:
		return nil, xerrors.Errorf("consistency error. standings is neither array nor object")
	}
	for _, item := range items {
		var e StandingsEntry
		if isNull(item) || json.Unmarshal(item, &e) != nil || e.Team == "" {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// DecodeDivision splits a division node into standings and schedule.
func DecodeDivision(raw json.RawMessage) ([]StandingsEntry, []Match, error) {
	var node struct {
		Standings json.RawMessage `json:"standings"`
		Schedule  json.RawMessage `json:"schedule"`
	}
	if !isNull(raw) {
		if err := json.Unmarshal(raw, &node); err != nil {
			return nil, nil, xerrors.Errorf("consistency error. division node: %w", err)
		}
	}
	standings, err := DecodeStandings(node.Standings)
	if err != nil {
		return nil, nil, err
	}
	matches, err := DecodeSchedule(node.Schedule)
	if err != nil {
		return nil, nil, err
	}
	return standings, matches, nil
}
