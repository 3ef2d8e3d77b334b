package reconcile

import (
	"fmt"
	"time"

	"github.com/nvbf/gameday-sync/pkg/schedule"
	timehelper "github.com/nvbf/gameday-sync/pkg/timeHelper"
)

// newest returns the latest history date of m, falling back to its
// lastUpdated field.
func newest(m schedule.Match) (time.Time, bool) {
	var best time.Time
	found := false
	for _, h := range m.History {
		t, ok := timehelper.ParseISO(h.Date)
		if !ok {
			continue
		}
		if !found || t.After(best) {
			best, found = t, true
		}
	}
	if found {
		return best, true
	}
	if t, ok := timehelper.ParseISO(m.LastUpdated); ok {
		return t, true
	}
	return time.Time{}, false
}

// decide picks the store whose latest write is newer. A store with a dated
// write beats one without; equal dates decide nothing.
func decide(sheet, tree *schedule.Match) (Side, time.Time) {
	var st, tt time.Time
	var sok, tok bool
	if sheet != nil {
		st, sok = newest(*sheet)
	}
	if tree != nil {
		tt, tok = newest(*tree)
	}
	switch {
	case sok && (!tok || st.After(tt)):
		return SideSheets, st
	case tok && (!sok || tt.After(st)):
		return SideTree, tt
	}
	return SideNone, time.Time{}
}

// Compare aligns the sheet rows and the tree rows of a division by their
// realtime key and returns the matches whose admin copy differs. A match
// missing from one store differs when the other store has an admin result.
func Compare(division string, sheetRows, treeRows []schedule.Match) []Divergence {
	tree := make(map[string]*schedule.Match, len(treeRows))
	var treeOrder []string
	for i := range treeRows {
		k := treeRows[i].FirebaseIndex.String()
		if _, dup := tree[k]; !dup {
			treeOrder = append(treeOrder, k)
		}
		tree[k] = &treeRows[i]
	}

	var out []Divergence
	seen := map[string]bool{}
	for i := range sheetRows {
		s := &sheetRows[i]
		k := s.FirebaseIndex.String()
		seen[k] = true
		if d, ok := compareOne(division, s, tree[k]); ok {
			out = append(out, d)
		}
	}
	for _, k := range treeOrder {
		if seen[k] {
			continue
		}
		if d, ok := compareOne(division, nil, tree[k]); ok {
			out = append(out, d)
		}
	}
	return out
}

func compareOne(division string, sheet, tree *schedule.Match) (Divergence, bool) {
	var ss, ts Shadow
	if sheet != nil {
		ss = shadowOf(*sheet)
	}
	if tree != nil {
		ts = shadowOf(*tree)
	}
	if ss == ts {
		return Divergence{}, false
	}

	d := Divergence{Division: division}
	if sheet != nil {
		d.Match = sheet.Match
		d.RowIndex = sheet.RowIndex
		d.FirebaseIndex = sheet.FirebaseIndex
		d.Sheet = &ss
	}
	if tree != nil {
		if d.Match == "" {
			d.Match = tree.Match
		}
		d.FirebaseIndex = tree.FirebaseIndex
		d.Tree = &ts
	}
	d.Newest, d.NewestDate = decide(sheet, tree)
	return d, true
}

func describe(s *Shadow) string {
	if s == nil {
		return "missing"
	}
	return fmt.Sprintf("winner=%q players=%d by %q", s.AdminWinner, s.AdminPlayersRemaining, s.AdminName)
}

// Detail is a one-line summary for alerts.
func (d Divergence) Detail() string {
	out := fmt.Sprintf("sheet %s, firebase %s", describe(d.Sheet), describe(d.Tree))
	if d.Newest != SideNone {
		out += fmt.Sprintf(", newest in %s", d.Newest)
	}
	if d.Repaired {
		out += ", repaired"
	}
	if d.Error != nil {
		out += ", repair failed: " + *d.Error
	}
	return out
}
