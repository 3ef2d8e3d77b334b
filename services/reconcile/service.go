package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/xorcare/pointer"

	"github.com/nvbf/gameday-sync/pkg/schedule"
	timehelper "github.com/nvbf/gameday-sync/pkg/timeHelper"
	"github.com/nvbf/gameday-sync/repos"
	"github.com/nvbf/gameday-sync/repos/resend"
	"github.com/nvbf/gameday-sync/repos/rtdb"
	"github.com/nvbf/gameday-sync/repos/sheets"
)

var (
	ErrAlreadyRunning = errors.New("reconciliation already running")
	ErrNotConfigured  = errors.New("reconciliation needs both stores")
	ErrNoReport       = errors.New("no reconciliation has run")
)

// SheetStore is the spreadsheet side of a reconciliation.
type SheetStore interface {
	GetDivisionNames(ctx context.Context) ([]string, error)
	GetSchedule(ctx context.Context, sheet string) ([]schedule.Match, error)
	GetHistories(ctx context.Context, sheet string, fromRow, toRow int) (map[int][]schedule.HistoryRecord, error)
	SaveAdminResult(ctx context.Context, sheet string, row int, w sheets.AdminWrite) error
}

// TreeStore is the realtime tree side of a reconciliation.
type TreeStore interface {
	GetDivision(ctx context.Context, division string) ([]schedule.StandingsEntry, []schedule.Match, error)
	UpdateMatch(ctx context.Context, division string, key schedule.Key, u rtdb.ShadowUpdate) error
	PushHistory(ctx context.Context, division string, key schedule.Key, rec schedule.HistoryRecord) (string, error)
}

// Alerter is told about divergences found by a run.
type Alerter interface {
	SendDivergence(ctx context.Context, r resend.DivergenceReport) error
}

// Refresher reloads a division for connected viewers.
type Refresher interface {
	Refresh(ctx context.Context, division string)
}

type Options struct {
	Sheets    SheetStore
	Tree      TreeStore
	Alerter   Alerter
	Refresher Refresher
	// Repair copies the newest admin result onto the stale store. Without
	// it divergences are only reported.
	Repair  bool
	Clock   clockwork.Clock
	Timeout time.Duration
}

type ReconcileService struct {
	opts Options

	run  sync.Mutex
	mu   sync.RWMutex
	last *Report
}

func NewReconcileService(opts Options) *ReconcileService {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &ReconcileService{opts: opts}
}

// Last returns the report of the latest finished run.
func (s *ReconcileService) Last() (Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Report{}, ErrNoReport
	}
	return *s.last, nil
}

// Run checks every division once. Only one run is active at a time.
func (s *ReconcileService) Run(ctx context.Context) (Report, error) {
	if s.opts.Sheets == nil || s.opts.Tree == nil {
		return Report{}, ErrNotConfigured
	}
	if !s.run.TryLock() {
		return Report{}, ErrAlreadyRunning
	}
	defer s.run.Unlock()

	report := Report{StartedAt: s.opts.Clock.Now().UTC(), Repair: s.opts.Repair, Divisions: []DivisionReport{}}
	var names []string
	err := repos.WithTimeout(ctx, s.opts.Timeout, func(ctx context.Context) error {
		var err error
		names, err = s.opts.Sheets.GetDivisionNames(ctx)
		return err
	})
	if err != nil {
		return Report{}, err
	}

	for _, name := range names {
		dr := s.division(ctx, name)
		report.Checked += dr.Checked
		report.Diverged += len(dr.Divergences)
		for _, d := range dr.Divergences {
			if d.Repaired {
				report.Repaired++
			}
		}
		report.Divisions = append(report.Divisions, dr)
	}
	report.FinishedAt = s.opts.Clock.Now().UTC()

	log.Info().
		Str("day", timehelper.DateString(report.StartedAt)).
		Int("checked", report.Checked).
		Int("diverged", report.Diverged).
		Int("repaired", report.Repaired).
		Msg("Reconciliation finished")

	s.alert(ctx, report)
	s.mu.Lock()
	s.last = &report
	s.mu.Unlock()
	return report, nil
}

func (s *ReconcileService) division(ctx context.Context, name string) DivisionReport {
	dr := DivisionReport{Division: name, Divergences: []Divergence{}}
	sheetRows, treeRows, err := s.load(ctx, name)
	if err != nil {
		log.Warn().Err(err).Str("division", name).Msg("Failed to load division for reconciliation")
		dr.Error = pointer.String(err.Error())
		return dr
	}
	dr.Checked = len(sheetRows)

	repaired := false
	for _, d := range Compare(name, sheetRows, treeRows) {
		if s.opts.Repair {
			s.repair(ctx, &d)
			repaired = repaired || d.Repaired
		}
		log.Warn().
			Str("division", name).
			Str("match", d.Match).
			Int("rowIndex", d.RowIndex).
			Str("firebaseIndex", d.FirebaseIndex.String()).
			Str("newest", string(d.Newest)).
			Bool("repaired", d.Repaired).
			Msg("Stores diverge")
		dr.Divergences = append(dr.Divergences, d)
	}
	if repaired && s.opts.Refresher != nil {
		s.opts.Refresher.Refresh(ctx, name)
	}
	return dr
}

func (s *ReconcileService) load(ctx context.Context, name string) ([]schedule.Match, []schedule.Match, error) {
	var sheetRows, treeRows []schedule.Match
	err := repos.WithTimeout(ctx, s.opts.Timeout, func(ctx context.Context) error {
		var err error
		sheetRows, err = s.opts.Sheets.GetSchedule(ctx, name)
		if err != nil || len(sheetRows) == 0 {
			return err
		}
		histories, err := s.opts.Sheets.GetHistories(ctx, name, sheetRows[0].RowIndex, sheetRows[len(sheetRows)-1].RowIndex)
		if err != nil {
			return err
		}
		for i := range sheetRows {
			sheetRows[i].History = histories[sheetRows[i].RowIndex]
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	err = repos.WithTimeout(ctx, s.opts.Timeout, func(ctx context.Context) error {
		var err error
		_, treeRows, err = s.opts.Tree.GetDivision(ctx, name)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return sheetRows, treeRows, nil
}

// repair writes the newest side's admin copy onto the other store, as a new
// history record carrying the original date.
func (s *ReconcileService) repair(ctx context.Context, d *Divergence) {
	var src *Shadow
	switch d.Newest {
	case SideSheets:
		src = d.Sheet
	case SideTree:
		src = d.Tree
	default:
		return
	}
	rec := schedule.HistoryRecord{
		Name:             src.AdminName,
		Winner:           src.AdminWinner,
		PlayersRemaining: src.AdminPlayersRemaining,
		Notes:            src.Notes,
		Date:             timehelper.ISO(d.NewestDate),
	}

	var err error
	switch d.Newest {
	case SideSheets:
		if !d.FirebaseIndex.Valid() {
			err = rtdb.ErrInvalidKey
			break
		}
		err = repos.WithTimeout(ctx, s.opts.Timeout, func(ctx context.Context) error {
			if _, err := s.opts.Tree.PushHistory(ctx, d.Division, d.FirebaseIndex, rec); err != nil {
				return err
			}
			return s.opts.Tree.UpdateMatch(ctx, d.Division, d.FirebaseIndex, rtdb.ShadowUpdate{
				AdminName:             rec.Name,
				AdminWinner:           rec.Winner,
				AdminPlayersRemaining: rec.PlayersRemaining,
				Notes:                 rec.Notes,
				LastUpdated:           rec.Date,
			})
		})
	case SideTree:
		if d.Sheet == nil || d.RowIndex < 1 {
			err = sheets.ErrInvalidRow
			break
		}
		err = repos.WithTimeout(ctx, s.opts.Timeout, func(ctx context.Context) error {
			return s.opts.Sheets.SaveAdminResult(ctx, d.Division, d.RowIndex, sheets.AdminWrite{
				AdminName:        rec.Name,
				Winner:           rec.Winner,
				PlayersRemaining: rec.PlayersRemaining,
				Notes:            rec.Notes,
				Date:             rec.Date,
			})
		})
	}
	if err != nil {
		log.Error().Err(err).Str("division", d.Division).Str("match", d.Match).Msg("Failed to repair divergence")
		d.Error = pointer.String(err.Error())
		return
	}
	d.Repaired = true
}

func (s *ReconcileService) alert(ctx context.Context, report Report) {
	if s.opts.Alerter == nil || report.Diverged == 0 {
		return
	}
	out := resend.DivergenceReport{Checked: report.Checked, Repaired: report.Repaired}
	for _, dr := range report.Divisions {
		for _, d := range dr.Divergences {
			out.Divergences = append(out.Divergences, resend.Divergence{
				Division: d.Division,
				Match:    d.Match,
				RowIndex: d.RowIndex,
				Detail:   d.Detail(),
			})
		}
	}
	if err := s.opts.Alerter.SendDivergence(ctx, out); err != nil {
		log.Warn().Err(err).Msg("Failed to send divergence alert")
	}
}
