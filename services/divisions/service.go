package divisions

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"

	"github.com/nvbf/gameday-sync/pkg/schedule"
	"github.com/nvbf/gameday-sync/repos"
	"github.com/nvbf/gameday-sync/repos/cache"
)

var ErrNoSource = errors.New("no division source configured")

// SheetSource reads divisions from the spreadsheet.
type SheetSource interface {
	GetDivisionNames(ctx context.Context) ([]string, error)
	GetStandings(ctx context.Context, sheet string) ([]schedule.StandingsEntry, error)
	GetSchedule(ctx context.Context, sheet string) ([]schedule.Match, error)
}

// TreeSource reads divisions from the realtime tree.
type TreeSource interface {
	GetDivisionNames(ctx context.Context) ([]string, error)
	GetDivision(ctx context.Context, division string) ([]schedule.StandingsEntry, []schedule.Match, error)
}

// Options configures a DivisionsService. Reads for the HTTP surface prefer
// the spreadsheet; the live channel prefers the realtime tree.
type Options struct {
	Sheets          SheetSource
	Tree            TreeSource
	Cache           cache.DivisionCache
	Settings        schedule.Settings
	DefaultDivision string
	Timeout         time.Duration
}

type DivisionsService struct {
	opts Options
}

func NewDivisionsService(opts Options) *DivisionsService {
	if opts.Cache == nil {
		opts.Cache = cache.Noop{}
	}
	if opts.DefaultDivision == "" {
		opts.DefaultDivision = "Sheet1"
	}
	return &DivisionsService{opts: opts}
}

func (s *DivisionsService) DefaultDivision() string { return s.opts.DefaultDivision }

func (s *DivisionsService) division(name string) string {
	if name == "" {
		return s.opts.DefaultDivision
	}
	return name
}

// AllData returns settings, standings and schedule of a division, from the
// cache when possible.
func (s *DivisionsService) AllData(ctx context.Context, division string) (schedule.DivisionData, error) {
	division = s.division(division)
	if data, ok, err := s.opts.Cache.Get(ctx, division); err != nil {
		log.Warn().Err(err).Str("division", division).Msg("Division cache read failed")
	} else if ok {
		return data, nil
	}

	data, err := s.Load(ctx, division)
	if err != nil {
		return schedule.DivisionData{}, err
	}
	if err := s.opts.Cache.Set(ctx, division, data); err != nil {
		log.Warn().Err(err).Str("division", division).Msg("Division cache write failed")
	}
	return data, nil
}

type loadFunc func(ctx context.Context, division string) ([]schedule.StandingsEntry, []schedule.Match, error)

func (s *DivisionsService) fromSheets(ctx context.Context, division string) ([]schedule.StandingsEntry, []schedule.Match, error) {
	standings, err := s.opts.Sheets.GetStandings(ctx, division)
	if err != nil {
		return nil, nil, err
	}
	matches, err := s.opts.Sheets.GetSchedule(ctx, division)
	if err != nil {
		return nil, nil, err
	}
	return standings, matches, nil
}

func (s *DivisionsService) fromTree(ctx context.Context, division string) ([]schedule.StandingsEntry, []schedule.Match, error) {
	return s.opts.Tree.GetDivision(ctx, division)
}

func (s *DivisionsService) sheetsFirst() []loadFunc {
	var sources []loadFunc
	if s.opts.Sheets != nil {
		sources = append(sources, s.fromSheets)
	}
	if s.opts.Tree != nil {
		sources = append(sources, s.fromTree)
	}
	return sources
}

func (s *DivisionsService) treeFirst() []loadFunc {
	var sources []loadFunc
	if s.opts.Tree != nil {
		sources = append(sources, s.fromTree)
	}
	if s.opts.Sheets != nil {
		sources = append(sources, s.fromSheets)
	}
	return sources
}

// Load reads a division from its source, bypassing the cache. The
// spreadsheet is tried first; the realtime tree serves when the spreadsheet
// read fails.
func (s *DivisionsService) Load(ctx context.Context, division string) (schedule.DivisionData, error) {
	return s.load(ctx, s.division(division), s.sheetsFirst())
}

// Realtime is a loader for the live channel. It reads the realtime tree
// first, where a saved result lands as soon as it is written, and falls back
// to the spreadsheet.
func (s *DivisionsService) Realtime() *RealtimeLoader {
	return &RealtimeLoader{s: s}
}

type RealtimeLoader struct {
	s *DivisionsService
}

func (l *RealtimeLoader) Load(ctx context.Context, division string) (schedule.DivisionData, error) {
	return l.s.load(ctx, l.s.division(division), l.s.treeFirst())
}

// load tries each source in turn, each under its own timeout, and returns
// the first success. The error of the last source is returned when all fail.
func (s *DivisionsService) load(ctx context.Context, division string, sources []loadFunc) (schedule.DivisionData, error) {
	if len(sources) == 0 {
		return schedule.DivisionData{}, xerrors.Errorf("load division %s: %w", division, ErrNoSource)
	}
	data := schedule.DivisionData{Settings: s.opts.Settings}

	var err error
	for i, source := range sources {
		err = repos.WithTimeout(ctx, s.opts.Timeout, func(ctx context.Context) error {
			standings, matches, err := source(ctx, division)
			if err != nil {
				return err
			}
			data.Standings, data.Schedule = standings, matches
			return nil
		})
		if err == nil {
			break
		}
		if i < len(sources)-1 {
			log.Warn().Err(err).Str("division", division).Msg("Division source failed, trying the next one")
		}
	}
	if err != nil {
		return schedule.DivisionData{}, xerrors.Errorf("load division %s: %w", division, err)
	}
	if data.Standings == nil {
		data.Standings = []schedule.StandingsEntry{}
	}
	if data.Schedule == nil {
		data.Schedule = []schedule.Match{}
	}
	return data, nil
}

// Standings returns only the standings of a division.
func (s *DivisionsService) Standings(ctx context.Context, division string) ([]schedule.StandingsEntry, error) {
	data, err := s.AllData(ctx, division)
	if err != nil {
		return nil, err
	}
	return data.Standings, nil
}

// Divisions lists the division names of the active source.
func (s *DivisionsService) Divisions(ctx context.Context) ([]string, error) {
	var names []string
	err := repos.WithTimeout(ctx, s.opts.Timeout, func(ctx context.Context) error {
		var err error
		switch {
		case s.opts.Sheets != nil:
			names, err = s.opts.Sheets.GetDivisionNames(ctx)
		case s.opts.Tree != nil:
			names, err = s.opts.Tree.GetDivisionNames(ctx)
		default:
			err = ErrNoSource
		}
		return err
	})
	if err != nil {
		return nil, xerrors.Errorf("list divisions: %w", err)
	}
	return names, nil
}

// Invalidate drops the cached payload of a division.
func (s *DivisionsService) Invalidate(ctx context.Context, division string) {
	if err := s.opts.Cache.Invalidate(ctx, s.division(division)); err != nil {
		log.Warn().Err(err).Str("division", division).Msg("Division cache invalidation failed")
	}
}
