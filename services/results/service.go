package results

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nvbf/gameday-sync/pkg/receipt"
	"github.com/nvbf/gameday-sync/pkg/schedule"
	timehelper "github.com/nvbf/gameday-sync/pkg/timeHelper"
	"github.com/nvbf/gameday-sync/repos"
	"github.com/nvbf/gameday-sync/repos/audit"
	"github.com/nvbf/gameday-sync/repos/resend"
	"github.com/nvbf/gameday-sync/repos/rtdb"
	"github.com/nvbf/gameday-sync/repos/sheets"
)

// Validation errors. Their messages are shown to the submitter as is.
var (
	ErrAdminNameRequired    = errors.New("admin name is required")
	ErrPlayersWithoutWinner = errors.New("players remaining must be 0 when no winner is selected")
	ErrNegativePlayers      = errors.New("players remaining cannot be negative")
	ErrDivisionRequired     = errors.New("sheetName is required")
	ErrInvalidMatchKey      = errors.New("invalid firebaseIndex")
	ErrNoDestination        = errors.New("match cannot be located in any store")
)

func isValidation(err error) bool {
	for _, v := range []error{
		ErrAdminNameRequired, ErrPlayersWithoutWinner, ErrNegativePlayers,
		ErrDivisionRequired, ErrInvalidMatchKey, ErrNoDestination,
	} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

// RealtimeWriter is the realtime tree side of a save.
type RealtimeWriter interface {
	UpdateMatch(ctx context.Context, division string, key schedule.Key, u rtdb.ShadowUpdate) error
	PushHistory(ctx context.Context, division string, key schedule.Key, rec schedule.HistoryRecord) (string, error)
}

// SheetWriter is the spreadsheet side of a save.
type SheetWriter interface {
	SaveAdminResult(ctx context.Context, sheet string, row int, w sheets.AdminWrite) error
}

// Refresher reloads a division for connected viewers.
type Refresher interface {
	Refresh(ctx context.Context, division string)
}

// Invalidator drops cached division data.
type Invalidator interface {
	Invalidate(ctx context.Context, division string)
}

// Alerter is told about saves that reached only some stores.
type Alerter interface {
	SendPartialWrite(ctx context.Context, p resend.PartialWrite) error
}

// Options configures a ResultsService. Tree and Sheets may each be nil, but
// not both.
type Options struct {
	Tree        RealtimeWriter
	Sheets      SheetWriter
	Audit       audit.Log
	Refresher   Refresher
	Invalidator Invalidator
	Alerter     Alerter
	Clock       clockwork.Clock
	Timeout     time.Duration
}

type ResultsService struct {
	opts Options
}

func NewResultsService(opts Options) *ResultsService {
	if opts.Audit == nil {
		opts.Audit = audit.Noop{}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &ResultsService{opts: opts}
}

// Validate checks a save before any store is touched.
func (s *ResultsService) Validate(ref MatchRef, p Patch) error {
	if strings.TrimSpace(p.AdminName) == "" {
		return ErrAdminNameRequired
	}
	if p.PlayersRemaining < 0 {
		return ErrNegativePlayers
	}
	if schedule.IsPlaceholder(p.Winner) && p.PlayersRemaining != 0 {
		return ErrPlayersWithoutWinner
	}
	if strings.TrimSpace(ref.SheetName) == "" {
		return ErrDivisionRequired
	}
	if !ref.FirebaseIndex.IsZero() && !ref.FirebaseIndex.Valid() {
		return ErrInvalidMatchKey
	}
	if !s.treeAddressable(ref) && !s.sheetAddressable(ref) {
		return ErrNoDestination
	}
	return nil
}

func (s *ResultsService) treeAddressable(ref MatchRef) bool {
	return s.opts.Tree != nil && ref.FirebaseIndex.Valid()
}

func (s *ResultsService) sheetAddressable(ref MatchRef) bool {
	return s.opts.Sheets != nil && ref.RowIndex > 0
}

// SaveResult writes an admin result to the realtime tree and then to the
// spreadsheet. The writes are independent: each one is attempted and
// reported on its own. Only validation failures are returned as errors.
func (s *ResultsService) SaveResult(ctx context.Context, ref MatchRef, p Patch) (Outcome, error) {
	ref.SheetName = strings.TrimSpace(ref.SheetName)
	p.AdminName = strings.TrimSpace(p.AdminName)
	p.Winner = schedule.NormalizeWinner(p.Winner)
	p.Notes = strings.TrimSpace(p.Notes)
	if err := s.Validate(ref, p); err != nil {
		return Outcome{}, err
	}

	now := s.opts.Clock.Now()
	submission := receipt.NewID()
	rec := schedule.HistoryRecord{
		Name:             p.AdminName,
		Winner:           p.Winner,
		PlayersRemaining: p.PlayersRemaining,
		Notes:            p.Notes,
		Date:             timehelper.ISO(now),
	}
	logger := log.With().
		Str("division", ref.SheetName).
		Str("firebaseIndex", ref.FirebaseIndex.String()).
		Int("rowIndex", ref.RowIndex).
		Str("submission", submission).
		Logger()

	out := Outcome{
		Submission: submission,
		Receipt:    receipt.Encode(ref.SheetName, submission),
	}
	out.Firebase = s.writeTree(ctx, ref, rec, logger)
	out.Sheets = s.writeSheet(ctx, ref, rec, logger)

	failed := out.Firebase.failed() || out.Sheets.failed()
	out.Success = out.Firebase.Success || out.Sheets.Success
	out.Partial = out.Success && failed
	if !out.Success {
		out.Error = firstError(out.Firebase, out.Sheets)
	}

	s.record(ctx, ref, p, now, out, logger)
	if out.Partial {
		s.alert(ctx, ref, out, logger)
	}
	if s.opts.Invalidator != nil {
		s.opts.Invalidator.Invalidate(ctx, ref.SheetName)
	}
	if s.opts.Refresher != nil {
		s.opts.Refresher.Refresh(ctx, ref.SheetName)
	}
	return out, nil
}

func (s *ResultsService) writeTree(ctx context.Context, ref MatchRef, rec schedule.HistoryRecord, logger zerolog.Logger) DestinationResult {
	if !s.treeAddressable(ref) {
		return DestinationResult{Skipped: true}
	}
	// History goes first so the shadow fields never change without a record.
	err := repos.WithTimeout(ctx, s.opts.Timeout, func(ctx context.Context) error {
		if _, err := s.opts.Tree.PushHistory(ctx, ref.SheetName, ref.FirebaseIndex, rec); err != nil {
			return err
		}
		return s.opts.Tree.UpdateMatch(ctx, ref.SheetName, ref.FirebaseIndex, rtdb.ShadowUpdate{
			AdminName:             rec.Name,
			AdminWinner:           rec.Winner,
			AdminPlayersRemaining: rec.PlayersRemaining,
			Notes:                 rec.Notes,
			LastUpdated:           rec.Date,
		})
	})
	return destination(err, "firebase", logger)
}

func (s *ResultsService) writeSheet(ctx context.Context, ref MatchRef, rec schedule.HistoryRecord, logger zerolog.Logger) DestinationResult {
	if !s.sheetAddressable(ref) {
		return DestinationResult{Skipped: true}
	}
	err := repos.WithTimeout(ctx, s.opts.Timeout, func(ctx context.Context) error {
		return s.opts.Sheets.SaveAdminResult(ctx, ref.SheetName, ref.RowIndex, sheets.AdminWrite{
			AdminName:        rec.Name,
			Winner:           rec.Winner,
			PlayersRemaining: rec.PlayersRemaining,
			Notes:            rec.Notes,
			Date:             rec.Date,
		})
	})
	return destination(err, "sheets", logger)
}

func destination(err error, name string, logger zerolog.Logger) DestinationResult {
	if err == nil {
		logger.Info().Str("destination", name).Msg("Result written")
		return DestinationResult{Success: true}
	}
	timedOut := errors.Is(err, repos.ErrStoreTimeout)
	logger.Error().Err(err).Str("destination", name).Bool("timedOut", timedOut).Msg("Result write failed")
	return DestinationResult{TimedOut: timedOut, Error: err.Error()}
}

func firstError(results ...DestinationResult) string {
	for _, r := range results {
		if r.Error != "" {
			return r.Error
		}
	}
	return "no store accepted the result"
}

func (s *ResultsService) record(ctx context.Context, ref MatchRef, p Patch, now time.Time, out Outcome, logger zerolog.Logger) {
	err := repos.WithTimeout(ctx, s.opts.Timeout, func(ctx context.Context) error {
		return s.opts.Audit.Insert(ctx, audit.Record{
			ID:               out.Submission,
			Division:         ref.SheetName,
			RowIndex:         ref.RowIndex,
			FirebaseIndex:    ref.FirebaseIndex.String(),
			Name:             p.AdminName,
			Winner:           p.Winner,
			PlayersRemaining: p.PlayersRemaining,
			Notes:            p.Notes,
			CreatedAt:        now.UTC(),
			FirebaseOK:       out.Firebase.Success,
			SheetsOK:         out.Sheets.Success,
			SheetsSkipped:    out.Sheets.Skipped,
		})
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to record submission")
	}
}

func (s *ResultsService) alert(ctx context.Context, ref MatchRef, out Outcome, logger zerolog.Logger) {
	if s.opts.Alerter == nil {
		return
	}
	err := s.opts.Alerter.SendPartialWrite(ctx, resend.PartialWrite{
		Division:      ref.SheetName,
		RowIndex:      ref.RowIndex,
		FirebaseIndex: ref.FirebaseIndex.String(),
		Submission:    out.Submission,
		FirebaseError: out.Firebase.Error,
		SheetsError:   out.Sheets.Error,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to send partial write alert")
	}
}

// Submission looks up an audit record by the receipt handed out on save.
func (s *ResultsService) Submission(ctx context.Context, code string) (audit.Record, error) {
	division, id, err := receipt.Decode(code)
	if err != nil {
		return audit.Record{}, audit.ErrNotFound
	}
	r, err := s.opts.Audit.Get(ctx, id)
	if err != nil {
		return audit.Record{}, err
	}
	if r.Division != division {
		return audit.Record{}, audit.ErrNotFound
	}
	return r, nil
}

// Submissions lists the latest audit records of a division.
func (s *ResultsService) Submissions(ctx context.Context, division string, limit int) ([]audit.Record, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.opts.Audit.ListByDivision(ctx, division, limit)
}
