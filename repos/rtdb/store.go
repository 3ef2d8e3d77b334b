package rtdb

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"sort"
	"time"

	"firebase.google.com/go/v4/db"
	"golang.org/x/xerrors"

	"github.com/nvbf/gameday-sync/pkg/countdown"
	"github.com/nvbf/gameday-sync/pkg/schedule"
)

var ErrInvalidKey = errors.New("invalid realtime key")

// serverTimestamp is the placeholder the tree replaces with its own clock.
var serverTimestamp = map[string]string{".sv": "timestamp"}

// Service reads and writes the tournament subtree of the realtime database.
type Service struct {
	client *db.Client
	root   string
}

func NewService(client *db.Client, root string) *Service {
	return &Service{client: client, root: root}
}

func (s *Service) ref(parts ...string) *db.Ref {
	return s.client.NewRef(joinPath(s.root, parts...))
}

func joinPath(root string, parts ...string) string {
	return path.Join(append([]string{"/", root}, parts...)...)
}

func divisionPath(division string) []string {
	return []string{"divisions", division}
}

func matchPath(division string, key schedule.Key) []string {
	return append(divisionPath(division), "schedule", key.String())
}

// ShadowUpdate is the merge payload for the admin fields of one match.
type ShadowUpdate struct {
	AdminName             string
	AdminWinner           string
	AdminPlayersRemaining int
	Notes                 string
	LastUpdated           string
}

func (u ShadowUpdate) fields() map[string]interface{} {
	return map[string]interface{}{
		"adminName":             u.AdminName,
		"adminWinner":           u.AdminWinner,
		"adminPlayersRemaining": u.AdminPlayersRemaining,
		"notes":                 u.Notes,
		"lastUpdated":           u.LastUpdated,
	}
}

func validKeys(division string, key schedule.Key) error {
	if division == "" || key.IsZero() || !key.Valid() || !schedule.StringKey(division).Valid() {
		return ErrInvalidKey
	}
	return nil
}

// UpdateMatch merges the admin fields into the match entry.
func (s *Service) UpdateMatch(ctx context.Context, division string, key schedule.Key, u ShadowUpdate) error {
	if err := validKeys(division, key); err != nil {
		return err
	}
	if err := s.ref(matchPath(division, key)...).Update(ctx, u.fields()); err != nil {
		return xerrors.Errorf("update %s/%s: %w", division, key, err)
	}
	return nil
}

// PushHistory appends rec to the match's history list and returns the new
// child key.
func (s *Service) PushHistory(ctx context.Context, division string, key schedule.Key, rec schedule.HistoryRecord) (string, error) {
	if err := validKeys(division, key); err != nil {
		return "", err
	}
	child, err := s.ref(append(matchPath(division, key), "history")...).Push(ctx, rec)
	if err != nil {
		return "", xerrors.Errorf("push history %s/%s: %w", division, key, err)
	}
	return child.Key, nil
}

// GetDivisionRaw returns the division subtree as stored.
func (s *Service) GetDivisionRaw(ctx context.Context, division string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := s.ref(divisionPath(division)...).Get(ctx, &raw); err != nil {
		return nil, xerrors.Errorf("get division %s: %w", division, err)
	}
	return raw, nil
}

// GetDivision reads and decodes a division.
func (s *Service) GetDivision(ctx context.Context, division string) ([]schedule.StandingsEntry, []schedule.Match, error) {
	raw, err := s.GetDivisionRaw(ctx, division)
	if err != nil {
		return nil, nil, err
	}
	return schedule.DecodeDivision(raw)
}

// GetDivisionNames lists the keys under divisions.
func (s *Service) GetDivisionNames(ctx context.Context) ([]string, error) {
	var raw map[string]json.RawMessage
	if err := s.ref("divisions").Get(ctx, &raw); err != nil {
		return nil, xerrors.Errorf("list divisions: %w", err)
	}
	return divisionNames(raw), nil
}

func divisionNames(raw map[string]json.RawMessage) []string {
	names := make([]string, 0, len(raw))
	for k, v := range raw {
		if string(v) == "null" {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// GetTimer reads the shared countdown. initialized is false when the node
// has never been written.
func (s *Service) GetTimer(ctx context.Context) (countdown.State, bool, error) {
	var raw json.RawMessage
	if err := s.ref("timer").Get(ctx, &raw); err != nil {
		return countdown.State{}, false, xerrors.Errorf("get timer: %w", err)
	}
	return countdown.Decode(raw)
}

// TransactTimer runs fn against the current countdown inside a tree
// transaction. fn may run more than once. Returning ok=false leaves the node
// untouched.
func (s *Service) TransactTimer(ctx context.Context, fn func(cur countdown.State, initialized bool) (next countdown.State, ok bool)) error {
	return s.transactTimer(ctx, fn, false)
}

// TransactTimerStamped is TransactTimer, except that a running countdown is
// written with the tree's own timestamp as its start time.
func (s *Service) TransactTimerStamped(ctx context.Context, fn func(cur countdown.State, initialized bool) (next countdown.State, ok bool)) error {
	return s.transactTimer(ctx, fn, true)
}

func (s *Service) transactTimer(ctx context.Context, fn func(cur countdown.State, initialized bool) (countdown.State, bool), stamp bool) error {
	return s.ref("timer").Transaction(ctx, func(node db.TransactionNode) (interface{}, error) {
		var raw json.RawMessage
		if err := node.Unmarshal(&raw); err != nil {
			return nil, xerrors.Errorf("consistency error. Reading timer node failed: %w", err)
		}
		cur, initialized, err := countdown.Decode(raw)
		if err != nil {
			return nil, err
		}
		next, ok := fn(cur, initialized)
		if !ok {
			if len(raw) == 0 {
				return nil, nil
			}
			return raw, nil
		}
		if stamp && next.Running {
			return stampedTimer(next)
		}
		return next, nil
	})
}

// stampedTimer encodes s with the server timestamp placeholder in place of
// its start time.
func stampedTimer(s countdown.State) (map[string]interface{}, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, xerrors.Errorf("encode timer: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, xerrors.Errorf("encode timer: %w", err)
	}
	m["startTime"] = serverTimestamp
	return m, nil
}

// ProbeServerTime writes the server timestamp placeholder to the reserved
// clock path and reads back the value the tree stored.
func (s *Service) ProbeServerTime(ctx context.Context) (int64, error) {
	ms, _, _, err := s.ProbeServerTimeWindow(ctx, time.Now)
	return ms, err
}

// ProbeServerTimeWindow is ProbeServerTime that also reports the local times
// around the write. The tree stamps the value during the write; the read back
// is not part of the window.
func (s *Service) ProbeServerTimeWindow(ctx context.Context, now func() time.Time) (int64, time.Time, time.Time, error) {
	ref := s.ref("clock", "probe")
	sent := now()
	if err := ref.Set(ctx, serverTimestamp); err != nil {
		return 0, time.Time{}, time.Time{}, xerrors.Errorf("write clock probe: %w", err)
	}
	received := now()
	var ms int64
	if err := ref.Get(ctx, &ms); err != nil {
		return 0, time.Time{}, time.Time{}, xerrors.Errorf("read clock probe: %w", err)
	}
	return ms, sent, received, nil
}
