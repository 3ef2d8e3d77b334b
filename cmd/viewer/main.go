package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/nvbf/gameday-sync/pkg/clocksync"
	"github.com/nvbf/gameday-sync/pkg/config"
	"github.com/nvbf/gameday-sync/pkg/logging"
	"github.com/nvbf/gameday-sync/pkg/schedule"
	timehelper "github.com/nvbf/gameday-sync/pkg/timeHelper"
	"github.com/nvbf/gameday-sync/viewer"
)

func main() {
	cfg := config.LoadViewer()
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	dialer, err := viewer.NewDialer(cfg.ServerURL, cfg.ProbeTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid server url")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	local := clockwork.NewRealClock()
	server := clocksync.NewServerClock(local, clocksync.NewEstimator(), cfg.ProbeTimeout)
	go server.Run(ctx, dialer, cfg.ClockSyncInterval)

	term := &terminal{out: os.Stdout, server: server}
	cd := viewer.NewCountdown(local, server, false, term.tick, nil)
	session := viewer.NewSession(dialer, cd, term.show)
	session.Do(func(s *viewer.State) {
		s.Filters.Team = cfg.Team
		s.Filters.Court = cfg.Court
	})

	for ctx.Err() == nil {
		if err := session.Watch(ctx, cfg.Division); err != nil {
			log.Warn().Err(err).Str("division", cfg.Division).Msg("Failed to subscribe")
		} else {
			select {
			case <-session.Done():
			case <-ctx.Done():
			}
		}
		select {
		case <-ctx.Done():
		case <-time.After(cfg.ReconnectDelay):
		}
	}
	session.Close()
}

// terminal redraws the whole screen on every change.
type terminal struct {
	out    io.Writer
	server *clocksync.ServerClock

	mu        sync.Mutex
	clock     viewer.Display
	division  string
	filters   viewer.Filters
	standings []schedule.StandingsEntry
	rows      []schedule.Match
	next      int
}

func (t *terminal) tick(d viewer.Display) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clock = d
	t.draw()
}

func (t *terminal) show(s *viewer.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.division = s.Division
	t.filters = s.Filters
	t.standings = s.Data.Standings
	t.rows = s.PublicSchedule()
	t.next = s.NextUnplayedIndex()
	t.draw()
}

func (t *terminal) draw() {
	fmt.Fprint(t.out, "\033[H\033[2J")
	fmt.Fprintf(t.out, "%s  (team: %s, court: %s)\n", t.division, t.filters.Team, t.filters.Court)

	switch {
	case !t.clock.ClockVisible:
	case t.clock.Hidden:
		fmt.Fprintln(t.out)
	default:
		label := ""
		if t.clock.AfterRound {
			label = " after round"
		}
		fmt.Fprintf(t.out, "Timer %s%s\n", t.clock.Text, label)
	}
	fmt.Fprintf(t.out, "Server time %s\n\n", timehelper.FromMillis(t.server.NowMillis()).Format("15:04:05"))

	w := tabwriter.NewWriter(t.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTeam\tRecord\tPoints")
	for _, e := range t.standings {
		fmt.Fprintf(w, "%d\t%s\t%s\t%g\n", e.Rank, e.Team, e.Record, e.Points)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "\tRound\tCourt\tMatch\tWinner")
	for i, m := range t.rows {
		marker := ""
		if i == t.next {
			marker = ">"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s vs %s\t%s\n", marker, m.RoundTime, m.Court, m.Team1, m.Team2, m.Winner)
	}
	w.Flush()
}
