package viewer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvbf/gameday-sync/services/live"
)

type fixedClock int64

func (c fixedClock) NowMillis() int64 { return int64(c) }

func TestDialerAgainstLiveServer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := live.NewHub()
	hub.PublishDivision("Div A", json.RawMessage(`{"settings":{"is_tie_allowed":false},"standings":[],"schedule":[]}`))
	clock := fixedClock(1_700_000_000_000)
	r := gin.New()
	live.NewHTTPHandler(live.HTTPOptions{
		Hub:         hub,
		Connections: live.NewConnectionManager(hub, clock, live.DefaultConnectionConfig()),
		Clock:       clock,
		Router:      r.Group("/api"),
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	d, err := NewDialer(srv.URL+"/api/", time.Second)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ms, err := d.ProbeServerTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000_000), ms)

	stream, err := d.Subscribe(ctx, "Div A")
	require.NoError(t, err)
	defer stream.Close()
	m, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, live.TypeDivision, m.Type)
	assert.Equal(t, "Div A", m.Division)
}

func TestNewDialerRejectsScheme(t *testing.T) {
	_, err := NewDialer("ftp://example.com", time.Second)
	assert.Error(t, err)
}

func TestProbeServerTimeTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	d, err := NewDialer(srv.URL, 50*time.Millisecond)
	require.NoError(t, err)
	_, err = d.ProbeServerTime(context.Background())
	assert.Error(t, err)
}
