package viewer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/xerrors"

	"github.com/nvbf/gameday-sync/services/live"
)

// Dialer reaches a server's API under base, e.g. http://localhost:8888/api.
type Dialer struct {
	base   *url.URL
	ws     *websocket.Dialer
	client *http.Client
}

// NewDialer bounds each HTTP request to timeout. The websocket handshake is
// bounded by the caller's context.
func NewDialer(base string, timeout time.Duration) (*Dialer, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, xerrors.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, xerrors.Errorf("unsupported scheme %q", u.Scheme)
	}
	return &Dialer{base: u, ws: websocket.DefaultDialer, client: &http.Client{Timeout: timeout}}, nil
}

func (d *Dialer) endpoint(path string) *url.URL {
	u := *d.base
	u.Path = u.Path + path
	return &u
}

// Subscribe opens a websocket subscription to division.
func (d *Dialer) Subscribe(ctx context.Context, division string) (Stream, error) {
	u := d.endpoint("/live")
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"division": {division}}.Encode()

	conn, _, err := d.ws.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, xerrors.Errorf("dial %s: %w", u.Redacted(), err)
	}
	return &wsStream{conn: conn}, nil
}

// ProbeServerTime reads the server clock.
func (d *Dialer) ProbeServerTime(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint("/time").String(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, xerrors.Errorf("probe server time: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, xerrors.Errorf("probe server time: status %d", resp.StatusCode)
	}
	var body struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, xerrors.Errorf("consistency error. Converting server time failed: %w", err)
	}
	return body.ServerTime, nil
}

type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) Recv() (live.Message, error) {
	var m live.Message
	err := s.conn.ReadJSON(&m)
	return m, err
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}
