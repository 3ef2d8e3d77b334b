package timer

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nvbf/gameday-sync/pkg/countdown"
)

// Router is the interface for a router.
type Router interface {
	GET(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	POST(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	Use(middleware ...gin.HandlerFunc) gin.IRoutes
	Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup
}

// Timer is the controller surface of the shared countdown.
type Timer interface {
	State(ctx context.Context) (countdown.State, error)
	Start(ctx context.Context) (countdown.State, error)
	Stop(ctx context.Context) (countdown.State, error)
	Reset(ctx context.Context) (countdown.State, error)
	Adjust(ctx context.Context, delta int) (countdown.State, error)
	AdjustAfterRound(ctx context.Context, delta int) (countdown.State, error)
	SetShowClock(ctx context.Context, show bool) (countdown.State, error)
	SetAfterRoundEnabled(enabled bool)
	AfterRoundEnabled() bool
	NextRound(ctx context.Context, division string) (countdown.State, error)
	PreviousRound(ctx context.Context, division string) (countdown.State, error)
	EnsureRound(ctx context.Context, division string) (countdown.State, error)
}

// HTTPOptions contains all the options needed for the HTTP handler.
type HTTPOptions struct {

	// The service we provides the HTTP transport for.
	Service Timer

	Clock ServerClock

	// Router serves the read route.
	Router Router

	// AdminRouter serves the controls. It is expected to require the
	// superadmin role.
	AdminRouter Router
}

type deltaRequest struct {
	Delta int `json:"delta"`
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

type showRequest struct {
	Show bool `json:"show"`
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(opts HTTPOptions) {
	h := &httpHandler{opts}
	opts.Router.GET("/timer", h.stateHandler)

	r := opts.AdminRouter
	r.POST("/timer/start", h.mutate(opts.Service.Start))
	r.POST("/timer/stop", h.mutate(opts.Service.Stop))
	r.POST("/timer/reset", h.mutate(opts.Service.Reset))
	r.POST("/timer/adjust", h.adjustHandler)
	r.POST("/timer/after-round/adjust", h.adjustAfterRoundHandler)
	r.POST("/timer/after-round/enabled", h.afterRoundEnabledHandler)
	r.POST("/timer/show-clock", h.showClockHandler)
	r.POST("/timer/round/next", h.roundHandler(opts.Service.NextRound))
	r.POST("/timer/round/previous", h.roundHandler(opts.Service.PreviousRound))
	r.POST("/timer/round/ensure", h.roundHandler(opts.Service.EnsureRound))
}

type httpHandler struct {
	HTTPOptions
}

func (s *httpHandler) respond(c *gin.Context, st countdown.State, err error) {
	if errors.Is(err, countdown.ErrTimerRunning) || errors.Is(err, countdown.ErrTimerIdle) {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
		c.Abort()
		return
	}
	if err != nil {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Timer request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update timer"})
		c.Abort()
		return
	}
	now := s.Clock.NowMillis()
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"timer":             st,
		"remaining":         st.Remaining(now),
		"phase":             st.Phase(now),
		"afterRoundEnabled": s.Service.AfterRoundEnabled(),
		"serverTime":        now,
	})
}

func (s *httpHandler) stateHandler(c *gin.Context) {
	st, err := s.Service.State(c)
	s.respond(c, st, err)
}

func (s *httpHandler) mutate(fn func(context.Context) (countdown.State, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := fn(c)
		s.respond(c, st, err)
	}
}

func (s *httpHandler) adjustHandler(c *gin.Context) {
	var request deltaRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		c.Abort()
		return
	}
	st, err := s.Service.Adjust(c, request.Delta)
	s.respond(c, st, err)
}

func (s *httpHandler) adjustAfterRoundHandler(c *gin.Context) {
	var request deltaRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		c.Abort()
		return
	}
	st, err := s.Service.AdjustAfterRound(c, request.Delta)
	s.respond(c, st, err)
}

func (s *httpHandler) afterRoundEnabledHandler(c *gin.Context) {
	var request enabledRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		c.Abort()
		return
	}
	s.Service.SetAfterRoundEnabled(request.Enabled)
	st, err := s.Service.State(c)
	s.respond(c, st, err)
}

func (s *httpHandler) showClockHandler(c *gin.Context) {
	var request showRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		c.Abort()
		return
	}
	st, err := s.Service.SetShowClock(c, request.Show)
	s.respond(c, st, err)
}

func (s *httpHandler) roundHandler(fn func(context.Context, string) (countdown.State, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		division := c.Query("sheetName")
		if division == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sheetName is required"})
			c.Abort()
			return
		}
		st, err := fn(c, division)
		s.respond(c, st, err)
	}
}
