package reconcile

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Router is the interface for a router.
type Router interface {
	GET(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	POST(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	Use(middleware ...gin.HandlerFunc) gin.IRoutes
	Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup
}

// Reconciler compares the two stores on demand.
type Reconciler interface {
	Run(ctx context.Context) (Report, error)
	Last() (Report, error)
}

// HTTPOptions contains all the options needed for the HTTP handler.
type HTTPOptions struct {

	// The service we provides the HTTP transport for.
	Service Reconciler

	// The router instance to configure the HTTP routes.
	Router Router
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(opts HTTPOptions) {
	r := opts.Router
	h := &httpHandler{opts}
	r.POST("/reconcile", h.runHandler)
	r.GET("/reconcile/last", h.lastHandler)
}

type httpHandler struct {
	HTTPOptions
}

func (s *httpHandler) runHandler(c *gin.Context) {
	report, err := s.Service.Run(c)
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		c.Abort()
		return
	case errors.Is(err, ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		c.Abort()
		return
	case err != nil:
		log.Error().Err(err).Msg("Reconciliation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reconcile"})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *httpHandler) lastHandler(c *gin.Context) {
	report, err := s.Service.Last()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, report)
}
