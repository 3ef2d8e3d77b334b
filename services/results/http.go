package results

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nvbf/gameday-sync/pkg/auth"
	"github.com/nvbf/gameday-sync/repos/audit"
)

// Router is the interface for a router.
type Router interface {
	GET(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	POST(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	Use(middleware ...gin.HandlerFunc) gin.IRoutes
	Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup
}

// Results is the interface for the result store.
type Results interface {
	SaveResult(ctx context.Context, ref MatchRef, p Patch) (Outcome, error)
	Submission(ctx context.Context, receipt string) (audit.Record, error)
	Submissions(ctx context.Context, division string, limit int) ([]audit.Record, error)
}

// TokenValidator maps a body token to a role.
type TokenValidator interface {
	ValidateToken(candidate string) auth.Role
}

// HTTPOptions contains all the options needed for the HTTP handler.
type HTTPOptions struct {

	// The service we provides the HTTP transport for.
	Service Results

	// Tokens checks the authToken of save requests.
	Tokens TokenValidator

	// The router instance to configure the HTTP routes.
	Router Router

	// AdminRouter serves the audit lookups. It must already require an
	// admin role.
	AdminRouter Router
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(opts HTTPOptions) {
	h := &httpHandler{opts}
	opts.Router.POST("/saveMatchResult", h.saveMatchResultHandler)
	if opts.AdminRouter != nil {
		opts.AdminRouter.GET("/submissions", h.listSubmissionsHandler)
		opts.AdminRouter.GET("/submissions/:receipt", h.getSubmissionHandler)
	}
}

type httpHandler struct {
	HTTPOptions
}

func (s *httpHandler) saveMatchResultHandler(c *gin.Context) {
	var request SaveRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		c.Abort()
		return
	}
	if s.Tokens.ValidateToken(request.AuthToken) == auth.RoleNone {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": auth.FailedMessage, "logout": true})
		c.Abort()
		return
	}

	out, err := s.Service.SaveResult(c, request.MatchData.MatchRef, request.MatchData.Patch)
	if isValidation(err) {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("saveMatchResult failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *httpHandler) getSubmissionHandler(c *gin.Context) {
	r, err := s.Service.Submission(c, c.Param("receipt"))
	if errors.Is(err, audit.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
		c.Abort()
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to read submission")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *httpHandler) listSubmissionsHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	records, err := s.Service.Submissions(c, c.Query("sheetName"), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list submissions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, records)
}
