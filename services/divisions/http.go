package divisions

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nvbf/gameday-sync/pkg/schedule"
)

// Router is the interface for a router.
type Router interface {
	GET(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	POST(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	Use(middleware ...gin.HandlerFunc) gin.IRoutes
	Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup
}

// Divisions is the read surface over division data.
type Divisions interface {
	AllData(ctx context.Context, division string) (schedule.DivisionData, error)
	Standings(ctx context.Context, division string) ([]schedule.StandingsEntry, error)
	Divisions(ctx context.Context) ([]string, error)
}

// HTTPOptions contains all the options needed for the HTTP handler.
type HTTPOptions struct {

	// The service we provides the HTTP transport for.
	Service Divisions

	// The router instance to configure the HTTP routes.
	Router Router
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(opts HTTPOptions) {
	r := opts.Router
	h := &httpHandler{opts}
	r.GET("/allData", h.allDataHandler)
	r.GET("/standings", h.standingsHandler)
	r.GET("/divisions", h.divisionsHandler)
}

type httpHandler struct {
	HTTPOptions
}

func (s *httpHandler) allDataHandler(c *gin.Context) {
	division := c.Query("sheetName")
	data, err := s.Service.AllData(c, division)
	if err != nil {
		log.Error().Err(err).Str("division", division).Msg("Failed to load division")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch data"})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, data)
}

func (s *httpHandler) standingsHandler(c *gin.Context) {
	division := c.Query("sheetName")
	standings, err := s.Service.Standings(c, division)
	if err != nil {
		log.Error().Err(err).Str("division", division).Msg("Failed to load standings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch standings"})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, standings)
}

func (s *httpHandler) divisionsHandler(c *gin.Context) {
	names, err := s.Service.Divisions(c)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list divisions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch divisions"})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, names)
}
