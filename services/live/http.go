package live

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Router is the interface for a router.
type Router interface {
	GET(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	POST(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	Use(middleware ...gin.HandlerFunc) gin.IRoutes
	Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup
}

// HTTPOptions contains all the options needed for the HTTP handler.
type HTTPOptions struct {
	Hub         *Hub
	Connections *ConnectionManager
	Clock       ServerClock

	// The router instance to configure the HTTP routes.
	Router Router
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(opts HTTPOptions) {
	r := opts.Router
	h := &httpHandler{opts}
	r.GET("/live", h.liveHandler)
	r.GET("/live/stats", h.statsHandler)
	r.GET("/time", h.timeHandler)
}

type httpHandler struct {
	HTTPOptions
}

func (s *httpHandler) liveHandler(c *gin.Context) {
	// Upgrade has already answered the request when it fails.
	_ = s.Connections.Upgrade(c.Writer, c.Request, c.Query("division"))
}

func (s *httpHandler) statsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.Hub.Stats())
}

func (s *httpHandler) timeHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"serverTime": s.Clock.NowMillis()})
}
