package admin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nvbf/gameday-sync/pkg/auth"
)

// Router is the interface for a router.
type Router interface {
	GET(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	POST(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	Use(middleware ...gin.HandlerFunc) gin.IRoutes
	Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup
}

// Admin is the interface for the admin login service.
type Admin interface {
	ValidateAdmin(ctx context.Context, password string) auth.Validation
	Session(token string) auth.Role
}

// HTTPOptions contains all the options needed for the HTTP handler.
type HTTPOptions struct {

	// The service we provides the HTTP transport for.
	Service Admin

	// The router instance to configure the HTTP routes.
	Router Router
}

type validateRequest struct {
	Password string `json:"password"`
}

type sessionRequest struct {
	Token string `json:"token"`
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(opts HTTPOptions) {
	r := opts.Router
	h := &httpHandler{opts}
	r.POST("/validateAdmin", h.validateAdminHandler)
	r.POST("/session", h.sessionHandler)
}

type httpHandler struct {
	HTTPOptions
}

func (s *httpHandler) validateAdminHandler(c *gin.Context) {
	var request validateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, s.Service.ValidateAdmin(c, request.Password))
}

func (s *httpHandler) sessionHandler(c *gin.Context) {
	var request sessionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		c.Abort()
		return
	}
	role := s.Service.Session(request.Token)
	if role == auth.RoleNone {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": auth.FailedMessage, "logout": true})
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"isAdmin":      true,
		"isSuperAdmin": role == auth.RoleSuperAdmin,
	})
}
