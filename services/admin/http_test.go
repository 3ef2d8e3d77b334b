package admin

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvbf/gameday-sync/pkg/auth"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHTTPHandler(HTTPOptions{
		Service: NewAdminService(auth.NewService("admin", "super", "salt", nil)),
		Router:  r.Group("/api"),
	})
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestValidateAdmin(t *testing.T) {
	r := newRouter()

	w := post(r, "/api/validateAdmin", `{"password":"admin"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"isAdmin":true,"isSuperAdmin":false,"token":"`+auth.ComputeToken("admin", "salt")+`"}`, w.Body.String())

	w = post(r, "/api/validateAdmin", `{"password":"wrong"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"isAdmin":false,"isSuperAdmin":false,"error":"Invalid password."}`, w.Body.String())

	w = post(r, "/api/validateAdmin", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSession(t *testing.T) {
	r := newRouter()

	w := post(r, "/api/session", `{"token":"`+auth.ComputeToken("super", "salt")+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isSuperAdmin":true`)

	w = post(r, "/api/session", `{"token":"stale"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"logout":true`)
}
