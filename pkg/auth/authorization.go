package auth

import (
	"context"
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
)

const (
	roleKey  = "role"
	tokenKey = "token"
)

// IDTokenVerifier verifies ID tokens issued by the realtime store's auth domain.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": msg, "logout": true})
	c.Abort()
}

// AuthMiddleware accepts either a password derived token or an ID token
// carrying the admin claim in the Authorization header.
func AuthMiddleware(tokens *Service, verifier IDTokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header is missing")
			return
		}
		bearer := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		if role := tokens.ValidateToken(bearer); role != RoleNone {
			c.Set(roleKey, role)
			c.Next()
			return
		}

		if verifier == nil {
			abortUnauthorized(c, FailedMessage)
			return
		}
		token, err := verifier.VerifyIDToken(c, bearer)
		if err != nil {
			abortUnauthorized(c, "invalid ID token")
			return
		}
		if admin, _ := token.Claims[AdminClaim].(bool); !admin {
			abortUnauthorized(c, FailedMessage)
			return
		}

		// Attach token to the context
		c.Set(tokenKey, token)
		c.Set(roleKey, RoleSuperAdmin)
		c.Next()
	}
}

// RequireRole rejects requests whose role is below min. It must run after
// AuthMiddleware.
func RequireRole(min Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if RoleFrom(c) < min {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "insufficient privileges"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RoleFrom returns the role set by AuthMiddleware, or RoleNone.
func RoleFrom(c *gin.Context) Role {
	v, ok := c.Get(roleKey)
	if !ok {
		return RoleNone
	}
	role, _ := v.(Role)
	return role
}
