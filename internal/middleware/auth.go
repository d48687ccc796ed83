package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"assessly-backend/internal/auth"
	"assessly-backend/internal/store"
)

// ClaimsKey is the gin context key the verified claims are stored under.
const ClaimsKey = "claims"

// RequireAuth verifies the bearer token, checks the account still exists and
// is active, and enforces the route's role allowlist. An empty allowlist
// admits any authenticated principal.
func RequireAuth(svc *auth.Service, users store.UserStore, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token", "code": auth.KindTokenMissing})
			return
		}

		parts := strings.Split(raw, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": auth.KindTokenInvalid})
			return
		}

		claims, err := svc.Verify(c.Request.Context(), parts[1])
		if err != nil {
			var authErr *auth.AuthError
			if errors.As(err, &authErr) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": authErr.Message, "code": authErr.Kind})
				return
			}
			log.Println("[AUTH] [ERROR] token verification failed:", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		user, err := users.FindByID(c.Request.Context(), claims.UserID())
		if err != nil || !user.IsActive {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": auth.KindTokenInvalid})
			return
		}

		if !claims.HasRole(allowedRoles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom pulls the verified claims out of the gin context.
func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	value, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*auth.Claims)
	return claims, ok
}
