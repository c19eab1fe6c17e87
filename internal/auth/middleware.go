package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"asistencia/internal/policy"
)

const actorKey = "actor"

// RequireUser enforces bearer JWT tokens signed with HS256 and injects
// the verified (user, role, area) triple into the request context.
func RequireUser(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token"})
			return
		}
		c.Set(actorKey, claims.Actor())
		c.Next()
	}
}

// RequireAdmin rejects callers without the administrator role. It must
// run after RequireUser.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ActorFrom(c).Role != policy.RoleAdministrator {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "administrator role required"})
			return
		}
		c.Next()
	}
}

// ActorFrom returns the identity injected by RequireUser.
func ActorFrom(c *gin.Context) policy.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(policy.Actor); ok {
			return actor
		}
	}
	return policy.Actor{}
}
