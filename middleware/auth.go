package middleware

import (
	"strings"

	"heartbridge-api/apperror"
	"heartbridge-api/auth"
	"heartbridge-api/models"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// AuthRequired authenticates the bearer token and injects the caller's identity into context
func AuthRequired(gate *auth.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			AbortWithError(c, apperror.Unauthenticated("Authorization header required (Bearer <token>)"))
			return
		}
		id, err := gate.Authenticate(c.Request.Context(), authHeader)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RoleRequired enforces that caller has one of the allowed roles
func RoleRequired(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := c.Get(identityKey)
		if !ok {
			AbortWithError(c, apperror.Unauthenticated("Authentication required"))
			return
		}
		caller := id.(auth.Identity).Role
		for _, r := range roles {
			if caller == r {
				c.Next()
				return
			}
		}
		AbortWithError(c, apperror.Forbidden("Access denied. Required role(s): "+rolesString(roles)))
	}
}

func rolesString(roles []models.UserRole) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

// GetIdentity extracts the caller identity set by AuthRequired
func GetIdentity(c *gin.Context) auth.Identity {
	val, _ := c.Get(identityKey)
	id, _ := val.(auth.Identity)
	return id
}
