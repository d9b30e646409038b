package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/uext/extensions-api/internal/middleware"
	"github.com/uext/extensions-api/internal/models"
)

// claimsFromContext returns the authenticated claims, or nil on public
// routes where the JWT middleware did not run.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	if claims, ok := value.(*models.JWTClaims); ok {
		return claims
	}
	return nil
}
