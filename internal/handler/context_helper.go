package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/twoem/portal-api/internal/middleware"
	"github.com/twoem/portal-api/internal/models"
)

// callerFromContext resolves the caller identity for gate decisions. A
// request without valid claims yields an anonymous caller.
func callerFromContext(c *gin.Context) models.Caller {
	return models.CallerFromClaims(claimsFromContext(c))
}

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
