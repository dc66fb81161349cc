package middleware

import (
	"net/http"
	"strings"

	"assist/internal/core/services"

	"github.com/gin-gonic/gin"
)

const AccountIDKey = "account_id"

// AuthMiddleware requires a valid account token and stores the account id
// under AccountIDKey.
func AuthMiddleware(tokenSvc *services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Extract Bearer token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header required")
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c, "Invalid authorization format")
			return
		}
		accountID, err := tokenSvc.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}
		c.Set(AccountIDKey, accountID)
		c.Next()
	}
}

// AccountID returns the id stored by AuthMiddleware.
func AccountID(c *gin.Context) string {
	return c.GetString(AccountIDKey)
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": msg})
}
