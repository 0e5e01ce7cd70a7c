package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ammarsecurity/nexchat/internal/config"
	jwtutil "github.com/ammarsecurity/nexchat/pkg/jwt"
)

// Auth validates the caller's access token and stores the user identity on
// the request context. Browser websockets cannot set headers, so a ?token=
// query parameter is accepted as a fallback for the upgrade request.
func Auth(cfg *config.Config) gin.HandlerFunc {
	jwtManager := jwtutil.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)

	return func(c *gin.Context) {
		token := ""

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error": "Invalid authorization header format",
				})
				c.Abort()
				return
			}
			token = parts[1]
		} else {
			token = c.Query("token")
		}

		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization required",
			})
			c.Abort()
			return
		}

		claims, err := jwtManager.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("name", claims.Name)

		c.Next()
	}
}
