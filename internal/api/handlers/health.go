package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports whether the server is up.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "nexchat",
	})
}
