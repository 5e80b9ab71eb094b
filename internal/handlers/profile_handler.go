package handlers

import (
	"net/http"

	"github.com/farellandr/showticket/internal/helpers"
	"github.com/farellandr/showticket/internal/middleware"
	"github.com/gin-gonic/gin"
)

// GetProfile echoes the operator identity carried by the session token.
func GetProfile(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User ID not found in token.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":   userID,
		"role": c.GetString(middleware.ContextRole),
	})
}
