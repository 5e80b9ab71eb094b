package handlers

import (
	"net/http"

	"github.com/farellandr/showticket/internal/services"
	"github.com/gin-gonic/gin"
)

type TicketHandler struct {
	queries *services.Queries
}

func NewTicketHandler(queries *services.Queries) *TicketHandler {
	return &TicketHandler{queries: queries}
}

// Verify is what the QR code on a ticket points to.
func (h *TicketHandler) Verify(c *gin.Context) {
	check, err := h.queries.VerifyTicket(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err, "Ticket not found.")
		return
	}
	c.JSON(http.StatusOK, check)
}
