package handlers

import (
	"errors"
	"net/http"

	"github.com/farellandr/showticket/internal/helpers"
	"github.com/farellandr/showticket/internal/log"
	"github.com/farellandr/showticket/internal/middleware"
	"github.com/farellandr/showticket/internal/payments"
	"github.com/farellandr/showticket/internal/services"
	"github.com/gin-gonic/gin"
)

type WebhookHandler struct {
	reconciler *services.Reconciler
}

func NewWebhookHandler(reconciler *services.Reconciler) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// Receive answers 200 for every notification that was understood, including
// replays and conflicts, and 503 when the provider should try again.
func (h *WebhookHandler) Receive(c *gin.Context) {
	provider := c.Param("provider")
	outcome := h.reconciler.Receive(c.Request.Context(), provider, payments.Inbound{
		ContentType: c.ContentType(),
		Header:      c.Request.Header,
		Body:        middleware.GetRawBody(c),
	})

	switch {
	case outcome.Succeeded():
		c.JSON(http.StatusOK, gin.H{"result": outcome.Kind})
	case outcome.Kind == services.Invalid && errors.Is(outcome.Err, payments.ErrUnknownProvider):
		helpers.RespondWithError(c, http.StatusNotFound, "Unknown payment provider.")
	case outcome.Kind == services.Invalid:
		helpers.RespondWithError(c, http.StatusUnauthorized, "Notification could not be authenticated.")
	case outcome.Retryable():
		log.FromContext(c.Request.Context()).WithError(outcome.Err).WithField("provider", provider).Warn("Notification will be retried")
		helpers.RespondWithError(c, http.StatusServiceUnavailable, "Temporary failure, retry later.")
	default:
		log.FromContext(c.Request.Context()).WithError(outcome.Err).WithField("provider", provider).Error("Notification failed")
		helpers.RespondWithError(c, http.StatusInternalServerError, "Notification failed.")
	}
}
