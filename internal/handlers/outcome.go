package handlers

import (
	"errors"
	"net/http"

	"github.com/farellandr/showticket/internal/helpers"
	"github.com/farellandr/showticket/internal/log"
	"github.com/farellandr/showticket/internal/models"
	"github.com/farellandr/showticket/internal/repository"
	"github.com/farellandr/showticket/internal/services"
	"github.com/gin-gonic/gin"
)

// respondOutcome maps an operator action's outcome to a response.
func respondOutcome(c *gin.Context, outcome services.Outcome) {
	switch outcome.Kind {
	case services.Applied, services.NoOp:
		c.JSON(http.StatusOK, gin.H{"result": outcome.Kind, "message": outcome.Reason})
	case services.Conflict:
		helpers.RespondWithError(c, http.StatusConflict, outcome.Reason)
	case services.Invalid:
		switch {
		case errors.Is(outcome.Err, repository.ErrNotFound):
			helpers.RespondWithError(c, http.StatusNotFound, "Purchase not found.")
		case errors.Is(outcome.Err, models.ErrReasonRequired):
			helpers.RespondWithError(c, http.StatusBadRequest, "A cancellation reason is required.")
		default:
			helpers.RespondWithError(c, http.StatusBadRequest, outcome.Reason)
		}
	case services.TransientFailure:
		log.FromContext(c.Request.Context()).WithError(outcome.Err).Warn("Operator action failed, can be retried")
		helpers.RespondWithError(c, http.StatusServiceUnavailable, "Temporary failure, try again.")
	default:
		log.FromContext(c.Request.Context()).WithError(outcome.Err).Error("Operator action failed")
		helpers.RespondWithError(c, http.StatusInternalServerError, "Unexpected error.")
	}
}

// respondError maps errors returned by queries and the checkout.
func respondError(c *gin.Context, err error, notFound string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		helpers.RespondWithError(c, http.StatusNotFound, notFound)
	case errors.Is(err, services.ErrValidation):
		helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrConflict):
		helpers.RespondWithError(c, http.StatusConflict, "Already exists.")
	case errors.Is(err, services.ErrShowUnavailable):
		helpers.RespondWithError(c, http.StatusConflict, "This show is not on sale.")
	case errors.Is(err, services.ErrGateway):
		helpers.RespondWithError(c, http.StatusBadGateway, "Payment provider unavailable, try again.")
	default:
		log.FromContext(c.Request.Context()).WithError(err).Error("Request failed")
		helpers.RespondWithError(c, http.StatusInternalServerError, "Unexpected error.")
	}
}
