package handlers

import (
	"net/http"
	"strings"

	"github.com/farellandr/showticket/internal/helpers"
	"github.com/farellandr/showticket/internal/models"
	"github.com/farellandr/showticket/internal/repository"
	"github.com/farellandr/showticket/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type CancelRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type AdminHandler struct {
	admin *services.Admin
}

func NewAdminHandler(admin *services.Admin) *AdminHandler {
	return &AdminHandler{admin: admin}
}

func (h *AdminHandler) ConfirmReservation(c *gin.Context) {
	respondOutcome(c, h.admin.ConfirmReservation(c.Request.Context(), c.Param("token")))
}

func (h *AdminHandler) Cancel(c *gin.Context) {
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "A cancellation reason is required.")
		return
	}
	respondOutcome(c, h.admin.Cancel(c.Request.Context(), c.Param("token"), req.Reason))
}

func (h *AdminHandler) MarkPaid(c *gin.Context) {
	respondOutcome(c, h.admin.MarkPaid(c.Request.Context(), c.Param("token")))
}

func (h *AdminHandler) Refulfill(c *gin.Context) {
	respondOutcome(c, h.admin.Refulfill(c.Request.Context(), c.Param("token")))
}

type purchaseRow struct {
	Token        string                `json:"token"`
	ShowName     string                `json:"show_name"`
	BuyerName    string                `json:"buyer_name"`
	BuyerTaxID   string                `json:"buyer_tax_id"`
	BuyerEmail   string                `json:"buyer_email"`
	Status       models.PurchaseStatus `json:"status"`
	Quantity     int                   `json:"quantity"`
	TotalCents   int64                 `json:"total_cents"`
	CancelReason string                `json:"cancel_reason,omitempty"`
	Notified     bool                  `json:"notified"`
	NotifyError  string                `json:"notification_last_error,omitempty"`
	Tickets      int                   `json:"tickets"`
	Payment      *models.Payment       `json:"payment,omitempty"`
}

// ListPurchases takes ?status=paid,failed and a free text ?q=.
func (h *AdminHandler) ListPurchases(c *gin.Context) {
	filter := repository.PurchaseFilter{Query: c.Query("q")}
	if raw := c.Query("status"); raw != "" {
		filter.Statuses = lo.Map(strings.Split(raw, ","), func(s string, _ int) models.PurchaseStatus {
			return models.PurchaseStatus(strings.TrimSpace(s))
		})
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := helpers.StringToInt(raw)
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, "Invalid limit.")
			return
		}
		filter.Limit = limit
	}

	rows, err := h.admin.ListPurchases(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Purchase not found.")
		return
	}

	c.JSON(http.StatusOK, lo.Map(rows, func(r services.PurchaseRow, _ int) purchaseRow {
		p := r.Purchase
		return purchaseRow{
			Token:        p.Token,
			ShowName:     p.ShowName,
			BuyerName:    p.BuyerName,
			BuyerTaxID:   p.BuyerTaxID,
			BuyerEmail:   p.BuyerEmail,
			Status:       p.Status,
			Quantity:     p.Quantity,
			TotalCents:   p.TotalCents(),
			CancelReason: p.CancelReason,
			Notified:     p.NotifiedAt != nil,
			NotifyError:  p.NotificationLastError,
			Tickets:      r.Tickets,
			Payment:      r.Payment,
		}
	}))
}
