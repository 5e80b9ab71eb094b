package handlers

import (
	"net/http"

	"github.com/farellandr/showticket/internal/helpers"
	"github.com/farellandr/showticket/internal/services"
	"github.com/gin-gonic/gin"
)

type PurchaseRequest struct {
	EventSlug  string `json:"event" form:"event" binding:"required"`
	ShowName   string `json:"show" form:"show" binding:"required"`
	BuyerName  string `json:"name" form:"name" binding:"required"`
	BuyerTaxID string `json:"tax_id" form:"tax_id"`
	BuyerEmail string `json:"email" form:"email"`
	BuyerPhone string `json:"phone" form:"phone"`
	Guests     string `json:"guests" form:"guests"`
}

type PurchaseHandler struct {
	checkout *services.Checkout
	queries  *services.Queries
	links    services.Links
}

func NewPurchaseHandler(checkout *services.Checkout, queries *services.Queries, links services.Links) *PurchaseHandler {
	return &PurchaseHandler{checkout: checkout, queries: queries, links: links}
}

// Buy accepts the order form as JSON or urlencoded.
func (h *PurchaseHandler) Buy(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBind(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	result, err := h.checkout.Buy(c.Request.Context(), services.BuyRequest{
		EventSlug:  req.EventSlug,
		ShowName:   req.ShowName,
		BuyerName:  req.BuyerName,
		BuyerTaxID: req.BuyerTaxID,
		BuyerEmail: req.BuyerEmail,
		BuyerPhone: req.BuyerPhone,
		Guests:     req.Guests,
	})
	if err != nil {
		respondError(c, err, "Event or show not found.")
		return
	}

	status := http.StatusCreated
	if result.Decision != services.DecisionAllow {
		status = http.StatusOK
	}

	body := gin.H{
		"decision":    result.Decision,
		"token":       result.Purchase.Token,
		"status":      result.Purchase.Status,
		"quantity":    result.Purchase.Quantity,
		"total_cents": result.Purchase.TotalCents(),
		"status_url":  h.links.Status(result.Purchase.Token),
	}
	if p := result.Payment; p != nil {
		body["payment"] = gin.H{
			"provider":     p.Provider,
			"status":       p.Status,
			"checkout_url": p.CheckoutURL,
			"qr_text":      p.QRText,
			"expires_at":   p.ExpiresAt,
		}
	}
	c.JSON(status, body)
}

func (h *PurchaseHandler) Status(c *gin.Context) {
	view, err := h.queries.Status(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err, "Purchase not found.")
		return
	}
	c.JSON(http.StatusOK, view)
}
