package handlers

import (
	"net/http"

	"github.com/farellandr/showticket/internal/helpers"
	"github.com/farellandr/showticket/internal/models"
	"github.com/farellandr/showticket/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type EventRequest struct {
	Name     string `json:"name" binding:"required"`
	Slug     string `json:"slug"`
	DateText string `json:"date_text"`
}

type ShowRequest struct {
	Name           string `json:"name" binding:"required"`
	Slug           string `json:"slug"`
	DateText       string `json:"date_text"`
	PriceCents     *int64 `json:"price_cents"`
	RequiresTicket bool   `json:"requires_ticket"`
	IsActive       *bool  `json:"is_active"`
}

type ShowUpdateRequest struct {
	PriceCents     *int64 `json:"price_cents"`
	ClearPrice     bool   `json:"clear_price"`
	RequiresTicket *bool  `json:"requires_ticket"`
	IsActive       *bool  `json:"is_active"`
}

type EventHandler struct {
	catalog *services.Catalog
}

func NewEventHandler(catalog *services.Catalog) *EventHandler {
	return &EventHandler{catalog: catalog}
}

// ListShows is public and lists only shows on sale.
func (h *EventHandler) ListShows(c *gin.Context) {
	event, shows, err := h.catalog.Shows(c.Request.Context(), c.Param("slug"), true)
	if err != nil {
		respondError(c, err, "Event not found.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"event": gin.H{"name": event.Name, "slug": event.Slug, "date_text": event.DateText},
		"shows": lo.Map(shows, func(s models.Show, _ int) gin.H {
			return gin.H{
				"name":            s.Name,
				"slug":            s.Slug,
				"date_text":       s.DateText,
				"price_cents":     s.PriceCents,
				"requires_ticket": s.RequiresTicket,
			}
		}),
	})
}

func (h *EventHandler) AdminListShows(c *gin.Context) {
	_, shows, err := h.catalog.Shows(c.Request.Context(), c.Param("slug"), false)
	if err != nil {
		respondError(c, err, "Event not found.")
		return
	}
	c.JSON(http.StatusOK, shows)
}

func (h *EventHandler) CreateEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	event, err := h.catalog.CreateEvent(c.Request.Context(), req.Name, req.Slug, req.DateText)
	if err != nil {
		respondError(c, err, "Event not found.")
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (h *EventHandler) CreateShow(c *gin.Context) {
	var req ShowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	show, err := h.catalog.CreateShow(c.Request.Context(), c.Param("slug"), services.ShowInput{
		Name:           req.Name,
		Slug:           req.Slug,
		DateText:       req.DateText,
		PriceCents:     req.PriceCents,
		RequiresTicket: req.RequiresTicket,
		IsActive:       active,
	})
	if err != nil {
		respondError(c, err, "Event not found.")
		return
	}
	c.JSON(http.StatusCreated, show)
}

func (h *EventHandler) UpdateShow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid show ID.")
		return
	}

	var req ShowUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	show, err := h.catalog.UpdateShow(c.Request.Context(), id, services.ShowUpdate{
		PriceCents:     req.PriceCents,
		ClearPrice:     req.ClearPrice,
		RequiresTicket: req.RequiresTicket,
		IsActive:       req.IsActive,
	})
	if err != nil {
		respondError(c, err, "Show not found.")
		return
	}
	c.JSON(http.StatusOK, show)
}
