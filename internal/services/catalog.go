package services

import (
	"context"
	"strings"
	"unicode"

	"github.com/farellandr/showticket/internal/models"
	"github.com/farellandr/showticket/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

type ShowInput struct {
	Name           string
	Slug           string
	DateText       string
	PriceCents     *int64
	RequiresTicket bool
	IsActive       bool
}

type ShowUpdate struct {
	PriceCents     *int64
	ClearPrice     bool
	RequiresTicket *bool
	IsActive       *bool
}

// Catalog manages the single tenant's events and shows. Prices live here
// until a purchase freezes them.
type Catalog struct {
	store repository.Store
}

func NewCatalog(store repository.Store) *Catalog {
	return &Catalog{store: store}
}

func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range norm.NFD.String(strings.ToLower(s)) {
		switch {
		case unicode.Is(unicode.Mn, r):
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func (c *Catalog) CreateEvent(ctx context.Context, name, slug, dateText string) (*models.Event, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("event name is required")
	}
	if slug = Slugify(slug); slug == "" {
		slug = Slugify(name)
	}
	event := &models.Event{Name: name, Slug: slug, DateText: strings.TrimSpace(dateText)}
	if err := c.store.CreateEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (c *Catalog) CreateShow(ctx context.Context, eventSlug string, in ShowInput) (*models.Show, error) {
	event, err := c.store.EventBySlug(ctx, eventSlug)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("show name is required")
	}
	if in.PriceCents != nil && *in.PriceCents < 0 {
		return nil, validationError("price cannot be negative")
	}
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(event.Slug + " " + name)
	}

	show := &models.Show{
		EventID:        event.ID,
		Name:           name,
		Slug:           slug,
		DateText:       strings.TrimSpace(in.DateText),
		PriceCents:     in.PriceCents,
		RequiresTicket: in.RequiresTicket,
		IsActive:       in.IsActive,
	}
	if err := c.store.CreateShow(ctx, show); err != nil {
		return nil, err
	}
	return show, nil
}

// UpdateShow changes catalog data only. Existing purchases keep the price
// they were created with.
func (c *Catalog) UpdateShow(ctx context.Context, id uuid.UUID, in ShowUpdate) (*models.Show, error) {
	show, err := c.store.ShowByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case in.ClearPrice:
		show.PriceCents = nil
	case in.PriceCents != nil:
		if *in.PriceCents < 0 {
			return nil, validationError("price cannot be negative")
		}
		price := *in.PriceCents
		show.PriceCents = &price
	}
	if in.RequiresTicket != nil {
		show.RequiresTicket = *in.RequiresTicket
	}
	if in.IsActive != nil {
		show.IsActive = *in.IsActive
	}
	if err := c.store.SaveShow(ctx, show); err != nil {
		return nil, err
	}
	return show, nil
}

func (c *Catalog) Shows(ctx context.Context, eventSlug string, activeOnly bool) (*models.Event, []models.Show, error) {
	event, err := c.store.EventBySlug(ctx, eventSlug)
	if err != nil {
		return nil, nil, err
	}
	shows, err := c.store.ShowsForEvent(ctx, event.ID, activeOnly)
	if err != nil {
		return nil, nil, err
	}
	return event, shows, nil
}
