package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/farellandr/showticket/internal/artifacts"
	"github.com/farellandr/showticket/internal/helpers"
	"github.com/farellandr/showticket/internal/locking"
	"github.com/farellandr/showticket/internal/models"
	"github.com/farellandr/showticket/internal/notify"
	"github.com/farellandr/showticket/internal/payments"
	"github.com/farellandr/showticket/internal/repository"
	"github.com/stretchr/testify/require"
)

const (
	eventSlug   = "jazz-fest"
	jazzNight   = "Jazz Night"
	openStage   = "Open Stage"
	galaDinner  = "Gala Dinner"
	buyerTaxID  = "11122233344"
	webhookBase = "https://tickets.example.com"
)

type fakeGateway struct {
	mu    sync.Mutex
	calls []payments.ChargeRequest
	err   error
}

func (g *fakeGateway) Provider() string { return payments.ProviderPagBank }

func (g *fakeGateway) CreateCharge(_ context.Context, req payments.ChargeRequest) (*payments.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.calls = append(g.calls, req)
	id := fmt.Sprintf("ORDE_%d", len(g.calls))
	return &payments.Charge{
		ExternalID:  id,
		CheckoutURL: "https://pay.example.com/" + id,
		QRText:      "00020126-" + id,
	}, nil
}

func (g *fakeGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fakeRenderer struct {
	mu      sync.Mutex
	renders int
}

func (r *fakeRenderer) RenderTicket(_ context.Context, art artifacts.TicketArt) ([]byte, error) {
	r.mu.Lock()
	r.renders++
	r.mu.Unlock()
	return []byte("png:" + art.PersonName), nil
}

func (r *fakeRenderer) TicketPDF(png []byte) ([]byte, error) {
	return append([]byte("pdf:"), png...), nil
}

func (r *fakeRenderer) BundlePDF(pngs [][]byte) ([]byte, error) {
	return []byte(fmt.Sprintf("bundle:%d", len(pngs))), nil
}

func (r *fakeRenderer) Archive(files []artifacts.File) ([]byte, error) {
	return []byte(fmt.Sprintf("zip:%d", len(files))), nil
}

func (r *fakeRenderer) Renders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renders
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}}
}

func (o *fakeObjects) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failOn != "" && strings.HasSuffix(name, o.failOn) {
		return "", errors.New("ftp: 550 upload refused")
	}
	o.objects[name] = data
	return "https://cdn.example.com/" + name, nil
}

func (o *fakeObjects) SetFailOn(suffix string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failOn = suffix
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *fakeNotifier) Notify(_ context.Context, notification notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *fakeNotifier) Kinds() []notify.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]notify.Kind, 0, len(n.sent))
	for _, s := range n.sent {
		kinds = append(kinds, s.Kind)
	}
	return kinds
}

func (n *fakeNotifier) Last() notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type fixture struct {
	ctx         context.Context
	store       *repository.MemoryStore
	gateway     *fakeGateway
	renderer    *fakeRenderer
	objects     *fakeObjects
	notifier    *fakeNotifier
	checkout    *Checkout
	fulfillment *Fulfillment
	settlement  *Settlement
	reconciler  *Reconciler
	admin       *Admin
	queries     *Queries
	catalog     *Catalog
	event       *models.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:      context.Background(),
		store:    repository.NewMemoryStore(),
		gateway:  &fakeGateway{},
		renderer: &fakeRenderer{},
		objects:  newFakeObjects(),
		notifier: &fakeNotifier{},
	}
	links := Links{BaseURL: webhookBase}

	f.checkout = NewCheckout(f.store, f.gateway, locking.NewLocalLocker(), f.notifier, CheckoutConfig{Links: links})
	f.fulfillment = NewFulfillment(f.store, f.renderer, f.objects, f.notifier, links)
	f.settlement = NewSettlement(f.store, f.fulfillment, f.notifier, links)
	f.reconciler = NewReconciler(f.store, payments.NewNormalizers(payments.NewPagBankNormalizer("")), f.settlement)
	f.admin = NewAdmin(f.store, f.settlement, f.fulfillment, f.notifier, links)
	f.queries = NewQueries(f.store, links)
	f.catalog = NewCatalog(f.store)

	event, err := f.catalog.CreateEvent(f.ctx, "Jazz Fest", eventSlug, "Outubro")
	require.NoError(t, err)
	f.event = event

	price := int64(5000)
	_, err = f.catalog.CreateShow(f.ctx, eventSlug, ShowInput{Name: jazzNight, PriceCents: &price, RequiresTicket: true, IsActive: true})
	require.NoError(t, err)
	_, err = f.catalog.CreateShow(f.ctx, eventSlug, ShowInput{Name: openStage, IsActive: true})
	require.NoError(t, err)
	_, err = f.catalog.CreateShow(f.ctx, eventSlug, ShowInput{Name: galaDinner, RequiresTicket: true, IsActive: true})
	require.NoError(t, err)

	return f
}

func (f *fixture) buy(t *testing.T, show, guests string) *BuyResult {
	t.Helper()
	result, err := f.checkout.Buy(f.ctx, BuyRequest{
		EventSlug:  eventSlug,
		ShowName:   show,
		BuyerName:  "Ana Silva",
		BuyerTaxID: "111.222.333-44",
		BuyerEmail: "ana@example.com",
		BuyerPhone: "(31) 98888-7777",
		Guests:     guests,
	})
	require.NoError(t, err)
	return result
}

func pagBankNotification(t *testing.T, purchase *models.Purchase, externalID, status string) payments.Inbound {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":           externalID,
		"reference_id": helpers.PurchaseReference(purchase.ID),
		"charges":      []map[string]string{{"id": "CHAR_" + externalID, "status": status}},
	})
	require.NoError(t, err)
	return payments.Inbound{ContentType: "application/json", Header: http.Header{}, Body: body}
}

func (f *fixture) deliver(t *testing.T, purchase *models.Purchase, externalID, status string) Outcome {
	t.Helper()
	return f.reconciler.Receive(f.ctx, payments.ProviderPagBank, pagBankNotification(t, purchase, externalID, status))
}

func (f *fixture) purchase(t *testing.T, token string) *models.Purchase {
	t.Helper()
	p, err := f.store.PurchaseByToken(f.ctx, token)
	require.NoError(t, err)
	return p
}

func (f *fixture) payments(t *testing.T, p *models.Purchase) []models.Payment {
	t.Helper()
	list, err := f.store.PaymentsForPurchase(f.ctx, p.ID)
	require.NoError(t, err)
	return list
}

func (f *fixture) tickets(t *testing.T, p *models.Purchase) []models.Ticket {
	t.Helper()
	list, err := f.store.TicketsForPurchase(f.ctx, p.ID)
	require.NoError(t, err)
	return list
}

func later(d time.Duration) Clock {
	return func() time.Time { return time.Now().Add(d) }
}
