package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/farellandr/showticket/internal/artifacts"
	"github.com/farellandr/showticket/internal/helpers"
	"github.com/farellandr/showticket/internal/models"
	"github.com/farellandr/showticket/internal/notify"
	"github.com/farellandr/showticket/internal/payments"
	"github.com/farellandr/showticket/internal/repository"
	"github.com/farellandr/showticket/internal/services"
	"github.com/farellandr/showticket/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	baseURL       = "https://tickets.example.com"
	jwtSecret     = "test-secret"
	webhookSecret = "hook-secret"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGateway struct {
	mu sync.Mutex
	n  int
}

func (g *stubGateway) Provider() string { return payments.ProviderPagBank }

func (g *stubGateway) CreateCharge(_ context.Context, req payments.ChargeRequest) (*payments.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return &payments.Charge{ExternalID: "ORDE_" + req.Reference, CheckoutURL: "https://pay.example.com/x", QRText: "0002"}, nil
}

type switchableObjects struct {
	mu     sync.Mutex
	broken bool
	next   services.ObjectStore
}

func (o *switchableObjects) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	o.mu.Lock()
	broken := o.broken
	o.mu.Unlock()
	if broken {
		return "", errors.New("storage offline")
	}
	return o.next.Put(ctx, name, data, contentType)
}

type testServer struct {
	t       *testing.T
	engine  *gin.Engine
	store   *repository.MemoryStore
	objects *switchableObjects
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := repository.NewMemoryStore()
	dir := t.TempDir()
	local, err := storage.NewLocalStore(dir, baseURL+"/files")
	require.NoError(t, err)
	objects := &switchableObjects{next: local}

	links := services.Links{BaseURL: baseURL}
	var notifier notify.Notifier = notify.LogNotifier{}
	fulfillment := services.NewFulfillment(store, artifacts.NewRenderer(), objects, notifier, links)
	settlement := services.NewSettlement(store, fulfillment, notifier, links)
	catalog := services.NewCatalog(store)

	ctx := context.Background()
	_, err = catalog.CreateEvent(ctx, "Jazz Fest", "jazz-fest", "")
	require.NoError(t, err)
	price := int64(5000)
	_, err = catalog.CreateShow(ctx, "jazz-fest", services.ShowInput{Name: "Jazz Night", PriceCents: &price, RequiresTicket: true, IsActive: true})
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	store.AddUser(models.User{Email: "ops@example.com", Password: string(hash), Role: models.Role{Name: models.RoleNameAdmin}})

	engine := New(Deps{
		Store:      store,
		Checkout:   services.NewCheckout(store, &stubGateway{}, nil, notifier, services.CheckoutConfig{Links: links}),
		Queries:    services.NewQueries(store, links),
		Reconciler: services.NewReconciler(store, payments.NewNormalizers(payments.NewPagBankNormalizer(webhookSecret)), settlement),
		Admin:      services.NewAdmin(store, settlement, fulfillment, notifier, links),
		Catalog:    catalog,
		Links:      links,
		JWTSecret:  jwtSecret,
		FilesDir:   dir,
	})
	return &testServer{t: t, engine: engine, store: store, objects: objects}
}

func (s *testServer) do(method, path, contentType, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) decode(w *httptest.ResponseRecorder) map[string]any {
	s.t.Helper()
	var out map[string]any
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) buy() *models.Purchase {
	s.t.Helper()
	form := url.Values{
		"event":  {"jazz-fest"},
		"show":   {"Jazz Night"},
		"name":   {"Ana Silva"},
		"tax_id": {"111.222.333-44"},
		"guests": {"Bruno Dias"},
	}
	w := s.do(http.MethodPost, "/v1/purchases", "application/x-www-form-urlencoded", form.Encode(), nil)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	p, err := s.store.PurchaseByToken(context.Background(), s.decode(w)["token"].(string))
	require.NoError(s.t, err)
	return p
}

func (s *testServer) webhook(p *models.Purchase, status string, signed bool) *httptest.ResponseRecorder {
	body := `{"id":"ORDE_1","reference_id":"` + helpers.PurchaseReference(p.ID) + `","charges":[{"status":"` + status + `"}]}`
	header := http.Header{}
	if signed {
		header.Set("x-authenticity-token", helpers.PagBankSignature(webhookSecret, []byte(body)))
	}
	return s.do(http.MethodPost, "/webhooks/pagbank", "application/json", body, header)
}

func (s *testServer) login() http.Header {
	s.t.Helper()
	w := s.do(http.MethodPost, "/v1/login", "application/json", `{"email":"ops@example.com","password":"hunter2"}`, nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return http.Header{"Authorization": {"Bearer " + s.decode(w)["token"].(string)}}
}

func TestBuyAndPayOverHTTP(t *testing.T) {
	s := newTestServer(t)

	p := s.buy()
	assert.Equal(t, 2, p.Quantity)

	w := s.do(http.MethodGet, "/status/"+p.Token, "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(models.PurchasePendingPayment), s.decode(w)["status"])

	assert.Equal(t, http.StatusUnauthorized, s.webhook(p, "PAID", false).Code)
	require.Equal(t, http.StatusOK, s.webhook(p, "PAID", true).Code)
	assert.Equal(t, http.StatusOK, s.webhook(p, "PAID", true).Code)

	var view services.StatusView
	w = s.do(http.MethodGet, "/status/"+p.Token, "", "", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, models.PurchasePaid, view.Status)
	require.Len(t, view.Tickets, 2)
	assert.True(t, strings.HasPrefix(view.Tickets[0].PNGURL, baseURL+"/files/"+p.Token+"-ticket-"))

	name := strings.TrimPrefix(view.Tickets[0].PNGURL, baseURL)
	w = s.do(http.MethodGet, name, "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "\x89PNG", w.Body.String()[:4])

	token := strings.TrimPrefix(view.Tickets[1].VerifyURL, baseURL+"/ticket/")
	w = s.do(http.MethodGet, "/ticket/"+token, "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	check := s.decode(w)
	assert.Equal(t, true, check["valid"])
	assert.Equal(t, "Bruno Dias", check["person_name"])

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/ticket/unknown", "", "", nil).Code)
}

func TestWebhookTransientFailureAsksForRetry(t *testing.T) {
	s := newTestServer(t)
	p := s.buy()

	s.objects.broken = true
	assert.Equal(t, http.StatusServiceUnavailable, s.webhook(p, "PAID", true).Code)

	s.objects.broken = false
	assert.Equal(t, http.StatusOK, s.webhook(p, "PAID", true).Code)
	n, err := s.store.CountFulfilledTickets(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestWebhookUnknownProvider(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/webhooks/paypal", "application/json", "{}", nil).Code)
}

func TestBuyValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/v1/purchases", "application/json", `{"event":"jazz-fest","show":"Jazz Night","name":"Ana","tax_id":"12"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Bad Request", s.decode(w)["error"])

	w = s.do(http.MethodPost, "/v1/purchases", "application/json", `{"event":"jazz-fest"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRequiresToken(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/v1/admin/purchases", "", "", nil).Code)
	w := s.do(http.MethodPost, "/v1/login", "application/json", `{"email":"ops@example.com","password":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminActions(t *testing.T) {
	s := newTestServer(t)
	auth := s.login()
	p := s.buy()

	w := s.do(http.MethodPost, "/v1/admin/purchases/"+p.Token+"/cancel", "application/json", `{}`, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/v1/admin/purchases/"+p.Token+"/confirm", "", "", auth)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/v1/admin/purchases/"+p.Token+"/mark-paid", "", "", auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, string(services.Applied), s.decode(w)["result"])

	w = s.do(http.MethodPost, "/v1/admin/purchases/"+p.Token+"/refulfill", "", "", auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(services.NoOp), s.decode(w)["result"])

	w = s.do(http.MethodPost, "/v1/admin/purchases/missing/mark-paid", "", "", auth)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/v1/admin/purchases?status=paid&q=ana", "", "", auth)
	require.Equal(t, http.StatusOK, w.Code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, p.Token, rows[0]["token"])
	assert.Equal(t, float64(2), rows[0]["tickets"])
}

func TestCatalogEndpoints(t *testing.T) {
	s := newTestServer(t)
	auth := s.login()

	w := s.do(http.MethodPost, "/v1/admin/events/jazz-fest/shows", "application/json", `{"name":"Late Set","requires_ticket":true,"is_active":false}`, auth)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	showID := s.decode(w)["ID"].(string)

	w = s.do(http.MethodGet, "/v1/events/jazz-fest/shows", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, s.decode(w)["shows"], 1)

	w = s.do(http.MethodPatch, "/v1/admin/shows/"+showID, "application/json", `{"is_active":true,"price_cents":7000}`, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/v1/events/jazz-fest/shows", "", "", nil)
	assert.Len(t, s.decode(w)["shows"], 2)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/events/nope/shows", "", "", nil).Code)
}
