package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/farellandr/showticket/internal/helpers"
)

const (
	pagBankSandboxURL    = "https://sandbox.api.pagseguro.com"
	pagBankProductionURL = "https://api.pagseguro.com"

	sandboxTaxID = "12345678909"
	sandboxEmail = "comprador-teste@exemplo.com"
)

type PagBankConfig struct {
	Env           string
	Token         string
	WebhookToken  string
	MerchantEmail string
	// BaseURL overrides the URL derived from Env.
	BaseURL string
}

func (c PagBankConfig) sandbox() bool {
	env := strings.ToLower(strings.TrimSpace(c.Env))
	return env == "" || env == "sandbox"
}

func (c PagBankConfig) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if c.sandbox() {
		return pagBankSandboxURL
	}
	return pagBankProductionURL
}

type PagBankGateway struct {
	config PagBankConfig
	client *http.Client
}

func NewPagBankGateway(config PagBankConfig, client *http.Client) *PagBankGateway {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &PagBankGateway{config: config, client: client}
}

func (g *PagBankGateway) Provider() string { return ProviderPagBank }

type pagBankPhone struct {
	Country string `json:"country"`
	Area    string `json:"area"`
	Number  string `json:"number"`
	Type    string `json:"type"`
}

type pagBankCustomer struct {
	Name   string         `json:"name"`
	Email  string         `json:"email"`
	TaxID  string         `json:"tax_id"`
	Phones []pagBankPhone `json:"phones"`
}

type pagBankItem struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitAmount int64  `json:"unit_amount"`
}

type pagBankAmount struct {
	Value int64 `json:"value"`
}

type pagBankQRCode struct {
	Amount         pagBankAmount `json:"amount"`
	ExpirationDate string        `json:"expiration_date"`
}

type pagBankOrderRequest struct {
	ReferenceID      string          `json:"reference_id"`
	Customer         pagBankCustomer `json:"customer"`
	Items            []pagBankItem   `json:"items"`
	QRCodes          []pagBankQRCode `json:"qr_codes"`
	NotificationURLs []string        `json:"notification_urls,omitempty"`
}

type pagBankLink struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Media string `json:"media"`
}

type pagBankOrderResponse struct {
	ID      string `json:"id"`
	QRCodes []struct {
		ID    string        `json:"id"`
		Text  string        `json:"text"`
		Links []pagBankLink `json:"links"`
	} `json:"qr_codes"`
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

// splitPhone returns the area code and number PagBank expects, defaulting the
// parts that cannot be derived.
func splitPhone(phone string) (string, string) {
	digits := helpers.DigitsOnly(phone)
	switch {
	case len(digits) >= 10:
		end := len(digits)
		if end > 11 {
			end = 11
		}
		return digits[:2], digits[2:end]
	case len(digits) >= 9:
		return "31", digits[len(digits)-9:]
	default:
		return "31", "999999999"
	}
}

func (g *PagBankGateway) normalizeTaxID(taxID string) string {
	digits := helpers.DigitsOnly(taxID)
	if g.config.sandbox() {
		if !helpers.ValidTaxID(digits) {
			return sandboxTaxID
		}
		return digits
	}
	return truncate(digits, 14)
}

// normalizeEmail works around PagBank refusing a buyer email equal to the
// merchant's, which happens all the time in sandbox.
func (g *PagBankGateway) normalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	merchant := strings.ToLower(strings.TrimSpace(g.config.MerchantEmail))
	if g.config.sandbox() && (email == "" || (merchant != "" && email == merchant)) {
		return sandboxEmail
	}
	return email
}

func (g *PagBankGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	expiresIn := req.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 30 * time.Minute
	}
	expiresAt := time.Now().Add(expiresIn).Truncate(time.Second)
	area, number := splitPhone(req.BuyerPhone)

	order := pagBankOrderRequest{
		ReferenceID: req.Reference,
		Customer: pagBankCustomer{
			Name:   truncate(req.BuyerName, 100),
			Email:  truncate(g.normalizeEmail(req.BuyerEmail), 150),
			TaxID:  g.normalizeTaxID(req.BuyerTaxID),
			Phones: []pagBankPhone{{Country: "55", Area: area, Number: number, Type: "MOBILE"}},
		},
		Items: []pagBankItem{{Name: truncate(req.Description, 100), Quantity: 1, UnitAmount: req.AmountCents}},
		QRCodes: []pagBankQRCode{{
			Amount:         pagBankAmount{Value: req.AmountCents},
			ExpirationDate: expiresAt.Format(time.RFC3339),
		}},
	}
	if req.NotificationURL != "" {
		order.NotificationURLs = []string{req.NotificationURL}
	}

	body, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}

	var resp pagBankOrderResponse
	if err := g.do(ctx, http.MethodPost, g.config.baseURL()+"/orders", body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("pagbank: order response without id")
	}

	charge := &Charge{ExternalID: resp.ID, ExpiresAt: &expiresAt}
	if len(resp.QRCodes) > 0 {
		qr := resp.QRCodes[0]
		charge.QRText = qr.Text
		if charge.QRText == "" {
			for _, link := range qr.Links {
				if link.Media != "text/plain" {
					continue
				}
				// The QR text is a convenience; the charge exists without it.
				if text, err := g.fetchText(ctx, link.Href); err == nil {
					charge.QRText = text
				}
				break
			}
		}
	}
	return charge, nil
}

func (g *PagBankGateway) newRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	token := strings.TrimSpace(g.config.Token)
	if token == "" {
		return nil, fmt.Errorf("pagbank: token is not configured")
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (g *PagBankGateway) do(ctx context.Context, method, url string, body []byte, out any) error {
	req, err := g.newRequest(ctx, method, url, body)
	if err != nil {
		return err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("pagbank: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("pagbank: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pagbank: status %d: %s", resp.StatusCode, truncate(string(raw), 500))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("pagbank: decode response: %w", err)
	}
	return nil
}

func (g *PagBankGateway) fetchText(ctx context.Context, url string) (string, error) {
	req, err := g.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pagbank: qr text status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// PagBankNormalizer reads order notifications (JSON) and the legacy
// form-encoded notifications.
type PagBankNormalizer struct {
	webhookToken string
}

func NewPagBankNormalizer(webhookToken string) *PagBankNormalizer {
	return &PagBankNormalizer{webhookToken: strings.TrimSpace(webhookToken)}
}

func (n *PagBankNormalizer) Provider() string { return ProviderPagBank }

func (n *PagBankNormalizer) Verify(in Inbound) error {
	if n.webhookToken == "" {
		return nil
	}
	if !helpers.VerifyPagBankSignature(n.webhookToken, in.Body, in.Header.Get("x-authenticity-token")) {
		return ErrSignature
	}
	return nil
}

type pagBankNotification struct {
	ID          string `json:"id"`
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
	Charges     []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"charges"`
}

func (n *PagBankNormalizer) Parse(in Inbound) (ParsedNotification, error) {
	var payload pagBankNotification
	form, err := decodeBody(in, &payload)
	if err != nil {
		return ParsedNotification{}, err
	}

	if form != nil {
		raw := firstOf(form, "status", "transaction_status")
		return ParsedNotification{
			Reference:  firstOf(form, "reference_id", "reference"),
			ExternalID: firstOf(form, "id", "notificationCode", "code"),
			Status:     pagBankStatus(raw),
			RawStatus:  raw,
		}, nil
	}

	raw := payload.Status
	if len(payload.Charges) > 0 && payload.Charges[0].Status != "" {
		raw = payload.Charges[0].Status
	}
	return ParsedNotification{
		Reference:  strings.TrimSpace(payload.ReferenceID),
		ExternalID: strings.TrimSpace(payload.ID),
		Status:     pagBankStatus(raw),
		RawStatus:  raw,
	}, nil
}

func pagBankStatus(raw string) NotificationStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PAID", "AVAILABLE", "3", "4":
		return StatusPaid
	case "DECLINED", "CANCELED", "CANCELLED", "EXPIRED", "7":
		return StatusFailed
	case "WAITING", "IN_ANALYSIS", "AUTHORIZED", "1", "2":
		return StatusPending
	}
	return StatusUnknown
}
