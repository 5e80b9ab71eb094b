package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/farellandr/showticket/internal/helpers"
	"github.com/xendit/xendit-go/v6"
	"github.com/xendit/xendit-go/v6/invoice"
)

type createInvoiceFunc func(ctx context.Context, req invoice.CreateInvoiceRequest) (*invoice.Invoice, error)

type XenditGateway struct {
	createInvoice createInvoiceFunc
	timeout       time.Duration
}

func NewXenditGateway(client *xendit.APIClient, timeout time.Duration) *XenditGateway {
	return &XenditGateway{
		timeout: timeout,
		createInvoice: func(ctx context.Context, req invoice.CreateInvoiceRequest) (*invoice.Invoice, error) {
			resp, _, xerr := client.InvoiceApi.CreateInvoice(ctx).
				CreateInvoiceRequest(req).
				Execute()
			if xerr != nil {
				return nil, fmt.Errorf("xendit: %s", xerr.Error())
			}
			return resp, nil
		},
	}
}

func (g *XenditGateway) Provider() string { return ProviderXendit }

func (g *XenditGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	r := *invoice.NewCreateInvoiceRequest(req.Reference, float64(req.AmountCents)/100)
	r.SetDescription(req.Description)
	if req.Currency != "" {
		r.SetCurrency(req.Currency)
	}
	if email := strings.TrimSpace(req.BuyerEmail); email != "" {
		r.SetPayerEmail(email)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	inv, err := g.createInvoice(ctx, r)
	if err != nil {
		return nil, err
	}

	charge := &Charge{
		ExternalID:  inv.GetId(),
		CheckoutURL: inv.GetInvoiceUrl(),
	}
	if expiry := inv.GetExpiryDate(); !expiry.IsZero() {
		charge.ExpiresAt = &expiry
	}
	return charge, nil
}

// XenditNormalizer reads invoice callbacks, authenticated by the callback
// token Xendit sends in x-callback-token.
type XenditNormalizer struct {
	callbackToken string
}

func NewXenditNormalizer(callbackToken string) *XenditNormalizer {
	return &XenditNormalizer{callbackToken: strings.TrimSpace(callbackToken)}
}

func (n *XenditNormalizer) Provider() string { return ProviderXendit }

func (n *XenditNormalizer) Verify(in Inbound) error {
	if n.callbackToken == "" {
		return nil
	}
	if !helpers.VerifyCallbackToken(n.callbackToken, in.Header.Get("x-callback-token")) {
		return ErrSignature
	}
	return nil
}

type xenditCallback struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}

func (n *XenditNormalizer) Parse(in Inbound) (ParsedNotification, error) {
	var payload xenditCallback
	form, err := decodeBody(in, &payload)
	if err != nil {
		return ParsedNotification{}, err
	}
	if form != nil {
		payload.ID = firstOf(form, "id")
		payload.ExternalID = firstOf(form, "external_id")
		payload.Status = firstOf(form, "status")
	}

	return ParsedNotification{
		Reference:  strings.TrimSpace(payload.ExternalID),
		ExternalID: strings.TrimSpace(payload.ID),
		Status:     xenditStatus(payload.Status),
		RawStatus:  payload.Status,
	}, nil
}

func xenditStatus(raw string) NotificationStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PAID", "SETTLED":
		return StatusPaid
	case "EXPIRED", "FAILED":
		return StatusFailed
	case "PENDING":
		return StatusPending
	}
	return StatusUnknown
}
