package payments

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const (
	ProviderPagBank = "pagbank"
	ProviderXendit  = "xendit"
)

var (
	ErrSignature       = errors.New("notification signature mismatch")
	ErrMalformed       = errors.New("notification payload not understood")
	ErrUnknownProvider = errors.New("unknown payment provider")
)

type ChargeRequest struct {
	Reference       string
	Description     string
	AmountCents     int64
	Currency        string
	BuyerName       string
	BuyerEmail      string
	BuyerTaxID      string
	BuyerPhone      string
	NotificationURL string
	ExpiresIn       time.Duration
}

type Charge struct {
	ExternalID  string
	CheckoutURL string
	QRText      string
	ExpiresAt   *time.Time
}

// Gateway opens a charge on a provider. Implementations must not touch the
// database; the caller persists the Payment.
type Gateway interface {
	Provider() string
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
}

type NotificationStatus string

const (
	StatusPaid    NotificationStatus = "paid"
	StatusFailed  NotificationStatus = "failed"
	StatusPending NotificationStatus = "pending"
	StatusUnknown NotificationStatus = "unknown"
)

type ParsedNotification struct {
	Reference  string
	Status     NotificationStatus
	ExternalID string
	// RawStatus is what the provider sent, kept for the webhook inbox.
	RawStatus string
}

type Inbound struct {
	ContentType string
	Header      http.Header
	Body        []byte
}

// Normalizer turns one provider's notification into a ParsedNotification.
type Normalizer interface {
	Provider() string
	Verify(in Inbound) error
	Parse(in Inbound) (ParsedNotification, error)
}

type Normalizers map[string]Normalizer

func NewNormalizers(list ...Normalizer) Normalizers {
	out := Normalizers{}
	for _, n := range list {
		out[n.Provider()] = n
	}
	return out
}

func (n Normalizers) Get(provider string) (Normalizer, error) {
	normalizer, ok := n[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return normalizer, nil
}
