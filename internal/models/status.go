package models

type PurchaseStatus string

const (
	PurchaseReservationPending      PurchaseStatus = "reservation_pending"
	PurchaseReservationPendingPrice PurchaseStatus = "reservation_pending_price"
	PurchasePendingPayment          PurchaseStatus = "pending_payment"
	PurchasePaid                    PurchaseStatus = "paid"
	PurchaseReserved                PurchaseStatus = "reserved"
	PurchaseFailed                  PurchaseStatus = "failed"
	PurchaseCancelled               PurchaseStatus = "cancelled"
)

// purchaseTransitions lists every legal move out of a state. States that are
// missing as keys accept no transition at all.
//
// failed -> paid covers a provider confirming a charge after the local expiry
// check already gave up on it; the money was collected and must be honored.
var purchaseTransitions = map[PurchaseStatus][]PurchaseStatus{
	PurchaseReservationPending:      {PurchaseReserved, PurchaseCancelled},
	PurchaseReservationPendingPrice: {PurchaseReserved, PurchaseCancelled},
	PurchasePendingPayment:          {PurchasePaid, PurchaseFailed, PurchaseCancelled},
	PurchaseFailed:                  {PurchasePaid},
}

func (s PurchaseStatus) IsValid() bool {
	switch s {
	case PurchaseReservationPending, PurchaseReservationPendingPrice, PurchasePendingPayment,
		PurchasePaid, PurchaseReserved, PurchaseFailed, PurchaseCancelled:
		return true
	}
	return false
}

// IsOpen reports whether the purchase is still waiting on a payment or an operator.
func (s PurchaseStatus) IsOpen() bool {
	switch s {
	case PurchaseReservationPending, PurchaseReservationPendingPrice, PurchasePendingPayment:
		return true
	}
	return false
}

func (s PurchaseStatus) CanTransitionTo(next PurchaseStatus) bool {
	for _, allowed := range purchaseTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type TicketStatus string

const (
	TicketIssued    TicketStatus = "issued"
	TicketCheckedIn TicketStatus = "checked_in"
	TicketCancelled TicketStatus = "cancelled"
)

type PersonRole string

const (
	RoleBuyer PersonRole = "buyer"
	RoleGuest PersonRole = "guest"
)
