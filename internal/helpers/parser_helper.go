package helpers

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const purchaseReferencePrefix = "purchase-"

func StringToInt(s string) (int, error) {
	return strconv.Atoi(s)
}

// PurchaseReference is the reference sent to payment providers and echoed back
// in their notifications.
func PurchaseReference(purchaseID uuid.UUID) string {
	return purchaseReferencePrefix + purchaseID.String()
}

func ParsePurchaseReference(reference string) (uuid.UUID, error) {
	reference = strings.TrimSpace(reference)
	if !strings.HasPrefix(reference, purchaseReferencePrefix) {
		return uuid.Nil, fmt.Errorf("invalid purchase reference %q", reference)
	}

	id, err := uuid.Parse(strings.TrimPrefix(reference, purchaseReferencePrefix))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid purchase reference %q: %w", reference, err)
	}
	return id, nil
}

func DigitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, s)
}

// ValidTaxID accepts CPF (11 digits) and CNPJ (14 digits) lengths.
func ValidTaxID(digits string) bool {
	return len(digits) == 11 || len(digits) == 14
}
