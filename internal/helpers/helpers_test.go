package helpers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseReference(t *testing.T) {
	id := uuid.New()

	ref := PurchaseReference(id)
	assert.Equal(t, "purchase-"+id.String(), ref)

	parsed, err := ParsePurchaseReference(" " + ref + " ")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	for _, bad := range []string{"", "purchase-", "purchase-42", "order-" + id.String()} {
		_, err := ParsePurchaseReference(bad)
		assert.Error(t, err, bad)
	}
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "52998224725", DigitsOnly("529.982.247-25"))
	assert.Equal(t, "", DigitsOnly("abc"))
	assert.True(t, ValidTaxID(DigitsOnly("529.982.247-25")))
	assert.True(t, ValidTaxID("11222333000181"))
	assert.False(t, ValidTaxID("1234"))
}

func TestVerifyPagBankSignature(t *testing.T) {
	body := []byte(`{"id":"ORDE_1"}`)
	sig := PagBankSignature("secret", body)

	assert.True(t, VerifyPagBankSignature("secret", body, sig))
	assert.True(t, VerifyPagBankSignature("secret", body, "  "+sig))
	assert.False(t, VerifyPagBankSignature("other", body, sig))
	assert.False(t, VerifyPagBankSignature("secret", []byte(`{"id":"ORDE_2"}`), sig))
	assert.False(t, VerifyPagBankSignature("", body, sig))
	assert.False(t, VerifyPagBankSignature("secret", body, ""))
}

func TestVerifyCallbackToken(t *testing.T) {
	assert.True(t, VerifyCallbackToken("cb-token", "cb-token"))
	assert.False(t, VerifyCallbackToken("cb-token", "nope"))
	assert.False(t, VerifyCallbackToken("", ""))
}
