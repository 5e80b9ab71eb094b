package helpers

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// PagBankSignature is the hex sha256 of "<webhook token>-<raw body>" that
// PagBank sends in the x-authenticity-token header.
func PagBankSignature(token string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(token + "-"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func VerifyPagBankSignature(token string, body []byte, received string) bool {
	token = strings.TrimSpace(token)
	received = strings.ToLower(strings.TrimSpace(received))
	if token == "" || received == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(PagBankSignature(token, body)), []byte(received)) == 1
}

func VerifyCallbackToken(expected, received string) bool {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(received))) == 1
}
