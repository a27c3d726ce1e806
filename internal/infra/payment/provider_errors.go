package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"automation-subscription-platform/internal/domain"
)

// classifyStatus folds a provider HTTP status into the retryable / terminal
// split the settlement retry loop keys on.
func classifyStatus(code int) error {
	if code >= 500 || code == http.StatusTooManyRequests {
		return fmt.Errorf("provider returned %d: %w", code, domain.ErrProviderTransient)
	}
	return fmt.Errorf("provider returned %d: %w", code, domain.ErrProviderDeclined)
}

func transient(err error) error {
	return fmt.Errorf("%v: %w", err, domain.ErrProviderTransient)
}

// hmacToken signs the concatenated fields with the merchant private key.
// Both local providers authenticate requests and callbacks this way.
func hmacToken(privateKey string, fields ...string) string {
	h := hmac.New(sha256.New, []byte(privateKey))
	h.Write([]byte(strings.Join(fields, "")))
	return hex.EncodeToString(h.Sum(nil))
}

func validToken(privateKey, got string, fields ...string) bool {
	return hmac.Equal([]byte(hmacToken(privateKey, fields...)), []byte(got))
}
