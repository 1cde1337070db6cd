package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Verify checks a hex HMAC-SHA256 signature over the raw body. It returns
// false when the body, the signature or the secret is empty.
func Verify(secret string, body []byte, provided string) bool {
	provided = strings.TrimSpace(provided)
	if len(body) == 0 || provided == "" || secret == "" {
		return false
	}
	given, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), given)
}

// Sign returns the lowercase hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HMACVerifier verifies signatures with a fixed shared secret.
type HMACVerifier struct {
	Secret string
}

func (v HMACVerifier) Verify(body []byte, signature string) bool {
	return Verify(v.Secret, body, signature)
}
