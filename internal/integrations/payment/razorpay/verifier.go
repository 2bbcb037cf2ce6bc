package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Verifier checks checkout signatures: hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
type Verifier struct {
	secret []byte
}

func NewVerifier(keySecret string) *Verifier {
	return &Verifier{secret: []byte(keySecret)}
}

func (v *Verifier) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	_, _ = mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches. An unconfigured secret never verifies.
func (v *Verifier) Verify(orderID, paymentID, signature string) bool {
	if len(v.secret) == 0 || signature == "" {
		return false
	}
	expected := v.Sign(orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}
