package sync

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
)

// HubSpot webhook signature headers.
const (
	SignatureHeaderV3 = "X-HubSpot-Signature-v3"
	SignatureHeaderV1 = "X-HubSpot-Signature"
	TimestampHeader   = "X-HubSpot-Request-Timestamp"
)

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
)

// VerifySignature checks the authenticity of a webhook request against the
// shared client secret. The v3 scheme signs method+url+body+timestamp with
// HMAC-SHA256; when the v3 headers are absent a v1 signature (plain SHA-256
// of secret+body) is accepted as fallback. All comparisons are constant time.
func VerifySignature(secret string, method string, url string, body []byte, header http.Header) error {
	signature := header.Get(SignatureHeaderV3)
	timestamp := header.Get(TimestampHeader)

	if signature == "" || timestamp == "" {
		if signatureV1 := header.Get(SignatureHeaderV1); signatureV1 != "" {
			sum := sha256.Sum256(append([]byte(secret), body...))
			expected := hex.EncodeToString(sum[:])
			if hmac.Equal([]byte(expected), []byte(signatureV1)) {
				return nil
			}
			return ErrInvalidSignature
		}
		return ErrMissingSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(method))
	mac.Write([]byte(url))
	mac.Write(body)
	mac.Write([]byte(timestamp))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
