package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Webhook signature headers. The generic header is checked first; the
// provider-specific one is a fallback for unmodified HubSpot deliveries.
const (
	SignatureHeader        = "X-Webhook-Signature"
	HubSpotSignatureHeader = "X-HubSpot-Signature-v3"
	BodyEncodingHeader     = "X-Body-Encoding"

	// RawBodyKey is where the verified (and decoded) payload is stored
	// for the handler.
	RawBodyKey = "webhook_raw_body"
)

// WebhookSignature verifies the HMAC-SHA256 signature of webhook
// deliveries. The signature is computed over the body exactly as received;
// an optional base64 transport encoding is decoded only after verification.
//
// A source with no configured secret is accepted unverified. A configured
// secret with a missing signature header is logged and let through, so
// that enabling verification cannot silently drop events mid-rollout; a
// present but wrong signature is rejected.
func WebhookSignature(secrets map[string]string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		source := c.Param("source")

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "REQUEST_TOO_LARGE",
					"message": "failed to read request body",
				},
			})
			return
		}

		secret := secrets[source]
		if secret != "" {
			signature := c.GetHeader(SignatureHeader)
			if signature == "" {
				signature = c.GetHeader(HubSpotSignatureHeader)
			}

			switch {
			case signature == "":
				log.Warn("webhook delivered without signature",
					zap.String("source", source),
					zap.String("remote_addr", c.ClientIP()),
				)
			case !validSignature(secret, body, signature):
				log.Warn("webhook signature mismatch",
					zap.String("source", source),
					zap.String("remote_addr", c.ClientIP()),
				)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "INVALID_SIGNATURE",
						"message": "webhook signature verification failed",
					},
				})
				return
			}
		}

		if c.GetHeader(BodyEncodingHeader) == "base64" {
			decoded, err := base64.StdEncoding.DecodeString(string(body))
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "BAD_REQUEST",
						"message": "body is not valid base64",
					},
				})
				return
			}
			body = decoded
		}

		c.Set(RawBodyKey, body)
		c.Next()
	}
}

// validSignature accepts both encodings seen in the wild: hex digests from
// generic senders and base64 digests from HubSpot's v3 scheme.
func validSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sum := mac.Sum(nil)

	if hmac.Equal([]byte(hex.EncodeToString(sum)), []byte(signature)) {
		return true
	}
	return hmac.Equal([]byte(base64.StdEncoding.EncodeToString(sum)), []byte(signature))
}
