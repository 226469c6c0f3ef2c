package captcha

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives a stable hash from the client's network origin.
// It binds a session to the issuing client without storing the
// user-agent itself.
func Fingerprint(ip string, userAgent string) string {
	if userAgent == "" {
		userAgent = "unknown"
	}
	sum := sha256.Sum256([]byte(ip + ":" + userAgent))
	return hex.EncodeToString(sum[:])
}
