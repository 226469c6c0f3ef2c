package captcha

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("1.2.3.4", "Mozilla/5.0")
	b := Fingerprint("1.2.3.4", "Mozilla/5.0")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprintVariesByOrigin(t *testing.T) {
	base := Fingerprint("1.2.3.4", "Mozilla/5.0")
	assert.NotEqual(t, base, Fingerprint("5.6.7.8", "Mozilla/5.0"))
	assert.NotEqual(t, base, Fingerprint("1.2.3.4", "curl/8.0"))
}

func TestFingerprintEmptyUserAgent(t *testing.T) {
	// A missing user-agent hashes as the literal "unknown".
	assert.Equal(t,
		Fingerprint("1.2.3.4", "unknown"),
		Fingerprint("1.2.3.4", ""),
	)
}
