package webhook

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignFormat(t *testing.T) {
	at := time.Unix(1756684800, 0)
	header := Sign([]byte(`{"id":"evt_1"}`), "whsec_test", at)

	var ts int64
	var digest string
	n, err := fmt.Sscanf(header, "t=%d,v1=%s", &ts, &digest)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	assert.Equal(t, int64(1756684800), ts)
	assert.Len(t, digest, 64) // hex-encoded SHA-256
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"donation.created"}`)
	secret := "whsec_test"
	header := Sign(payload, secret, time.Now())

	t.Run("round trip", func(t *testing.T) {
		assert.True(t, VerifySignature(header, payload, secret))
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.False(t, VerifySignature(header, payload, "whsec_other"))
	})

	t.Run("tampered payload", func(t *testing.T) {
		assert.False(t, VerifySignature(header, []byte(`{"id":"evt_2"}`), secret))
	})

	t.Run("tampered timestamp", func(t *testing.T) {
		// The digest covers the timestamp, so rewriting it invalidates v1.
		_, v1, found := strings.Cut(header, ",v1=")
		require.True(t, found)
		assert.False(t, VerifySignature("t=1,v1="+v1, payload, secret))
	})

	t.Run("malformed headers", func(t *testing.T) {
		assert.False(t, VerifySignature("", payload, secret))
		assert.False(t, VerifySignature("v1=deadbeef", payload, secret))
		assert.False(t, VerifySignature("t=123", payload, secret))
		assert.False(t, VerifySignature("t=abc,v1=deadbeef", payload, secret))
		assert.False(t, VerifySignature("t=123,v1=zzzz", payload, secret))
	})
}

func TestSignatureDiffersPerSecret(t *testing.T) {
	payload := []byte(`{}`)
	at := time.Unix(1756684800, 0)
	assert.NotEqual(t, Sign(payload, "whsec_a", at), Sign(payload, "whsec_b", at))
}
