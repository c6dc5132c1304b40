package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sign produces the X-Webhook-Signature header value for a payload:
// "t=<unix>,v1=<hex>", where v1 is HMAC-SHA256 over "<unix>.<payload>".
// Receivers recompute the digest and compare within their own tolerance
// window; the timestamp exists so they can enforce one.
func Sign(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, computeDigest(ts, payload, secret))
}

func computeDigest(timestamp string, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the digest for a signature header and compares
// in constant time. Timestamp tolerance is the caller's concern.
func VerifySignature(header string, payload []byte, secret string) bool {
	var ts, v1 string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			v1 = v
		}
	}
	if ts == "" || v1 == "" {
		return false
	}
	if _, err := strconv.ParseInt(ts, 10, 64); err != nil {
		return false
	}

	expected, err := hex.DecodeString(computeDigest(ts, payload, secret))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(v1)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
