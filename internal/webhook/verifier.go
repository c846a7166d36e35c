package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"
	"time"

	"github.com/solusipay/payment-aggregator/internal/core/datamodel/payment"
)

const DefaultReplayTolerance = 5 * time.Minute

// VerifyInput carries everything a gateway scheme may need. Timestamp is
// only populated by the generic entrypoint; gateway schemes that embed a
// timestamp (stripe) parse it out of the signature header instead.
type VerifyInput struct {
	RawBody   []byte
	Signature string
	Timestamp string
	Secret    string
	Now       time.Time
	Tolerance time.Duration
}

type VerifyFunc func(in VerifyInput) bool

// Verifier checks webhook authenticity per gateway. Adding a gateway is a
// registration in newVerifyRegistry, not an edit to a dispatch switch.
// Unknown gateways fail closed.
type Verifier struct {
	registry  map[payment.Gateway]VerifyFunc
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultReplayTolerance
	}
	return &Verifier{
		registry:  newVerifyRegistry(),
		tolerance: tolerance,
		now:       time.Now,
	}
}

func newVerifyRegistry() map[payment.Gateway]VerifyFunc {
	return map[payment.Gateway]VerifyFunc{
		payment.GatewayStripe:      verifyStripe,
		payment.GatewayPaystack:    verifyPaystack,
		payment.GatewayFlutterwave: verifyFlutterwave,
		payment.GatewayInternal:    verifyGeneric,
	}
}

// Verify reports whether signature authenticates rawBody for the gateway.
// Malformed signatures fail closed, never panic.
func (v *Verifier) Verify(gateway payment.Gateway, rawBody []byte, signature, secret string) bool {
	return v.VerifyWithTimestamp(gateway, rawBody, signature, "", secret)
}

// VerifyWithTimestamp additionally supplies an out-of-band timestamp header,
// used by the generic scheme for replay protection.
func (v *Verifier) VerifyWithTimestamp(gateway payment.Gateway, rawBody []byte, signature, timestamp, secret string) bool {
	verify, ok := v.registry[gateway]
	if !ok {
		return false
	}
	if signature == "" || secret == "" {
		return false
	}
	return verify(VerifyInput{
		RawBody:   rawBody,
		Signature: signature,
		Timestamp: timestamp,
		Secret:    secret,
		Now:       v.now(),
		Tolerance: v.tolerance,
	})
}

// verifyStripe expects a header of the form "t=<unixSeconds>,v1=<hex>" and
// checks HMAC-SHA256(secret, "<t>.<body>"). A stale timestamp outside the
// replay window fails even when the signature matches.
func verifyStripe(in VerifyInput) bool {
	var timestamp string
	var candidates []string

	for _, segment := range strings.Split(in.Signature, ",") {
		parts := strings.SplitN(segment, "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch strings.TrimSpace(parts[0]) {
		case "t":
			timestamp = strings.TrimSpace(parts[1])
		case "v1":
			candidates = append(candidates, strings.TrimSpace(parts[1]))
		}
	}

	if timestamp == "" || len(candidates) == 0 {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if !withinTolerance(in.Now, time.Unix(ts, 0), in.Tolerance) {
		return false
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, in.RawBody)
	expected := computeHMAC(sha256.New, in.Secret, []byte(signedPayload))

	for _, candidate := range candidates {
		if hexEqual(expected, candidate) {
			return true
		}
	}
	return false
}

// verifyPaystack checks HMAC-SHA512(secret, body), no timestamp.
func verifyPaystack(in VerifyInput) bool {
	expected := computeHMAC(sha512.New, in.Secret, in.RawBody)
	return hexEqual(expected, in.Signature)
}

// verifyFlutterwave checks HMAC-SHA256(secret, body), no timestamp.
func verifyFlutterwave(in VerifyInput) bool {
	expected := computeHMAC(sha256.New, in.Secret, in.RawBody)
	return hexEqual(expected, in.Signature)
}

// verifyGeneric checks HMAC-SHA256(secret, body), accepting an optional
// "sha256=" prefix. When a timestamp header is supplied it must fall inside
// the replay window.
func verifyGeneric(in VerifyInput) bool {
	if in.Timestamp != "" {
		ts, err := strconv.ParseInt(in.Timestamp, 10, 64)
		if err != nil {
			return false
		}
		if !withinTolerance(in.Now, time.Unix(ts, 0), in.Tolerance) {
			return false
		}
	}

	signature := strings.TrimPrefix(in.Signature, "sha256=")
	expected := computeHMAC(sha256.New, in.Secret, in.RawBody)
	return hexEqual(expected, signature)
}

func computeHMAC(newHash func() hash.Hash, secret string, payload []byte) []byte {
	mac := hmac.New(newHash, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}

// hexEqual decodes the candidate hex signature and compares in constant
// time. Non-hex input fails closed.
func hexEqual(expected []byte, candidate string) bool {
	decoded, err := hex.DecodeString(strings.ToLower(candidate))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, decoded)
}

func withinTolerance(now, signedAt time.Time, tolerance time.Duration) bool {
	drift := now.Sub(signedAt)
	if drift < 0 {
		drift = -drift
	}
	return drift <= tolerance
}
