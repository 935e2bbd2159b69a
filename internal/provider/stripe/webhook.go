package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Stripe-Signature"

// DefaultTolerance bounds how stale a signed timestamp may be.
const DefaultTolerance = 5 * time.Minute

var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrSignatureTooOld  = errors.New("webhook signature timestamp outside tolerance")
	ErrMalformedSigning = errors.New("malformed signature header")
)

// Event is an inbound webhook notification.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// SessionObject is the checkout-session payload inside session events.
type SessionObject struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Metadata      map[string]string `json:"metadata"`
}

// Event types the receiver reacts to.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
	EventPaymentFailed     = "checkout.session.async_payment_failed"
)

// ComputeSignature derives the v1 signature for a payload at a given
// timestamp: HMAC-SHA256 over "<unix>.<payload>" with the secret.
func ComputeSignature(t time.Time, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", t.Unix())
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the signature header against the raw body.
// The header is a comma-separated list of k=v pairs carrying a unix
// timestamp (t) and one or more v1 signatures.
func (c *Client) VerifySignature(payload []byte, header string, now time.Time) error {
	return verifySignature(payload, header, c.webhookSecret, now, DefaultTolerance)
}

func verifySignature(payload []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	if header == "" {
		return ErrMalformedSigning
	}

	var timestamp int64 = -1
	var signatures []string
	for _, pair := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "t":
			ts, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return ErrMalformedSigning
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, parts[1])
		}
	}
	if timestamp < 0 || len(signatures) == 0 {
		return ErrMalformedSigning
	}

	signedAt := time.Unix(timestamp, 0)
	if now.Sub(signedAt) > tolerance || signedAt.Sub(now) > tolerance {
		return ErrSignatureTooOld
	}

	expected := ComputeSignature(signedAt, payload, secret)
	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// ParseEvent decodes a verified webhook body.
func ParseEvent(payload []byte) (*Event, error) {
	event := &Event{}
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook event: %w", err)
	}
	return event, nil
}

// Session decodes the event's data object as a checkout session.
func (e *Event) Session() (*SessionObject, error) {
	session := &SessionObject{}
	if err := json.Unmarshal(e.Data.Object, session); err != nil {
		return nil, fmt.Errorf("failed to decode session object: %w", err)
	}
	return session, nil
}
