package stripe

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
)

const webhookSecret = "whsec_test"

func signedHeader(t time.Time, payload []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", t.Unix(), ComputeSignature(t, payload, webhookSecret))
}

func TestVerifySignatureValid(t *testing.T) {
	c := NewClient("sk_test", "https://api.example.com", webhookSecret, "https://shop.example.com", zap.NewNop())
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	now := time.Now()

	if err := c.VerifySignature(payload, signedHeader(now, payload), now); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	c := NewClient("sk_test", "https://api.example.com", webhookSecret, "https://shop.example.com", zap.NewNop())
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), ComputeSignature(now, payload, "whsec_other"))

	err := c.VerifySignature(payload, header, now)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifySignatureTamperedPayload(t *testing.T) {
	c := NewClient("sk_test", "https://api.example.com", webhookSecret, "https://shop.example.com", zap.NewNop())
	now := time.Now()
	header := signedHeader(now, []byte(`{"amount":100}`))

	err := c.VerifySignature([]byte(`{"amount":10000}`), header, now)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifySignatureStaleTimestamp(t *testing.T) {
	c := NewClient("sk_test", "https://api.example.com", webhookSecret, "https://shop.example.com", zap.NewNop())
	payload := []byte(`{}`)
	signedAt := time.Now().Add(-10 * time.Minute)

	err := c.VerifySignature(payload, signedHeader(signedAt, payload), time.Now())
	if !errors.Is(err, ErrSignatureTooOld) {
		t.Fatalf("err = %v, want ErrSignatureTooOld", err)
	}
}

func TestVerifySignatureMalformedHeader(t *testing.T) {
	c := NewClient("sk_test", "https://api.example.com", webhookSecret, "https://shop.example.com", zap.NewNop())
	for _, header := range []string{"", "v1=abc", "t=notanumber,v1=abc", "t=123"} {
		err := c.VerifySignature([]byte(`{}`), header, time.Now())
		if !errors.Is(err, ErrMalformedSigning) {
			t.Errorf("header %q: err = %v, want ErrMalformedSigning", header, err)
		}
	}
}

func TestParseEventSession(t *testing.T) {
	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_123",
				"payment_intent": "pi_456",
				"payment_status": "paid",
				"amount_total": 12050,
				"metadata": {"order_id": "o-1", "order_number": "ORD-1"}
			}
		}
	}`)

	event, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if event.Type != EventCheckoutCompleted {
		t.Errorf("type = %q", event.Type)
	}
	session, err := event.Session()
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if session.ID != "cs_123" || session.PaymentIntent != "pi_456" {
		t.Errorf("session = %+v", session)
	}
	if session.AmountTotal != 12050 {
		t.Errorf("amount total = %d", session.AmountTotal)
	}
	if session.Metadata["order_id"] != "o-1" {
		t.Errorf("metadata = %v", session.Metadata)
	}
}
