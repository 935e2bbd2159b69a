package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentStatusPending, PaymentStatusCompleted, true},
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusCompleted, PaymentStatusFailed, false},
		{PaymentStatusCompleted, PaymentStatusPending, false},
		{PaymentStatusFailed, PaymentStatusCompleted, false},
		{PaymentStatusFailed, PaymentStatusPending, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestPaymentIsTerminal(t *testing.T) {
	p := &Payment{Status: PaymentStatusPending}
	if p.IsTerminal() {
		t.Error("pending payment should not be terminal")
	}
	p.Status = PaymentStatusCompleted
	if !p.IsTerminal() {
		t.Error("completed payment should be terminal")
	}
	p.Status = PaymentStatusFailed
	if !p.IsTerminal() {
		t.Error("failed payment should be terminal")
	}
}

func TestPaymentCorrelationKey(t *testing.T) {
	card := &Payment{Provider: ProviderCardHosted}
	if got := card.CorrelationKey(); got != MetaSessionID {
		t.Errorf("card correlation key = %q, want %q", got, MetaSessionID)
	}
	push := &Payment{Provider: ProviderMpesaPush}
	if got := push.CorrelationKey(); got != MetaCheckoutRequestID {
		t.Errorf("push correlation key = %q, want %q", got, MetaCheckoutRequestID)
	}
}

func TestOrderConfirm(t *testing.T) {
	order, err := NewOrder("id", "ORD-1", "user", decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	if err := order.Confirm(); err != nil {
		t.Fatalf("Confirm from pending: %v", err)
	}
	if order.Status != OrderStatusConfirmed {
		t.Errorf("status = %s, want %s", order.Status, OrderStatusConfirmed)
	}

	// confirming again is a no-op
	if err := order.Confirm(); err != nil {
		t.Errorf("Confirm on confirmed order: %v", err)
	}

	order.Status = OrderStatusShipped
	if err := order.Confirm(); err == nil {
		t.Error("expected error confirming a shipped order")
	}
}

func TestNewOrderValidation(t *testing.T) {
	if _, err := NewOrder("", "ORD-1", "user", decimal.NewFromInt(10)); err == nil {
		t.Error("expected error for empty id")
	}
	if _, err := NewOrder("id", "ORD-1", "user", decimal.Zero); err == nil {
		t.Error("expected error for zero total")
	}
	if _, err := NewOrder("id", "ORD-1", "user", decimal.NewFromInt(-5)); err == nil {
		t.Error("expected error for negative total")
	}
}

func TestMetadataScanValue(t *testing.T) {
	m := Metadata{"session_id": "cs_123"}
	v, err := m.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	var out Metadata
	if err := out.Scan([]byte(v.(string))); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if out["session_id"] != "cs_123" {
		t.Errorf("round-tripped metadata = %v", out)
	}

	var empty Metadata
	if err := empty.Scan(nil); err != nil {
		t.Fatalf("Scan nil: %v", err)
	}
	if empty == nil {
		t.Error("scanning nil should produce an empty map")
	}
}
