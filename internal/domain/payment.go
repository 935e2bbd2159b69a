package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentProvider string

const (
	ProviderCardHosted PaymentProvider = "CARD_HOSTED"
	ProviderMpesaPush  PaymentProvider = "MPESA_PUSH"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// Metadata keys used to correlate provider callbacks with payments.
const (
	MetaSessionID         = "session_id"
	MetaPaymentIntentID   = "payment_intent_id"
	MetaCheckoutRequestID = "checkout_request_id"
	MetaMerchantRequestID = "merchant_request_id"
	MetaReceiptNumber     = "receipt_number"
	MetaPaidAmount        = "paid_amount"
	MetaFailureReason     = "failure_reason"
)

var ErrPaymentNotFound = errors.New("payment not found")

// Metadata is the provider-specific correlation map stored as JSONB.
type Metadata map[string]string

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported metadata source type %T", src)
	}
}

type Payment struct {
	ID            string
	OrderID       string
	Provider      PaymentProvider
	Status        PaymentStatus
	Amount        decimal.Decimal
	TransactionID *string
	Metadata      Metadata
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusCompleted || p.Status == PaymentStatusFailed
}

// CorrelationKey names the metadata entry a provider's callback is
// matched on.
func (p *Payment) CorrelationKey() string {
	switch p.Provider {
	case ProviderMpesaPush:
		return MetaCheckoutRequestID
	default:
		return MetaSessionID
	}
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusCompleted, PaymentStatusFailed},
	// terminal states allow no further transitions
	PaymentStatusCompleted: {},
	PaymentStatusFailed:    {},
}

// CanTransition reports whether moving a payment from one status to
// another is allowed by the state machine.
func CanTransition(from, to PaymentStatus) bool {
	allowed, ok := paymentTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
