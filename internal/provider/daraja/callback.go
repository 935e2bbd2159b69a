package daraja

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// CallbackEnvelope is the nested body Daraja posts to the callback URL.
type CallbackEnvelope struct {
	Body struct {
		StkCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string           `json:"MerchantRequestID"`
	CheckoutRequestID string           `json:"CheckoutRequestID"`
	ResultCode        int              `json:"ResultCode"`
	ResultDesc        string           `json:"ResultDesc"`
	CallbackMetadata  CallbackMetadata `json:"CallbackMetadata"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem values arrive as strings or numbers depending on the
// field, so they are kept raw until looked up by name.
type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// Succeeded reports whether the push completed on the subscriber side.
func (c *STKCallback) Succeeded() bool {
	return c.ResultCode == 0
}

// ReceiptNumber extracts the MpesaReceiptNumber metadata item.
func (c *STKCallback) ReceiptNumber() string {
	raw, ok := c.item("MpesaReceiptNumber")
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Amount extracts the paid amount metadata item.
func (c *STKCallback) Amount() (decimal.Decimal, error) {
	raw, ok := c.item("Amount")
	if !ok {
		return decimal.Zero, fmt.Errorf("callback metadata missing Amount item")
	}
	var amount decimal.Decimal
	if err := json.Unmarshal(raw, &amount); err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse callback amount: %w", err)
	}
	return amount, nil
}

func (c *STKCallback) item(name string) (json.RawMessage, bool) {
	for _, item := range c.CallbackMetadata.Item {
		if item.Name == name {
			return item.Value, true
		}
	}
	return nil, false
}
