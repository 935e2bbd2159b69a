package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Client talks to the hosted-checkout provider's REST API.
type Client struct {
	apiKey        string
	apiBase       string
	webhookSecret string
	siteBaseURL   string
	httpClient    *http.Client
	logger        *zap.Logger
}

func NewClient(apiKey, apiBase, webhookSecret, siteBaseURL string, logger *zap.Logger) *Client {
	return &Client{
		apiKey:        apiKey,
		apiBase:       strings.TrimRight(apiBase, "/"),
		webhookSecret: webhookSecret,
		siteBaseURL:   strings.TrimRight(siteBaseURL, "/"),
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        logger,
	}
}

// LineItem is one priced row of a checkout session.
type LineItem struct {
	ProductName string
	VariantName string
	UnitPrice   decimal.Decimal
	Quantity    int64
}

// CheckoutSession is the subset of the provider's session object the
// initiator needs.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// MinorUnits converts a decimal price to the provider's integer
// minor-currency-unit amount (unit price * 100, rounded).
func MinorUnits(price decimal.Decimal) int64 {
	return price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// CreateCheckoutSession requests a hosted payment session for the
// order. The order id and number ride along as metadata on both the
// session and its payment intent so either webhook event carries them.
func (c *Client) CreateCheckoutSession(ctx context.Context, orderID, orderNumber string, total decimal.Decimal, items []LineItem) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", c.siteBaseURL+"/checkout/success?order="+url.QueryEscape(orderNumber))
	form.Set("cancel_url", c.siteBaseURL+"/checkout/cancel?order="+url.QueryEscape(orderNumber))
	form.Set("metadata[order_id]", orderID)
	form.Set("metadata[order_number]", orderNumber)
	form.Set("payment_intent_data[metadata][order_id]", orderID)
	form.Set("payment_intent_data[metadata][order_number]", orderNumber)

	if len(items) == 0 {
		items = []LineItem{{ProductName: "Order " + orderNumber, UnitPrice: total, Quantity: 1}}
	}
	for i, item := range items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		name := item.ProductName
		if item.VariantName != "" {
			name = name + " - " + item.VariantName
		}
		form.Set(prefix+"[price_data][currency]", "usd")
		form.Set(prefix+"[price_data][product_data][name]", name)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(MinorUnits(item.UnitPrice), 10))
		form.Set(prefix+"[quantity]", strconv.FormatInt(item.Quantity, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build checkout session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkout session request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkout session response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("checkout session rejected: %s", apiErr.Error.Message)
		}
		return nil, fmt.Errorf("checkout session rejected with status %d", resp.StatusCode)
	}

	session := &CheckoutSession{}
	if err := json.Unmarshal(body, session); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	c.logger.Info("Checkout session created",
		zap.String("session_id", session.ID),
		zap.String("order_number", orderNumber))
	return session, nil
}
