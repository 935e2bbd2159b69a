package daraja

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const countryCode = "254"

// Client talks to the mobile-money provider's Daraja API.
type Client struct {
	consumerKey    string
	consumerSecret string
	shortCode      string
	passKey        string
	apiBase        string
	callbackURL    string
	httpClient     *http.Client
	logger         *zap.Logger
}

func NewClient(consumerKey, consumerSecret, shortCode, passKey, apiBase, callbackURL string, logger *zap.Logger) *Client {
	return &Client{
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		shortCode:      shortCode,
		passKey:        passKey,
		apiBase:        strings.TrimRight(apiBase, "/"),
		callbackURL:    callbackURL,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		logger:         logger,
	}
}

// NormalizePhone converts a subscriber number to the fixed
// international format: digits only, national trunk prefix replaced by
// the country code.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "0") {
		return countryCode + digits[1:]
	}
	return digits
}

// Timestamp renders the provider-required request timestamp in UTC.
func Timestamp(t time.Time) string {
	return t.UTC().Format("20060102150405")
}

// Password derives the shared-secret request password:
// base64(shortcode + passkey + timestamp).
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// fetchToken exchanges client credentials for a short-lived bearer
// token. Tokens are fetched fresh per push, not cached.
func (c *Client) fetchToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request rejected with status %d", resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token response missing access token")
	}
	return token.AccessToken, nil
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPushResponse carries the two correlation identifiers returned for
// a push request.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// InitiateSTKPush prompts the subscriber's phone to authorize payment.
// The provider only accepts whole currency units, so the amount is
// rounded up.
func (c *Client) InitiateSTKPush(ctx context.Context, phone string, amount decimal.Decimal, orderNumber string) (*STKPushResponse, error) {
	token, err := c.fetchToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := Timestamp(time.Now())
	payload := stkPushRequest{
		BusinessShortCode: c.shortCode,
		Password:          Password(c.shortCode, c.passKey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount.Ceil().IntPart(),
		PartyA:            phone,
		PartyB:            c.shortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.callbackURL,
		AccountReference:  orderNumber,
		TransactionDesc:   "Payment for order " + orderNumber,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stk push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build stk push request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stk push request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read stk push response: %w", err)
	}

	pushResp := &STKPushResponse{}
	if err := json.Unmarshal(respBody, pushResp); err != nil {
		return nil, fmt.Errorf("failed to decode stk push response (status %d): %w", resp.StatusCode, err)
	}
	if pushResp.ResponseCode != "0" {
		return nil, fmt.Errorf("stk push rejected: %s", pushResp.ResponseDescription)
	}

	c.logger.Info("STK push initiated",
		zap.String("checkout_request_id", pushResp.CheckoutRequestID),
		zap.String("order_number", orderNumber))
	return pushResp, nil
}
