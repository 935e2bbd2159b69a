package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/provider/daraja"
	"storefront/internal/provider/stripe"
	"storefront/internal/testsupport"
)

type fakePaymentRepo struct {
	payments map[string]*domain.Payment // keyed by order id
	created  []*domain.Payment
	resets   int
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[string]*domain.Payment)}
}

func (r *fakePaymentRepo) CreateTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error {
	r.created = append(r.created, payment)
	r.payments[payment.OrderID] = payment
	return nil
}

func (r *fakePaymentRepo) GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Payment, error) {
	for _, p := range r.payments {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (r *fakePaymentRepo) GetByOrderIDTx(ctx context.Context, querier domain.Querier, orderID string) (*domain.Payment, error) {
	if p, ok := r.payments[orderID]; ok {
		return p, nil
	}
	return nil, domain.ErrPaymentNotFound
}

func (r *fakePaymentRepo) GetByMetadataTx(ctx context.Context, querier domain.Querier, key, value string) (*domain.Payment, error) {
	for _, p := range r.payments {
		if p.Metadata[key] == value {
			return p, nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (r *fakePaymentRepo) CompleteTx(ctx context.Context, querier domain.Querier, id, transactionID string, extra domain.Metadata) error {
	p, err := r.GetByIDTx(ctx, querier, id)
	if err != nil {
		return err
	}
	p.Status = domain.PaymentStatusCompleted
	p.TransactionID = &transactionID
	for k, v := range extra {
		p.Metadata[k] = v
	}
	return nil
}

func (r *fakePaymentRepo) FailTx(ctx context.Context, querier domain.Querier, id, reason string) error {
	p, err := r.GetByIDTx(ctx, querier, id)
	if err != nil {
		return err
	}
	p.Status = domain.PaymentStatusFailed
	p.Metadata = domain.Metadata{domain.MetaFailureReason: reason}
	return nil
}

func (r *fakePaymentRepo) ResetCorrelationTx(ctx context.Context, querier domain.Querier, id string, provider domain.PaymentProvider, metadata domain.Metadata) error {
	r.resets++
	p, err := r.GetByIDTx(ctx, querier, id)
	if err != nil {
		return err
	}
	p.Provider = provider
	p.Metadata = metadata
	return nil
}

type fakeCardGateway struct {
	session *stripe.CheckoutSession
	err     error
	gotID   string
	gotNum  string
	items   []stripe.LineItem
}

func (g *fakeCardGateway) CreateCheckoutSession(ctx context.Context, orderID, orderNumber string, total decimal.Decimal, items []stripe.LineItem) (*stripe.CheckoutSession, error) {
	g.gotID = orderID
	g.gotNum = orderNumber
	g.items = items
	if g.err != nil {
		return nil, g.err
	}
	return g.session, nil
}

type fakePushGateway struct {
	resp     *daraja.STKPushResponse
	err      error
	gotPhone string
}

func (g *fakePushGateway) InitiateSTKPush(ctx context.Context, phone string, amount decimal.Decimal, orderNumber string) (*daraja.STKPushResponse, error) {
	g.gotPhone = phone
	if g.err != nil {
		return nil, g.err
	}
	return g.resp, nil
}

func TestCreateCardSessionValidation(t *testing.T) {
	svc := NewCheckoutService(testsupport.OpenDB(t), newFakePaymentRepo(), &fakeCardGateway{}, &fakePushGateway{}, zap.NewNop())

	cases := []struct {
		name string
		req  *CardSessionRequest
	}{
		{"missing order id", &CardSessionRequest{OrderNumber: "ORD-1", Total: decimal.NewFromInt(10)}},
		{"missing order number", &CardSessionRequest{OrderID: "o-1", Total: decimal.NewFromInt(10)}},
		{"zero total", &CardSessionRequest{OrderID: "o-1", OrderNumber: "ORD-1"}},
		{"negative total", &CardSessionRequest{OrderID: "o-1", OrderNumber: "ORD-1", Total: decimal.NewFromInt(-5)}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := svc.CreateCardSession(context.Background(), c.req); !errors.Is(err, ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateCardSessionPersistsSessionID(t *testing.T) {
	repo := newFakePaymentRepo()
	card := &fakeCardGateway{session: &stripe.CheckoutSession{ID: "cs_abc", URL: "https://pay.example.com/cs_abc"}}
	svc := NewCheckoutService(testsupport.OpenDB(t), repo, card, &fakePushGateway{}, zap.NewNop())

	resp, err := svc.CreateCardSession(context.Background(), &CardSessionRequest{
		OrderID:     "o-1",
		OrderNumber: "ORD-1",
		Total:       decimal.RequireFromString("25.50"),
		Items:       []CartItem{{ProductName: "Shirt", UnitPrice: decimal.RequireFromString("25.50"), Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateCardSession: %v", err)
	}
	if resp.SessionID != "cs_abc" || resp.URL != "https://pay.example.com/cs_abc" {
		t.Errorf("response = %+v", resp)
	}
	if len(card.items) != 1 || card.items[0].ProductName != "Shirt" {
		t.Errorf("gateway items = %+v", card.items)
	}

	if len(repo.created) != 1 {
		t.Fatalf("created %d payments, want 1", len(repo.created))
	}
	p := repo.created[0]
	if p.Provider != domain.ProviderCardHosted {
		t.Errorf("provider = %s", p.Provider)
	}
	if p.Status != domain.PaymentStatusPending {
		t.Errorf("status = %s", p.Status)
	}
	if p.Metadata[domain.MetaSessionID] != "cs_abc" {
		t.Errorf("metadata = %v", p.Metadata)
	}
}

func TestCreateCardSessionGatewayFailureDoesNotPersist(t *testing.T) {
	repo := newFakePaymentRepo()
	card := &fakeCardGateway{err: errors.New("provider down")}
	svc := NewCheckoutService(testsupport.OpenDB(t), repo, card, &fakePushGateway{}, zap.NewNop())

	_, err := svc.CreateCardSession(context.Background(), &CardSessionRequest{
		OrderID: "o-1", OrderNumber: "ORD-1", Total: decimal.NewFromInt(10),
	})
	if err == nil {
		t.Fatal("expected gateway error")
	}
	if len(repo.created) != 0 {
		t.Errorf("no payment should be created on gateway failure")
	}
}

func TestInitiatePushPaymentPersistsCorrelationIDs(t *testing.T) {
	repo := newFakePaymentRepo()
	push := &fakePushGateway{resp: &daraja.STKPushResponse{
		CheckoutRequestID: "ws_CO_1",
		MerchantRequestID: "mr_1",
		CustomerMessage:   "Success. Request accepted for processing",
	}}
	svc := NewCheckoutService(testsupport.OpenDB(t), repo, &fakeCardGateway{}, push, zap.NewNop())

	resp, err := svc.InitiatePushPayment(context.Background(), &PushPaymentRequest{
		Phone:       "0712345678",
		Amount:      decimal.NewFromInt(150),
		OrderID:     "o-2",
		OrderNumber: "ORD-2",
	})
	if err != nil {
		t.Fatalf("InitiatePushPayment: %v", err)
	}
	if !resp.Success || resp.CheckoutRequestID != "ws_CO_1" {
		t.Errorf("response = %+v", resp)
	}
	if push.gotPhone != "254712345678" {
		t.Errorf("phone sent to gateway = %q, want normalized 254712345678", push.gotPhone)
	}

	p, err := repo.GetByOrderIDTx(context.Background(), nil, "o-2")
	if err != nil {
		t.Fatalf("payment not persisted: %v", err)
	}
	if p.Metadata[domain.MetaCheckoutRequestID] != "ws_CO_1" || p.Metadata[domain.MetaMerchantRequestID] != "mr_1" {
		t.Errorf("metadata = %v", p.Metadata)
	}
	if p.Provider != domain.ProviderMpesaPush {
		t.Errorf("provider = %s", p.Provider)
	}
}

func TestInitiatePushPaymentValidation(t *testing.T) {
	svc := NewCheckoutService(testsupport.OpenDB(t), newFakePaymentRepo(), &fakeCardGateway{}, &fakePushGateway{}, zap.NewNop())

	_, err := svc.InitiatePushPayment(context.Background(), &PushPaymentRequest{
		Phone: "0712345678", OrderID: "o-1", OrderNumber: "ORD-1",
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for zero amount, got %v", err)
	}
}

func TestReentryOverwritesCorrelation(t *testing.T) {
	repo := newFakePaymentRepo()
	card := &fakeCardGateway{session: &stripe.CheckoutSession{ID: "cs_first", URL: "https://pay.example.com/cs_first"}}
	push := &fakePushGateway{resp: &daraja.STKPushResponse{CheckoutRequestID: "ws_CO_2", MerchantRequestID: "mr_2"}}
	svc := NewCheckoutService(testsupport.OpenDB(t), repo, card, push, zap.NewNop())

	if _, err := svc.CreateCardSession(context.Background(), &CardSessionRequest{
		OrderID: "o-1", OrderNumber: "ORD-1", Total: decimal.NewFromInt(10),
	}); err != nil {
		t.Fatalf("CreateCardSession: %v", err)
	}

	// customer abandons the card flow and retries with a phone push
	if _, err := svc.InitiatePushPayment(context.Background(), &PushPaymentRequest{
		Phone: "254712345678", Amount: decimal.NewFromInt(10), OrderID: "o-1", OrderNumber: "ORD-1",
	}); err != nil {
		t.Fatalf("InitiatePushPayment: %v", err)
	}

	if repo.resets != 1 {
		t.Fatalf("resets = %d, want 1", repo.resets)
	}
	p := repo.payments["o-1"]
	if p.Provider != domain.ProviderMpesaPush {
		t.Errorf("provider = %s, want switched to %s", p.Provider, domain.ProviderMpesaPush)
	}
	if _, ok := p.Metadata[domain.MetaSessionID]; ok {
		t.Errorf("stale session id survived correlation reset: %v", p.Metadata)
	}
	if p.Metadata[domain.MetaCheckoutRequestID] != "ws_CO_2" {
		t.Errorf("metadata = %v", p.Metadata)
	}
}
