package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/provider/daraja"
	"storefront/internal/provider/stripe"
	"storefront/internal/repository/payment_repo"
	"storefront/internal/util"
)

var ErrValidation = errors.New("invalid checkout request")

// CardGateway creates hosted checkout sessions with the card provider.
type CardGateway interface {
	CreateCheckoutSession(ctx context.Context, orderID, orderNumber string, total decimal.Decimal, items []stripe.LineItem) (*stripe.CheckoutSession, error)
}

// PushGateway prompts a subscriber's phone for a push payment.
type PushGateway interface {
	InitiateSTKPush(ctx context.Context, phone string, amount decimal.Decimal, orderNumber string) (*daraja.STKPushResponse, error)
}

type CartItem struct {
	ProductName string          `json:"productName"`
	VariantName string          `json:"variantName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int64           `json:"quantity"`
}

type CardSessionRequest struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Total       decimal.Decimal `json:"total"`
	Items       []CartItem      `json:"items"`
}

type CardSessionResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

type PushPaymentRequest struct {
	Phone       string          `json:"phone"`
	Amount      decimal.Decimal `json:"amount"`
	OrderID     string          `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
}

type PushPaymentResponse struct {
	Success           bool   `json:"success"`
	CheckoutRequestID string `json:"checkoutRequestId"`
	Message           string `json:"message"`
}

type CheckoutService interface {
	CreateCardSession(ctx context.Context, req *CardSessionRequest) (*CardSessionResponse, error)
	InitiatePushPayment(ctx context.Context, req *PushPaymentRequest) (*PushPaymentResponse, error)
}

type checkoutService struct {
	db          *sql.DB
	paymentRepo payment_repo.PaymentRepository
	cardGateway CardGateway
	pushGateway PushGateway
	logger      *zap.Logger
}

func NewCheckoutService(
	db *sql.DB,
	paymentRepo payment_repo.PaymentRepository,
	cardGateway CardGateway,
	pushGateway PushGateway,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutService{
		db:          db,
		paymentRepo: paymentRepo,
		cardGateway: cardGateway,
		pushGateway: pushGateway,
		logger:      logger,
	}
}

func (s *checkoutService) CreateCardSession(ctx context.Context, req *CardSessionRequest) (*CardSessionResponse, error) {
	if req.OrderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrValidation)
	}
	if req.OrderNumber == "" {
		return nil, fmt.Errorf("%w: order number is required", ErrValidation)
	}
	if !req.Total.IsPositive() {
		return nil, fmt.Errorf("%w: total must be positive", ErrValidation)
	}

	items := make([]stripe.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, stripe.LineItem{
			ProductName: item.ProductName,
			VariantName: item.VariantName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
		})
	}

	session, err := s.cardGateway.CreateCheckoutSession(ctx, req.OrderID, req.OrderNumber, req.Total, items)
	if err != nil {
		s.logger.Error("Failed to create checkout session",
			zap.String("order_id", req.OrderID),
			zap.Error(err))
		return nil, err
	}

	metadata := domain.Metadata{domain.MetaSessionID: session.ID}
	if err := s.persistCorrelation(ctx, req.OrderID, domain.ProviderCardHosted, req.Total, metadata); err != nil {
		s.logger.Error("Failed to persist payment record for checkout session",
			zap.String("order_id", req.OrderID),
			zap.String("session_id", session.ID),
			zap.Error(err))
		return nil, errors.New("failed to record payment")
	}

	return &CardSessionResponse{URL: session.URL, SessionID: session.ID}, nil
}

func (s *checkoutService) InitiatePushPayment(ctx context.Context, req *PushPaymentRequest) (*PushPaymentResponse, error) {
	if req.Phone == "" || req.OrderID == "" || req.OrderNumber == "" || req.Amount.IsZero() {
		return nil, fmt.Errorf("%w: phone, amount, orderId and orderNumber are required", ErrValidation)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	phone := daraja.NormalizePhone(req.Phone)

	pushResp, err := s.pushGateway.InitiateSTKPush(ctx, phone, req.Amount, req.OrderNumber)
	if err != nil {
		s.logger.Error("Failed to initiate STK push",
			zap.String("order_id", req.OrderID),
			zap.Error(err))
		return nil, err
	}

	metadata := domain.Metadata{
		domain.MetaCheckoutRequestID: pushResp.CheckoutRequestID,
		domain.MetaMerchantRequestID: pushResp.MerchantRequestID,
	}
	if err := s.persistCorrelation(ctx, req.OrderID, domain.ProviderMpesaPush, req.Amount, metadata); err != nil {
		s.logger.Error("Failed to persist payment record for STK push",
			zap.String("order_id", req.OrderID),
			zap.String("checkout_request_id", pushResp.CheckoutRequestID),
			zap.Error(err))
		return nil, errors.New("failed to record payment")
	}

	return &PushPaymentResponse{
		Success:           true,
		CheckoutRequestID: pushResp.CheckoutRequestID,
		Message:           pushResp.CustomerMessage,
	}, nil
}

// persistCorrelation stores the provider correlation identifiers on the
// order's payment row, creating a provisional PENDING payment if none
// exists. Re-entering a checkout path overwrites correlation metadata.
func (s *checkoutService) persistCorrelation(ctx context.Context, orderID string, provider domain.PaymentProvider, amount decimal.Decimal, metadata domain.Metadata) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	existing, err := s.paymentRepo.GetByOrderIDTx(ctx, tx, orderID)
	if err != nil && !errors.Is(err, domain.ErrPaymentNotFound) {
		tx.Rollback()
		return fmt.Errorf("failed to look up payment for order %s: %w", orderID, err)
	}

	if existing != nil {
		if err := s.paymentRepo.ResetCorrelationTx(ctx, tx, existing.ID, provider, metadata); err != nil {
			tx.Rollback()
			return err
		}
	} else {
		now := time.Now()
		payment := &domain.Payment{
			ID:        util.GenerateUUID(),
			OrderID:   orderID,
			Provider:  provider,
			Status:    domain.PaymentStatusPending,
			Amount:    amount,
			Metadata:  metadata,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.paymentRepo.CreateTx(ctx, tx, payment); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
