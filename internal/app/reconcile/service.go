package reconcile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/provider/daraja"
	"storefront/internal/provider/stripe"
	"storefront/internal/repository/order_repo"
	"storefront/internal/repository/outbox_repo"
	"storefront/internal/repository/payment_repo"
	"storefront/internal/util"
)

// ErrBadSignature marks an inbound webhook that failed authenticity
// verification. No ledger state is touched when it is returned.
var ErrBadSignature = errors.New("webhook signature rejected")

// CardWebhookVerifier checks a raw webhook body against its signature
// header.
type CardWebhookVerifier interface {
	VerifySignature(payload []byte, header string, now time.Time) error
}

// ReconcileService applies asynchronous provider outcomes to the
// payment/order ledger at most once per terminal state.
type ReconcileService interface {
	HandleCardEvent(ctx context.Context, rawBody []byte, signatureHeader string) error
	HandleMpesaCallback(ctx context.Context, cb *daraja.STKCallback) error
}

type reconcileService struct {
	db                    *sql.DB
	orderRepo             order_repo.OrderRepository
	paymentRepo           payment_repo.PaymentRepository
	outboxRepo            outbox_repo.OutboxRepository
	verifier              CardWebhookVerifier
	topic                 string
	allowTerminalOverride bool
	logger                *zap.Logger
}

func NewReconcileService(
	db *sql.DB,
	orderRepo order_repo.OrderRepository,
	paymentRepo payment_repo.PaymentRepository,
	outboxRepo outbox_repo.OutboxRepository,
	verifier CardWebhookVerifier,
	topic string,
	allowTerminalOverride bool,
	logger *zap.Logger,
) ReconcileService {
	return &reconcileService{
		db:                    db,
		orderRepo:             orderRepo,
		paymentRepo:           paymentRepo,
		outboxRepo:            outboxRepo,
		verifier:              verifier,
		topic:                 topic,
		allowTerminalOverride: allowTerminalOverride,
		logger:                logger,
	}
}

func (s *reconcileService) HandleCardEvent(ctx context.Context, rawBody []byte, signatureHeader string) error {
	if err := s.verifier.VerifySignature(rawBody, signatureHeader, time.Now()); err != nil {
		s.logger.Warn("Rejected card webhook with invalid signature", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	event, err := stripe.ParseEvent(rawBody)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	switch event.Type {
	case stripe.EventCheckoutCompleted:
		session, err := event.Session()
		if err != nil {
			return err
		}
		orderID := session.Metadata["order_id"]
		if orderID == "" {
			s.logger.Warn("Card webhook session has no order id metadata, dropping",
				zap.String("event_id", event.ID),
				zap.String("session_id", session.ID))
			return nil
		}
		extra := domain.Metadata{
			domain.MetaPaymentIntentID: session.PaymentIntent,
			domain.MetaPaidAmount:      decimal.New(session.AmountTotal, -2).String(),
		}
		return s.applyOutcome(ctx, outcome{
			success:       true,
			transactionID: session.PaymentIntent,
			extra:         extra,
			find: func(q domain.Querier) (*domain.Payment, error) {
				return s.paymentRepo.GetByOrderIDTx(ctx, q, orderID)
			},
		})

	case stripe.EventCheckoutExpired, stripe.EventPaymentFailed:
		session, err := event.Session()
		if err != nil {
			return err
		}
		orderID := session.Metadata["order_id"]
		if orderID == "" {
			s.logger.Warn("Card webhook session has no order id metadata, dropping",
				zap.String("event_id", event.ID))
			return nil
		}
		return s.applyOutcome(ctx, outcome{
			success: false,
			reason:  event.Type,
			find: func(q domain.Querier) (*domain.Payment, error) {
				return s.paymentRepo.GetByOrderIDTx(ctx, q, orderID)
			},
		})

	default:
		s.logger.Debug("Ignoring card webhook event type", zap.String("type", event.Type))
		return nil
	}
}

func (s *reconcileService) HandleMpesaCallback(ctx context.Context, cb *daraja.STKCallback) error {
	find := func(q domain.Querier) (*domain.Payment, error) {
		return s.paymentRepo.GetByMetadataTx(ctx, q, domain.MetaCheckoutRequestID, cb.CheckoutRequestID)
	}

	if !cb.Succeeded() {
		s.logger.Info("Mpesa callback reported failure",
			zap.String("checkout_request_id", cb.CheckoutRequestID),
			zap.Int("result_code", cb.ResultCode),
			zap.String("result_desc", cb.ResultDesc))
		return s.applyOutcome(ctx, outcome{
			success: false,
			reason:  cb.ResultDesc,
			find:    find,
		})
	}

	receipt := cb.ReceiptNumber()
	extra := domain.Metadata{
		domain.MetaReceiptNumber:     receipt,
		domain.MetaMerchantRequestID: cb.MerchantRequestID,
	}
	if amount, err := cb.Amount(); err == nil {
		extra[domain.MetaPaidAmount] = amount.String()
	}
	return s.applyOutcome(ctx, outcome{
		success:       true,
		transactionID: receipt,
		extra:         extra,
		find:          find,
	})
}

type outcome struct {
	success       bool
	transactionID string
	reason        string
	extra         domain.Metadata
	find          func(domain.Querier) (*domain.Payment, error)
}

// applyOutcome runs the full reconciliation inside one transaction:
// match the payment, guard the state machine, write the payment and
// order rows and the outbox event together.
func (s *reconcileService) applyOutcome(ctx context.Context, o outcome) error {
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

	payment, err := o.find(tx)
	if err != nil {
		tx.Rollback()
		if errors.Is(err, domain.ErrPaymentNotFound) {
			s.logger.Warn("No payment matches callback correlation id, dropping")
			return nil
		}
		return fmt.Errorf("failed to match payment: %w", err)
	}

	target := domain.PaymentStatusFailed
	if o.success {
		target = domain.PaymentStatusCompleted
	}

	if payment.Status == target {
		tx.Rollback()
		s.logger.Info("Payment already in reported terminal state, replay ignored",
			zap.String("payment_id", payment.ID),
			zap.String("status", string(target)))
		return nil
	}
	if !domain.CanTransition(payment.Status, target) && !s.allowTerminalOverride {
		tx.Rollback()
		s.logger.Warn("Rejected out-of-order payment transition",
			zap.String("payment_id", payment.ID),
			zap.String("from", string(payment.Status)),
			zap.String("to", string(target)))
		return nil
	}

	var order *domain.Order
	order, err = s.orderRepo.GetByIDTx(ctx, tx, payment.OrderID)
	if err != nil {
		if !errors.Is(err, domain.ErrOrderNotFound) {
			tx.Rollback()
			return fmt.Errorf("failed to load order %s: %w", payment.OrderID, err)
		}
		s.logger.Warn("Payment has no owning order", zap.String("payment_id", payment.ID), zap.String("order_id", payment.OrderID))
		order = nil
	}

	if o.success {
		if err := s.paymentRepo.CompleteTx(ctx, tx, payment.ID, o.transactionID, o.extra); err != nil {
			tx.Rollback()
			return err
		}
		if order != nil {
			if err := order.Confirm(); err != nil {
				s.logger.Warn("Order not confirmable from current status",
					zap.String("order_id", order.ID),
					zap.Error(err))
			} else if err := s.orderRepo.UpdateStatusTx(ctx, tx, order.ID, domain.OrderStatusConfirmed); err != nil {
				tx.Rollback()
				return err
			}
		}
	} else {
		// Failure marks the payment only; the order is left untouched.
		if err := s.paymentRepo.FailTx(ctx, tx, payment.ID, o.reason); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := s.enqueueEvent(ctx, tx, payment, order, target, o.transactionID); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Payment reconciled",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID),
		zap.String("status", string(target)))
	return nil
}

func (s *reconcileService) enqueueEvent(ctx context.Context, tx *sql.Tx, payment *domain.Payment, order *domain.Order, status domain.PaymentStatus, transactionID string) error {
	event := domain.OrderStatusEvent{
		OrderID:       payment.OrderID,
		PaymentID:     payment.ID,
		Provider:      string(payment.Provider),
		PaymentStatus: string(status),
		Amount:        payment.Amount.String(),
		TransactionID: transactionID,
		Timestamp:     time.Now(),
	}
	if order != nil {
		event.OrderNumber = order.OrderNumber
		event.OrderStatus = string(order.Status)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order status event: %w", err)
	}

	msg := &domain.OutboxMessage{
		ID:        util.GenerateUUID(),
		Topic:     s.topic,
		Key:       payment.OrderID,
		Payload:   payload,
		Status:    domain.OutboxStatusPending,
		CreatedAt: time.Now(),
	}
	return s.outboxRepo.CreateMessageTx(ctx, tx, msg)
}
