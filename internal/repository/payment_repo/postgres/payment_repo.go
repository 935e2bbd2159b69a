package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository/payment_repo"
)

type pgPaymentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPaymentRepository(db *sql.DB, l *zap.Logger) payment_repo.PaymentRepository {
	return &pgPaymentRepository{db: db, logger: l}
}

const paymentColumns = `id, order_id, provider, status, amount, transaction_id, metadata, created_at, updated_at`

func (r *pgPaymentRepository) CreateTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, order_id, provider, status, amount, transaction_id, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := querier.ExecContext(ctx, query,
		payment.ID,
		payment.OrderID,
		payment.Provider,
		payment.Status,
		payment.Amount,
		payment.TransactionID,
		payment.Metadata,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	r.logger.Debug("Payment created", zap.String("payment_id", payment.ID), zap.String("order_id", payment.OrderID))
	return nil
}

func (r *pgPaymentRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return r.scanPayment(querier.QueryRowContext(ctx, query, id))
}

func (r *pgPaymentRepository) GetByOrderIDTx(ctx context.Context, querier domain.Querier, orderID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`
	return r.scanPayment(querier.QueryRowContext(ctx, query, orderID))
}

func (r *pgPaymentRepository) GetByMetadataTx(ctx context.Context, querier domain.Querier, key, value string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE metadata->>$1 = $2 ORDER BY created_at DESC LIMIT 1`
	return r.scanPayment(querier.QueryRowContext(ctx, query, key, value))
}

func (r *pgPaymentRepository) scanPayment(row *sql.Row) (*domain.Payment, error) {
	payment := &domain.Payment{}
	var transactionID sql.NullString
	err := row.Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.Provider,
		&payment.Status,
		&payment.Amount,
		&transactionID,
		&payment.Metadata,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to scan payment row: %w", err)
	}
	if transactionID.Valid {
		payment.TransactionID = &transactionID.String
	}
	return payment, nil
}

func (r *pgPaymentRepository) CompleteTx(ctx context.Context, querier domain.Querier, id, transactionID string, extra domain.Metadata) error {
	query := `
		UPDATE payments
		SET status = $2, transaction_id = $3, metadata = metadata || $4::jsonb, updated_at = $5
		WHERE id = $1
	`
	res, err := querier.ExecContext(ctx, query, id, domain.PaymentStatusCompleted, transactionID, extra, time.Now())
	if err != nil {
		return fmt.Errorf("failed to complete payment %s: %w", id, err)
	}
	return r.checkAffected(res, id)
}

func (r *pgPaymentRepository) FailTx(ctx context.Context, querier domain.Querier, id, reason string) error {
	query := `
		UPDATE payments
		SET status = $2, metadata = $3::jsonb, updated_at = $4
		WHERE id = $1
	`
	meta := domain.Metadata{domain.MetaFailureReason: reason}
	res, err := querier.ExecContext(ctx, query, id, domain.PaymentStatusFailed, meta, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark payment %s failed: %w", id, err)
	}
	return r.checkAffected(res, id)
}

func (r *pgPaymentRepository) ResetCorrelationTx(ctx context.Context, querier domain.Querier, id string, provider domain.PaymentProvider, metadata domain.Metadata) error {
	query := `UPDATE payments SET provider = $2, metadata = $3::jsonb, updated_at = $4 WHERE id = $1`
	res, err := querier.ExecContext(ctx, query, id, provider, metadata, time.Now())
	if err != nil {
		return fmt.Errorf("failed to reset correlation for payment %s: %w", id, err)
	}
	return r.checkAffected(res, id)
}

func (r *pgPaymentRepository) checkAffected(res sql.Result, id string) error {
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		r.logger.Warn("No rows affected when updating payment", zap.String("payment_id", id))
		return domain.ErrPaymentNotFound
	}
	return nil
}
