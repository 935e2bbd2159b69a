package payment_repo

import (
	"context"

	"storefront/internal/domain"
)

type PaymentRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) error
	GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Payment, error)
	GetByOrderIDTx(ctx context.Context, querier domain.Querier, orderID string) (*domain.Payment, error)
	// GetByMetadataTx matches a payment whose metadata entry `key`
	// equals `value` (correlation-id lookup for unsigned callbacks).
	GetByMetadataTx(ctx context.Context, querier domain.Querier, key, value string) (*domain.Payment, error)
	// CompleteTx marks the payment COMPLETED, stores the provider
	// transaction id and merges extra provider fields into metadata.
	CompleteTx(ctx context.Context, querier domain.Querier, id, transactionID string, extra domain.Metadata) error
	// FailTx marks the payment FAILED and overwrites metadata with the
	// failure reason.
	FailTx(ctx context.Context, querier domain.Querier, id, reason string) error
	// ResetCorrelationTx overwrites the provider and correlation
	// metadata of a provisional payment when a checkout path is
	// re-entered. Previously stored provider data is lost.
	ResetCorrelationTx(ctx context.Context, querier domain.Querier, id string, provider domain.PaymentProvider, metadata domain.Metadata) error
}
