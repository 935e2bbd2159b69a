package order_repo

import (
	"context"

	"storefront/internal/domain"
)

type OrderRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, order *domain.Order) error
	GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Order, error)
	GetByOrderNumberTx(ctx context.Context, querier domain.Querier, orderNumber string) (*domain.Order, error)
	GetByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	GetAll(ctx context.Context) ([]*domain.Order, error)
	UpdateStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.OrderStatus) error
}
