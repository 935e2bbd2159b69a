package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository/order_repo"
)

type pgOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOrderRepository(db *sql.DB, l *zap.Logger) order_repo.OrderRepository {
	return &pgOrderRepository{db: db, logger: l}
}

func (r *pgOrderRepository) CreateTx(ctx context.Context, querier domain.Querier, order *domain.Order) error {
	query := `INSERT INTO orders (id, order_number, user_id, total, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := querier.ExecContext(ctx, query, order.ID, order.OrderNumber, order.UserID, order.Total, order.Status, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create order", zap.String("order_id", order.ID), zap.Error(err))
		return fmt.Errorf("failed to create order: %w", err)
	}
	r.logger.Debug("Order created successfully", zap.String("order_id", order.ID))
	return nil
}

func (r *pgOrderRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Order, error) {
	query := `SELECT id, order_number, user_id, total, status, created_at, updated_at FROM orders WHERE id = $1`
	return r.scanOrder(querier.QueryRowContext(ctx, query, id))
}

func (r *pgOrderRepository) GetByOrderNumberTx(ctx context.Context, querier domain.Querier, orderNumber string) (*domain.Order, error) {
	query := `SELECT id, order_number, user_id, total, status, created_at, updated_at FROM orders WHERE order_number = $1`
	return r.scanOrder(querier.QueryRowContext(ctx, query, orderNumber))
}

func (r *pgOrderRepository) scanOrder(row *sql.Row) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(&order.ID, &order.OrderNumber, &order.UserID, &order.Total, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to scan order row: %w", err)
	}
	return order, nil
}

func (r *pgOrderRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT id, order_number, user_id, total, status, created_at, updated_at FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to query orders for user", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to get orders by user ID %s: %w", userID, err)
	}
	defer rows.Close()
	return r.collectOrders(rows)
}

func (r *pgOrderRepository) GetAll(ctx context.Context) ([]*domain.Order, error) {
	query := `SELECT id, order_number, user_id, total, status, created_at, updated_at FROM orders ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query all orders", zap.Error(err))
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	defer rows.Close()
	return r.collectOrders(rows)
}

func (r *pgOrderRepository) collectOrders(rows *sql.Rows) ([]*domain.Order, error) {
	var orders []*domain.Order
	for rows.Next() {
		order := &domain.Order{}
		if err := rows.Scan(&order.ID, &order.OrderNumber, &order.UserID, &order.Total, &order.Status, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orders, nil
}

func (r *pgOrderRepository) UpdateStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.OrderStatus) error {
	query := `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := querier.ExecContext(ctx, query, id, status, time.Now())
	if err != nil {
		r.logger.Error("Failed to update order status", zap.String("order_id", id), zap.Error(err))
		return fmt.Errorf("failed to update order %s: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rowsAffected == 0 {
		r.logger.Warn("No rows affected when updating order status", zap.String("order_id", id))
		return domain.ErrOrderNotFound
	}
	r.logger.Debug("Order status updated", zap.String("order_id", id), zap.String("new_status", string(status)))
	return nil
}
