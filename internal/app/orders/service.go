package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository/order_repo"
	"storefront/internal/util"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error)
	GetOrder(ctx context.Context, orderID string) (*OrderResponse, error)
	GetOrdersByUserID(ctx context.Context, userID string) ([]*OrderResponse, error)
	GetAllOrders(ctx context.Context) ([]*OrderResponse, error)
}

type orderService struct {
	orderRepo order_repo.OrderRepository
	dbConn    domain.Querier
	logger    *zap.Logger
}

func NewOrderService(orderRepo order_repo.OrderRepository, dbConn domain.Querier, logger *zap.Logger) OrderService {
	return &orderService{
		orderRepo: orderRepo,
		dbConn:    dbConn,
		logger:    logger,
	}
}

// NewOrderNumber builds the human-readable order reference shown to
// buyers and threaded through provider redirect URLs.
func NewOrderNumber(now time.Time, id string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}

func (s *orderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	orderID := util.GenerateUUID()
	orderNumber := NewOrderNumber(time.Now(), orderID)

	order, err := domain.NewOrder(orderID, orderNumber, req.UserID, req.Total)
	if err != nil {
		s.logger.Warn("Rejected invalid order", zap.String("user_id", req.UserID), zap.Error(err))
		return nil, domain.ErrInvalidOrder
	}

	if err := s.orderRepo.CreateTx(ctx, s.dbConn, order); err != nil {
		s.logger.Error("Failed to save order", zap.String("order_id", order.ID), zap.Error(err))
		return nil, errors.New("failed to create order")
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber))
	return mapOrderToResponse(order), nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*OrderResponse, error) {
	order, err := s.orderRepo.GetByIDTx(ctx, s.dbConn, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			s.logger.Debug("Order not found", zap.String("order_id", orderID))
			return nil, domain.ErrOrderNotFound
		}
		s.logger.Error("Failed to get order from repository", zap.String("order_id", orderID), zap.Error(err))
		return nil, errors.New("internal server error")
	}
	return mapOrderToResponse(order), nil
}

func (s *orderService) GetOrdersByUserID(ctx context.Context, userID string) ([]*OrderResponse, error) {
	orders, err := s.orderRepo.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to get orders for user from repository", zap.String("user_id", userID), zap.Error(err))
		return nil, errors.New("internal server error")
	}
	return mapOrdersToResponse(orders), nil
}

func (s *orderService) GetAllOrders(ctx context.Context) ([]*OrderResponse, error) {
	orders, err := s.orderRepo.GetAll(ctx)
	if err != nil {
		s.logger.Error("Failed to get all orders from repository", zap.Error(err))
		return nil, errors.New("internal server error")
	}
	return mapOrdersToResponse(orders), nil
}
