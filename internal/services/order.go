package services

import (
	"context"

	domainagg "github.com/yungbote/commerce-backend/internal/domain/aggregates"
	"github.com/yungbote/commerce-backend/internal/platform/clock"
	"github.com/yungbote/commerce-backend/internal/platform/logger"
)

type OrderService interface {
	CreateOrder(ctx context.Context, in domainagg.CreateOrderInput) (domainagg.CreateOrderResult, error)
	CancelOrder(ctx context.Context, in domainagg.CancelOrderInput) (domainagg.CancelOrderResult, error)
	Reorder(ctx context.Context, in domainagg.ReorderInput) (domainagg.CreateOrderResult, error)
}

type orderService struct {
	orders domainagg.OrderAggregate
	clk    clock.Clock
	log    *logger.Logger
}

func NewOrderService(orders domainagg.OrderAggregate, clk clock.Clock, log *logger.Logger) OrderService {
	if clk == nil {
		clk = clock.System()
	}
	return &orderService{
		orders: orders,
		clk:    clk,
		log:    log.With("service", "OrderService"),
	}
}

func (s *orderService) CreateOrder(ctx context.Context, in domainagg.CreateOrderInput) (domainagg.CreateOrderResult, error) {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.clk.Now()
	}
	res, err := s.orders.Create(ctx, in)
	if err != nil {
		s.log.Error("order create failed", "order_id", in.OrderID, "user_id", in.UserID, "error", err)
		return domainagg.CreateOrderResult{}, err
	}
	s.log.Info("order created", "order_id", res.OrderID, "user_id", in.UserID, "total", res.TotalAmount.String())
	return res, nil
}

func (s *orderService) CancelOrder(ctx context.Context, in domainagg.CancelOrderInput) (domainagg.CancelOrderResult, error) {
	if in.CancelledAt.IsZero() {
		in.CancelledAt = s.clk.Now()
	}
	res, err := s.orders.Cancel(ctx, in)
	if err != nil {
		s.log.Error("order cancel failed", "order_id", in.OrderID, "error", err)
		return domainagg.CancelOrderResult{}, err
	}
	s.log.Info("order cancelled", "order_id", res.OrderID, "reason", in.Reason)
	return res, nil
}

func (s *orderService) Reorder(ctx context.Context, in domainagg.ReorderInput) (domainagg.CreateOrderResult, error) {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.clk.Now()
	}
	res, err := s.orders.Reorder(ctx, in)
	if err != nil {
		s.log.Error("reorder failed", "source_order_id", in.SourceOrderID, "error", err)
		return domainagg.CreateOrderResult{}, err
	}
	s.log.Info("order recreated", "source_order_id", in.SourceOrderID, "order_id", res.OrderID)
	return res, nil
}
