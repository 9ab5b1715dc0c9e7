package services

import (
	"context"

	domainagg "github.com/yungbote/commerce-backend/internal/domain/aggregates"
	"github.com/yungbote/commerce-backend/internal/platform/clock"
	"github.com/yungbote/commerce-backend/internal/platform/logger"
)

type SplitService interface {
	SplitOrder(ctx context.Context, in domainagg.CreateSplitsInput) (domainagg.CreateSplitsResult, error)
	CancelSplit(ctx context.Context, in domainagg.TransitionSplitInput) (domainagg.SplitTransitionResult, error)
	CompleteSplit(ctx context.Context, in domainagg.TransitionSplitInput) (domainagg.SplitTransitionResult, error)
}

type splitService struct {
	splits domainagg.SplitAggregate
	clk    clock.Clock
	log    *logger.Logger
}

func NewSplitService(splits domainagg.SplitAggregate, clk clock.Clock, log *logger.Logger) SplitService {
	if clk == nil {
		clk = clock.System()
	}
	return &splitService{
		splits: splits,
		clk:    clk,
		log:    log.With("service", "SplitService"),
	}
}

func (s *splitService) SplitOrder(ctx context.Context, in domainagg.CreateSplitsInput) (domainagg.CreateSplitsResult, error) {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.clk.Now()
	}
	res, err := s.splits.CreateSplits(ctx, in)
	if err != nil {
		s.log.Error("order split failed", "order_id", in.OrderID, "error", err)
		return domainagg.CreateSplitsResult{}, err
	}
	s.log.Info("order split", "order_id", in.OrderID, "splits", len(res.SplitIDs))
	return res, nil
}

func (s *splitService) CancelSplit(ctx context.Context, in domainagg.TransitionSplitInput) (domainagg.SplitTransitionResult, error) {
	if in.At.IsZero() {
		in.At = s.clk.Now()
	}
	res, err := s.splits.Cancel(ctx, in)
	if err != nil {
		s.log.Error("split cancel failed", "split_id", in.SplitID, "error", err)
		return domainagg.SplitTransitionResult{}, err
	}
	s.log.Info("split cancelled", "split_id", res.SplitID)
	return res, nil
}

func (s *splitService) CompleteSplit(ctx context.Context, in domainagg.TransitionSplitInput) (domainagg.SplitTransitionResult, error) {
	if in.At.IsZero() {
		in.At = s.clk.Now()
	}
	res, err := s.splits.Complete(ctx, in)
	if err != nil {
		s.log.Error("split complete failed", "split_id", in.SplitID, "error", err)
		return domainagg.SplitTransitionResult{}, err
	}
	s.log.Info("split completed", "split_id", res.SplitID)
	return res, nil
}
