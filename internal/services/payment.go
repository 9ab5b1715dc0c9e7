package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/commerce-backend/internal/domain/aggregates"
	"github.com/yungbote/commerce-backend/internal/domain/money"
	"github.com/yungbote/commerce-backend/internal/domain/payments"
	"github.com/yungbote/commerce-backend/internal/platform/clock"
	"github.com/yungbote/commerce-backend/internal/platform/logger"
)

// PaymentGateway abstracts the external processor. Charge returns the
// processor's transaction reference on success and ErrChargeDeclined (wrapped
// with the decline reason) when the processor rejects the charge.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (string, error)
}

var ErrChargeDeclined = errors.New("charge declined")

type ChargeRequest struct {
	PaymentID uuid.UUID
	OrderID   uuid.UUID
	Amount    money.Money
	Method    payments.PaymentMethod
}

type PaymentService interface {
	CreatePayment(ctx context.Context, in domainagg.CreatePaymentInput) (domainagg.CreatePaymentResult, error)

	// ProcessPayment drives one payment through the gateway: pending ->
	// processing, then captured on success or failed on decline. The returned
	// status tells the outcome; a decline is not an error.
	//
	// The transaction reference comes from the gateway's charge response, so
	// callers do not pass one. A caller holding a reference obtained out of
	// band records it through the payment aggregate's Complete instead.
	ProcessPayment(ctx context.Context, paymentID uuid.UUID) (domainagg.PaymentTransitionResult, error)

	// FailPayment terminates a pending or processing payment, e.g. on an
	// operator decision or an out-of-band gateway notification.
	FailPayment(ctx context.Context, in domainagg.FailPaymentInput) (domainagg.PaymentTransitionResult, error)

	RefundPayment(ctx context.Context, in domainagg.RefundPaymentInput) (domainagg.RefundPaymentResult, error)
}

type paymentService struct {
	payments domainagg.PaymentAggregate
	gateway  PaymentGateway
	clk      clock.Clock
	log      *logger.Logger
}

func NewPaymentService(paymentsAgg domainagg.PaymentAggregate, gateway PaymentGateway, clk clock.Clock, log *logger.Logger) PaymentService {
	if clk == nil {
		clk = clock.System()
	}
	return &paymentService{
		payments: paymentsAgg,
		gateway:  gateway,
		clk:      clk,
		log:      log.With("service", "PaymentService"),
	}
}

func (s *paymentService) CreatePayment(ctx context.Context, in domainagg.CreatePaymentInput) (domainagg.CreatePaymentResult, error) {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.clk.Now()
	}
	res, err := s.payments.Create(ctx, in)
	if err != nil {
		s.log.Error("payment create failed", "order_id", in.OrderID, "error", err)
		return domainagg.CreatePaymentResult{}, err
	}
	s.log.Info("payment created", "payment_id", res.PaymentID, "order_id", in.OrderID, "amount", in.Amount.String())
	return res, nil
}

func (s *paymentService) ProcessPayment(ctx context.Context, paymentID uuid.UUID) (domainagg.PaymentTransitionResult, error) {
	processing, err := s.payments.Process(ctx, domainagg.ProcessPaymentInput{PaymentID: paymentID, At: s.clk.Now()})
	if err != nil {
		s.log.Error("payment process failed", "payment_id", paymentID, "error", err)
		return domainagg.PaymentTransitionResult{}, err
	}

	ref, chargeErr := s.gateway.Charge(ctx, ChargeRequest{
		PaymentID: paymentID,
		OrderID:   processing.OrderID,
		Amount:    processing.Amount,
		Method:    processing.Method,
	})
	if chargeErr != nil {
		if !errors.Is(chargeErr, ErrChargeDeclined) {
			// Transport-level failure: the charge outcome is unknown, so the
			// payment stays in processing for reconciliation.
			s.log.Error("gateway charge errored", "payment_id", paymentID, "error", chargeErr)
			return domainagg.PaymentTransitionResult{}, chargeErr
		}
		failed, failErr := s.payments.Fail(ctx, domainagg.FailPaymentInput{
			PaymentID: paymentID,
			Reason:    chargeErr.Error(),
			At:        s.clk.Now(),
		})
		if failErr != nil {
			s.log.Error("payment fail transition failed", "payment_id", paymentID, "error", failErr)
			return domainagg.PaymentTransitionResult{}, failErr
		}
		s.log.Warn("payment declined", "payment_id", paymentID, "reason", chargeErr.Error())
		return failed, nil
	}

	captured, err := s.payments.Complete(ctx, domainagg.CompletePaymentInput{
		PaymentID:      paymentID,
		TransactionRef: ref,
		At:             s.clk.Now(),
	})
	if err != nil {
		s.log.Error("payment capture failed", "payment_id", paymentID, "error", err)
		return domainagg.PaymentTransitionResult{}, err
	}
	s.log.Info("payment captured", "payment_id", paymentID, "transaction_ref", ref)
	return captured, nil
}

func (s *paymentService) FailPayment(ctx context.Context, in domainagg.FailPaymentInput) (domainagg.PaymentTransitionResult, error) {
	if in.At.IsZero() {
		in.At = s.clk.Now()
	}
	res, err := s.payments.Fail(ctx, in)
	if err != nil {
		s.log.Error("payment fail rejected", "payment_id", in.PaymentID, "error", err)
		return domainagg.PaymentTransitionResult{}, err
	}
	s.log.Warn("payment failed", "payment_id", res.PaymentID, "reason", in.Reason)
	return res, nil
}

func (s *paymentService) RefundPayment(ctx context.Context, in domainagg.RefundPaymentInput) (domainagg.RefundPaymentResult, error) {
	if in.At.IsZero() {
		in.At = s.clk.Now()
	}
	res, err := s.payments.Refund(ctx, in)
	if err != nil {
		s.log.Error("payment refund failed", "payment_id", in.PaymentID, "error", err)
		return domainagg.RefundPaymentResult{}, err
	}
	s.log.Info("payment refunded",
		"payment_id", res.PaymentID,
		"amount", res.RefundedAmount.String(),
		"remaining", res.Remaining.String(),
		"status", res.Status)
	return res, nil
}

// SimulatedGateway approves every charge with a synthetic transaction ref,
// except amounts flagged by the optional Decline hook. It backs local and
// test environments where no real processor is wired.
type SimulatedGateway struct {
	Decline func(req ChargeRequest) string // non-empty return declines with that reason
}

func (g *SimulatedGateway) Charge(_ context.Context, req ChargeRequest) (string, error) {
	if g.Decline != nil {
		if reason := g.Decline(req); reason != "" {
			return "", fmt.Errorf("%w: %s", ErrChargeDeclined, reason)
		}
	}
	return "sim-" + uuid.NewString(), nil
}
