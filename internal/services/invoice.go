package services

import (
	"context"

	domainagg "github.com/yungbote/commerce-backend/internal/domain/aggregates"
	"github.com/yungbote/commerce-backend/internal/platform/clock"
	"github.com/yungbote/commerce-backend/internal/platform/logger"
)

type InvoiceService interface {
	// GenerateInvoice issues the invoice for a fully paid order; replays
	// return the existing invoice.
	GenerateInvoice(ctx context.Context, in domainagg.GenerateInvoiceInput) (domainagg.GenerateInvoiceResult, error)
	SendInvoice(ctx context.Context, in domainagg.SendInvoiceInput) (domainagg.InvoiceTransitionResult, error)
	AttachInvoicePdf(ctx context.Context, in domainagg.SetInvoicePdfURLInput) (domainagg.InvoiceTransitionResult, error)
}

type invoiceService struct {
	invoices domainagg.InvoiceAggregate
	dueDays  int
	clk      clock.Clock
	log      *logger.Logger
}

// NewInvoiceService wires the invoice aggregate behind the configured net
// terms. dueDays <= 0 leaves the aggregate's own default in force.
func NewInvoiceService(invoices domainagg.InvoiceAggregate, dueDays int, clk clock.Clock, log *logger.Logger) InvoiceService {
	if clk == nil {
		clk = clock.System()
	}
	return &invoiceService{
		invoices: invoices,
		dueDays:  dueDays,
		clk:      clk,
		log:      log.With("service", "InvoiceService"),
	}
}

func (s *invoiceService) GenerateInvoice(ctx context.Context, in domainagg.GenerateInvoiceInput) (domainagg.GenerateInvoiceResult, error) {
	if in.IssuedAt.IsZero() {
		in.IssuedAt = s.clk.Now()
	}
	if in.DueInDays <= 0 {
		in.DueInDays = s.dueDays
	}
	res, err := s.invoices.Generate(ctx, in)
	if err != nil {
		s.log.Error("invoice generate failed", "order_id", in.OrderID, "error", err)
		return domainagg.GenerateInvoiceResult{}, err
	}
	if res.AlreadyExisted {
		s.log.Info("invoice already issued", "order_id", in.OrderID, "invoice_number", res.InvoiceNumber)
	} else {
		s.log.Info("invoice issued", "order_id", in.OrderID, "invoice_number", res.InvoiceNumber)
	}
	return res, nil
}

func (s *invoiceService) SendInvoice(ctx context.Context, in domainagg.SendInvoiceInput) (domainagg.InvoiceTransitionResult, error) {
	if in.At.IsZero() {
		in.At = s.clk.Now()
	}
	res, err := s.invoices.Send(ctx, in)
	if err != nil {
		s.log.Error("invoice send failed", "invoice_id", in.InvoiceID, "error", err)
		return domainagg.InvoiceTransitionResult{}, err
	}
	s.log.Info("invoice sent", "invoice_id", res.InvoiceID)
	return res, nil
}

func (s *invoiceService) AttachInvoicePdf(ctx context.Context, in domainagg.SetInvoicePdfURLInput) (domainagg.InvoiceTransitionResult, error) {
	if in.At.IsZero() {
		in.At = s.clk.Now()
	}
	res, err := s.invoices.SetPdfURL(ctx, in)
	if err != nil {
		s.log.Error("invoice pdf attach failed", "invoice_id", in.InvoiceID, "error", err)
		return domainagg.InvoiceTransitionResult{}, err
	}
	s.log.Info("invoice pdf attached", "invoice_id", res.InvoiceID)
	return res, nil
}
