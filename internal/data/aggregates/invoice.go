package aggregates

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	billingrepo "github.com/yungbote/commerce-backend/internal/data/repos/billing"
	orderrepo "github.com/yungbote/commerce-backend/internal/data/repos/orders"
	types "github.com/yungbote/commerce-backend/internal/domain"
	domainagg "github.com/yungbote/commerce-backend/internal/domain/aggregates"
	"github.com/yungbote/commerce-backend/internal/domain/money"
	"github.com/yungbote/commerce-backend/internal/platform/dbctx"
)

const (
	defaultInvoiceDueDays     = 30
	invoiceNumberMaxAttempts  = 5
	invoiceNumberRandomBucket = 1000000
)

type InvoiceAggregateDeps struct {
	Base BaseDeps

	Invoices billingrepo.InvoiceRepo
	Orders   orderrepo.OrderRepo
	Outbox   OutboxAppender

	// NumberFn produces candidate invoice numbers; nil uses the default
	// date-plus-random format. Injectable so collision handling is testable.
	NumberFn func(issuedAt time.Time) string
}

type invoiceAggregate struct {
	deps InvoiceAggregateDeps
}

func NewInvoiceAggregate(deps InvoiceAggregateDeps) domainagg.InvoiceAggregate {
	deps.Base = deps.Base.withDefaults()
	if deps.NumberFn == nil {
		deps.NumberFn = newInvoiceNumber
	}
	return &invoiceAggregate{deps: deps}
}

func (a *invoiceAggregate) Contract() domainagg.Contract {
	return domainagg.InvoiceAggregateContract
}

func (a *invoiceAggregate) Generate(ctx context.Context, in domainagg.GenerateInvoiceInput) (domainagg.GenerateInvoiceResult, error) {
	const op = "Billing.Invoice.Generate"
	var out domainagg.GenerateInvoiceResult
	if a.deps.Invoices == nil || a.deps.Orders == nil || a.deps.Outbox == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "invoice aggregate repos not configured", nil)
	}
	if in.OrderID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing order_id", nil)
	}
	issuedAt := in.IssuedAt.UTC()
	if issuedAt.IsZero() {
		issuedAt = time.Now().UTC()
	}
	dueDays := in.DueInDays
	if dueDays <= 0 {
		dueDays = defaultInvoiceDueDays
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		existing, err := a.deps.Invoices.GetByOrderID(dbc, in.OrderID)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existingInvoiceResult(existing)
			return nil
		}

		ord, err := a.deps.Orders.GetByID(dbc, in.OrderID)
		if err != nil {
			return err
		}
		if ord == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("order not found: %s", in.OrderID), nil)
		}
		if ord.PaymentStatus != types.OrderPaymentCompleted {
			return InvariantError("order is not fully paid")
		}

		row := &types.Invoice{
			ID:           uuid.New(),
			OrderID:      ord.ID,
			IssuedAt:     issuedAt,
			DueAt:        issuedAt.AddDate(0, 0, dueDays),
			Currency:     ord.Currency,
			SubTotal:     ord.SubTotal,
			Tax:          ord.Tax,
			ShippingCost: ord.ShippingCost,
			Discount:     ord.Discount,
			TotalAmount:  ord.TotalAmount,
			Status:       types.InvoiceStatusIssued,
			Version:      1,
			CreatedAt:    issuedAt,
			UpdatedAt:    issuedAt,
		}

		// Number collisions get fresh numbers; an order_id collision means a
		// concurrent issuance won, which reads back idempotently. Each insert
		// runs in a savepoint: on postgres a unique violation aborts the
		// surrounding transaction, and without the rollback-to-savepoint every
		// later statement would fail with 25P02 instead of retrying.
		var created bool
		for attempt := 0; attempt < invoiceNumberMaxAttempts; attempt++ {
			row.InvoiceNumber = a.deps.NumberFn(issuedAt)
			err := dbc.Tx.Transaction(func(nested *gorm.DB) error {
				_, createErr := a.deps.Invoices.Create(dbctx.Context{Ctx: dbc.Ctx, Tx: nested}, row)
				return createErr
			})
			if err == nil {
				created = true
				break
			}
			if !isUniqueViolation(err) {
				return err
			}
			concurrent, lookupErr := a.deps.Invoices.GetByOrderID(dbc, in.OrderID)
			if lookupErr != nil {
				return lookupErr
			}
			if concurrent != nil {
				out = existingInvoiceResult(concurrent)
				return nil
			}
		}
		if !created {
			return RetryableError("could not allocate a unique invoice number")
		}

		ev := domainagg.NewEvent(domainagg.AggregateTypeInvoice, row.ID, domainagg.EventInvoiceIssued, issuedAt, map[string]any{
			"invoice_id":     row.ID.String(),
			"order_id":       ord.ID.String(),
			"invoice_number": row.InvoiceNumber,
			"total_amount":   row.TotalAmount.String(),
			"currency":       row.Currency,
			"due_at":         row.DueAt.Format(time.RFC3339),
			"version":        row.Version,
		})
		if err := a.deps.Outbox.Append(dbc, []domainagg.Event{ev}); err != nil {
			return err
		}

		total, err := money.New(row.TotalAmount, money.Currency(row.Currency))
		if err != nil {
			return err
		}
		out = domainagg.GenerateInvoiceResult{
			InvoiceID:     row.ID,
			InvoiceNumber: row.InvoiceNumber,
			Status:        row.Status,
			TotalAmount:   total,
		}
		return nil
	})
	return out, err
}

func (a *invoiceAggregate) Send(ctx context.Context, in domainagg.SendInvoiceInput) (domainagg.InvoiceTransitionResult, error) {
	const op = "Billing.Invoice.Send"
	var out domainagg.InvoiceTransitionResult
	if in.InvoiceID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing invoice_id", nil)
	}
	at := in.At.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		inv, err := a.mustGetInvoice(dbc, op, in.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status == types.InvoiceStatusSent {
			return InvariantError("invoice already sent")
		}
		// Status-guarded update: a concurrent send flips the status first and
		// the loser's guard matches zero rows. UpdateByStatus does not bump
		// the version, so it rides in the update set.
		ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, "invoice", inv.ID, []string{string(types.InvoiceStatusIssued)}, map[string]any{
			"status":     types.InvoiceStatusSent,
			"version":    inv.Version + 1,
			"updated_at": at,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "invoice changed while sending"); err != nil {
			return err
		}

		ev := domainagg.NewEvent(domainagg.AggregateTypeInvoice, inv.ID, domainagg.EventInvoiceSent, at, map[string]any{
			"invoice_id":     inv.ID.String(),
			"order_id":       inv.OrderID.String(),
			"invoice_number": inv.InvoiceNumber,
			"version":        inv.Version + 1,
		})
		if err := a.deps.Outbox.Append(dbc, []domainagg.Event{ev}); err != nil {
			return err
		}
		out = domainagg.InvoiceTransitionResult{
			InvoiceID: inv.ID,
			Status:    types.InvoiceStatusSent,
			Version:   inv.Version + 1,
		}
		return nil
	})
	return out, err
}

func (a *invoiceAggregate) SetPdfURL(ctx context.Context, in domainagg.SetInvoicePdfURLInput) (domainagg.InvoiceTransitionResult, error) {
	const op = "Billing.Invoice.SetPdfURL"
	var out domainagg.InvoiceTransitionResult
	if in.InvoiceID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing invoice_id", nil)
	}
	pdfURL := strings.TrimSpace(in.PdfURL)
	if pdfURL == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing pdf_url", nil)
	}
	at := in.At.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		inv, err := a.mustGetInvoice(dbc, op, in.InvoiceID)
		if err != nil {
			return err
		}
		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, "invoice", inv.ID, inv.Version, map[string]any{
			"pdf_url":    pdfURL,
			"updated_at": at,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "invoice changed while attaching pdf"); err != nil {
			return err
		}
		out = domainagg.InvoiceTransitionResult{
			InvoiceID: inv.ID,
			Status:    inv.Status,
			Version:   inv.Version + 1,
		}
		return nil
	})
	return out, err
}

func (a *invoiceAggregate) mustGetInvoice(dbc dbctx.Context, op string, id uuid.UUID) (*types.Invoice, error) {
	inv, err := a.deps.Invoices.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("invoice not found: %s", id), nil)
	}
	return inv, nil
}

func existingInvoiceResult(inv *types.Invoice) domainagg.GenerateInvoiceResult {
	total, _ := money.New(inv.TotalAmount, money.Currency(inv.Currency))
	return domainagg.GenerateInvoiceResult{
		InvoiceID:      inv.ID,
		InvoiceNumber:  inv.InvoiceNumber,
		Status:         inv.Status,
		TotalAmount:    total,
		AlreadyExisted: true,
	}
}

func newInvoiceNumber(issuedAt time.Time) string {
	return fmt.Sprintf("INV-%s-%06d", issuedAt.Format("20060102"), rand.IntN(invoiceNumberRandomBucket))
}
