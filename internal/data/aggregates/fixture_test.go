package aggregates

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	billingrepo "github.com/yungbote/commerce-backend/internal/data/repos/billing"
	splitrepo "github.com/yungbote/commerce-backend/internal/data/repos/fulfillment"
	orderrepo "github.com/yungbote/commerce-backend/internal/data/repos/orders"
	outboxrepo "github.com/yungbote/commerce-backend/internal/data/repos/outbox"
	paymentrepo "github.com/yungbote/commerce-backend/internal/data/repos/payments"
	repotest "github.com/yungbote/commerce-backend/internal/data/repos/testutil"
	types "github.com/yungbote/commerce-backend/internal/domain"
	domainagg "github.com/yungbote/commerce-backend/internal/domain/aggregates"
	"github.com/yungbote/commerce-backend/internal/platform/dbctx"
)

type aggFixture struct {
	tx *gorm.DB

	orders   orderrepo.OrderRepo
	payments paymentrepo.PaymentRepo
	invoices billingrepo.InvoiceRepo
	splits   splitrepo.OrderSplitRepo
	outbox   outboxrepo.OutboxRepo

	base     BaseDeps
	appender OutboxAppender
}

func newAggFixture(t *testing.T) *aggFixture {
	t.Helper()
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	log := repotest.Logger(t)

	f := &aggFixture{
		tx:       tx,
		orders:   orderrepo.NewOrderRepo(tx, log),
		payments: paymentrepo.NewPaymentRepo(tx, log),
		invoices: billingrepo.NewInvoiceRepo(tx, log),
		splits:   splitrepo.NewOrderSplitRepo(tx, log),
		outbox:   outboxrepo.NewOutboxRepo(tx, log),
	}
	f.base = BaseDeps{
		DB:       tx,
		Log:      log,
		Runner:   NewGormTxRunner(tx),
		CASGuard: NewCASGuard(tx),
	}
	f.appender = NewOutboxAppender(f.outbox)
	return f
}

func (f *aggFixture) orderAgg() domainagg.OrderAggregate {
	return NewOrderAggregate(OrderAggregateDeps{Base: f.base, Orders: f.orders, Outbox: f.appender})
}

func (f *aggFixture) paymentAgg() domainagg.PaymentAggregate {
	return NewPaymentAggregate(PaymentAggregateDeps{Base: f.base, Payments: f.payments, Orders: f.orders, Outbox: f.appender})
}

func (f *aggFixture) invoiceAgg() domainagg.InvoiceAggregate {
	return NewInvoiceAggregate(InvoiceAggregateDeps{Base: f.base, Invoices: f.invoices, Orders: f.orders, Outbox: f.appender})
}

func (f *aggFixture) splitAgg() domainagg.SplitAggregate {
	return NewSplitAggregate(SplitAggregateDeps{Base: f.base, Splits: f.splits, Orders: f.orders, Outbox: f.appender})
}

// pendingEvents returns undelivered outbox rows for the aggregate, oldest first.
func (f *aggFixture) pendingEvents(t *testing.T, aggregateID uuid.UUID) []*types.OutboxRecord {
	t.Helper()
	rows, err := f.outbox.ListPendingByAggregate(dbctx.Context{Ctx: context.Background(), Tx: f.tx}, aggregateID)
	if err != nil {
		t.Fatalf("ListPendingByAggregate: %v", err)
	}
	return rows
}

// failingAppender aborts every append; used to prove mutation and outbox
// commit or roll back together.
type failingAppender struct{}

func (failingAppender) Append(dbctx.Context, []domainagg.Event) error {
	return RetryableError("outbox unavailable")
}
