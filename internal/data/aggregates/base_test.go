package aggregates

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	domainagg "github.com/yungbote/commerce-backend/internal/domain/aggregates"
	"github.com/yungbote/commerce-backend/internal/platform/dbctx"
	"github.com/yungbote/commerce-backend/internal/platform/logger"
)

// stubRunner executes fn without a database; used to test the write wrapper
// in isolation.
type stubRunner struct{}

func (stubRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	return fn(dbctx.Context{Ctx: ctx})
}

func TestExecuteWriteLogsFailure(t *testing.T) {
	core, observed := observer.New(zap.DebugLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	deps := BaseDeps{Log: log, Runner: stubRunner{}}
	err := executeWrite(context.Background(), deps, "Billing.Invoice.Generate", func(dbctx.Context) error {
		return InvariantError("order is not fully paid")
	})
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("want invariant violation, got %v", err)
	}

	entries := observed.FilterLevelExact(zapcore.ErrorLevel).All()
	if len(entries) != 1 {
		t.Fatalf("error entries: want=1 got=%d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["op"] != "Billing.Invoice.Generate" {
		t.Fatalf("op field: got %v", fields["op"])
	}
	if fields["code"] != string(domainagg.CodeInvariantViolation) {
		t.Fatalf("code field: want=%s got=%v", domainagg.CodeInvariantViolation, fields["code"])
	}

	// A successful write stays quiet at error level.
	if err := executeWrite(context.Background(), deps, "Billing.Invoice.Generate", func(dbctx.Context) error {
		return nil
	}); err != nil {
		t.Fatalf("executeWrite: %v", err)
	}
	if got := len(observed.FilterLevelExact(zapcore.ErrorLevel).All()); got != 1 {
		t.Fatalf("error entries after success: want=1 got=%d", got)
	}
}
