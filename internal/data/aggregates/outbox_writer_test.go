package aggregates

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	outboxrepo "github.com/yungbote/commerce-backend/internal/data/repos/outbox"
	repotest "github.com/yungbote/commerce-backend/internal/data/repos/testutil"
	types "github.com/yungbote/commerce-backend/internal/domain"
	domainagg "github.com/yungbote/commerce-backend/internal/domain/aggregates"
	"github.com/yungbote/commerce-backend/internal/platform/dbctx"
)

func TestOutboxAppenderWritesRows(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	appender := NewOutboxAppender(outboxrepo.NewOutboxRepo(tx, repotest.Logger(t)))

	aggID := uuid.New()
	occurred := time.Now().UTC().Add(-time.Minute)
	ev := domainagg.NewEvent(domainagg.AggregateTypeOrder, aggID, domainagg.EventOrderCreated, occurred, map[string]any{
		"order_id": aggID.String(),
		"version":  1,
	})
	if err := appender.Append(dbc, []domainagg.Event{ev}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	var rows []*types.OutboxRecord
	if err := tx.WithContext(ctx).Where("aggregate_id = ?", aggID).Find(&rows).Error; err != nil {
		t.Fatalf("load outbox rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows len: want=1 got=%d", len(rows))
	}
	rec := rows[0]
	if rec.ID != ev.EventID {
		t.Fatalf("record id must equal event id: want=%s got=%s", ev.EventID, rec.ID)
	}
	if rec.EventType != domainagg.EventOrderCreated {
		t.Fatalf("event type: want=%q got=%q", domainagg.EventOrderCreated, rec.EventType)
	}
	if rec.SchemaVersion != domainagg.EventSchemaVersion {
		t.Fatalf("schema version: want=%d got=%d", domainagg.EventSchemaVersion, rec.SchemaVersion)
	}
	if rec.Delivered() || rec.DeadLettered() {
		t.Fatalf("fresh record must be undelivered")
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if payload["order_id"] != aggID.String() {
		t.Fatalf("payload order_id: want=%q got=%v", aggID.String(), payload["order_id"])
	}
}

func TestOutboxAppenderRefusesMissingTx(t *testing.T) {
	db := repotest.DB(t)
	appender := NewOutboxAppender(outboxrepo.NewOutboxRepo(db, repotest.Logger(t)))

	ev := domainagg.NewEvent(domainagg.AggregateTypeOrder, uuid.New(), domainagg.EventOrderCreated, time.Now().UTC(), nil)
	err := appender.Append(dbctx.Context{Ctx: context.Background()}, []domainagg.Event{ev})
	if !domainagg.IsCode(err, domainagg.CodeInternal) {
		t.Fatalf("tx-less append must fail, got %v", err)
	}
}

func TestOutboxAppenderNoEventsNoRows(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	appender := NewOutboxAppender(outboxrepo.NewOutboxRepo(tx, repotest.Logger(t)))
	if err := appender.Append(dbctx.Context{Ctx: context.Background(), Tx: tx}, nil); err != nil {
		t.Fatalf("empty append: %v", err)
	}
}
