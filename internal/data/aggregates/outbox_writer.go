package aggregates

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	types "github.com/yungbote/commerce-backend/internal/domain"
	domainagg "github.com/yungbote/commerce-backend/internal/domain/aggregates"
	outboxrepo "github.com/yungbote/commerce-backend/internal/data/repos/outbox"
	"github.com/yungbote/commerce-backend/internal/platform/dbctx"
)

// OutboxAppender persists domain events as outbox rows inside the caller's
// transaction, making event emission atomic with the aggregate mutation.
type OutboxAppender interface {
	Append(dbc dbctx.Context, events []domainagg.Event) error
}

type outboxAppender struct {
	repo outboxrepo.OutboxRepo
}

func NewOutboxAppender(repo outboxrepo.OutboxRepo) OutboxAppender {
	return &outboxAppender{repo: repo}
}

func (a *outboxAppender) Append(dbc dbctx.Context, events []domainagg.Event) error {
	if len(events) == 0 {
		return nil
	}
	if a == nil || a.repo == nil {
		return domainagg.NewError(domainagg.CodeInternal, "outbox.append", "outbox appender not configured", nil)
	}
	// A tx-less append would break the atomicity contract, so refuse it.
	if dbc.Tx == nil {
		return domainagg.NewError(domainagg.CodeInternal, "outbox.append", "outbox append requires a db transaction", nil)
	}
	now := time.Now().UTC()
	rows := make([]*types.OutboxRecord, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return domainagg.NewError(domainagg.CodeInternal, "outbox.append",
				fmt.Sprintf("marshal payload for %s", ev.EventType), err)
		}
		occurred := ev.OccurredAt
		if occurred.IsZero() {
			occurred = now
		}
		rows = append(rows, &types.OutboxRecord{
			ID:            ev.EventID,
			AggregateType: ev.AggregateType,
			AggregateID:   ev.AggregateID,
			EventType:     ev.EventType,
			Payload:       datatypes.JSON(payload),
			SchemaVersion: ev.SchemaVersion,
			OccurredAt:    occurred,
			CreatedAt:     now,
		})
	}
	return a.repo.Append(dbc, rows)
}
