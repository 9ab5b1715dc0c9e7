package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	types "github.com/yungbote/commerce-backend/internal/domain"
	domainagg "github.com/yungbote/commerce-backend/internal/domain/aggregates"
	"github.com/yungbote/commerce-backend/internal/platform/logger"
)

// InventoryProjection maintains an in-memory view of reserved stock from the
// order event stream. Reservations are keyed by order so a cancellation can
// release exactly what its creation reserved, replays included.
type InventoryProjection struct {
	log *logger.Logger

	mu       sync.Mutex
	reserved map[string]int            // product_ref -> total reserved
	byOrder  map[string]map[string]int // order_id -> product_ref -> qty
}

func NewInventoryProjection(baseLog *logger.Logger) *InventoryProjection {
	return &InventoryProjection{
		log:      baseLog.With("handler", "InventoryProjection"),
		reserved: map[string]int{},
		byOrder:  map[string]map[string]int{},
	}
}

type orderEventPayload struct {
	OrderID string `json:"order_id"`
	Items   []struct {
		ProductRef string `json:"product_ref"`
		Quantity   int    `json:"quantity"`
	} `json:"items"`
}

func (p *InventoryProjection) Handle(_ context.Context, rec *types.OutboxRecord) error {
	var payload orderEventPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", rec.EventType, err)
	}
	if payload.OrderID == "" {
		return fmt.Errorf("%s payload missing order_id", rec.EventType)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	switch rec.EventType {
	case domainagg.EventOrderCreated:
		if _, seen := p.byOrder[payload.OrderID]; seen {
			return nil // replay
		}
		lines := map[string]int{}
		for _, it := range payload.Items {
			lines[it.ProductRef] += it.Quantity
			p.reserved[it.ProductRef] += it.Quantity
		}
		p.byOrder[payload.OrderID] = lines
		p.log.Info("stock reserved", "order_id", payload.OrderID, "lines", len(lines))
	case domainagg.EventOrderCancelled:
		lines, seen := p.byOrder[payload.OrderID]
		if !seen {
			return nil // creation not seen or already released
		}
		for ref, qty := range lines {
			p.reserved[ref] -= qty
			if p.reserved[ref] <= 0 {
				delete(p.reserved, ref)
			}
		}
		delete(p.byOrder, payload.OrderID)
		p.log.Info("stock released", "order_id", payload.OrderID)
	}
	return nil
}

// Reserved returns the currently reserved quantity for a product.
func (p *InventoryProjection) Reserved(productRef string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reserved[productRef]
}

// NotificationHandler stands in for the customer messaging integration; it
// validates the payload and records what would have been sent.
type NotificationHandler struct {
	log *logger.Logger
}

func NewNotificationHandler(baseLog *logger.Logger) *NotificationHandler {
	return &NotificationHandler{log: baseLog.With("handler", "NotificationHandler")}
}

func (h *NotificationHandler) Handle(_ context.Context, rec *types.OutboxRecord) error {
	var payload map[string]any
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", rec.EventType, err)
	}
	switch rec.EventType {
	case domainagg.EventPaymentCaptured:
		h.log.Info("payment receipt queued", "order_id", payload["order_id"], "amount", payload["amount"])
	case domainagg.EventPaymentFailed:
		h.log.Info("payment failure notice queued", "order_id", payload["order_id"], "reason", payload["reason"])
	case domainagg.EventPaymentRefunded:
		h.log.Info("refund confirmation queued", "order_id", payload["order_id"], "amount", payload["amount"])
	case domainagg.EventInvoiceSent:
		h.log.Info("invoice email queued", "order_id", payload["order_id"], "invoice_number", payload["invoice_number"])
	default:
		h.log.Debug("no notification for event", "event_type", rec.EventType)
	}
	return nil
}
