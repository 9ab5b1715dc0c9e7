// Package domain aggregates the bounded-context model packages behind one
// import so repos and write-side aggregates can refer to rows uniformly.
// Cross-context joins are not sanctioned: each context owns its tables and
// communicates with the others only through the outbox event stream.
package domain

import (
	"github.com/yungbote/commerce-backend/internal/domain/billing"
	"github.com/yungbote/commerce-backend/internal/domain/fulfillment"
	"github.com/yungbote/commerce-backend/internal/domain/orders"
	"github.com/yungbote/commerce-backend/internal/domain/outbox"
	"github.com/yungbote/commerce-backend/internal/domain/payments"
)

type Order = orders.Order
type OrderItem = orders.OrderItem
type OrderStatus = orders.OrderStatus
type OrderPaymentStatus = orders.OrderPaymentStatus

type Payment = payments.Payment
type PaymentStatus = payments.PaymentStatus
type PaymentMethod = payments.PaymentMethod

type Invoice = billing.Invoice
type InvoiceStatus = billing.InvoiceStatus

type OrderSplit = fulfillment.OrderSplit
type OrderSplitItem = fulfillment.OrderSplitItem
type SplitStatus = fulfillment.SplitStatus

type OutboxRecord = outbox.Record

const (
	OrderStatusCreated         = orders.OrderStatusCreated
	OrderStatusAwaitingPayment = orders.OrderStatusAwaitingPayment
	OrderStatusPaid            = orders.OrderStatusPaid
	OrderStatusProcessing      = orders.OrderStatusProcessing
	OrderStatusShipped         = orders.OrderStatusShipped
	OrderStatusDelivered       = orders.OrderStatusDelivered
	OrderStatusCancelled       = orders.OrderStatusCancelled
	OrderStatusReturned        = orders.OrderStatusReturned

	OrderPaymentPending           = orders.OrderPaymentPending
	OrderPaymentCompleted         = orders.OrderPaymentCompleted
	OrderPaymentRefunded          = orders.OrderPaymentRefunded
	OrderPaymentPartiallyRefunded = orders.OrderPaymentPartiallyRefunded

	PaymentMethodCard         = payments.PaymentMethodCard
	PaymentMethodBankTransfer = payments.PaymentMethodBankTransfer
	PaymentMethodWallet       = payments.PaymentMethodWallet

	PaymentStatusPending           = payments.PaymentStatusPending
	PaymentStatusProcessing        = payments.PaymentStatusProcessing
	PaymentStatusCompleted         = payments.PaymentStatusCompleted
	PaymentStatusFailed            = payments.PaymentStatusFailed
	PaymentStatusRefunded          = payments.PaymentStatusRefunded
	PaymentStatusPartiallyRefunded = payments.PaymentStatusPartiallyRefunded

	InvoiceStatusIssued = billing.InvoiceStatusIssued
	InvoiceStatusSent   = billing.InvoiceStatusSent

	SplitStatusOpen      = fulfillment.SplitStatusOpen
	SplitStatusCompleted = fulfillment.SplitStatusCompleted
	SplitStatusCancelled = fulfillment.SplitStatusCancelled
)
