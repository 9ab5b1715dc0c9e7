package aggregates

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	domainagg "github.com/yungbote/commerce-backend/internal/domain/aggregates"
	"github.com/yungbote/commerce-backend/internal/domain/money"
)

func TestMapErrorCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domainagg.ErrorCode
	}{
		{"validation", ValidationError("bad input"), domainagg.CodeValidation},
		{"invariant", InvariantError("rule broken"), domainagg.CodeInvariantViolation},
		{"conflict", ConflictError("version mismatch"), domainagg.CodeConflict},
		{"retryable", RetryableError("try again"), domainagg.CodeRetryable},
		{"record not found", gorm.ErrRecordNotFound, domainagg.CodeNotFound},
		{"duplicated key", gorm.ErrDuplicatedKey, domainagg.CodeConflict},
		{"currency mismatch", money.ErrCurrencyMismatch, domainagg.CodeValidation},
		{"context canceled", context.Canceled, domainagg.CodeRetryable},
		{"deadline exceeded", context.DeadlineExceeded, domainagg.CodeRetryable},
		{"unknown", errors.New("boom"), domainagg.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := domainagg.CodeOf(MapError("test.op", tc.err))
			if got != tc.want {
				t.Fatalf("code: want=%q got=%q", tc.want, got)
			}
		})
	}
}

func TestMapErrorNil(t *testing.T) {
	if err := MapError("test.op", nil); err != nil {
		t.Fatalf("nil error should map to nil, got %v", err)
	}
}

func TestMapErrorPassesThroughAggregateErrors(t *testing.T) {
	orig := domainagg.NewError(domainagg.CodeNotFound, "test.op", "missing", nil)
	mapped := MapError("other.op", orig)
	if mapped != orig {
		t.Fatalf("aggregate errors must pass through unchanged")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(gorm.ErrDuplicatedKey) {
		t.Fatalf("gorm.ErrDuplicatedKey should be a unique violation")
	}
	if !isUniqueViolation(errors.New(`duplicate key value violates unique constraint "uidx_payment_active_order"`)) {
		t.Fatalf("duplicate key message should be a unique violation")
	}
	if isUniqueViolation(errors.New("connection refused")) {
		t.Fatalf("transient errors are not unique violations")
	}
	if isUniqueViolation(nil) {
		t.Fatalf("nil is not a unique violation")
	}
}
