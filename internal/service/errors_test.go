package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrEmptyItems, KindInvalidRequest},
		{fmt.Errorf("item[0]: %w", ErrProductNotFound), KindNotFound},
		{&InsufficientStockError{ProductName: "Coffee", Available: 1, Requested: 2}, KindInsufficientStock},
		{&InsufficientPaymentError{Required: decimal.NewFromInt(10), Paid: decimal.NewFromInt(5)}, KindInsufficientPayment},
		{ErrAlreadyCombined, KindAlreadyCombined},
		{ErrAlreadyUnpaid, KindAlreadyUnpaid},
		{ErrNothingToCombine, KindNothingToCombine},
		{ErrNoOpenOrders, KindNoOpenOrders},
		{ErrOrderAlreadyPaid, KindConflict},
		{storageError("create order", errors.New("boom")), KindStorageFailure},
		{errors.New("unexpected"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "%v", tt.err)
	}
}

func TestInsufficientPaymentError_Message(t *testing.T) {
	err := &InsufficientPaymentError{Required: decimal.NewFromInt(400), Paid: decimal.NewFromInt(300)}
	assert.Equal(t, "insufficient payment: required 400.00, paid 300.00, short 100.00", err.Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(storageError("x", &pgconn.PgError{Code: "40001"})))
	assert.True(t, isRetryable(storageError("x", &pgconn.PgError{Code: "40P01"})))
	assert.True(t, isRetryable(&pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}))
	assert.False(t, isRetryable(&pgconn.PgError{Code: "23505", ConstraintName: "unpaid_orders_order_id_key"}))
	assert.False(t, isRetryable(ErrConflict))
}

func TestInTx_RetriesSerializationFailures(t *testing.T) {
	db := newMemDB()
	r := newRunner(db, db.newStore, Options{TxTimeout: time.Second})

	calls := 0
	err := r.inTx(context.Background(), "test", func(ctx context.Context, store Store) error {
		calls++
		if calls < 3 {
			return storageError("update", &pgconn.PgError{Code: "40001"})
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, db.begins)
}

func TestInTx_GivesUpAfterMaxAttempts(t *testing.T) {
	db := newMemDB()
	r := newRunner(db, db.newStore, Options{})

	calls := 0
	err := r.inTx(context.Background(), "test", func(ctx context.Context, store Store) error {
		calls++
		return storageError("update", &pgconn.PgError{Code: "40P01"})
	})
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.Equal(t, maxTxAttempts, calls)
}

func TestInTx_DomainErrorsAreNotRetried(t *testing.T) {
	db := newMemDB()
	r := newRunner(db, db.newStore, Options{})

	calls := 0
	err := r.inTx(context.Background(), "test", func(ctx context.Context, store Store) error {
		calls++
		return ErrNothingToCombine
	})
	assert.ErrorIs(t, err, ErrNothingToCombine)
	assert.Equal(t, 1, calls)
}
