package order

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercadoartesano/orders/internal/domain/errors"
)

func testItems() []Item {
	return []Item{
		{ProductID: uuid.New(), Quantity: 2, UnitPrice: 15_00},
		{ProductID: uuid.New(), Quantity: 1, UnitPrice: 7_50},
	}
}

func TestNewOrder_Valid(t *testing.T) {
	o, err := NewOrder("customer-1", testItems(), "EUR")
	require.NoError(t, err)
	assert.Equal(t, "customer-1", o.CustomerID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, int64(37_50), o.TotalAmount)
	assert.Equal(t, "EUR", o.Currency)
	assert.Nil(t, o.CancelReason)
	assert.Nil(t, o.ConfirmedAt)
}

func TestNewOrder_EmptyCustomer(t *testing.T) {
	_, err := NewOrder("", testItems(), "EUR")
	assert.Error(t, err)
}

func TestNewOrder_NoItems(t *testing.T) {
	_, err := NewOrder("customer-1", nil, "EUR")
	assert.ErrorIs(t, err, errors.ErrEmptyOrder)
}

func TestNewOrder_BadCurrency(t *testing.T) {
	_, err := NewOrder("customer-1", testItems(), "EURO")
	assert.Error(t, err)
}

func TestNewOrder_InvalidQuantity(t *testing.T) {
	items := []Item{{ProductID: uuid.New(), Quantity: 0, UnitPrice: 10_00}}
	_, err := NewOrder("customer-1", items, "EUR")
	assert.Error(t, err)
}

func TestNewOrder_InvalidPrice(t *testing.T) {
	items := []Item{{ProductID: uuid.New(), Quantity: 1, UnitPrice: -5}}
	_, err := NewOrder("customer-1", items, "EUR")
	assert.Error(t, err)
}

func TestItem_Subtotal(t *testing.T) {
	it := Item{ProductID: uuid.New(), Quantity: 3, UnitPrice: 12_34}
	assert.Equal(t, int64(37_02), it.Subtotal())
}

// --- Transitions ---

func TestConfirmPayment(t *testing.T) {
	o, _ := NewOrder("customer-1", testItems(), "EUR")

	require.NoError(t, o.ConfirmPayment())
	assert.Equal(t, StatusConfirmed, o.Status)
	require.NotNil(t, o.ConfirmedAt)
	assert.True(t, o.IsTerminal())
}

func TestConfirmPayment_AlreadyConfirmed(t *testing.T) {
	o, _ := NewOrder("customer-1", testItems(), "EUR")
	require.NoError(t, o.ConfirmPayment())

	err := o.ConfirmPayment()
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)
}

func TestConfirmPayment_Cancelled(t *testing.T) {
	o, _ := NewOrder("customer-1", testItems(), "EUR")
	require.NoError(t, o.Cancel("Stock insuficiente"))

	err := o.ConfirmPayment()
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)
}

func TestCancel(t *testing.T) {
	o, _ := NewOrder("customer-1", testItems(), "EUR")

	require.NoError(t, o.Cancel("Saga Timeout"))
	assert.Equal(t, StatusCancelled, o.Status)
	require.NotNil(t, o.CancelReason)
	assert.Equal(t, "Saga Timeout", *o.CancelReason)
	assert.True(t, o.IsTerminal())
}

func TestCancel_AlreadyCancelled(t *testing.T) {
	o, _ := NewOrder("customer-1", testItems(), "EUR")
	require.NoError(t, o.Cancel("first"))

	err := o.Cancel("second")
	assert.ErrorIs(t, err, errors.ErrOrderAlreadyCancelled)
	assert.Equal(t, "first", *o.CancelReason)
}

func TestCancel_Confirmed(t *testing.T) {
	o, _ := NewOrder("customer-1", testItems(), "EUR")
	require.NoError(t, o.ConfirmPayment())

	err := o.Cancel("too late")
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)
}

func TestCanTransitionTo(t *testing.T) {
	o, _ := NewOrder("customer-1", testItems(), "EUR")
	assert.True(t, o.CanTransitionTo(StatusConfirmed))
	assert.True(t, o.CanTransitionTo(StatusCancelled))

	require.NoError(t, o.ConfirmPayment())
	assert.False(t, o.CanTransitionTo(StatusCancelled))
	assert.False(t, o.CanTransitionTo(StatusPending))
}
