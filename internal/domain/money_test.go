package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Amount
		wantErr bool
	}{
		{name: "whole", raw: "4950", want: 495000},
		{name: "two decimals", raw: "12.50", want: 1250},
		{name: "trailing zeros beyond scale", raw: "1.500", want: 150},
		{name: "three decimals", raw: "1.005", wantErr: true},
		{name: "non numeric", raw: "ten", wantErr: true},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "negative parses", raw: "-5", want: -500},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAmount(tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidAmount))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAmountValidate(t *testing.T) {
	assert.ErrorIs(t, Amount(0).Validate(), ErrInvalidAmount)
	assert.ErrorIs(t, Amount(-1).Validate(), ErrInvalidAmount)
	assert.NoError(t, Amount(1).Validate())
}

func TestAmountJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		Balance Amount `json:"balance"`
	}{Balance: Major(4950)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"balance":4950.00}`, string(out))

	var req AddFundsRequest
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"250.75","paymentMethod":"UPI"}`), &req))
	assert.Equal(t, Amount(25075), req.Amount)

	require.NoError(t, json.Unmarshal([]byte(`{"amount":100}`), &req))
	assert.Equal(t, Major(100), req.Amount)

	err = json.Unmarshal([]byte(`{"amount":"abc"}`), &req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidAmount))
}

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		wantErr  error
	}{
		{OrderPending, OrderInProgress, nil},
		{OrderPending, OrderCompleted, nil},
		{OrderInProgress, OrderCompleted, nil},
		{OrderCancelled, OrderPending, nil},
		{OrderCompleted, OrderCompleted, nil},
		{OrderCompleted, OrderPending, ErrOrderAlreadyCompleted},
		{OrderCompleted, OrderCancelled, ErrOrderAlreadyCompleted},
		{OrderCancelled, OrderCompleted, ErrInvalidStatusTransition},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			err := tc.from.CanTransition(tc.to)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	assert.True(t, IsValidation(OrderPending.CanTransition("shipped")))
}
