package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePayment(t *testing.T) {
	var got createPaymentRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/payments", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Payload{
			TransactionID: "txn-42",
			RedirectURL:   "https://pay.example/txn-42",
			SignedPayload: "c2lnbmVk",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)

	payload, err := client.CreatePayment(context.Background(), 7, decimal.NewFromInt(200))
	require.NoError(t, err)

	assert.Equal(t, int64(7), got.OrderID)
	assert.Equal(t, "200", got.Amount)
	assert.Equal(t, "txn-42", payload.TransactionID)
	assert.Equal(t, "https://pay.example/txn-42", payload.RedirectURL)
}

func TestCreatePaymentGatewayRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(createPaymentError{Error: "Payment error"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)

	_, err := client.CreatePayment(context.Background(), 7, decimal.NewFromInt(100))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Contains(t, err.Error(), "Payment error")
}

func TestCreatePaymentTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 20*time.Millisecond)

	_, err := client.CreatePayment(context.Background(), 7, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ErrPaymentFailed)
}

func TestCreatePaymentConnectionRefused(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 100*time.Millisecond)

	_, err := client.CreatePayment(context.Background(), 7, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ErrPaymentFailed)
}
