package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/openclaims/coverd/config"
	"github.com/openclaims/coverd/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.LedgerConfig{
		BaseURL:    baseURL,
		MaxRetries: 2,
	}, zap.NewNop())
}

func TestClientBalanceOf(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/0xa11ce/balance", r.URL.Path)
		json.NewEncoder(w).Encode(balanceResponse{Amount: 5_000_000})
	}))
	defer server.Close()

	balance, err := newTestClient(server.URL).BalanceOf(context.Background(), "0xa11ce")
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000), balance)
}

func TestClientAllowance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/0xa11ce/allowances/0xc0ffee", r.URL.Path)
		json.NewEncoder(w).Encode(balanceResponse{Amount: 1_200_000})
	}))
	defer server.Close()

	allowance, err := newTestClient(server.URL).Allowance(context.Background(), "0xa11ce", "0xc0ffee")
	require.NoError(t, err)
	assert.Equal(t, int64(1_200_000), allowance)
}

func TestClientTransferFrom(t *testing.T) {
	var got transferRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transfers/from", r.URL.Path)
		assert.Equal(t, "POST", r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := newTestClient(server.URL).TransferFrom(context.Background(), "0xa11ce", "0xc0ffee", 1_200_000)
	require.NoError(t, err)
	assert.Equal(t, "0xa11ce", got.Owner)
	assert.Equal(t, "0xc0ffee", got.To)
	assert.Equal(t, int64(1_200_000), got.Amount)
}

func TestClientErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     string
		expected error
	}{
		{"insufficient balance", http.StatusConflict, `{"error":"insufficient_balance"}`, ErrInsufficientBalance},
		{"insufficient allowance", http.StatusConflict, `{"error":"insufficient_allowance"}`, ErrInsufficientAllowance},
		{"invalid amount", http.StatusBadRequest, `{"error":"invalid_amount"}`, ErrInvalidAmount},
		{"unknown error maps to unavailable", http.StatusBadRequest, `{"error":"weird"}`, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := newTestClient(server.URL).Transfer(context.Background(), "0xb0b", 100)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(balanceResponse{Amount: 42})
	}))
	defer server.Close()

	balance, err := newTestClient(server.URL).BalanceOf(context.Background(), models.Address("0xb0b"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), balance)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).BalanceOf(context.Background(), "0xb0b")
	assert.ErrorIs(t, err, ErrUnavailable)
}
