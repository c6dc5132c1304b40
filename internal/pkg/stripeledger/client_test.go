package stripeledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceTransactionToLedgerEntry(t *testing.T) {
	txn := balanceTransaction{
		ID:          "txn_1",
		Amount:      12050,
		Fee:         380,
		Net:         11670,
		Currency:    "usd",
		Type:        "charge",
		Status:      "available",
		Description: "Donation",
		Source:      "ch_1",
		Created:     1756684800,
		AvailableOn: 1756771200,
	}

	entry := txn.toLedgerEntry()
	assert.Equal(t, "txn_1", entry.StripeID)
	assert.Equal(t, "ch_1", entry.ChargeID)
	assert.InDelta(t, 120.50, entry.Amount, 0.001)
	assert.InDelta(t, 3.80, entry.Fee, 0.001)
	assert.InDelta(t, 116.70, entry.Net, 0.001)
	assert.Equal(t, time.Unix(1756684800, 0).UTC(), entry.CreatedAt)
	require.NotNil(t, entry.AvailableOn)
	assert.Equal(t, time.Unix(1756771200, 0).UTC(), *entry.AvailableOn)
	assert.True(t, entry.IsCharge())
}

func TestLedgerEntryIsCharge(t *testing.T) {
	assert.True(t, LedgerEntry{Type: "charge"}.IsCharge())
	assert.True(t, LedgerEntry{Type: "payment"}.IsCharge())
	assert.False(t, LedgerEntry{Type: "payout"}.IsCharge())
	assert.False(t, LedgerEntry{Type: "stripe_fee"}.IsCharge())
}

func TestFetchEntriesPagination(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		require.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

		page := listResponse{HasMore: true, Data: []balanceTransaction{
			{ID: "txn_1", Amount: 1000, Type: "charge", Created: 1756684800},
			{ID: "txn_2", Amount: 2000, Type: "charge", Created: 1756684900},
		}}
		if r.URL.Query().Get("starting_after") == "txn_2" {
			page = listResponse{HasMore: false, Data: []balanceTransaction{
				{ID: "txn_3", Amount: 3000, Type: "charge", Created: 1756685000},
			}}
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "sk_test_123", APIBaseURL: server.URL})
	entries, err := client.FetchEntries(context.Background(),
		time.Unix(1756684000, 0), time.Unix(1756686000, 0))
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, "txn_3", entries[2].StripeID)
	require.Len(t, requests, 2)
	assert.Contains(t, requests[1], "starting_after=txn_2")
}

func TestFetchEntriesErrors(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		client := NewClient(Config{})
		_, err := client.FetchEntries(context.Background(), time.Now().Add(-time.Hour), time.Now())
		assert.Error(t, err)
	})

	t.Run("non-2xx response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"invalid key"}}`, http.StatusUnauthorized)
		}))
		defer server.Close()

		client := NewClient(Config{APIKey: "sk_bad", APIBaseURL: server.URL})
		_, err := client.FetchEntries(context.Background(), time.Now().Add(-time.Hour), time.Now())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status=401")
	})

	t.Run("invalid json", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer server.Close()

		client := NewClient(Config{APIKey: "sk_test", APIBaseURL: server.URL})
		_, err := client.FetchEntries(context.Background(), time.Now().Add(-time.Hour), time.Now())
		assert.Error(t, err)
	})
}
