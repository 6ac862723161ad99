package cashledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/filmledger/filmledger/internal/shared"
)

func testClient(t *testing.T, url string) *Client {
	t.Helper()
	c := NewClient(url, "proj-1", "user-1", 2*time.Second, nil)
	c.retry = shared.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, Retryable: isTransient}
	return c
}

func TestCreateCashInflowPostsPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "inflow-42"})
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)
	id, err := client.CreateCashInflow(context.Background(), InflowInput{
		Date:        time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC),
		Amount:      15000,
		Description: "Sale of 10.00kg Virgin Films",
	})
	require.NoError(t, err)
	require.Equal(t, "inflow-42", id)

	require.Equal(t, "2025-04-02", got["date"])
	require.InDelta(t, 15000, got["amount"].(float64), 0.0001)
	require.Equal(t, "sale", got["source"])
	require.Equal(t, "proj-1", got["projectId"])
	require.Equal(t, "user-1", got["userId"])
	require.NotEmpty(t, got["createdAt"])
}

func TestCreateCashInflowRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "inflow-7"})
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)
	id, err := client.CreateCashInflow(context.Background(), InflowInput{Date: time.Now(), Amount: 100})
	require.NoError(t, err)
	require.Equal(t, "inflow-7", id)
	require.EqualValues(t, 3, calls.Load())
}

func TestCreateCashInflowGivesUpAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)
	_, err := client.CreateCashInflow(context.Background(), InflowInput{Date: time.Now(), Amount: 100})
	require.Error(t, err)
	require.EqualValues(t, 3, calls.Load())
}

func TestCreateCashInflowDoesNotRetryRejection(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad amount", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)
	_, err := client.CreateCashInflow(context.Background(), InflowInput{Date: time.Now(), Amount: -1})
	require.ErrorIs(t, err, ErrRejected)
	require.EqualValues(t, 1, calls.Load())
}
