package broker_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kitebot/internal/domain"
)

func marketIntent() domain.OrderIntent {
	return domain.OrderIntent{
		Symbol:    "RELIANCE",
		Venue:     "NSE",
		Side:      domain.SideBuy,
		Quantity:  10,
		OrderType: domain.OrderTypeMarket,
		Product:   domain.ProductMIS,
		Leg:       1,
	}
}

func TestSubmitOrder_AcksWithOrderID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders/regular", r.URL.Path)
		assert.Equal(t, "token key:secret", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "NSE", r.PostForm.Get("exchange"))
		assert.Equal(t, "RELIANCE", r.PostForm.Get("tradingsymbol"))
		assert.Equal(t, "BUY", r.PostForm.Get("transaction_type"))
		assert.Equal(t, "10", r.PostForm.Get("quantity"))
		assert.Equal(t, "MIS", r.PostForm.Get("product"))
		assert.Equal(t, "MARKET", r.PostForm.Get("order_type"))
		assert.Equal(t, "DAY", r.PostForm.Get("validity"))
		assert.Empty(t, r.PostForm.Get("price"), "market orders carry no price")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"order_id":"151220000000000"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	orderID, err := client.SubmitOrder(context.Background(), marketIntent())

	require.NoError(t, err)
	assert.Equal(t, "151220000000000", orderID)
}

func TestSubmitOrder_LimitOrderCarriesPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "LIMIT", r.PostForm.Get("order_type"))
		assert.Equal(t, "2850.50", r.PostForm.Get("price"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"order_id":"151220000000001"}}`))
	}))
	defer srv.Close()

	intent := marketIntent()
	intent.OrderType = domain.OrderTypeLimit
	intent.Price = 2850.50

	client := newTestClient(srv)
	_, err := client.SubmitOrder(context.Background(), intent)
	require.NoError(t, err)
}

func TestSubmitOrder_RMSRejectionParsesShortfall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"error","message":"Insufficient funds. Required margin is 190238.93 but available margin is 9373.65. Check the orderbook for open orders.","error_type":"InputException"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	_, err := client.SubmitOrder(context.Background(), marketIntent())

	require.Error(t, err)
	var rejected *domain.OrderRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Message, "Insufficient funds")
	require.NotNil(t, rejected.Shortfall)
	assert.InDelta(t, 190238.93, rejected.Shortfall.Required, 0.001)
	assert.InDelta(t, 9373.65, rejected.Shortfall.Available, 0.001)
	assert.ErrorIs(t, err, domain.ErrLegSubmissionFailed)
}

func TestSubmitOrder_RejectionWithoutFiguresHasNilShortfall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"error","message":"Order rejected by exchange.","error_type":"OrderException"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	_, err := client.SubmitOrder(context.Background(), marketIntent())

	var rejected *domain.OrderRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Nil(t, rejected.Shortfall)
}

func TestSubmitOrder_ServerErrorIsPlainFailureWithoutRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv)
	_, err := client.SubmitOrder(context.Background(), marketIntent())

	require.Error(t, err)
	var rejected *domain.OrderRejectedError
	assert.False(t, errors.As(err, &rejected), "a 5xx is not an OMS rejection")
	// the OMS may have booked the order before failing: never resubmit
	assert.Equal(t, 1, calls)
}

func TestSubmitOrder_InvalidIntentNeverReachesBroker(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	intent := marketIntent()
	intent.Venue = ""

	client := newTestClient(srv)
	_, err := client.SubmitOrder(context.Background(), intent)

	require.Error(t, err)
	assert.Zero(t, calls)
}

func TestAvailableMargin_ReadsEquityCash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/margins", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"equity":{"net":99725.05,"available":{"cash":245431.60,"live_balance":98284.55}}}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	margin, err := client.AvailableMargin(context.Background())

	require.NoError(t, err)
	assert.InDelta(t, 245431.60, margin, 0.001)
}

func TestAvailableMargin_FallsBackToNet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"equity":{"net":99725.05,"available":{"cash":0,"live_balance":0}}}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	margin, err := client.AvailableMargin(context.Background())

	require.NoError(t, err)
	assert.InDelta(t, 99725.05, margin, 0.001)
}
