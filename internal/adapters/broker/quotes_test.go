package broker_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kitebot/internal/adapters/broker"
)

func newTestClient(srv *httptest.Server) *broker.Client {
	return broker.NewClient(srv.URL, "key", "secret")
}

func TestQuotes_MapsInstrumentKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "token key:secret", r.Header.Get("Authorization"))
		assert.Equal(t, "3", r.Header.Get("X-Kite-Version"))
		assert.Len(t, r.URL.Query()["i"], 4)
		assert.Contains(t, r.URL.Query()["i"], "NSE:RELIANCE")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{
			"NSE:RELIANCE":{"last_price":2850.50,"volume":1200000,"timestamp":"2026-08-21 14:05:00"},
			"BSE:RELIANCE":{"last_price":2852.10,"volume":80000,"timestamp":"2026-08-21 14:05:02"}
		}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	quotes, err := client.Quotes(context.Background(), []string{"NSE", "BSE"}, []string{"RELIANCE", "TCS"})

	require.NoError(t, err)

	q, ok := quotes.Get("RELIANCE", "NSE")
	require.True(t, ok)
	assert.InDelta(t, 2850.50, q.Price, 0.001)
	assert.InDelta(t, 1_200_000, q.Volume, 0.1)
	// 14:05 hora de bolsa (+05:30) son las 08:35 UTC
	assert.Equal(t, time.Date(2026, 8, 21, 8, 35, 0, 0, time.UTC), q.Timestamp)

	_, ok = quotes.Get("RELIANCE", "BSE")
	assert.True(t, ok)

	// el broker no devolvió TCS: se omite del set, no es un error
	_, ok = quotes.Get("TCS", "NSE")
	assert.False(t, ok)
}

func TestQuotes_SkipsQuotesWithoutPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{
			"NSE:RELIANCE":{"last_price":0,"volume":500,"timestamp":"2026-08-21 14:05:00"},
			"NSE:TCS":{"last_price":3412.20,"volume":900,"timestamp":"2026-08-21 14:05:00"}
		}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	quotes, err := client.Quotes(context.Background(), []string{"NSE"}, []string{"RELIANCE", "TCS"})

	require.NoError(t, err)
	_, ok := quotes.Get("RELIANCE", "NSE")
	assert.False(t, ok, "una quote sin precio no debe entrar al set")
	_, ok = quotes.Get("TCS", "NSE")
	assert.True(t, ok)
}

func TestQuotes_EnvelopeErrorSurfacesType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"error","message":"Incorrect api_key or access_token.","error_type":"TokenException"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	_, err := client.Quotes(context.Background(), []string{"NSE"}, []string{"RELIANCE"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "TokenException")
}

func TestQuotes_RetriesServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv)
	_, err := client.Quotes(context.Background(), []string{"NSE"}, []string{"RELIANCE"})

	require.Error(t, err)
	assert.Equal(t, 4, calls, "3 retries tras el intento inicial")
}
