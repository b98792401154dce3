package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/quantbots/industrymapapi/internal/models"
)

func newTestSwsAdapter(baseURL string) *SwsAdapter {
	return &SwsAdapter{
		client:   &http.Client{Timeout: 5 * time.Second},
		baseURL:  baseURL,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		pageSize: 2,
	}
}

func newTestEastmoneyAdapter(baseURL string) *EastmoneyAdapter {
	return &EastmoneyAdapter{
		client:   &http.Client{Timeout: 5 * time.Second},
		baseURL:  baseURL,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		pageSize: 2,
	}
}

func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   4 * time.Millisecond,
	}
}

func TestSwsFetchAllPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		switch page {
		case "1":
			fmt.Fprint(w, `{"code":0,"data":{"list":[{"stock_code":"000001","stock_name":"Ping An Bank"},{"stock_code":"2","stock_name":"Wanke A"}],"has_more":true}}`)
		case "2":
			fmt.Fprint(w, `{"code":0,"data":{"list":[{"stock_code":"600000","stock_name":"Pufa Bank"}],"has_more":false}}`)
		default:
			t.Errorf("unexpected page %s", page)
		}
	}))
	defer srv.Close()

	a := newTestSwsAdapter(srv.URL)
	constituents, err := FetchAllPages(context.Background(), a, "801780", fastRetry(0))
	require.NoError(t, err)
	require.Len(t, constituents, 3)
	assert.Equal(t, "000001", constituents[0].Code)
	assert.Equal(t, models.MarketA, constituents[0].Market)
	assert.Equal(t, "600000", constituents[2].Code)
}

func TestSwsRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"code":0,"data":{"list":[{"stock_code":"000001","stock_name":"Ping An Bank"}],"has_more":false}}`)
	}))
	defer srv.Close()

	a := newTestSwsAdapter(srv.URL)
	constituents, err := FetchAllPages(context.Background(), a, "801010", fastRetry(3))
	require.NoError(t, err)
	require.Len(t, constituents, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSwsExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := newTestSwsAdapter(srv.URL)
	_, err := FetchAllPages(context.Background(), a, "801010", fastRetry(2))
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestSwsAuthFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := newTestSwsAdapter(srv.URL)
	_, err := FetchAllPages(context.Background(), a, "801010", fastRetry(3))
	require.Error(t, err)
	assert.True(t, IsAuth(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSwsMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>not json</html>`)
	}))
	defer srv.Close()

	a := newTestSwsAdapter(srv.URL)
	_, err := FetchAllPages(context.Background(), a, "801010", fastRetry(3))
	require.Error(t, err)
	assert.True(t, IsMalformed(err))
	assert.False(t, IsTransient(err))
}

func TestEastmoneyPaginatesByTotal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pn := r.URL.Query().Get("pn")
		switch pn {
		case "1":
			fmt.Fprint(w, `{"rc":0,"data":{"total":3,"diff":[{"f12":"000001","f14":"Ping An Bank"},{"f12":"00700","f14":"Tencent"}]}}`)
		case "2":
			fmt.Fprint(w, `{"rc":0,"data":{"total":3,"diff":[{"f12":"600000","f14":"Pufa Bank"}]}}`)
		default:
			t.Errorf("unexpected pn %s", pn)
		}
	}))
	defer srv.Close()

	a := newTestEastmoneyAdapter(srv.URL)
	constituents, err := FetchAllPages(context.Background(), a, "BK0475", fastRetry(0))
	require.NoError(t, err)
	require.Len(t, constituents, 3)
	assert.Equal(t, models.MarketA, constituents[0].Market)
	assert.Equal(t, models.MarketHK, constituents[1].Market)
}

func TestEastmoneyNilDataIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rc":1}`)
	}))
	defer srv.Close()

	a := newTestEastmoneyAdapter(srv.URL)
	_, err := FetchAllPages(context.Background(), a, "BK0475", fastRetry(0))
	require.Error(t, err)
	assert.True(t, IsMalformed(err))
}

func TestBackoffDelayIsCapped(t *testing.T) {
	rc := RetryConfig{
		MaxRetries: 10,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
	}

	assert.Equal(t, 100*time.Millisecond, rc.backoffDelay(0))
	assert.Equal(t, 200*time.Millisecond, rc.backoffDelay(1))
	assert.Equal(t, 800*time.Millisecond, rc.backoffDelay(3))
	assert.Equal(t, time.Second, rc.backoffDelay(4))
	assert.Equal(t, time.Second, rc.backoffDelay(20))
}

func TestFetchAllPagesRespectsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := newTestSwsAdapter(srv.URL)
	_, err := FetchAllPages(ctx, a, "801010", RetryConfig{MaxRetries: 3, BaseDelay: time.Hour, MaxDelay: time.Hour})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
