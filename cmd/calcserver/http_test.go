package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	asynccalc "github.com/xizhibei/go-async-calc"
	"go.uber.org/atomic"
)

type fakeConn struct {
	connected atomic.Bool
}

func (c *fakeConn) IsConnected() bool {
	return c.connected.Load()
}

func get(t *testing.T, h http.Handler, target string) (int, string) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHealthz(t *testing.T) {
	conn := &fakeConn{}
	router := newRouter(conn, prometheus.NewRegistry())

	code, body := get(t, router, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.JSONEq(t, `{"status":"unhealthy"}`, body)

	conn.connected.Store(true)
	code, body = get(t, router, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"healthy"}`, body)
}

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	responseTime, errorCount := newMetrics(registry)

	engine := asynccalc.NewEngine(asynccalc.WithEngineName("server-01"))
	defer engine.Close()

	engine.RegisterMetrics(responseTime, errorCount)
	done := make(chan struct{}, 2)
	engine.OnAfterResult(func(*asynccalc.AfterResultEvent) {
		done <- struct{}{}
	})

	_, err := engine.Add(context.Background(), 1, 2)
	require.NoError(t, err)
	_, err = engine.Div(context.Background(), 1, 0)
	require.ErrorIs(t, err, asynccalc.ErrDivisionByZero)
	<-done
	<-done

	code, body := get(t, newRouter(&fakeConn{}, registry), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `calc_calculation_duration_seconds_count{name="server-01",op="add",status="200"} 1`)
	assert.Contains(t, body, `calc_calculation_errors{message="division by zero",name="server-01",op="div",status="400"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestUnknownRoute(t *testing.T) {
	code, _ := get(t, newRouter(&fakeConn{}, prometheus.NewRegistry()), "/nope")
	assert.Equal(t, http.StatusNotFound, code)
}
