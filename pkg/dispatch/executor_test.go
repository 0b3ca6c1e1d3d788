package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sitewarden/sitewarden/db"
	"github.com/stretchr/testify/assert"
)

func TestHTTPProbeExecutorSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executor := NewHTTPProbeExecutor()
	result, err := executor.Execute(context.Background(), &db.Target{URL: server.URL}, nil)
	assert.Nil(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Greater(t, result.ResponseTime, time.Duration(0))
	assert.Empty(t, result.ErrorMessage)
}

func TestHTTPProbeExecutorServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	executor := NewHTTPProbeExecutor()
	result, err := executor.Execute(context.Background(), &db.Target{URL: server.URL}, nil)
	assert.Nil(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, http.StatusServiceUnavailable, result.StatusCode)
	assert.Contains(t, result.ErrorMessage, "503")
}

func TestHTTPProbeExecutorTransportError(t *testing.T) {
	executor := NewHTTPProbeExecutor()
	result, err := executor.Execute(context.Background(), &db.Target{URL: "http://127.0.0.1:1"}, nil)
	assert.NotNil(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestHTTPProbeExecutorHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	executor := NewHTTPProbeExecutor()
	_, err := executor.Execute(ctx, &db.Target{URL: server.URL}, nil)
	assert.NotNil(t, err)
}
