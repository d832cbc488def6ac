package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serverAddr(t *testing.T, mux *http.ServeMux) string {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func healthyMux(vaultBody string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("GET /api/v1/vault/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(vaultBody))
	})
	return mux
}

func TestCheckServer_Healthy(t *testing.T) {
	addr := serverAddr(t, healthyMux(`{"status":"locked","secret_held":true,"credential_cached":false}`))

	vault, err := checkServer(context.Background(), &http.Client{Timeout: time.Second}, addr)

	require.NoError(t, err)
	assert.Equal(t, "locked", vault.Status)
	assert.True(t, vault.SecretHeld)
	assert.False(t, vault.CredentialCached)
}

func TestCheckServer_HealthFailing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	addr := serverAddr(t, mux)

	_, err := checkServer(context.Background(), &http.Client{Timeout: time.Second}, addr)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "/api/v1/health")
	assert.Contains(t, err.Error(), "503")
}

func TestCheckServer_VaultStatusMissing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, _ *http.Request) {})
	addr := serverAddr(t, mux)

	_, err := checkServer(context.Background(), &http.Client{Timeout: time.Second}, addr)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "/api/v1/vault/status")
}

func TestCheckServer_VaultStatusEmpty(t *testing.T) {
	addr := serverAddr(t, healthyMux(`{}`))

	_, err := checkServer(context.Background(), &http.Client{Timeout: time.Second}, addr)

	assert.ErrorContains(t, err, "empty response")
}

func TestCheckServer_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NewServeMux())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	_, err := checkServer(context.Background(), &http.Client{Timeout: time.Second}, addr)

	assert.Error(t, err)
}

func TestNormalizeAddr(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", "127.0.0.1:8080"},
		{"garbage", "127.0.0.1:8080"},
		{":9090", "127.0.0.1:9090"},
		{"0.0.0.0:8080", "127.0.0.1:8080"},
		{"[::]:8080", "127.0.0.1:8080"},
		{"192.168.1.5:8081", "192.168.1.5:8081"},
		{"localhost:8080", "localhost:8080"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeAddr(tt.raw))
		})
	}
}
