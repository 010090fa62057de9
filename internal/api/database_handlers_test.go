package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"log/slog"
)

type fakeDatabase struct {
	err   error
	stats map[string]any
}

func (f *fakeDatabase) HealthCheck(ctx context.Context) error { return f.err }

func (f *fakeDatabase) Stats() map[string]any { return f.stats }

func TestDatabaseHealth_OK(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewDatabaseHandlers(&fakeDatabase{
		stats: map[string]any{"open_connections": 1},
	}, logger)

	req := httptest.NewRequest(http.MethodGet, "/api/database/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}

	var resp struct {
		Status string         `json:"status"`
		Stats  map[string]any `json:"stats"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status field: %q", resp.Status)
	}
	if _, ok := resp.Stats["open_connections"]; !ok {
		t.Error("pool statistics missing from response")
	}
}

func TestDatabaseHealth_Unavailable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewDatabaseHandlers(&fakeDatabase{err: errors.New("connection refused")}, logger)

	req := httptest.NewRequest(http.MethodGet, "/api/database/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: %d", rec.Code)
	}

	var resp struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "unavailable" {
		t.Errorf("status field: %q", resp.Status)
	}
	if resp.Error == "" {
		t.Error("error detail missing from response")
	}
}
