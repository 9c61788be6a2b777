package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHealthStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", NewHealthHandler().Status)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestReadinessReportsFailingDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewHealthHandler(
		WithReadinessCheck("database", func(_ context.Context) error { return nil }),
		WithReadinessCheck("redis", func(_ context.Context) error { return errors.New("dial tcp: refused") }),
	)

	r := gin.New()
	r.GET("/readyz", handler.Readiness)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}

	var body ReadinessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "unavailable" {
		t.Fatalf("expected unavailable status, got %q", body.Status)
	}
	if body.Checks["database"] != "ok" {
		t.Fatalf("database check should pass, got %q", body.Checks["database"])
	}
	if body.Checks["redis"] == "ok" {
		t.Fatal("redis check should report its error")
	}
}

func TestReadinessAllHealthy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewHealthHandler(
		WithReadinessCheck("database", func(_ context.Context) error { return nil }),
	)

	r := gin.New()
	r.GET("/readyz", handler.Readiness)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
