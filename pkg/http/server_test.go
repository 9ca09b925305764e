package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/ping", func(c echo.Context) error {
		return SuccessResponse(c, map[string]bool{"ok": true})
	})
}

func TestServerCORS(t *testing.T) {
	s := NewServer([]Handler{pingHandler{}}, WithCORS(true, "http://localhost:5173"), WithMetricsPath(""))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/ping", nil)
	req.Header.Set("Origin", "https://dash.example")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", rec.Code)
	}
	h := rec.Header()
	if h.Get("Access-Control-Allow-Origin") != "https://dash.example" || h.Get("Vary") != "Origin" {
		t.Fatalf("origin headers %v", h)
	}
	if h.Get("Access-Control-Allow-Methods") != "GET, OPTIONS, POST" {
		t.Fatalf("methods %q", h.Get("Access-Control-Allow-Methods"))
	}

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("default origin: %d %v", rec.Code, rec.Header())
	}
}

func TestAppErrorResponse(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	if err := AppErrorResponse(c, BadRequestError("MISSING_ZONE_RANGE", "")); err != nil {
		t.Fatalf("render: %v", err)
	}
	if rec.Code != http.StatusBadRequest || rec.Body.String() != "{\"ok\":false,\"error\":\"MISSING_ZONE_RANGE\"}\n" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestServerStartFailsWhenPortTaken(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	s := NewServer(nil, WithHost("127.0.0.1"), WithPort(port), WithMetricsPath(""))
	if err := s.Start(); err == nil {
		_ = s.Stop(context.Background())
		t.Fatalf("start on a bound port must fail")
	}
}

func TestServerStartServesUntilStopped(t *testing.T) {
	s := NewServer([]Handler{pingHandler{}}, WithHost("127.0.0.1"), WithPort(0), WithMetricsPath(""))
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/api/v1/ping", s.Addr()))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	select {
	case err := <-s.Errors():
		t.Fatalf("graceful stop reported %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}
