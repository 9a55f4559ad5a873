package shop

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveFromHeader(t *testing.T) {
	r := NewResolver("", "", "")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Shop-Domain", "Acme.MyShopify.com")
	if got := r.Resolve(req); got != "acme.myshopify.com" {
		t.Fatalf("expected lowercase header value, got %q", got)
	}
}

func TestResolveFromSubdomain(t *testing.T) {
	r := NewResolver("", "pricing.example.com", "")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "acme.pricing.example.com:8080"
	if got := r.Resolve(req); got != "acme" {
		t.Fatalf("expected subdomain, got %q", got)
	}

	req.Host = "pricing.example.com"
	if got := r.Resolve(req); got != "" {
		t.Fatalf("expected empty for root domain, got %q", got)
	}
}

func TestMiddlewareInjectsShop(t *testing.T) {
	r := NewResolver("", "", "fallback.example.com")
	var seen string
	handler := r.Middleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		seen, _ = FromContext(req.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "fallback.example.com" {
		t.Fatalf("expected default shop, got %q", seen)
	}
}

func TestRequireShopRejectsUnresolved(t *testing.T) {
	handler := RequireShop(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
