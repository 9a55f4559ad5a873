package shop

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey string

const shopContextKey contextKey = "shop.domain"

// Resolver resolves the merchant shop domain from HTTP requests using either
// a header or the request host. Every template and quote operation is scoped
// to the resolved shop.
type Resolver struct {
	HeaderName  string
	RootDomain  string
	DefaultShop string
}

// NewResolver returns a resolver configured with the provided header name,
// root domain, and default shop domain. If headerName is empty,
// "X-Shop-Domain" is used.
func NewResolver(headerName, rootDomain, defaultShop string) *Resolver {
	if headerName == "" {
		headerName = "X-Shop-Domain"
	}
	return &Resolver{
		HeaderName:  headerName,
		RootDomain:  strings.ToLower(strings.TrimSpace(rootDomain)),
		DefaultShop: strings.TrimSpace(defaultShop),
	}
}

// Middleware resolves the shop from the request and injects it into the
// context passed downstream.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		domain := r.Resolve(req)
		if domain == "" {
			domain = r.DefaultShop
		}
		if domain != "" {
			req = req.WithContext(WithShop(req.Context(), domain))
		}
		next.ServeHTTP(w, req)
	})
}

// Resolve attempts to find the shop domain from the configured header or the
// request host. Header values win; a storefront proxy always sets it.
func (r *Resolver) Resolve(req *http.Request) string {
	if r == nil || req == nil {
		return ""
	}
	if domain := strings.TrimSpace(req.Header.Get(r.HeaderName)); domain != "" {
		return strings.ToLower(domain)
	}

	host := hostWithoutPort(req.Host)
	if host == "" {
		return ""
	}
	return r.shopFromHost(host)
}

func (r *Resolver) shopFromHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return ""
	}
	if r.RootDomain != "" {
		if host == r.RootDomain {
			return ""
		}
		suffix := "." + r.RootDomain
		if !strings.HasSuffix(host, suffix) {
			return ""
		}
		return strings.TrimSuffix(host, suffix)
	}
	return host
}

func hostWithoutPort(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if strings.HasPrefix(hostport, "[") {
		if idx := strings.Index(hostport, "]"); idx != -1 {
			host := hostport[1:idx]
			if host != "" {
				return host
			}
		}
	}
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	if idx := strings.Index(hostport, ":"); idx != -1 && strings.Count(hostport, ":") == 1 {
		return hostport[:idx]
	}
	return hostport
}

// WithShop stores the shop domain inside the context.
func WithShop(ctx context.Context, domain string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, shopContextKey, domain)
}

// FromContext extracts the shop domain from the context if available.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	domain, ok := ctx.Value(shopContextKey).(string)
	if !ok {
		return "", false
	}
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return "", false
	}
	return domain, true
}

// RequireShop rejects requests that could not be resolved to a shop.
func RequireShop(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if _, ok := FromContext(req.Context()); !ok {
			http.Error(w, "shop could not be resolved", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, req)
	})
}
