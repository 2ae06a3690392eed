package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  RateLimitConfig
		wantErr bool
	}{
		{"valid", RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute}, false},
		{"zero requests", RateLimitConfig{RequestsPerWindow: 0, WindowDuration: time.Minute}, true},
		{"negative requests", RateLimitConfig{RequestsPerWindow: -1, WindowDuration: time.Minute}, true},
		{"zero window", RateLimitConfig{RequestsPerWindow: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInMemoryStoreAllow(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _ := store.Allow(ctx, "client-1", config)
		if !allowed {
			t.Fatalf("request %d blocked, want allowed", i+1)
		}
	}

	allowed, retryAfter := store.Allow(ctx, "client-1", config)
	if allowed {
		t.Fatal("fourth request allowed, want blocked")
	}
	if retryAfter <= 0 {
		t.Errorf("retryAfter = %d, want > 0", retryAfter)
	}

	// A different key has its own window.
	if allowed, _ := store.Allow(ctx, "client-2", config); !allowed {
		t.Error("distinct key must not share the bucket")
	}
}

func TestInMemoryStoreWindowReset(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 10 * time.Millisecond}
	ctx := context.Background()

	if allowed, _ := store.Allow(ctx, "client-1", config); !allowed {
		t.Fatal("first request must be allowed")
	}
	if allowed, _ := store.Allow(ctx, "client-1", config); allowed {
		t.Fatal("second request within the window must be blocked")
	}

	time.Sleep(15 * time.Millisecond)
	if allowed, _ := store.Allow(ctx, "client-1", config); !allowed {
		t.Error("request after window expiry must be allowed")
	}
}

func TestInMemoryStoreCleanup(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Nanosecond}

	store.Allow(context.Background(), "client-1", config)
	time.Sleep(time.Millisecond)
	store.Cleanup()

	store.mu.RLock()
	defer store.mu.RUnlock()
	if len(store.buckets) != 0 {
		t.Errorf("buckets = %d after cleanup, want 0", len(store.buckets))
	}
}

func TestIPKeyFunc(t *testing.T) {
	keyFunc := IPKeyFunc()

	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{
			"forwarded chain uses the first hop",
			func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1") },
			"203.0.113.9",
		},
		{
			"real ip header",
			func(r *http.Request) { r.Header.Set("X-Real-IP", "203.0.113.7") },
			"203.0.113.7",
		},
		{
			"remote addr with port",
			func(r *http.Request) { r.RemoteAddr = "198.51.100.4:5123" },
			"198.51.100.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/queue", nil)
			tt.setup(req)
			if got := keyFunc(req); got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}

	handler := RateLimiter(store, config, IPKeyFunc(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/queue", nil)
		req.RemoteAddr = "198.51.100.4:5123"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := request(); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := request()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("blocked response must set Retry-After")
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("blocked response must set X-RateLimit-Reset")
	}
}
