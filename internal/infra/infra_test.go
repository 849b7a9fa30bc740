package infra

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// ── Cache ──

func TestCacheSetGet(t *testing.T) {
	c := NewCache[string, int](time.Minute)
	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a): got %d,%v want 1,true", v, ok)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("Get(b) should miss")
	}
	c.Invalidate("a")
	if _, ok := c.Get("a"); ok {
		t.Error("Get(a) after Invalidate should miss")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache[string, string](time.Second)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	c.Set("k", "v")
	now = now.Add(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
	c.Flush()
	if c.Len() != 0 {
		t.Errorf("Len after Flush: got %d", c.Len())
	}
}

// ── Pacing ──

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep on cancelled ctx: got %v", err)
	}
	if err := NoSleep(context.Background(), time.Hour); err != nil {
		t.Errorf("NoSleep: got %v", err)
	}
}

func TestRateLimiterUnlimited(t *testing.T) {
	rl := NewRateLimiter(0, 1)
	for i := 0; i < 5; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	var nilRL *RateLimiter
	if err := nilRL.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter Wait: %v", err)
	}
}

// ── DoGet ──

func TestDoGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			if r.Header.Get("X-Test") != "1" {
				t.Errorf("custom header not forwarded")
			}
			w.Write([]byte(`{"ok":true}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("busy"))
		}
	}))
	defer srv.Close()

	client := NewHTTPClient(5 * time.Second)
	body, err := DoGet(context.Background(), client, srv.URL+"/ok", map[string]string{"X-Test": "1"})
	if err != nil {
		t.Fatalf("DoGet ok: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body: got %q", body)
	}

	_, err = DoGet(context.Background(), client, srv.URL+"/busy", nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %T %v", err, err)
	}
	if se.StatusCode != http.StatusServiceUnavailable || se.Body != "busy" {
		t.Errorf("StatusError: got %+v", se)
	}
}
