package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/merchkit/merchkit/internal/ratelimit"
)

func TestCheckoutRateLimit(t *testing.T) {
	s := miniredis.RunT(t)
	mgr, err := ratelimit.NewManager("redis://" + s.Addr())
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Close()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	mw := CheckoutRateLimit(mgr, 3)(h)

	newReq := func(addr string) *http.Request {
		req := httptest.NewRequest("POST", "/v1/checkout", nil)
		req.RemoteAddr = addr
		return req
	}

	var last int
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, newReq("10.0.0.1:4000"))
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after exceeding per-minute limit, got %d", last)
	}

	// Another buyer has their own window.
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, newReq("10.0.0.2:4000"))
	if rec.Code != 200 {
		t.Fatalf("expected 200 for a different client, got %d", rec.Code)
	}

	// And the window resets after a minute.
	s.FastForward(time.Minute + time.Second)
	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, newReq("10.0.0.1:4000"))
	if rec.Code != 200 {
		t.Fatalf("expected 200 after window reset, got %d", rec.Code)
	}
}

func TestCheckoutRateLimit_NilManagerPassesThrough(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	mw := CheckoutRateLimit(nil, 1)(h)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/checkout", nil))
		if rec.Code != 200 {
			t.Fatalf("expected pass-through without a manager, got %d", rec.Code)
		}
	}
}
