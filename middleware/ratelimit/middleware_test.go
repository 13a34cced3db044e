package ratelimit

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pothole-core/middleware/ratelimit/domain"
	"pothole-core/middleware/ratelimit/infra"
)

func newStore(t *testing.T, interval time.Duration, max int) *infra.WindowStore {
	t.Helper()
	s, err := infra.NewWindowStore(interval, max, infra.WithSweepEvery(0))
	if err != nil {
		t.Fatalf("NewWindowStore: %v", err)
	}
	return s
}

func TestMiddleware_AdmitsThenRejectsSameKey(t *testing.T) {
	store := newStore(t, time.Minute, 1)

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "ok")
	})

	h := Middleware(Options{
		Counter:             store,
		UserHeader:          "X-User-Id",
		AddRateLimitHeaders: true,
	})(next)

	// 1) primeira passa
	r1 := httptest.NewRequest(http.MethodPost, "http://example/comments", nil)
	r1.Header.Set("X-User-Id", "u1")
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w1.Code)
	}
	if got := w1.Header().Get("X-RateLimit-Key"); got != "user:u1" {
		t.Fatalf("expected X-RateLimit-Key=user:u1, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-Limit"); got != "1" {
		t.Fatalf("expected X-RateLimit-Limit=1, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-Window"); got != "60" {
		t.Fatalf("expected X-RateLimit-Window=60, got %q", got)
	}

	// 2) segunda deve bloquear (max=1 na janela)
	r2 := httptest.NewRequest(http.MethodPost, "http://example/comments", nil)
	r2.Header.Set("X-User-Id", "u1")
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "" {
		t.Fatalf("expected no Retry-After header, got %q", got)
	}

	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
}

func TestMiddleware_SharedHandleAcrossEndpoints(t *testing.T) {
	store := newStore(t, time.Minute, 1)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	comments := Middleware(Options{Counter: store, AnonHeader: "X-Anonymous-Id"})(ok)
	contact := Middleware(Options{Counter: store, AnonHeader: "X-Anonymous-Id"})(ok)

	r1 := httptest.NewRequest(http.MethodPost, "http://example/comments", nil)
	r1.Header.Set("X-Anonymous-Id", "anon-1")
	w1 := httptest.NewRecorder()
	comments.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}

	r2 := httptest.NewRequest(http.MethodPost, "http://example/contact", nil)
	r2.Header.Set("X-Anonymous-Id", "anon-1")
	w2 := httptest.NewRecorder()
	contact.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on second endpoint with the same handle, got %d", w2.Code)
	}
}

func TestMiddleware_DifferentKeysHaveOwnWindow(t *testing.T) {
	store := newStore(t, time.Minute, 1)

	h := Middleware(Options{Counter: store, UserHeader: "X-User-Id"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	for _, user := range []string{"k1", "k2"} {
		r := httptest.NewRequest(http.MethodPost, "http://example/", nil)
		r.Header.Set("X-User-Id", user)
		r.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for user %s, got %d", user, w.Code)
		}
	}
}

func TestMiddleware_RecordsStats(t *testing.T) {
	store := newStore(t, time.Minute, 1)
	stats := infra.NewMemoryStatsStore(infra.WithTrackKeys(true))

	h := Middleware(Options{Counter: store, Stats: stats, Route: "comment.create"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodPost, "http://example/comments", nil)
		r.RemoteAddr = "10.0.0.7:999"
		h.ServeHTTP(httptest.NewRecorder(), r)
	}

	total := stats.Total()
	if total.Admitted != 1 || total.Limited != 2 {
		t.Fatalf("expected 1 admitted / 2 limited, got %+v", total)
	}
	if c := stats.ByRoute()["comment.create"]; c.Limited != 2 {
		t.Fatalf("expected route counters, got %+v", stats.ByRoute())
	}
	if c := stats.ByKey()["ip:10.0.0.7"]; c.Admitted != 1 {
		t.Fatalf("expected key counters, got %+v", stats.ByKey())
	}
}

type failingStats struct{ calls int }

func (f *failingStats) Record(context.Context, domain.StatsEvent) error {
	f.calls++
	return errors.New("stats backend down")
}

func TestMiddleware_StatsFailureDoesNotBreakRequest(t *testing.T) {
	stats := &failingStats{}
	h := Middleware(Options{Counter: newStore(t, time.Minute, 5), Stats: stats})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) }),
	)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "http://example/contact", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if stats.calls != 1 {
		t.Fatalf("expected stats to be called once, got %d", stats.calls)
	}
}

func TestMiddleware_NoCounterAdmitsEverything(t *testing.T) {
	h := Middleware(Options{})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	)
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "http://example/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	}
}

func TestFormatSeconds_RoundsUp(t *testing.T) {
	if got := formatSeconds(1500 * time.Millisecond); got != "2" {
		t.Fatalf("expected 2, got %q", got)
	}
	if got := formatSeconds(5 * time.Minute); got != "300" {
		t.Fatalf("expected 300, got %q", got)
	}
}
