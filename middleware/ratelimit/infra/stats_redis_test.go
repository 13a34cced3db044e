package infra

import (
	"context"
	"testing"
	"time"

	"pothole-core/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

func TestRedisStatsStore_Defaults(t *testing.T) {
	s := NewRedisStatsStore(nil, WithStatsPrefix(" :custom:stats: "), WithStatsBucket(" NONE "))

	if s.prefix != "custom:stats" {
		t.Fatalf("expected trimmed prefix, got %q", s.prefix)
	}
	if s.bucket != "none" {
		t.Fatalf("expected bucket none, got %q", s.bucket)
	}
	if s.ttl != 24*time.Hour {
		t.Fatalf("expected default ttl 24h, got %s", s.ttl)
	}
	if got := s.key("route", "POST /comments"); got != "custom:stats:route:POST /comments" {
		t.Fatalf("unexpected key %q", got)
	}

	// prefixo vazio mantém o padrão
	if s := NewRedisStatsStore(nil, WithStatsPrefix("")); s.prefix != "ratelimit:stats" {
		t.Fatalf("expected default prefix, got %q", s.prefix)
	}
}

func TestRedisStatsStore_NilClientIsNoop(t *testing.T) {
	s := NewRedisStatsStore(nil)
	if err := s.Record(context.Background(), domain.StatsEvent{Key: "user:u1", Route: "r"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestRedisStatsStore_UnreachableServerReturnsError(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	s := NewRedisStatsStore(rdb)
	if err := s.Record(context.Background(), domain.StatsEvent{Key: "user:u1", Route: "r"}); err == nil {
		t.Fatalf("expected error from unreachable redis")
	}
	if _, err := s.Snapshot(context.Background()); err == nil {
		t.Fatalf("expected snapshot error from unreachable redis")
	}
}

func TestParseCounters(t *testing.T) {
	got := parseCounters(map[string]string{"admitted": "7", "limited": "2", "other": "x"})
	if got != (domain.Counters{Admitted: 7, Limited: 2}) {
		t.Fatalf("expected {7 2}, got %+v", got)
	}
	if got := parseCounters(nil); got != (domain.Counters{}) {
		t.Fatalf("expected zero counters, got %+v", got)
	}
}
