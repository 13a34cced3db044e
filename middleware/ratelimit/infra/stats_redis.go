package infra

import (
	"context"
	"strconv"
	"strings"
	"time"

	"pothole-core/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

const (
	fieldAdmitted = "admitted"
	fieldLimited  = "limited"
)

// RedisStatsStore agrega decisões em hashes do Redis, somando as réplicas.
// A admissão em si continua local (WindowStore).
//
// Layout, com p = prefixo:
//
//	p:total               {admitted, limited}
//	p:routes              SET com os nomes de rota vistos
//	p:route:<rota>        {admitted, limited}
//	p:minute:<yyyymmddhhmm> {admitted, limited}   (com TTL)
//	p:key:<ator>          {admitted, limited}     (com TTL, só com trackKeys)
type RedisStatsStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	// "minute" liga o balde por minuto; qualquer outro valor desliga.
	bucket    string
	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(prefix, ": "); p != "" {
			s.prefix = p
		}
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	field := fieldAdmitted
	if ev.Limited {
		field = fieldLimited
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, s.key("total"), field, 1)

		if route := strings.TrimSpace(ev.Route); route != "" {
			pipe.SAdd(ctx, s.key("routes"), route)
			pipe.HIncrBy(ctx, s.key("route", route), field, 1)
		}

		if s.bucket == "minute" {
			s.incrExpiring(ctx, pipe, s.key("minute", at.UTC().Format("200601021504")), field)
		}
		if s.trackKeys {
			if k := strings.TrimSpace(string(ev.Key)); k != "" {
				s.incrExpiring(ctx, pipe, s.key("key", k), field)
			}
		}
		return nil
	})
	return err
}

func (s *RedisStatsStore) incrExpiring(ctx context.Context, pipe redis.Pipeliner, key, field string) {
	pipe.HIncrBy(ctx, key, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

// Snapshot implementa domain.StatsReader: total e por rota, cumulativos.
func (s *RedisStatsStore) Snapshot(ctx context.Context) (domain.StatsSnapshot, error) {
	snap := domain.StatsSnapshot{ByRoute: map[string]domain.Counters{}}

	total, err := s.rdb.HGetAll(ctx, s.key("total")).Result()
	if err != nil {
		return snap, err
	}
	snap.Total = parseCounters(total)

	routes, err := s.rdb.SMembers(ctx, s.key("routes")).Result()
	if err != nil || len(routes) == 0 {
		return snap, err
	}

	cmds := make([]*redis.MapStringStringCmd, len(routes))
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, route := range routes {
			cmds[i] = pipe.HGetAll(ctx, s.key("route", route))
		}
		return nil
	})
	if err != nil {
		return snap, err
	}
	for i, route := range routes {
		snap.ByRoute[route] = parseCounters(cmds[i].Val())
	}
	return snap, nil
}

func parseCounters(h map[string]string) domain.Counters {
	a, _ := strconv.ParseInt(h[fieldAdmitted], 10, 64)
	l, _ := strconv.ParseInt(h[fieldLimited], 10, 64)
	return domain.Counters{Admitted: a, Limited: l}
}
