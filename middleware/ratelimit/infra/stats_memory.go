package infra

import (
	"context"
	"maps"
	"sync"

	"pothole-core/middleware/ratelimit/domain"
)

// MemoryStatsStore agrega decisões no próprio processo. É o padrão do
// binário quando o Redis de estatísticas não está ligado.
//
// Sem expiração: com trackKeys ligado cresce com o número de atores.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   domain.Counters
	byRoute map[string]domain.Counters
	byKey   map[string]domain.Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[string]domain.Counters),
		byKey:   make(map[string]domain.Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.Add(ev.Limited)
	bump(s.byRoute, ev.Route, ev.Limited)
	if s.trackKeys {
		bump(s.byKey, string(ev.Key), ev.Limited)
	}
	return nil
}

func bump(m map[string]domain.Counters, k string, limited bool) {
	c := m[k]
	c.Add(limited)
	m[k] = c
}

// Snapshot implementa domain.StatsReader.
func (s *MemoryStatsStore) Snapshot(context.Context) (domain.StatsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.StatsSnapshot{Total: s.total, ByRoute: maps.Clone(s.byRoute)}, nil
}

func (s *MemoryStatsStore) Total() domain.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByRoute() map[string]domain.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byRoute)
}

func (s *MemoryStatsStore) ByKey() map[string]domain.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byKey)
}
