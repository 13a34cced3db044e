package infra

import (
	"context"
	"errors"
	"sync"
	"time"

	"pothole-core/middleware/ratelimit/domain"

	"github.com/cespare/xxhash/v2"
)

var (
	ErrInvalidInterval    = errors.New("ratelimit: interval must be > 0")
	ErrInvalidMaxRequests = errors.New("ratelimit: maxRequests must be > 0")
)

// WindowStore é um contador de janela fixa por chave, em memória, com
// varredura periódica das janelas vencidas.
//
// O mapa é dividido em shards (hash xxhash da chave) e cada registro tem
// seu próprio mutex: checks da mesma chave linearizam, chaves diferentes
// só disputam o lock curto de lookup do shard.
//
// Estado é local ao processo. Com várias instâncias atrás de um balanceador
// cada uma conta sozinha e o limite efetivo fica maior que maxRequests.
type WindowStore struct {
	interval   time.Duration
	max        int
	shards     []*shard
	sweepEvery time.Duration
	now        func() time.Time

	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*windowEntry
}

type windowEntry struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
	// removed é marcado pela varredura; quem segurava o ponteiro antigo
	// precisa buscar de novo no mapa.
	removed bool
}

type StoreOption func(*WindowStore)

// WithSweepEvery define o período da varredura. <= 0 desliga a goroutine
// (Sweep ainda pode ser chamado manualmente).
func WithSweepEvery(d time.Duration) StoreOption {
	return func(s *WindowStore) { s.sweepEvery = d }
}

func WithShards(n int) StoreOption {
	return func(s *WindowStore) {
		if n > 0 {
			s.shards = make([]*shard, n)
		}
	}
}

// WithClock troca a fonte de tempo (testes).
func WithClock(now func() time.Time) StoreOption {
	return func(s *WindowStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewWindowStore(interval time.Duration, maxRequests int, opts ...StoreOption) (*WindowStore, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if maxRequests <= 0 {
		return nil, ErrInvalidMaxRequests
	}

	s := &WindowStore{
		interval:   interval,
		max:        maxRequests,
		shards:     make([]*shard, 32),
		sweepEvery: time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*windowEntry)}
	}
	return s, nil
}

func (s *WindowStore) Policy() domain.Policy {
	return domain.Policy{Interval: s.interval, MaxRequests: s.max}
}

func (s *WindowStore) SweepEvery() time.Duration { return s.sweepEvery }

// Check implementa domain.Counter.
func (s *WindowStore) Check(key domain.Key) bool {
	k := string(key)
	sh := s.shardFor(k)

	for {
		ent := s.getOrCreate(sh, k)

		ent.mu.Lock()
		if ent.removed {
			ent.mu.Unlock()
			continue
		}

		now := s.now()
		if now.After(ent.resetAt) {
			ent.count = 0
			ent.resetAt = now.Add(s.interval)
		}
		if ent.count >= s.max {
			ent.mu.Unlock()
			return true
		}
		ent.count++
		ent.mu.Unlock()
		return false
	}
}

func (s *WindowStore) getOrCreate(sh *shard, key string) *windowEntry {
	sh.mu.RLock()
	ent, ok := sh.entries[key]
	sh.mu.RUnlock()
	if ok {
		return ent
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if ent, ok := sh.entries[key]; ok {
		return ent
	}
	ent = &windowEntry{resetAt: s.now().Add(s.interval)}
	sh.entries[key] = ent
	return ent
}

func (s *WindowStore) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// Record devolve uma cópia do estado da chave, se existir.
func (s *WindowStore) Record(key domain.Key) (domain.WindowRecord, bool) {
	sh := s.shardFor(string(key))

	sh.mu.RLock()
	ent, ok := sh.entries[string(key)]
	sh.mu.RUnlock()
	if !ok {
		return domain.WindowRecord{}, false
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()
	if ent.removed {
		return domain.WindowRecord{}, false
	}
	return domain.WindowRecord{Key: key, Count: ent.count, ResetAt: ent.resetAt}, true
}

// Len retorna quantas chaves estão em memória.
func (s *WindowStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Sweep remove registros cuja janela já venceu.
//
// Ordem de locks: shard -> registro. Check nunca segura o registro e pede o
// shard, então não há inversão.
func (s *WindowStore) Sweep() int {
	now := s.now()
	removed := 0

	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, ent := range sh.entries {
			ent.mu.Lock()
			if now.After(ent.resetAt) {
				ent.removed = true
				delete(sh.entries, k)
				removed++
			}
			ent.mu.Unlock()
		}
		sh.mu.Unlock()
	}
	return removed
}

// Start inicia a goroutine de varredura. Chamadas repetidas são no-op.
// Pare com Stop ou cancelando o contexto.
func (s *WindowStore) Start(ctx context.Context) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.done != nil || s.sweepEvery <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	t := time.NewTicker(s.sweepEvery)
	go func() {
		defer close(done)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Sweep()
			}
		}
	}()
}

// Stop cancela a varredura e espera a goroutine sair.
func (s *WindowStore) Stop() {
	s.lifeMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.lifeMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
