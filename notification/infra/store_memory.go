package infra

import (
	"context"
	"slices"
	"sync"
	"time"

	"pothole-core/notification/domain"
)

// MemoryStore implementa domain.Store e domain.RecipientDirectory em memória.
// Útil para testes e para subir o binário sem banco.
type MemoryStore struct {
	mu     sync.Mutex
	prefs  map[string]domain.Preference
	items  []domain.Notification // ordem de inserção
	emails map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prefs:  make(map[string]domain.Preference),
		emails: make(map[string]string),
	}
}

func (s *MemoryStore) GetPreference(_ context.Context, userID string) (domain.StoredPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prefs[userID]
	return domain.StoredPreference{Preference: p, Found: ok}, nil
}

func (s *MemoryStore) UpsertPreference(_ context.Context, userID string, upd domain.PreferenceUpdate) (domain.Preference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prefs[userID]
	if !ok {
		p = domain.DefaultPreference(userID)
	}
	p = p.Apply(upd)
	s.prefs[userID] = p
	return p, nil
}

func (s *MemoryStore) CreateNotification(_ context.Context, n domain.Notification) (domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.RelatedID = cloneStr(n.RelatedID)
	s.items = append(s.items, n)
	return n, nil
}

func (s *MemoryStore) MarkNotificationRead(_ context.Context, id, userID string) (domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id, userID)
	if i < 0 {
		return domain.Notification{}, domain.ErrNotFound
	}
	s.items[i].Read = true
	n := s.items[i]
	n.RelatedID = cloneStr(n.RelatedID)
	return n, nil
}

func (s *MemoryStore) MarkAllNotificationsRead(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	for i := range s.items {
		if s.items[i].UserID == userID && !s.items[i].Read {
			s.items[i].Read = true
			changed++
		}
	}
	return changed, nil
}

func (s *MemoryStore) DeleteNotification(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id, userID)
	if i < 0 {
		return domain.ErrNotFound
	}
	s.items = slices.Delete(s.items, i, i+1)
	return nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, userID string, f domain.ListFilter, offset, limit int) ([]domain.Notification, error) {
	s.mu.Lock()
	matched := s.filterLocked(userID, f)
	s.mu.Unlock()

	if offset >= len(matched) {
		return []domain.Notification{}, nil
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], nil
}

func (s *MemoryStore) CountNotifications(_ context.Context, userID string, f domain.ListFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filterLocked(userID, f)), nil
}

func (s *MemoryStore) DeleteReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.items)
	s.items = slices.DeleteFunc(s.items, func(n domain.Notification) bool {
		return n.Read && n.CreatedAt.Before(cutoff)
	})
	return int64(before - len(s.items)), nil
}

// EmailOf implementa domain.RecipientDirectory.
func (s *MemoryStore) EmailOf(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emails[userID], nil
}

func (s *MemoryStore) PutUser(_ context.Context, userID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails[userID] = email
	return nil
}

// filterLocked devolve cópias, mais novas primeiro; empate de createdAt
// fica com a inserção mais recente na frente.
func (s *MemoryStore) filterLocked(userID string, f domain.ListFilter) []domain.Notification {
	out := make([]domain.Notification, 0)
	for i := len(s.items) - 1; i >= 0; i-- {
		n := s.items[i]
		if n.UserID != userID || (f.UnreadOnly && n.Read) {
			continue
		}
		n.RelatedID = cloneStr(n.RelatedID)
		out = append(out, n)
	}
	slices.SortStableFunc(out, func(a, b domain.Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

func (s *MemoryStore) indexOf(id, userID string) int {
	return slices.IndexFunc(s.items, func(n domain.Notification) bool {
		return n.ID == id && n.UserID == userID
	})
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
