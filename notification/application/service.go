package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pothole-core/notification/domain"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Service orquestra criação (com gating por preferência), leitura,
// remoção e listagem de notificações.
//
// A linha gravada é a fonte da verdade; o e-mail é um eco best-effort
// disparado depois do commit e nunca desfaz a gravação.
type Service struct {
	store     domain.Store
	prefs     PreferenceResolver
	directory domain.RecipientDirectory
	mailer    domain.Mailer
	log       zerolog.Logger

	now   func() time.Time
	newID func() string
}

type Option func(*Service)

// WithEmail liga o canal de e-mail. Sem ele, Create só grava.
func WithEmail(mailer domain.Mailer, directory domain.RecipientDirectory) Option {
	return func(s *Service) {
		s.mailer = mailer
		s.directory = directory
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func NewService(store domain.Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		prefs: PreferenceResolver{Store: store},
		log:   zerolog.Nop(),
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Preferences() PreferenceResolver { return s.prefs }

// Create grava a notificação se a preferência do destinatário permitir.
// Retorna (nil, nil) quando suprimida: é um resultado esperado, não erro.
func (s *Service) Create(ctx context.Context, in domain.CreateInput) (*domain.Notification, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	pref, err := s.prefs.Resolve(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !pref.Allows(in.Type) {
		s.log.Debug().
			Str("user_id", in.UserID).
			Str("type", string(in.Type)).
			Msg("notification suppressed by preference")
		return nil, nil
	}

	created, err := s.store.CreateNotification(ctx, domain.Notification{
		ID:        s.newID(),
		UserID:    in.UserID,
		Title:     in.Title,
		Message:   in.Message,
		Type:      in.Type,
		RelatedID: in.RelatedID,
		Read:      false,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, errors.WithMessage(err, "create notification")
	}

	if pref.Email {
		s.echoEmail(ctx, created)
	}
	return &created, nil
}

// echoEmail é a fronteira isolada do efeito colateral: erro ou panic aqui
// vira log e nada mais.
func (s *Service) echoEmail(ctx context.Context, n domain.Notification) {
	if s.mailer == nil {
		return
	}

	log := s.log.With().Str("notification_id", n.ID).Str("user_id", n.UserID).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Msg("email dispatch panicked")
		}
	}()

	to := ""
	if s.directory != nil {
		addr, err := s.directory.EmailOf(ctx, n.UserID)
		if err != nil {
			log.Warn().Err(err).Msg("resolve recipient email failed")
			return
		}
		to = strings.TrimSpace(addr)
	}
	if to == "" {
		log.Debug().Msg("recipient has no email address, skipping")
		return
	}

	if err := s.mailer.Send(ctx, to, n.Title, n.Message); err != nil {
		log.Warn().Err(err).Msg("email dispatch failed")
		return
	}
	log.Debug().Msg("email dispatched")
}

func (s *Service) MarkAsRead(ctx context.Context, id, userID string) (domain.Notification, error) {
	n, err := s.store.MarkNotificationRead(ctx, id, userID)
	if err != nil {
		return domain.Notification{}, errors.WithMessagef(err, "mark notification %s as read", id)
	}
	return n, nil
}

// MarkAllAsRead é idempotente: sem nada não lido, retorna 0 e nil.
func (s *Service) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	changed, err := s.store.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, errors.WithMessagef(err, "mark all notifications read for %s", userID)
	}
	return changed, nil
}

func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if err := s.store.DeleteNotification(ctx, id, userID); err != nil {
		return errors.WithMessagef(err, "delete notification %s", id)
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID string, q domain.ListQuery) (domain.ListResult, error) {
	q = q.Normalize()
	filter := domain.ListFilter{UnreadOnly: q.UnreadOnly}

	items, err := s.store.ListNotifications(ctx, userID, filter, q.Offset(), q.Limit)
	if err != nil {
		return domain.ListResult{}, errors.WithMessage(err, "list notifications")
	}
	total, err := s.store.CountNotifications(ctx, userID, filter)
	if err != nil {
		return domain.ListResult{}, errors.WithMessage(err, "count notifications")
	}
	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return domain.ListResult{}, err
	}

	if items == nil {
		items = []domain.Notification{}
	}
	return domain.ListResult{
		Items:       items,
		Pagination:  domain.NewPagination(q.Page, q.Limit, total),
		UnreadCount: unread,
	}, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	n, err := s.store.CountNotifications(ctx, userID, domain.ListFilter{UnreadOnly: true})
	if err != nil {
		return 0, errors.WithMessage(err, "count unread notifications")
	}
	return n, nil
}

func validateCreate(in domain.CreateInput) error {
	switch {
	case strings.TrimSpace(in.UserID) == "":
		return errors.WithMessage(domain.ErrInvalidInput, "userId is required")
	case strings.TrimSpace(in.Title) == "":
		return errors.WithMessage(domain.ErrInvalidInput, "title is required")
	case strings.TrimSpace(in.Message) == "":
		return errors.WithMessage(domain.ErrInvalidInput, "message is required")
	case strings.TrimSpace(string(in.Type)) == "":
		return errors.WithMessage(domain.ErrInvalidInput, "type is required")
	}
	return nil
}
