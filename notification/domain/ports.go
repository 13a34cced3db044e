package domain

import (
	"context"
	"time"
)

// Store é a persistência de preferências e notificações.
//
// Operações sobre uma notificação específica são sempre escopadas por
// (id, userID); sem linha correspondente retornam ErrNotFound.
type Store interface {
	GetPreference(ctx context.Context, userID string) (StoredPreference, error)
	UpsertPreference(ctx context.Context, userID string, upd PreferenceUpdate) (Preference, error)

	CreateNotification(ctx context.Context, n Notification) (Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) (Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, id, userID string) error
	ListNotifications(ctx context.Context, userID string, f ListFilter, offset, limit int) ([]Notification, error)
	CountNotifications(ctx context.Context, userID string, f ListFilter) (int, error)
}

// RecipientDirectory resolve o e-mail do destinatário.
// Usuário sem e-mail retorna "" e nil.
type RecipientDirectory interface {
	EmailOf(ctx context.Context, userID string) (string, error)
}

// Mailer entrega o eco por e-mail. Falha é um resultado comum,
// não algo fatal para quem chama.
type Mailer interface {
	Send(ctx context.Context, to, title, message string) error
}

// Pruner remove notificações lidas criadas antes de cutoff.
// Não lidas nunca são removidas.
type Pruner interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
