package infra

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pothole-core/notification/domain"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// SQLiteStore implementa domain.Store e domain.RecipientDirectory sobre SQLite.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

type SQLiteOption func(*SQLiteStore)

func WithSQLiteClock(now func() time.Time) SQLiteOption {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSQLiteStore abre (ou cria) o banco em path e aplica as migrations.
// ":memory:" funciona porque o pool fica com uma única conexão.
func NewSQLiteStore(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.WithMessage(err, "creating sqlite directory")
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.WithMessage(err, "opening sqlite db")
	}
	// SQLite prefere poucos escritores concorrentes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.WithMessagef(err, "applying %q", pragma)
		}
	}

	s := &SQLiteStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, errors.WithMessage(err, "running migrations")
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) runMigrations() error {
	current := 0

	var tables int
	err := s.db.Get(&tables,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return errors.WithMessage(err, "checking schema_version table")
	}
	if tables > 0 {
		if err := s.db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return errors.WithMessage(err, "reading schema version")
		}
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return errors.WithMessagef(err, "applying migration v%d", m.version)
		}
	}
	return nil
}

type preferenceRow struct {
	UserID        string `db:"user_id"`
	ReportUpdates bool   `db:"report_updates"`
	Comments      bool   `db:"comments"`
	Email         bool   `db:"email"`
}

func (r preferenceRow) toDomain() domain.Preference {
	return domain.Preference{
		UserID:        r.UserID,
		ReportUpdates: r.ReportUpdates,
		Comments:      r.Comments,
		Email:         r.Email,
	}
}

type notificationRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	Title     string         `db:"title"`
	Message   string         `db:"message"`
	Type      string         `db:"type"`
	RelatedID sql.NullString `db:"related_id"`
	Read      bool           `db:"read"`
	CreatedAt int64          `db:"created_at"`
}

func (r notificationRow) toDomain() domain.Notification {
	n := domain.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		Message:   r.Message,
		Type:      domain.Type(r.Type),
		Read:      r.Read,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
	}
	if r.RelatedID.Valid {
		v := r.RelatedID.String
		n.RelatedID = &v
	}
	return n
}

const notificationColumns = "id, user_id, title, message, type, related_id, read, created_at"

func (s *SQLiteStore) GetPreference(ctx context.Context, userID string) (domain.StoredPreference, error) {
	var row preferenceRow
	err := s.db.GetContext(ctx, &row,
		`SELECT user_id, report_updates, comments, email
		 FROM notification_preferences WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoredPreference{}, nil
	}
	if err != nil {
		return domain.StoredPreference{}, errors.WithMessagef(err, "getting preference %s", userID)
	}
	return domain.StoredPreference{Preference: row.toDomain(), Found: true}, nil
}

// UpsertPreference grava só os campos informados; os demais ficam com o
// valor anterior ou com o default 1 quando o registro é novo.
func (s *SQLiteStore) UpsertPreference(ctx context.Context, userID string, upd domain.PreferenceUpdate) (domain.Preference, error) {
	ru, cm, em := nullableBool(upd.ReportUpdates), nullableBool(upd.Comments), nullableBool(upd.Email)
	now := s.now().UTC().UnixNano()

	var row preferenceRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO notification_preferences (user_id, report_updates, comments, email, updated_at)
		VALUES (?, COALESCE(?, 1), COALESCE(?, 1), COALESCE(?, 1), ?)
		ON CONFLICT(user_id) DO UPDATE SET
			report_updates = COALESCE(?, report_updates),
			comments       = COALESCE(?, comments),
			email          = COALESCE(?, email),
			updated_at     = ?
		RETURNING user_id, report_updates, comments, email`,
		userID, ru, cm, em, now,
		ru, cm, em, now,
	)
	if err != nil {
		return domain.Preference{}, errors.WithMessagef(err, "upserting preference %s", userID)
	}
	return row.toDomain(), nil
}

func (s *SQLiteStore) CreateNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	var related any
	if n.RelatedID != nil {
		related = *n.RelatedID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Message, string(n.Type),
		related, boolToInt(n.Read), n.CreatedAt.UTC().UnixNano(),
	)
	if err != nil {
		return domain.Notification{}, errors.WithMessage(err, "creating notification")
	}

	n.CreatedAt = n.CreatedAt.UTC()
	return n, nil
}

// MarkNotificationRead é escopado por id e dono ao mesmo tempo. Linha já
// lida também casa (SQLite conta a linha mesmo sem mudar valor).
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id, userID string) (domain.Notification, error) {
	var row notificationRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE notifications SET read = 1
		WHERE id = ? AND user_id = ?
		RETURNING `+notificationColumns,
		id, userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Notification{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Notification{}, errors.WithMessagef(err, "marking notification %s as read", id)
	}
	return row.toDomain(), nil
}

func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0", userID)
	if err != nil {
		return 0, errors.WithMessagef(err, "marking all notifications read for %s", userID)
	}
	changed, _ := res.RowsAffected()
	return changed, nil
}

func (s *SQLiteStore) DeleteNotification(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return errors.WithMessagef(err, "deleting notification %s", id)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListNotifications(ctx context.Context, userID string, f domain.ListFilter, offset, limit int) ([]domain.Notification, error) {
	where, args := notificationWhere(userID, f)
	query := "SELECT " + notificationColumns + " FROM notifications" + where +
		" ORDER BY created_at DESC, seq DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
		if offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", offset)
		}
	}

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.WithMessage(err, "querying notifications")
	}

	out := make([]domain.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *SQLiteStore) CountNotifications(ctx context.Context, userID string, f domain.ListFilter) (int, error) {
	where, args := notificationWhere(userID, f)

	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM notifications"+where, args...); err != nil {
		return 0, errors.WithMessage(err, "counting notifications")
	}
	return n, nil
}

func (s *SQLiteStore) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE read = 1 AND created_at < ?", cutoff.UTC().UnixNano())
	if err != nil {
		return 0, errors.WithMessage(err, "pruning read notifications")
	}
	removed, _ := res.RowsAffected()
	return removed, nil
}

// EmailOf implementa domain.RecipientDirectory.
func (s *SQLiteStore) EmailOf(ctx context.Context, userID string) (string, error) {
	var email string
	err := s.db.GetContext(ctx, &email, "SELECT email FROM users WHERE id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.WithMessagef(err, "getting email for %s", userID)
	}
	return email, nil
}

// PutUser grava o e-mail de um usuário (seed/testes; em produção a tabela
// é da aplicação).
func (s *SQLiteStore) PutUser(ctx context.Context, userID, email string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET email = excluded.email`,
		userID, email,
	)
	if err != nil {
		return errors.WithMessagef(err, "putting user %s", userID)
	}
	return nil
}

func notificationWhere(userID string, f domain.ListFilter) (string, []any) {
	conditions := []string{"user_id = ?"}
	args := []any{userID}
	if f.UnreadOnly {
		conditions = append(conditions, "read = 0")
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	return boolToInt(*b)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
