package domain

import "time"

// Type é o tipo da notificação. Só REPORT_STATUS e COMMENT têm flag de
// preferência; qualquer outro tipo passa sempre (modelo opt-out).
type Type string

const (
	TypeReportStatus Type = "REPORT_STATUS"
	TypeComment      Type = "COMMENT"
	TypeSystem       Type = "SYSTEM"
)

// Notification pertence a exatamente um usuário (o destinatário).
// Read só vai de false para true.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      Type      `json:"type"`
	RelatedID *string   `json:"relatedId,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateInput struct {
	UserID    string
	Title     string
	Message   string
	Type      Type
	RelatedID *string
}

// ListFilter é aplicado tanto na busca quanto na contagem de itens.
type ListFilter struct {
	UnreadOnly bool
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 50
)

type ListQuery struct {
	UnreadOnly bool
	Page       int
	Limit      int
}

// Normalize aplica os limites de paginação: page >= 1, 1 <= limit <= 50.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	return q
}

func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination calcula pages = ceil(total/limit).
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// ListResult traz UnreadCount sempre sobre todas as notificações do usuário,
// independente de UnreadOnly.
type ListResult struct {
	Items       []Notification `json:"items"`
	Pagination  Pagination     `json:"pagination"`
	UnreadCount int            `json:"unreadCount"`
}
