package api

import (
	"fmt"
	"net/http"
	"strings"

	"pothole-core/notification/domain"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

// Persistência de relatos, comentários e contatos é de outro serviço;
// aqui só entram a validação e o fan-out de notificações.

type commentRequest struct {
	ReportID      string `json:"reportId"`
	ReportOwnerID string `json:"reportOwnerId"`
	Text          string `json:"text"`
}

type commentResponse struct {
	ReportID     string               `json:"reportId"`
	Notified     bool                 `json:"notified"`
	Notification *domain.Notification `json:"notification,omitempty"`
}

func (h *handler) createComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := requireFields(map[string]string{
		"reportId":      req.ReportID,
		"reportOwnerId": req.ReportOwnerID,
		"text":          req.Text,
	}); err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := commentResponse{ReportID: req.ReportID}

	// quem comenta no próprio relato não recebe aviso
	author := strings.TrimSpace(r.Header.Get(h.userHeader))
	if author != req.ReportOwnerID {
		related := req.ReportID
		n, err := h.svc.Create(r.Context(), domain.CreateInput{
			UserID:    req.ReportOwnerID,
			Title:     "Novo comentário no seu relato",
			Message:   truncate(req.Text, 140),
			Type:      domain.TypeComment,
			RelatedID: &related,
		})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		resp.Notified = n != nil
		resp.Notification = n
	}

	writeJSON(w, http.StatusCreated, resp)
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func (h *handler) contact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := requireFields(map[string]string{
		"name":    req.Name,
		"email":   req.Email,
		"message": req.Message,
	}); err != nil {
		h.writeError(w, r, err)
		return
	}
	if !strings.Contains(req.Email, "@") {
		h.writeError(w, r, errors.WithMessage(domain.ErrInvalidInput, "email is invalid"))
		return
	}

	h.log.Info().Str("email", req.Email).Int("message_len", len(req.Message)).Msg("contact message accepted")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type reportStatusRequest struct {
	OwnerID string `json:"ownerId"`
	Status  string `json:"status"`
}

type reportStatusResponse struct {
	ReportID     string               `json:"reportId"`
	Status       string               `json:"status"`
	Notified     bool                 `json:"notified"`
	Notification *domain.Notification `json:"notification,omitempty"`
}

func (h *handler) updateReportStatus(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["id"]

	var req reportStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := requireFields(map[string]string{
		"ownerId": req.OwnerID,
		"status":  req.Status,
	}); err != nil {
		h.writeError(w, r, err)
		return
	}

	n, err := h.svc.Create(r.Context(), domain.CreateInput{
		UserID:    req.OwnerID,
		Title:     "Status do relato atualizado",
		Message:   fmt.Sprintf("Seu relato %s agora está: %s", reportID, req.Status),
		Type:      domain.TypeReportStatus,
		RelatedID: &reportID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := reportStatusResponse{ReportID: reportID, Status: req.Status, Notified: n != nil, Notification: n}
	status := http.StatusOK
	if n != nil {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

// requireFields reporta o primeiro campo vazio em ordem alfabética.
func requireFields(fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	first := missing[0]
	for _, m := range missing[1:] {
		if m < first {
			first = m
		}
	}
	return errors.WithMessage(domain.ErrInvalidInput, first+" is required")
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
