package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"pothole-core/notification/domain"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

type ctxKey struct{}

// withUser exige o header de identidade. A autenticação em si é externa.
func (h *handler) withUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(h.userHeader))
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing " + h.userHeader})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	}
}

func userFrom(r *http.Request) string {
	v, _ := r.Context().Value(ctxKey{}).(string)
	return v
}

func (h *handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.List(r.Context(), userFrom(r), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func parseListQuery(r *http.Request) (domain.ListQuery, error) {
	values := r.URL.Query()
	var q domain.ListQuery

	if v := values.Get("unreadOnly"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, errors.WithMessage(domain.ErrInvalidInput, "unreadOnly must be a boolean")
		}
		q.UnreadOnly = b
	}
	for name, dst := range map[string]*int{"page": &q.Page, "limit": &q.Limit} {
		v := values.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, errors.WithMessage(domain.ErrInvalidInput, name+" must be an integer")
		}
		*dst = n
	}
	return q, nil
}

func (h *handler) markRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.MarkAsRead(r.Context(), mux.Vars(r)["id"], userFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	changed, err := h.svc.MarkAllAsRead(r.Context(), userFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": changed})
}

func (h *handler) deleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), mux.Vars(r)["id"], userFrom(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) getPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Preferences().Resolve(r.Context(), userFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) putPreferences(w http.ResponseWriter, r *http.Request) {
	var upd domain.PreferenceUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.svc.Preferences().Upsert(r.Context(), userFrom(r), upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
