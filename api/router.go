package api

import (
	"net/http"
	"time"

	"pothole-core/middleware/ratelimit"
	rldomain "pothole-core/middleware/ratelimit/domain"
	"pothole-core/notification/application"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const DefaultUserHeader = "X-User-Id"

type Config struct {
	Notifications *application.Service

	// RateLimit é aplicado só em POST /comments e POST /contact.
	// Counter nil desliga o limite (tudo passa).
	RateLimit ratelimit.Options

	// Stats, se presente, é exposto em GET /ratelimit/stats.
	Stats rldomain.StatsReader

	// UserHeader identifica o chamador nas rotas de notificação.
	UserHeader string
	Log        zerolog.Logger
}

type handler struct {
	svc        *application.Service
	userHeader string
	log        zerolog.Logger
}

// NewRouter monta as rotas HTTP.
func NewRouter(cfg Config) *mux.Router {
	if cfg.UserHeader == "" {
		cfg.UserHeader = DefaultUserHeader
	}
	h := &handler{
		svc:        cfg.Notifications,
		userHeader: cfg.UserHeader,
		log:        cfg.Log,
	}

	r := mux.NewRouter()
	r.Use(accessLog(cfg.Log))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	if cfg.Stats != nil {
		r.HandleFunc("/ratelimit/stats", func(w http.ResponseWriter, req *http.Request) {
			snap, err := cfg.Stats.Snapshot(req.Context())
			if err != nil {
				h.writeError(w, req, err)
				return
			}
			writeJSON(w, http.StatusOK, snap)
		}).Methods(http.MethodGet)
	}

	limited := func(route string, fn http.HandlerFunc) http.Handler {
		opts := cfg.RateLimit
		opts.Route = route
		return ratelimit.Middleware(opts)(fn)
	}
	r.Handle("/comments", limited("POST /comments", h.createComment)).Methods(http.MethodPost)
	r.Handle("/contact", limited("POST /contact", h.contact)).Methods(http.MethodPost)
	r.HandleFunc("/reports/{id}/status", h.updateReportStatus).Methods(http.MethodPost)

	n := r.PathPrefix("/notifications").Subrouter()
	n.HandleFunc("", h.withUser(h.listNotifications)).Methods(http.MethodGet)
	n.HandleFunc("/read-all", h.withUser(h.markAllRead)).Methods(http.MethodPatch)
	n.HandleFunc("/preferences", h.withUser(h.getPreferences)).Methods(http.MethodGet)
	n.HandleFunc("/preferences", h.withUser(h.putPreferences)).Methods(http.MethodPut)
	n.HandleFunc("/{id}/read", h.withUser(h.markRead)).Methods(http.MethodPatch)
	n.HandleFunc("/{id}", h.withUser(h.deleteNotification)).Methods(http.MethodDelete)

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func accessLog(log zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}
