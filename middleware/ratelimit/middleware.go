package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"pothole-core/middleware/ratelimit/application"
	"pothole-core/middleware/ratelimit/domain"
)

type KeyFunc func(r *http.Request) string

type Options struct {
	// Counter é o handle do limiter (normalmente *infra.WindowStore).
	// O mesmo handle pode ser compartilhado por vários endpoints.
	Counter domain.Counter
	Stats   domain.StatsStore
	KeyFn   KeyFunc
	// Route nomeia o endpoint nas estatísticas. Vazio usa "METHOD path".
	Route string

	UserHeader          string
	AnonHeader          string
	TrustXForwardedFor  bool
	RejectStatus        int
	AddRateLimitHeaders bool
}

// DefaultKeyFunc resolve a identidade do ator, nesta ordem:
// usuário autenticado, id anônimo enviado pelo cliente, XFF (se confiável),
// host do RemoteAddr.
//
// Os prefixos evitam colisão entre um user id e um id anônimo iguais.
func DefaultKeyFunc(userHeader, anonHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if userHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(userHeader)); v != "" {
				return "user:" + v
			}
		}
		if anonHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(anonHeader)); v != "" {
				return "anon:" + v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				ip := strings.TrimSpace(strings.Split(xff, ",")[0])
				if ip != "" {
					return "ip:" + ip
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return "ip:" + host
		}
		if r.RemoteAddr != "" {
			return "ip:" + r.RemoteAddr
		}
		return "unknown"
	}
}

// Middleware rejeita com 429 (padrão) quando a chave estourou a janela.
//
// Não há Retry-After: o contrato do limiter é só um bool.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.UserHeader, opts.AnonHeader, opts.TrustXForwardedFor)
	}

	svc := application.Service{Counter: opts.Counter}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				if p, ok := svc.Policy(); ok {
					w.Header().Set("X-RateLimit-Limit", formatInt(p.MaxRequests))
					w.Header().Set("X-RateLimit-Window", formatSeconds(p.Interval))
				}
			}

			limited := svc.Check(domain.Key(key))
			if opts.Stats != nil {
				route := opts.Route
				if route == "" {
					route = r.Method + " " + r.URL.Path
				}
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     domain.Key(key),
					Limited: limited,
					Route:   route,
					At:      time.Now(),
				})
			}
			if limited {
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
