package infra

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// token bucket dos envios de saída (protege a cota do provedor)
	RatePerSec float64
	Burst      int
	// Timeout limita espera no throttle + envio.
	Timeout time.Duration
}

type sendFunc func(addr string, a sasl.Client, from string, to []string, r io.Reader) error

// SMTPMailer implementa domain.Mailer.
//
// Cada Send espera um token do limiter e depois entrega uma mensagem
// text/plain. Estourar o Timeout é só uma falha comum para quem chama.
type SMTPMailer struct {
	cfg     SMTPConfig
	limiter *rate.Limiter
	send    sendFunc
	now     func() time.Time
	log     zerolog.Logger
}

type SMTPOption func(*SMTPMailer)

func WithSMTPLogger(log zerolog.Logger) SMTPOption {
	return func(m *SMTPMailer) { m.log = log }
}

func withSendFunc(fn sendFunc) SMTPOption {
	return func(m *SMTPMailer) { m.send = fn }
}

func NewSMTPMailer(cfg SMTPConfig, opts ...SMTPOption) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	m := &SMTPMailer{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		send:    smtp.SendMail,
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *SMTPMailer) Send(ctx context.Context, to, title, message string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("smtp: empty recipient")
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	if err := m.limiter.Wait(ctx); err != nil {
		return errors.WithMessage(err, "smtp: throttled")
	}

	var buf bytes.Buffer
	if err := composeMessage(&buf, m.cfg.From, to, title, message, m.now()); err != nil {
		return err
	}

	var auth sasl.Client
	if m.cfg.Username != "" {
		auth = sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	// SendMail não aceita ctx; o select garante que Send respeita o Timeout
	// mesmo com o servidor travado.
	done := make(chan error, 1)
	go func() {
		done <- m.send(addr, auth, m.cfg.From, []string{to}, &buf)
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.WithMessagef(err, "smtp: send to %s", addr)
		}
		m.log.Debug().Str("to", to).Msg("email sent")
		return nil
	case <-ctx.Done():
		return errors.WithMessage(ctx.Err(), "smtp: send")
	}
}

// composeMessage escreve uma mensagem RFC 5322 text/plain em UTF-8.
func composeMessage(w io.Writer, from, to, subject, body string, at time.Time) error {
	var h mail.Header
	h.SetDate(at)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return errors.WithMessage(err, "smtp: message id")
	}

	bw, err := mail.CreateSingleInlineWriter(w, h)
	if err != nil {
		return errors.WithMessage(err, "smtp: create writer")
	}
	if _, err := io.WriteString(bw, body); err != nil {
		_ = bw.Close()
		return errors.WithMessage(err, "smtp: write body")
	}
	return bw.Close()
}

// LogMailer só registra no log. Usado quando não há SMTP configurado.
type LogMailer struct {
	Log zerolog.Logger
}

func (m LogMailer) Send(_ context.Context, to, title, message string) error {
	m.Log.Info().Str("to", to).Str("subject", title).Int("body_len", len(message)).Msg("email (log only)")
	return nil
}
