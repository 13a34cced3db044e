package infra

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	addr string
	auth sasl.Client
	from string
	to   []string
	body []byte
}

type fakeSMTP struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeSMTP) send(addr string, a sasl.Client, from string, to []string, r io.Reader) error {
	body, _ := io.ReadAll(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{addr: addr, auth: a, from: from, to: to, body: body})
	return f.err
}

func TestComposeMessage_ProducesReadableMail(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	err := composeMessage(&buf, "noreply@buracos.example", "ana@example.com", "Buraco atualizado", "Status: em reparo", at)
	require.NoError(t, err)

	mr, err := mail.CreateReader(&buf)
	require.NoError(t, err)

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Buraco atualizado", subject)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "ana@example.com", to[0].Address)

	date, err := mr.Header.Date()
	require.NoError(t, err)
	assert.True(t, date.Equal(at))

	part, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Equal(t, "Status: em reparo", string(body))
}

func TestSMTPMailer_SendUsesConfig(t *testing.T) {
	fake := &fakeSMTP{}
	m := NewSMTPMailer(SMTPConfig{
		Host:     "smtp.example.com",
		Port:     2525,
		Username: "user",
		Password: "secret",
		From:     "noreply@buracos.example",
	}, withSendFunc(fake.send))

	require.NoError(t, m.Send(context.Background(), " ana@example.com ", "t", "m"))

	require.Len(t, fake.sent, 1)
	got := fake.sent[0]
	assert.Equal(t, "smtp.example.com:2525", got.addr)
	assert.Equal(t, "noreply@buracos.example", got.from)
	assert.Equal(t, []string{"ana@example.com"}, got.to)
	assert.NotNil(t, got.auth)
	assert.Contains(t, string(got.body), "Subject: t")
}

func TestSMTPMailer_NoAuthWithoutUsername(t *testing.T) {
	fake := &fakeSMTP{}
	m := NewSMTPMailer(SMTPConfig{Host: "localhost", From: "a@b.c"}, withSendFunc(fake.send))

	require.NoError(t, m.Send(context.Background(), "x@y.z", "t", "m"))
	require.Len(t, fake.sent, 1)
	assert.Nil(t, fake.sent[0].auth)
	assert.Equal(t, "localhost:587", fake.sent[0].addr)
}

func TestSMTPMailer_PropagatesSendFailure(t *testing.T) {
	fake := &fakeSMTP{err: errors.New("450 mailbox busy")}
	m := NewSMTPMailer(SMTPConfig{Host: "localhost", From: "a@b.c"}, withSendFunc(fake.send))

	err := m.Send(context.Background(), "x@y.z", "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailbox busy")
}

func TestSMTPMailer_ThrottleFailsWithinTimeout(t *testing.T) {
	fake := &fakeSMTP{}
	m := NewSMTPMailer(SMTPConfig{
		Host:       "localhost",
		From:       "a@b.c",
		RatePerSec: 0.01,
		Burst:      1,
		Timeout:    20 * time.Millisecond,
	}, withSendFunc(fake.send))

	require.NoError(t, m.Send(context.Background(), "x@y.z", "t", "m"))

	err := m.Send(context.Background(), "x@y.z", "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
	assert.Len(t, fake.sent, 1)
}

func TestSMTPMailer_RejectsEmptyRecipient(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "localhost"}, withSendFunc((&fakeSMTP{}).send))
	assert.Error(t, m.Send(context.Background(), "  ", "t", "m"))
}
