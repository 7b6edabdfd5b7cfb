package mailer

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose(t *testing.T) {
	var buf bytes.Buffer
	from := &mail.Address{Name: "Ask Warren", Address: "noreply@example.com"}
	m := VerificationMail("anna@example.com", "Anna", "https://example.com/verify?token=abc")
	date := time.Date(2024, 5, 4, 10, 0, 0, 0, time.UTC)
	require.NoError(t, Compose(&buf, from, m, date))

	r, err := mail.CreateReader(&buf)
	require.NoError(t, err)

	subject, err := r.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, m.Subject, subject)

	to, err := r.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "anna@example.com", to[0].Address)

	got, err := r.Header.Date()
	require.NoError(t, err)
	assert.True(t, got.Equal(date))

	p, err := r.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(p.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "https://example.com/verify?token=abc")
	assert.True(t, strings.HasPrefix(string(body), "Hallo Anna,"))
}

func TestComposeInvalidRecipient(t *testing.T) {
	err := Compose(io.Discard, &mail.Address{Address: "a@example.com"}, Message{To: "not an address"}, time.Now())
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	assert.IsType(t, LogSender{}, New(Config{}))
	assert.IsType(t, &SMTPSender{}, New(Config{Host: "smtp.example.com"}))
	assert.NoError(t, LogSender{}.Send(context.Background(), ResetMail("a@example.com", "https://x")))
}
