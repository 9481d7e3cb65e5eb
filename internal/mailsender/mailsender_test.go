package mailsender

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token_auth/internal/models"
)

func TestBuildMessage(t *testing.T) {
	m := &Mailer{Username: "smtp-user", From: "noreply@example.com"}

	gm, err := m.buildMessage(models.Message{
		Email:   "alice@x.com",
		Name:    "Alice",
		Subject: "Verify your email address",
		Link:    "http://localhost/api/auth/verify-email?token=abc",
		Body:    "<p>Hello Alice</p>",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"noreply@example.com"}, gm.GetHeader("From"))
	assert.Equal(t, []string{"Verify your email address"}, gm.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = gm.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "alice@x.com")
	assert.Contains(t, raw, "text/html")
	assert.Contains(t, raw, "Hello Alice")
}

func TestBuildMessage_FromFallsBackToUsername(t *testing.T) {
	m := &Mailer{Username: "smtp-user@example.com"}

	gm, err := m.buildMessage(models.Message{Email: "a@x.com", Subject: "s", Body: "<b>b</b>"})
	require.NoError(t, err)
	assert.Equal(t, []string{"smtp-user@example.com"}, gm.GetHeader("From"))
}

func TestSend_Rejects(t *testing.T) {
	m := &Mailer{}

	assert.ErrorIs(t, m.Send(context.Background(), models.Message{}), ErrNoRecipient)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, models.Message{Email: "a@x.com"}), context.Canceled)
}
