package email

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerificationLink(t *testing.T) {
	require.Equal(t,
		"http://localhost:8000/verify-email?token=abc-123",
		VerificationLink("http://localhost:8000/", "abc-123"))
}

func TestVerificationMessage(t *testing.T) {
	link := VerificationLink("https://chat.example.com", "tok")
	m, err := VerificationMessage("Chat AI", "bob@example.com", `Bob<script>alert(1)</script>`, link)
	require.NoError(t, err)

	require.Equal(t, "bob@example.com", m.To)
	require.Equal(t, verificationSubject, m.Subject)
	require.Contains(t, m.HTML, `href="https://chat.example.com/verify-email?token=tok"`)
	require.Contains(t, m.HTML, "<strong>Bob</strong>")
	require.NotContains(t, m.HTML, "<script>")
	require.NotContains(t, m.HTML, "alert(1)<")
}

func TestSMTPSender_Message(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{From: "noreply@example.com", SenderName: "Chat AI"})
	msg, err := s.message(Message{To: "bob@example.com", Subject: "Hi", HTML: "<p>a</p>"})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()

	require.Contains(t, raw, "Chat AI")
	require.Contains(t, raw, "<noreply@example.com>")
	require.Contains(t, raw, "<bob@example.com>")
	require.Contains(t, raw, "Subject: Hi")
	require.Contains(t, raw, "text/html")
	require.Contains(t, raw, "<p>a</p>")
}

func TestSMTPSender_MessageRejectsBadRecipient(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{From: "noreply@example.com"})
	_, err := s.message(Message{To: "not an address", Subject: "Hi", HTML: "x"})
	require.Error(t, err)
}

func TestSMTPSender_RequiresHost(t *testing.T) {
	err := NewSMTPSender(SMTPConfig{}).Send(context.Background(), Message{To: "bob@example.com"})
	require.ErrorContains(t, err, "smtp host")
}
