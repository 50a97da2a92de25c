package rabbitmq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/chat-ai/internal/email"
)

func TestMailRoundTrip(t *testing.T) {
	in := email.Message{To: "a@example.com", Subject: "Verify", HTML: "<p>hi</p>"}

	pub, err := NewMailPublishing(in, 2)
	require.NoError(t, err)
	require.Equal(t, "application/json", pub.ContentType)
	require.Equal(t, amqp.Persistent, pub.DeliveryMode)

	out, attempt, err := DecodeMail(amqp.Delivery{Body: pub.Body, Headers: pub.Headers})
	require.NoError(t, err)
	require.Equal(t, in, out)
	require.Equal(t, 2, attempt)
}

func TestDecodeMail_Rejects(t *testing.T) {
	_, _, err := DecodeMail(amqp.Delivery{Body: []byte("{")})
	require.Error(t, err)

	_, _, err = DecodeMail(amqp.Delivery{Body: []byte(`{"subject":"x"}`)})
	require.Error(t, err)
}

func TestQueueNames(t *testing.T) {
	require.Equal(t, "mail.retry", RetryQueue("mail"))
	require.Equal(t, "mail.dlq", DeadLetterQueue("mail"))
}
