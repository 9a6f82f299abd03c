package push

import (
	"context"
	"errors"
	"strings"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/Payphone-Digital/account-service/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	sent []*messaging.Message
	err  error
}

func (c *recordingClient) Send(_ context.Context, m *messaging.Message) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.sent = append(c.sent, m)
	return "projects/demo/messages/1", nil
}

func TestFCMSender_BuildsMessage(t *testing.T) {
	client := &recordingClient{}
	s := &FCMSender{client: client}

	id, err := s.Send(context.Background(), Message{
		Token: "device-1",
		Title: "Hello",
		Body:  "World",
		Data:  map[string]string{"type": "welcome"},
	})
	require.NoError(t, err)
	assert.Equal(t, "projects/demo/messages/1", id)

	require.Len(t, client.sent, 1)
	assert.Equal(t, "device-1", client.sent[0].Token)
	assert.Equal(t, "Hello", client.sent[0].Notification.Title)
	assert.Equal(t, "welcome", client.sent[0].Data["type"])
}

func TestFCMSender_EmptyToken(t *testing.T) {
	client := &recordingClient{}
	_, err := (&FCMSender{client: client}).Send(context.Background(), Message{Title: "x"})

	assert.ErrorIs(t, err, ErrEmptyToken)
	assert.Empty(t, client.sent)
	assert.False(t, IsTemporary(err))
}

func TestIsTemporary_TransportError(t *testing.T) {
	assert.True(t, IsTemporary(errors.New("connection reset by peer")))
	assert.False(t, IsTemporary(nil))
}

func TestLogSender(t *testing.T) {
	id, err := LogSender{}.Send(context.Background(), Message{Token: "t", Title: "x"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "local-"))
}

func TestNew_Disabled(t *testing.T) {
	s, err := New(context.Background(), config.PushConfig{Enabled: false})
	require.NoError(t, err)
	_, ok := s.(LogSender)
	assert.True(t, ok)
}
