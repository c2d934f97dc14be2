package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/faceterm/internal/protocol"
	"github.com/wolfeidau/faceterm/internal/terminal"
)

func TestRouterOnMessage(t *testing.T) {
	registry := newTestRegistry(t, "abcd", "1461173")
	correlator := NewCorrelator(registry, protocol.DefaultScheme(), &fakePublisher{}, newFakeClock(), time.Second)

	var got []string
	router := NewRouter(registry, protocol.DefaultScheme(), correlator, func(orgID string, rec protocol.Recognition) {
		got = append(got, orgID+"/"+rec.UserID+"/"+rec.ImageData)
	})

	t.Run("recognition goes to the callback", func(t *testing.T) {
		got = nil
		err := router.OnMessage("mqtt/face/1461173/Rec", []byte(`{"info":{"customId":"u1","pic":"aGVsbG8="}}`))
		require.NoError(t, err)
		require.Equal(t, []string{"abcd/u1/aGVsbG8="}, got)
	})

	t.Run("ack goes to the correlator", func(t *testing.T) {
		p, err := correlator.Dispatch(context.Background(), NewEditPerson("abcd", testPerson("u1")), nil)
		require.NoError(t, err)

		require.NoError(t, router.OnMessage("mqtt/face/1461173/Ack", ackPayload(p.ID(), "fail")))

		ok, err := correlator.Await(context.Background(), p)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("unknown ack id is not an error", func(t *testing.T) {
		require.NoError(t, router.OnMessage("mqtt/face/1461173/Ack", ackPayload("99", "ok")))
	})

	t.Run("unknown kind is ignored", func(t *testing.T) {
		got = nil
		require.NoError(t, router.OnMessage("mqtt/face/1461173/Heartbeat", []byte(`not json`)))
		require.Empty(t, got)
	})

	tests := []struct {
		name    string
		topic   string
		payload string
		wantErr error
	}{
		{name: "unknown terminal", topic: "mqtt/face/9999999/Rec", payload: `{"info":{"customId":"u1"}}`, wantErr: terminal.ErrUnknownTerminal},
		{name: "malformed topic", topic: "mqtt/face", payload: `{}`, wantErr: protocol.ErrMalformedTopic},
		{name: "malformed recognition", topic: "mqtt/face/1461173/Rec", payload: `{"info":`, wantErr: protocol.ErrMalformedPayload},
		{name: "ack without id", topic: "mqtt/face/1461173/Ack", payload: `{"info":{"result":"ok"}}`, wantErr: protocol.ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			err := router.OnMessage(tt.topic, []byte(tt.payload))
			require.ErrorIs(t, err, tt.wantErr)
			require.Empty(t, got)
		})
	}
}
