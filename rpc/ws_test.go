package rpc

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"lendchain/core/events"
	"lendchain/core/types"
)

func TestHubStreamsMatchingEvents(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?type=arbitration."
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.subs) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Emit(events.Typed{Evt: &types.Event{Type: "escrow.item.listed"}})
	hub.Emit(events.Typed{Evt: &types.Event{Type: "arbitration.vote.cast", Attributes: map[string]string{"transactionId": "3"}}})

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var evt types.Event
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, "arbitration.vote.cast", evt.Type)
	require.Equal(t, "3", evt.Attributes["transactionId"])
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewHub(nil)
	sub, ok := hub.subscribe("")
	require.True(t, ok)
	for i := 0; i < wsSubscriberSize+5; i++ {
		hub.Emit(events.Typed{Evt: &types.Event{Type: "escrow.loan.borrowed"}})
	}
	require.Len(t, sub.ch, wsSubscriberSize)
	require.EqualValues(t, 5, hub.Dropped())

	hub.Close()
	_, ok = hub.subscribe("")
	require.False(t, ok)
}
