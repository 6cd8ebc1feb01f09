package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"lendchain/core/events"
	"lendchain/core/types"
)

type fakeClient struct {
	mu       sync.Mutex
	channels []string
	messages [][]byte
	err      error
}

func (f *fakeClient) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.channels = append(f.channels, channel)
	f.messages = append(f.messages, message.([]byte))
	return redis.NewIntResult(1, nil)
}

func TestPublisherPublishesJSON(t *testing.T) {
	client := &fakeClient{}
	pub := New(client, "", nil)
	pub.Emit(events.Typed{Evt: &types.Event{Type: "escrow.loan.settled", Attributes: map[string]string{"transactionId": "1"}}})
	pub.Emit(events.Typed{Evt: &types.Event{Type: "arbitration.vote.cast"}})
	require.NoError(t, pub.Close())

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Len(t, client.messages, 2)
	require.Equal(t, []string{DefaultChannel, DefaultChannel}, client.channels)
	var evt types.Event
	require.NoError(t, json.Unmarshal(client.messages[0], &evt))
	require.Equal(t, "escrow.loan.settled", evt.Type)
	require.Equal(t, "1", evt.Attributes["transactionId"])
}

func TestPublisherCountsFailures(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	pub := New(client, "lend.test", nil)
	require.Equal(t, "lend.test", pub.Channel())
	pub.Emit(events.Typed{Evt: &types.Event{Type: "escrow.item.listed"}})
	require.NoError(t, pub.Close())
	_, failed := pub.Stats()
	require.EqualValues(t, 1, failed)
}

func TestEmitAfterCloseIsIgnored(t *testing.T) {
	client := &fakeClient{}
	pub := New(client, "", nil)
	require.NoError(t, pub.Close())
	pub.Emit(events.Typed{Evt: &types.Event{Type: "escrow.item.listed"}})
	client.mu.Lock()
	defer client.mu.Unlock()
	require.Empty(t, client.messages)
}

func TestDialRequiresAddress(t *testing.T) {
	_, err := Dial(context.Background(), Options{}, nil)
	require.Error(t, err)
}
