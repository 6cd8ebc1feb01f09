package indexer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"

	"lendchain/core/events"
	"lendchain/core/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	store, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	store.SetNowFunc(func() time.Time { return time.Unix(1_700_000_000, 0) })
	return store
}

func TestAppendAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Append(ctx, &types.Event{Type: "escrow.loan.borrowed", Attributes: map[string]string{"transactionId": "7", "fee": "100"}})
	require.NoError(t, err)
	require.EqualValues(t, 7, first.TransactionID)

	_, err = store.Append(ctx, &types.Event{Type: "arbitration.vote.cast", Attributes: map[string]string{"transactionId": "7"}})
	require.NoError(t, err)
	_, err = store.Append(ctx, &types.Event{Type: "escrow.item.listed"})
	require.NoError(t, err)

	all, err := store.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Less(t, all[0].Sequence, all[1].Sequence)

	attrs, err := all[0].Decoded()
	require.NoError(t, err)
	require.Equal(t, "100", attrs["fee"])

	votes, err := store.List(ctx, Query{Type: "arbitration.vote.cast"})
	require.NoError(t, err)
	require.Len(t, votes, 1)

	after, err := store.List(ctx, Query{After: all[0].Sequence, Limit: 1})
	require.NoError(t, err)
	require.Len(t, after, 1)
	require.Equal(t, all[1].Sequence, after[0].Sequence)

	byTx, err := store.List(ctx, Query{TransactionID: 7})
	require.NoError(t, err)
	require.Len(t, byTx, 2)
}

func TestAppendRejectsUntypedEvent(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Append(context.Background(), &types.Event{})
	require.Error(t, err)
}

func TestEmitIndexesPayloadEvents(t *testing.T) {
	store := newTestStore(t)
	var emitter events.Emitter = store
	emitter.Emit(events.Typed{Evt: &types.Event{Type: "escrow.item.listed", Attributes: map[string]string{"itemId": "ab"}}})

	rows, err := store.List(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "escrow.item.listed", rows[0].Type)
}

func TestDialectSelection(t *testing.T) {
	_, isPostgres := Dialect("postgres://user:pw@localhost/lend").(*postgres.Dialector)
	require.True(t, isPostgres)
	_, isPostgres = Dialect("events.db").(*postgres.Dialector)
	require.False(t, isPostgres)
}

func TestClosedStore(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Close())
	_, err := store.List(context.Background(), Query{})
	require.ErrorIs(t, err, ErrClosed)
}
