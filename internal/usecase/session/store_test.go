package usecase_session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paramsgit/scribble/internal/model"
)

type storeKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newStoreKV() *storeKV {
	return &storeKV{data: make(map[string]string)}
}

func (f *storeKV) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[key], nil
}

func (f *storeKV) Set(_ context.Context, key string, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *storeKV) Del(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func TestKVSnapshotStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("Should round-trip a snapshot", func(t *testing.T) {
		t.Parallel()
		kv := newStoreKV()
		store := NewSnapshotStore(kv)

		snap := &Snapshot{
			RoomID:           "room-test01",
			Players:          players("p1", "p2"),
			WordList:         []string{"apple", "car"},
			CurrentWordIndex: 1,
			CurrentWord:      CurrentWord{Text: "car", SequenceID: "seq-2"},
			DrawerID:         "p2",
			GuessedPlayerIDs: []string{"p1"},
			State:            StateDrawing,
		}
		require.NoError(t, store.Save(ctx, snap))

		got, err := store.Load(ctx, "room-test01")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, snap.State, got.State)
		assert.Equal(t, snap.DrawerID, got.DrawerID)
		assert.Equal(t, snap.WordList, got.WordList)
		assert.Equal(t, snap.GuessedPlayerIDs, got.GuessedPlayerIDs)
	})

	t.Run("Should load missing snapshot as nil", func(t *testing.T) {
		t.Parallel()
		store := NewSnapshotStore(newStoreKV())

		got, err := store.Load(ctx, "room-nosuch")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Should load unreadable snapshot as nil", func(t *testing.T) {
		t.Parallel()
		kv := newStoreKV()
		kv.data["game:room-test01"] = "{corrupt"
		store := NewSnapshotStore(kv)

		got, err := store.Load(ctx, "room-test01")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Should delete snapshot", func(t *testing.T) {
		t.Parallel()
		kv := newStoreKV()
		store := NewSnapshotStore(kv)

		require.NoError(t, store.Save(ctx, &Snapshot{RoomID: model.RoomID("room-test01")}))
		require.NoError(t, store.Delete(ctx, "room-test01"))

		got, err := store.Load(ctx, "room-test01")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
