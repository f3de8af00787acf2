package usecase_session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paramsgit/scribble/internal/model"
)

// KV is the slice of the durable store the snapshot store needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// KVSnapshotStore keeps game snapshots under game:{roomId} with a rolling
// TTL, refreshed on every save.
type KVSnapshotStore struct {
	kv KV
}

func NewSnapshotStore(kv KV) *KVSnapshotStore {
	return &KVSnapshotStore{kv: kv}
}

func gameKey(roomID model.RoomID) string {
	return fmt.Sprintf("game:%s", roomID)
}

func (s *KVSnapshotStore) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, gameKey(snap.RoomID), string(data), model.SnapshotTTL)
}

// Load returns nil with no error when there is no snapshot, and treats an
// unreadable snapshot the same way.
func (s *KVSnapshotStore) Load(ctx context.Context, roomID model.RoomID) (*Snapshot, error) {
	val, err := s.kv.Get(ctx, gameKey(roomID))
	if err != nil {
		return nil, err
	}
	if val == "" {
		return nil, nil
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, nil
	}
	return &snap, nil
}

func (s *KVSnapshotStore) Delete(ctx context.Context, roomID model.RoomID) error {
	return s.kv.Del(ctx, gameKey(roomID))
}
