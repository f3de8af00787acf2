package usecase_roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paramsgit/scribble/internal/model"
)

var (
	ErrRoomFull = errors.New("room is full")
	ErrStore    = errors.New("durable store unavailable")
)

const activeRoomsKey = "rooms:active"

// KV is the durable store capability the roster runs on. Implemented by the
// redis kv driver; faked in tests.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	SAdd(ctx context.Context, key string, member string) error
	SRem(ctx context.Context, key string, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
}

// Roster is the durable room membership mapping: room -> ordered player
// list plus the player -> room reverse mapping. The store is the source of
// truth; nothing is cached in process. Mutations to one room serialize on
// a keyed lock held across the whole read-modify-write, so overlapping
// joins cannot lose updates or slip past the capacity check.
type Roster struct {
	kv     KV
	logger *slog.Logger

	// Lock entries are never reclaimed; the room id space is small.
	locksMu sync.Mutex
	locks   map[model.RoomID]*sync.Mutex
}

type RosterOption func(*Roster)

func WithLogger(logger *slog.Logger) RosterOption {
	return func(r *Roster) {
		r.logger = logger
	}
}

func New(kv KV, opts ...RosterOption) *Roster {
	r := &Roster{
		kv:     kv,
		logger: slog.Default(),
		locks:  make(map[model.RoomID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Roster) roomLock(roomID model.RoomID) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	l, ok := r.locks[roomID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[roomID] = l
	}
	return l
}

func roomPlayersKey(roomID model.RoomID) string {
	return fmt.Sprintf("room:%s:players", roomID)
}

func playerRoomKey(playerID string) string {
	return fmt.Sprintf("player:%s:room", playerID)
}

// AddPlayer appends a player to the room roster. The player's score is
// reset on entry; order of joins determines drawer rotation. Fails with
// ErrRoomFull without mutating anything when the room is saturated.
func (r *Roster) AddPlayer(ctx context.Context, player model.Player, roomID model.RoomID) error {
	lock := r.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	players, err := r.loadPlayers(ctx, roomID)
	if err != nil {
		return err
	}
	if len(players) >= model.RoomCapacity {
		return ErrRoomFull
	}

	player.Score = 0
	players = append(players, player)

	if err := r.savePlayers(ctx, roomID, players); err != nil {
		return err
	}
	if err := r.kv.Set(ctx, playerRoomKey(player.ID), string(roomID), model.RosterTTL); err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	if err := r.kv.SAdd(ctx, activeRoomsKey, string(roomID)); err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	return nil
}

// RemovePlayer takes a player out of whatever room it is in and returns
// that room's id. Unknown players are a no-op returning EmptyRoomID. An
// emptied room is cleared entirely.
func (r *Roster) RemovePlayer(ctx context.Context, playerID string) (model.RoomID, error) {
	roomID, err := r.GetRoomOfPlayer(ctx, playerID)
	if err != nil {
		return model.EmptyRoomID, err
	}
	if roomID == model.EmptyRoomID {
		return model.EmptyRoomID, nil
	}

	lock := r.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	// Re-check under the lock; the player may have been moved or removed
	// while we waited.
	current, err := r.GetRoomOfPlayer(ctx, playerID)
	if err != nil {
		return model.EmptyRoomID, err
	}
	if current != roomID {
		return model.EmptyRoomID, nil
	}

	players, err := r.loadPlayers(ctx, roomID)
	if err != nil {
		return model.EmptyRoomID, err
	}

	kept := make([]model.Player, 0, len(players))
	for _, p := range players {
		if p.ID != playerID {
			kept = append(kept, p)
		}
	}

	if err := r.kv.Del(ctx, playerRoomKey(playerID)); err != nil {
		return model.EmptyRoomID, fmt.Errorf("%w: %w", ErrStore, err)
	}

	if len(kept) == 0 {
		if err := r.clearRoom(ctx, roomID, kept); err != nil {
			return model.EmptyRoomID, err
		}
		return roomID, nil
	}

	if err := r.savePlayers(ctx, roomID, kept); err != nil {
		return model.EmptyRoomID, err
	}
	return roomID, nil
}

func (r *Roster) clearRoom(ctx context.Context, roomID model.RoomID, remaining []model.Player) error {
	for _, p := range remaining {
		if err := r.kv.Del(ctx, playerRoomKey(p.ID)); err != nil {
			return fmt.Errorf("%w: %w", ErrStore, err)
		}
	}
	if err := r.kv.Del(ctx, roomPlayersKey(roomID)); err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	if err := r.kv.SRem(ctx, activeRoomsKey, string(roomID)); err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	r.logger.Info("room cleared", slog.String("room_id", string(roomID)))
	return nil
}

// GetRoomPlayers returns the room's roster in join order. Missing rooms and
// unreadable snapshots both read as an empty roster.
func (r *Roster) GetRoomPlayers(ctx context.Context, roomID model.RoomID) ([]model.Player, error) {
	return r.loadPlayers(ctx, roomID)
}

func (r *Roster) IsRoomFull(ctx context.Context, roomID model.RoomID) (bool, error) {
	players, err := r.loadPlayers(ctx, roomID)
	if err != nil {
		return false, err
	}
	return len(players) >= model.RoomCapacity, nil
}

func (r *Roster) GetRoomOfPlayer(ctx context.Context, playerID string) (model.RoomID, error) {
	val, err := r.kv.Get(ctx, playerRoomKey(playerID))
	if err != nil {
		return model.EmptyRoomID, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return model.RoomID(val), nil
}

func (r *Roster) GetAllActiveRooms(ctx context.Context) ([]model.RoomID, error) {
	members, err := r.kv.SMembers(ctx, activeRoomsKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	rooms := make([]model.RoomID, 0, len(members))
	for _, m := range members {
		rooms = append(rooms, model.RoomID(m))
	}
	return rooms, nil
}

func (r *Roster) GetRoomCount(ctx context.Context) (int, error) {
	n, err := r.kv.SCard(ctx, activeRoomsKey)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return int(n), nil
}

// UpdatePlayerScore overwrites the stored score of a tracked player.
// Returns false when the player is not currently in any room.
func (r *Roster) UpdatePlayerScore(ctx context.Context, playerID string, newScore int) (bool, error) {
	roomID, err := r.GetRoomOfPlayer(ctx, playerID)
	if err != nil {
		return false, err
	}
	if roomID == model.EmptyRoomID {
		return false, nil
	}

	lock := r.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	players, err := r.loadPlayers(ctx, roomID)
	if err != nil {
		return false, err
	}

	found := false
	for i := range players {
		if players[i].ID == playerID {
			players[i].Score = newScore
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}

	if err := r.savePlayers(ctx, roomID, players); err != nil {
		return false, err
	}
	return true, nil
}

// FindAvailableRoom picks any active room with a free seat, or EmptyRoomID
// when every room is saturated.
func (r *Roster) FindAvailableRoom(ctx context.Context) (model.RoomID, error) {
	rooms, err := r.GetAllActiveRooms(ctx)
	if err != nil {
		return model.EmptyRoomID, err
	}
	for _, roomID := range rooms {
		players, err := r.loadPlayers(ctx, roomID)
		if err != nil {
			return model.EmptyRoomID, err
		}
		if len(players) < model.RoomCapacity {
			return roomID, nil
		}
	}
	return model.EmptyRoomID, nil
}

// CleanupActiveSet prunes active-set members whose room key has expired.
// The set itself has no per-member TTL, so this sweep is the only thing
// keeping it from growing forever.
func (r *Roster) CleanupActiveSet(ctx context.Context) error {
	members, err := r.kv.SMembers(ctx, activeRoomsKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	for _, m := range members {
		exists, err := r.kv.Exists(ctx, roomPlayersKey(model.RoomID(m)))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStore, err)
		}
		if !exists {
			if err := r.kv.SRem(ctx, activeRoomsKey, m); err != nil {
				return fmt.Errorf("%w: %w", ErrStore, err)
			}
			r.logger.Info("pruned expired room from active set", slog.String("room_id", m))
		}
	}
	return nil
}

func (r *Roster) loadPlayers(ctx context.Context, roomID model.RoomID) ([]model.Player, error) {
	val, err := r.kv.Get(ctx, roomPlayersKey(roomID))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	if val == "" {
		return []model.Player{}, nil
	}

	var players []model.Player
	if err := json.Unmarshal([]byte(val), &players); err != nil {
		r.logger.Error("unreadable roster snapshot, treating as empty",
			slog.String("room_id", string(roomID)),
			slog.String("error", err.Error()),
		)
		return []model.Player{}, nil
	}
	return players, nil
}

func (r *Roster) savePlayers(ctx context.Context, roomID model.RoomID, players []model.Player) error {
	data, err := json.Marshal(players)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	if err := r.kv.Set(ctx, roomPlayersKey(roomID), string(data), model.RosterTTL); err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	return nil
}
