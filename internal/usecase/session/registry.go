package usecase_session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/paramsgit/scribble/internal/model"
)

// Registry is the in-process map of active sessions. It is deliberately not
// shared across instances: a room's traffic is expected to stick to one
// process.
type Registry struct {
	mu       sync.RWMutex
	sessions map[model.RoomID]*Session

	cfg       Config
	scheduler *Scheduler
	transport Broadcaster
	store     SnapshotStore
	scores    ScoreStore
	archive   ResultsArchive
	logger    *slog.Logger
}

type RegistryOption func(*Registry)

func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

func WithScoreStore(scores ScoreStore) RegistryOption {
	return func(r *Registry) {
		r.scores = scores
	}
}

func WithResultsArchive(archive ResultsArchive) RegistryOption {
	return func(r *Registry) {
		r.archive = archive
	}
}

func NewRegistry(cfg Config, scheduler *Scheduler, transport Broadcaster, store SnapshotStore, opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions:  make(map[model.RoomID]*Session),
		cfg:       cfg,
		scheduler: scheduler,
		transport: transport,
		store:     store,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) deps() sessionDeps {
	return sessionDeps{
		cfg:        r.cfg,
		scheduler:  r.scheduler,
		transport:  r.transport,
		store:      r.store,
		scores:     r.scores,
		archive:    r.archive,
		onFinished: r.Remove,
		logger:     r.logger,
	}
}

// CreateOrLoad returns the room's session, restoring the durable snapshot
// if one survives, otherwise constructing a fresh Waiting session.
// Idempotent: an existing in-process session is returned as is.
func (r *Registry) CreateOrLoad(ctx context.Context, roomID model.RoomID, players []model.Player) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createOrLoadLocked(ctx, roomID, players)
}

func (r *Registry) createOrLoadLocked(ctx context.Context, roomID model.RoomID, players []model.Player) *Session {
	if s, ok := r.sessions[roomID]; ok {
		return s
	}

	if snap, err := r.store.Load(ctx, roomID); err == nil && snap != nil && snap.State != StateFinished {
		s := r.restoreSession(snap)
		r.sessions[roomID] = s
		r.logger.Info("session restored from snapshot",
			slog.String("room_id", string(roomID)),
			slog.String("state", string(snap.State)),
		)
		return s
	}

	s := newSession(roomID, players, r.deps())
	r.sessions[roomID] = s
	r.logger.Info("session created", slog.String("room_id", string(roomID)))
	return s
}

func (r *Registry) restoreSession(snap *Snapshot) *Session {
	deps := r.deps()
	s := &Session{
		roomID:     snap.RoomID,
		cfg:        deps.cfg,
		scheduler:  deps.scheduler,
		transport:  deps.transport,
		store:      deps.store,
		scores:     deps.scores,
		archive:    deps.archive,
		onFinished: deps.onFinished,
		logger:     deps.logger,
	}

	s.mu.Lock()
	s.restore(snap)
	if s.state == StateDrawing {
		// The timer handle is not durable; rearm for what is left of
		// the interrupted round. An already-expired round advances as
		// soon as the zero-delay timer fires.
		remaining := s.cfg.RoundDuration - s.scheduler.Now().Sub(s.current.StartedAt)
		if remaining < 0 {
			remaining = 0
		}
		s.scheduleLocked(remaining, s.onRoundExpired)
	}
	s.mu.Unlock()
	return s
}

// AddPlayerToSession creates the session on demand, then registers the
// player with it.
func (r *Registry) AddPlayerToSession(ctx context.Context, roomID model.RoomID, player model.Player) *Session {
	r.mu.Lock()
	s := r.createOrLoadLocked(ctx, roomID, []model.Player{player})
	r.mu.Unlock()

	s.HandleJoin(ctx, player)
	return s
}

func (r *Registry) GetSession(roomID model.RoomID) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[roomID]
}

func (r *Registry) GetDrawerID(roomID model.RoomID) string {
	s := r.GetSession(roomID)
	if s == nil {
		return ""
	}
	return s.DrawerID()
}

func (r *Registry) Remove(roomID model.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[roomID]; ok {
		delete(r.sessions, roomID)
		r.logger.Info("session removed", slog.String("room_id", string(roomID)))
	}
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
