package usecase_session

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paramsgit/scribble/internal/model"
)

type State string

const (
	StateWaiting  State = "waiting"
	StateDrawing  State = "drawing"
	StateFinished State = "finished"
)

// Broadcaster is the transport capability the state machine drives:
// room-wide fanout plus private sends keyed by player id.
type Broadcaster interface {
	BroadcastToRoom(roomID model.RoomID, event model.Event)
	SendToPlayer(playerID string, event model.Event)
}

// SnapshotStore keeps the durable per-room game snapshot.
type SnapshotStore interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, roomID model.RoomID) (*Snapshot, error)
	Delete(ctx context.Context, roomID model.RoomID) error
}

// ScoreStore mirrors score changes into the durable roster.
type ScoreStore interface {
	UpdatePlayerScore(ctx context.Context, playerID string, newScore int) (bool, error)
}

// ResultsArchive records final leaderboards of finished games. Best effort;
// a nil archive is skipped.
type ResultsArchive interface {
	Archive(ctx context.Context, roomID model.RoomID, scores []model.PlayerScore) error
}

type Config struct {
	RoundDuration time.Duration
	WaitDuration  time.Duration
}

type CurrentWord struct {
	Text       string    `json:"text"`
	StartedAt  time.Time `json:"started_at"`
	SequenceID string    `json:"sequence_id"`
}

type WaitUpdatePayload struct {
	WaitSeconds  int            `json:"wait_seconds,omitempty"`
	PreviousWord string         `json:"previous_word,omitempty"`
	Players      []model.Player `json:"players,omitempty"`
}

type RoundUpdatePayload struct {
	WordLength int    `json:"word_length"`
	DrawerID   string `json:"drawer_id"`
	SequenceID string `json:"sequence_id"`
	WordNumber int    `json:"word_number"`
}

type DrawerWordPayload struct {
	Word string `json:"word"`
}

type CorrectGuessPayload struct {
	PlayerID string `json:"player_id"`
	Word     string `json:"word"`
}

type GameFinishedPayload struct {
	Scores []model.PlayerScore `json:"scores"`
}

type StateSnapshotPayload struct {
	WordLength       int    `json:"word_length"`
	DrawerID         string `json:"drawer_id"`
	RemainingSeconds int    `json:"remaining_seconds"`
	WordNumber       int    `json:"word_number"`
}

// Session is the per-room game. All mutation goes through its mutex, which
// is held across durable-store writes so overlapping events for the same
// room serialize; unrelated rooms proceed in parallel.
type Session struct {
	mu        sync.Mutex
	roomID    model.RoomID
	players   []model.Player
	wordList  []string
	wordIndex int
	current   CurrentWord
	drawerID  string
	guessed   map[string]struct{}
	state     State

	timer    *TimerToken
	timerGen uint64

	cfg        Config
	scheduler  *Scheduler
	transport  Broadcaster
	store      SnapshotStore
	scores     ScoreStore
	archive    ResultsArchive
	onFinished func(model.RoomID)
	logger     *slog.Logger
}

func newSession(roomID model.RoomID, players []model.Player, deps sessionDeps) *Session {
	s := &Session{
		roomID:     roomID,
		players:    append([]model.Player(nil), players...),
		wordList:   []string{},
		wordIndex:  -1,
		guessed:    map[string]struct{}{},
		state:      StateWaiting,
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
	s.enterWaitingLocked(context.Background())
	s.mu.Unlock()
	return s
}

type sessionDeps struct {
	cfg        Config
	scheduler  *Scheduler
	transport  Broadcaster
	store      SnapshotStore
	scores     ScoreStore
	archive    ResultsArchive
	onFinished func(model.RoomID)
	logger     *slog.Logger
}

func (s *Session) RoomID() model.RoomID {
	return s.roomID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) DrawerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawerID
}

func (s *Session) Players() []model.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Player(nil), s.players...)
}

// HandleJoin registers a player with the running game. Joining never forces
// a state change directly; while Waiting it re-runs the entry action only
// when no countdown is armed yet, so the join that lifts the roster over
// the threshold starts the clock and later joiners do not reset it.
func (s *Session) HandleJoin(ctx context.Context, player model.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateFinished {
		return
	}
	for _, p := range s.players {
		if p.ID == player.ID {
			return
		}
	}
	s.players = append(s.players, player)

	if s.state == StateWaiting && s.timer == nil {
		s.enterWaitingLocked(ctx)
		return
	}
	s.saveLocked(ctx)
}

// HandlePlayerLeft drops a player and re-evaluates the exit conditions:
// a roster of one or less finishes the game, a departing drawer skips
// straight to a fresh round.
func (s *Session) HandlePlayerLeft(ctx context.Context, playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateFinished {
		return
	}

	kept := s.players[:0]
	for _, p := range s.players {
		if p.ID != playerID {
			kept = append(kept, p)
		}
	}
	s.players = kept
	delete(s.guessed, playerID)

	if len(s.players) <= 1 {
		s.enterFinishedLocked(ctx)
		return
	}
	if s.state == StateDrawing && s.drawerID == playerID {
		s.logger.Info("drawer left, skipping to next round",
			slog.String("room_id", string(s.roomID)),
			slog.String("player_id", playerID),
		)
		s.enterDrawingLocked(ctx)
		return
	}
	s.saveLocked(ctx)
}

// OnGuess evaluates a chat guess. Repeat guessers and the drawer are never
// correct; matching is case-folded. A correct guess credits the player and
// may trigger the early-finish grace timer once every non-drawer has it.
func (s *Session) OnGuess(ctx context.Context, playerID, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateDrawing || s.current.Text == "" {
		return false
	}
	if playerID == s.drawerID {
		return false
	}
	if _, done := s.guessed[playerID]; done {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(text), s.current.Text) {
		return false
	}

	s.guessed[playerID] = struct{}{}
	award := s.remainingSecondsLocked()
	if award < 1 {
		award = 1
	}

	var newScore int
	for i := range s.players {
		if s.players[i].ID == playerID {
			s.players[i].Score += award
			newScore = s.players[i].Score
			break
		}
	}
	if s.scores != nil {
		if _, err := s.scores.UpdatePlayerScore(ctx, playerID, newScore); err != nil {
			s.logger.Error("failed to persist score",
				slog.String("player_id", playerID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.transport.SendToPlayer(playerID, model.Event{
		Type:    model.EventCorrectGuess,
		Payload: CorrectGuessPayload{PlayerID: playerID, Word: s.current.Text},
	})
	s.logger.Info("correct guess",
		slog.String("room_id", string(s.roomID)),
		slog.String("player_id", playerID),
	)

	if s.allNonDrawersGuessedLocked() {
		s.scheduleLocked(model.GuessedGrace, s.onRoundExpired)
	}
	s.saveLocked(ctx)
	return true
}

// StateSnapshot is the private catch-up view sent on a state request.
func (s *Session) StateSnapshot() StateSnapshotPayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StateSnapshotPayload{
		DrawerID:   s.drawerID,
		WordNumber: s.wordIndex,
	}
	if s.state == StateDrawing {
		snap.WordLength = len([]rune(s.current.Text))
		snap.RemainingSeconds = s.remainingSecondsLocked()
	}
	return snap
}

func (s *Session) remainingSecondsLocked() int {
	elapsed := s.scheduler.Now().Sub(s.current.StartedAt)
	remaining := s.cfg.RoundDuration - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return int(remaining.Seconds())
}

func (s *Session) allNonDrawersGuessedLocked() bool {
	for _, p := range s.players {
		if p.ID == s.drawerID {
			continue
		}
		if _, ok := s.guessed[p.ID]; !ok {
			return false
		}
	}
	return true
}

// --- transitions -----------------------------------------------------------

func (s *Session) enterWaitingLocked(ctx context.Context) {
	s.state = StateWaiting
	s.cancelTimerLocked()

	if len(s.players) < model.MinPlayersToStart {
		s.transport.BroadcastToRoom(s.roomID, model.Event{
			Type:    model.EventWaitUpdate,
			Payload: WaitUpdatePayload{},
		})
		s.saveLocked(ctx)
		return
	}

	var previous string
	if len(s.wordList) > 0 {
		previous = s.wordList[len(s.wordList)-1]
	}
	s.transport.BroadcastToRoom(s.roomID, model.Event{
		Type: model.EventWaitUpdate,
		Payload: WaitUpdatePayload{
			WaitSeconds:  int(s.cfg.WaitDuration.Seconds()),
			PreviousWord: previous,
			Players:      append([]model.Player(nil), s.players...),
		},
	})
	s.scheduleLocked(s.cfg.WaitDuration, s.onWaitExpired)
	s.saveLocked(ctx)
}

func (s *Session) enterDrawingLocked(ctx context.Context) {
	s.wordIndex++
	if s.wordIndex >= model.RoundCap {
		s.logger.Info("round cap reached, finishing game",
			slog.String("room_id", string(s.roomID)),
		)
		s.enterFinishedLocked(ctx)
		return
	}
	if len(s.players) < model.MinPlayersToStart {
		s.enterFinishedLocked(ctx)
		return
	}

	s.state = StateDrawing
	word := pickWord()
	s.wordList = append(s.wordList, word)
	s.drawerID = s.players[s.wordIndex%len(s.players)].ID
	s.guessed = map[string]struct{}{}
	s.current = CurrentWord{
		Text:       word,
		StartedAt:  s.scheduler.Now(),
		SequenceID: uuid.NewString(),
	}

	s.transport.BroadcastToRoom(s.roomID, model.Event{
		Type: model.EventRoundUpdate,
		Payload: RoundUpdatePayload{
			WordLength: len([]rune(word)),
			DrawerID:   s.drawerID,
			SequenceID: s.current.SequenceID,
			WordNumber: s.wordIndex,
		},
	})
	s.transport.SendToPlayer(s.drawerID, model.Event{
		Type:    model.EventDrawerWord,
		Payload: DrawerWordPayload{Word: word},
	})

	s.logger.Info("round started",
		slog.String("room_id", string(s.roomID)),
		slog.String("drawer_id", s.drawerID),
		slog.Int("word_number", s.wordIndex),
	)

	s.scheduleLocked(s.cfg.RoundDuration, s.onRoundExpired)
	s.saveLocked(ctx)
}

func (s *Session) enterFinishedLocked(ctx context.Context) {
	s.state = StateFinished
	s.cancelTimerLocked()

	scores := make([]model.PlayerScore, 0, len(s.players))
	for _, p := range s.players {
		scores = append(scores, model.PlayerScore{ID: p.ID, Name: p.Name, Score: p.Score})
	}
	s.transport.BroadcastToRoom(s.roomID, model.Event{
		Type:    model.EventGameFinished,
		Payload: GameFinishedPayload{Scores: scores},
	})
	s.logger.Info("game finished",
		slog.String("room_id", string(s.roomID)),
		slog.Int("players", len(scores)),
	)

	if s.archive != nil {
		roomID := s.roomID
		archive := s.archive
		logger := s.logger
		go func() {
			if err := archive.Archive(context.Background(), roomID, scores); err != nil {
				logger.Error("failed to archive results",
					slog.String("room_id", string(roomID)),
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	if err := s.store.Delete(ctx, s.roomID); err != nil {
		s.logger.Error("failed to delete game snapshot",
			slog.String("room_id", string(s.roomID)),
			slog.String("error", err.Error()),
		)
	}
	if s.onFinished != nil {
		s.onFinished(s.roomID)
	}
}

// --- timers ----------------------------------------------------------------

// scheduleLocked arms the single timer slot, cancelling whatever was armed
// before. The generation counter keeps a stale callback that lost the race
// with Cancel from acting on a session that has moved on.
func (s *Session) scheduleLocked(d time.Duration, fn func(gen uint64)) {
	if s.timer != nil {
		s.timer.Cancel()
	}
	s.timerGen++
	gen := s.timerGen
	s.timer = s.scheduler.After(d, func() { fn(gen) })
}

func (s *Session) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Cancel()
		s.timer = nil
	}
	s.timerGen++
}

func (s *Session) onWaitExpired(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.timerGen || s.state != StateWaiting {
		return
	}
	s.enterDrawingLocked(context.Background())
}

func (s *Session) onRoundExpired(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.timerGen || s.state != StateDrawing {
		return
	}
	s.enterDrawingLocked(context.Background())
}

// --- persistence -----------------------------------------------------------

// Snapshot is the durable form of a session: every field but the live
// timer handle.
type Snapshot struct {
	RoomID           model.RoomID   `json:"room_id"`
	Players          []model.Player `json:"players"`
	WordList         []string       `json:"word_list"`
	CurrentWordIndex int            `json:"current_word_index"`
	CurrentWord      CurrentWord    `json:"current_word"`
	DrawerID         string         `json:"drawer_id"`
	GuessedPlayerIDs []string       `json:"guessed_player_ids"`
	State            State          `json:"state"`
}

func (s *Session) snapshotLocked() *Snapshot {
	guessed := make([]string, 0, len(s.guessed))
	for id := range s.guessed {
		guessed = append(guessed, id)
	}
	sort.Strings(guessed)

	return &Snapshot{
		RoomID:           s.roomID,
		Players:          append([]model.Player(nil), s.players...),
		WordList:         append([]string(nil), s.wordList...),
		CurrentWordIndex: s.wordIndex,
		CurrentWord:      s.current,
		DrawerID:         s.drawerID,
		GuessedPlayerIDs: guessed,
		State:            s.state,
	}
}

// Snapshot returns the session's durable form.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) restore(snap *Snapshot) {
	s.players = append([]model.Player(nil), snap.Players...)
	s.wordList = append([]string(nil), snap.WordList...)
	s.wordIndex = snap.CurrentWordIndex
	s.current = snap.CurrentWord
	s.drawerID = snap.DrawerID
	s.guessed = make(map[string]struct{}, len(snap.GuessedPlayerIDs))
	for _, id := range snap.GuessedPlayerIDs {
		s.guessed[id] = struct{}{}
	}
	s.state = snap.State
}

// saveLocked persists the snapshot fire-and-forget: durability is best
// effort and never blocks game progress.
func (s *Session) saveLocked(ctx context.Context) {
	if err := s.store.Save(ctx, s.snapshotLocked()); err != nil {
		s.logger.Error("failed to save game snapshot",
			slog.String("room_id", string(s.roomID)),
			slog.String("error", err.Error()),
		)
	}
}
