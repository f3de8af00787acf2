package ws_game

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"sync"

	"github.com/paramsgit/scribble/internal/model"
	usecase_roster "github.com/paramsgit/scribble/internal/usecase/roster"
	usecase_session "github.com/paramsgit/scribble/internal/usecase/session"
)

const correctGuessEcho = "Guessed right"

// inboundEvent is the raw wire envelope before payload decoding.
type inboundEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinRoomPayload struct {
	RoomID string `json:"room_id"`
	Name   string `json:"name"`
	Avatar int    `json:"avatar"`
}

type guessPayload struct {
	Message string `json:"message"`
}

type drawRelayPayload struct {
	Commands json.RawMessage `json:"commands"`
}

type stateRequestPayload struct {
	RoomID string `json:"room_id"`
}

type roomUpdatePayload struct {
	Players []model.Player `json:"players"`
	RoomID  model.RoomID   `json:"room_id"`
}

type guessBroadcastPayload struct {
	Message   string `json:"message"`
	PlayerID  string `json:"player_id"`
	IsCorrect bool   `json:"is_correct"`
}

type drawRelayBroadcast struct {
	Commands json.RawMessage `json:"commands"`
	DrawerID string          `json:"drawer_id"`
}

type gameStartingPayload struct {
	RoomID         model.RoomID `json:"room_id"`
	StartsInSecond int          `json:"starts_in_seconds"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Router binds inbound transport events to roster and session operations.
// It is the only boundary that turns an error into a client-visible event.
type Router struct {
	roster   *usecase_roster.Roster
	registry *usecase_session.Registry
	hub      *Hub
	logger   *slog.Logger

	waitSeconds int

	// Every Nth join triggers the active-set sweep.
	cleanupPeriod int
	joinsMu       sync.Mutex
	joins         int
}

type RouterOption func(*Router)

func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

func NewRouter(roster *usecase_roster.Roster, registry *usecase_session.Registry, hub *Hub, waitSeconds int, opts ...RouterOption) *Router {
	r := &Router{
		roster:        roster,
		registry:      registry,
		hub:           hub,
		logger:        slog.Default(),
		waitSeconds:   waitSeconds,
		cleanupPeriod: 20,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StartClientReading is the per-connection read pump: it decodes inbound
// envelopes, dispatches them, and runs disconnect handling when the socket
// goes away.
func (r *Router) StartClientReading(client *Client) {
	defer func() {
		r.HandleDisconnect(context.Background(), client)
		client.Conn.Close()
	}()

	for {
		_, data, err := client.Conn.ReadMessage()
		if err != nil {
			break
		}

		var evt inboundEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			r.logger.Warn("undecodable inbound event",
				slog.String("client_id", client.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		r.dispatch(context.Background(), client, evt)
	}
}

func (r *Router) dispatch(ctx context.Context, client *Client, evt inboundEvent) {
	switch evt.Type {
	case model.EventJoinRoom:
		var p joinRoomPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return
		}
		r.HandleJoin(ctx, client, p)

	case model.EventGuess:
		var p guessPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return
		}
		r.HandleGuess(ctx, client, p.Message)

	case model.EventDrawRelay:
		var p drawRelayPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return
		}
		r.HandleDrawRelay(ctx, client, p.Commands)

	case model.EventStateRequest:
		var p stateRequestPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return
		}
		r.HandleStateRequest(ctx, client, model.RoomID(p.RoomID))

	default:
		r.logger.Warn("unknown event type, ignoring",
			slog.String("type", evt.Type),
			slog.String("client_id", client.ID),
		)
	}
}

// HandleJoin resolves or allocates a room, adds the player to the durable
// roster and to the session, and announces the updated roster.
func (r *Router) HandleJoin(ctx context.Context, client *Client, p joinRoomPayload) {
	r.maybeCleanup(ctx)

	roomID := model.RoomID(p.RoomID)
	if roomID == model.EmptyRoomID {
		available, err := r.roster.FindAvailableRoom(ctx)
		if err != nil {
			r.sendError(client, "could not join a room")
			return
		}
		roomID = available
	}
	if roomID == model.EmptyRoomID {
		roomID = mintRoomID()
	}

	player := model.Player{ID: client.ID, Name: p.Name, Avatar: p.Avatar}
	if err := r.roster.AddPlayer(ctx, player, roomID); err != nil {
		if errors.Is(err, usecase_roster.ErrRoomFull) {
			r.hub.SendToPlayer(client.ID, model.Event{
				Type:    model.EventJoinError,
				Payload: errorPayload{Message: "room is full"},
			})
			return
		}
		r.logger.Error("join failed",
			slog.String("client_id", client.ID),
			slog.String("room_id", string(roomID)),
			slog.String("error", err.Error()),
		)
		r.sendError(client, "could not join a room")
		return
	}

	r.hub.JoinRoom(client, roomID)

	players, err := r.roster.GetRoomPlayers(ctx, roomID)
	if err != nil {
		r.sendError(client, "could not join a room")
		return
	}
	r.hub.BroadcastToRoom(roomID, model.Event{
		Type:    model.EventRoomUpdate,
		Payload: roomUpdatePayload{Players: players, RoomID: roomID},
	})

	sess := r.registry.AddPlayerToSession(ctx, roomID, player)

	// The join that lifts the roster to the start threshold kicks the
	// countdown off; announce it.
	if len(players) == model.MinPlayersToStart && sess.State() != usecase_session.StateDrawing {
		r.hub.BroadcastToRoom(roomID, model.Event{
			Type: model.EventGameStarting,
			Payload: gameStartingPayload{
				RoomID:         roomID,
				StartsInSecond: r.waitSeconds,
			},
		})
	}
}

// HandleGuess forwards a chat line to the session's guess evaluator and
// echoes it to the room, substituting the text when it was the word.
func (r *Router) HandleGuess(ctx context.Context, client *Client, message string) {
	roomID, err := r.roster.GetRoomOfPlayer(ctx, client.ID)
	if err != nil || roomID == model.EmptyRoomID {
		return
	}
	sess := r.registry.GetSession(roomID)
	if sess == nil {
		return
	}

	isCorrect := sess.OnGuess(ctx, client.ID, message)
	if isCorrect {
		message = correctGuessEcho
	}
	r.hub.BroadcastToRoom(roomID, model.Event{
		Type: model.EventGuessBroadcast,
		Payload: guessBroadcastPayload{
			Message:   message,
			PlayerID:  client.ID,
			IsCorrect: isCorrect,
		},
	})
}

// HandleDrawRelay re-broadcasts a drawing command batch, but only after
// confirming the sender really is the room's current drawer.
func (r *Router) HandleDrawRelay(ctx context.Context, client *Client, commands json.RawMessage) {
	roomID, err := r.roster.GetRoomOfPlayer(ctx, client.ID)
	if err != nil || roomID == model.EmptyRoomID {
		return
	}
	if r.registry.GetDrawerID(roomID) != client.ID {
		r.logger.Warn("draw batch from non-drawer dropped",
			slog.String("client_id", client.ID),
			slog.String("room_id", string(roomID)),
		)
		return
	}
	r.hub.BroadcastToRoom(roomID, model.Event{
		Type:    model.EventDrawRelay,
		Payload: drawRelayBroadcast{Commands: commands, DrawerID: client.ID},
	})
}

// HandleStateRequest sends the requester a private snapshot of the room's
// round state for late joins and reconnects.
func (r *Router) HandleStateRequest(ctx context.Context, client *Client, roomID model.RoomID) {
	sess := r.registry.GetSession(roomID)
	if sess == nil {
		return
	}
	r.hub.SendToPlayer(client.ID, model.Event{
		Type:    model.EventStateSnapshot,
		Payload: sess.StateSnapshot(),
	})
}

// HandleDisconnect removes the player from roster and session and
// broadcasts the shrunken roster to whoever is left.
func (r *Router) HandleDisconnect(ctx context.Context, client *Client) {
	roomID, err := r.roster.RemovePlayer(ctx, client.ID)
	if err != nil {
		r.logger.Error("disconnect cleanup failed",
			slog.String("client_id", client.ID),
			slog.String("error", err.Error()),
		)
	}
	if roomID != model.EmptyRoomID {
		if sess := r.registry.GetSession(roomID); sess != nil {
			sess.HandlePlayerLeft(ctx, client.ID)
		}
		players, err := r.roster.GetRoomPlayers(ctx, roomID)
		if err == nil && len(players) > 0 {
			r.hub.BroadcastToRoom(roomID, model.Event{
				Type:    model.EventRoomUpdate,
				Payload: roomUpdatePayload{Players: players, RoomID: roomID},
			})
		}
	}
	r.hub.RemoveClient(client)
}

func (r *Router) sendError(client *Client, message string) {
	r.hub.SendToPlayer(client.ID, model.Event{
		Type:    model.EventError,
		Payload: errorPayload{Message: message},
	})
}

func (r *Router) maybeCleanup(ctx context.Context) {
	r.joinsMu.Lock()
	r.joins++
	due := r.joins%r.cleanupPeriod == 0
	r.joinsMu.Unlock()

	if due {
		if err := r.roster.CleanupActiveSet(ctx); err != nil {
			r.logger.Error("active set sweep failed", slog.String("error", err.Error()))
		}
	}
}

const roomIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func mintRoomID() model.RoomID {
	const codeLen = 6
	var builder strings.Builder
	builder.Grow(len("room-") + codeLen)

	builder.WriteString("room-")
	for i := 0; i < codeLen; i++ {
		builder.WriteByte(roomIDAlphabet[rand.Intn(len(roomIDAlphabet))])
	}
	return model.RoomID(builder.String())
}
