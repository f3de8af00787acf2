package model

import "time"

type RoomID string

const EmptyRoomID RoomID = ""

const (
	// RoomCapacity is the hard cap on players per room.
	RoomCapacity = 6

	// RoundCap bounds how many words a single session may go through.
	RoundCap = 12

	// MinPlayersToStart is the roster size needed before a game can begin.
	MinPlayersToStart = 2
)

const (
	RosterTTL    = 7200 * time.Second
	SnapshotTTL  = 3600 * time.Second
	GuessedGrace = 2 * time.Second
)

// Player is one room member. ID is the transport session identifier and is
// only stable for the lifetime of the underlying connection.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar int    `json:"avatar"`
	Score  int    `json:"score"`
}

// Event is the wire envelope for everything sent over the transport.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Inbound event types.
const (
	EventJoinRoom     = "join-room"
	EventGuess        = "guess"
	EventDrawRelay    = "draw-relay"
	EventStateRequest = "state-request"
)

// Outbound event types.
const (
	EventRoomUpdate     = "room-update"
	EventJoinError      = "join-error"
	EventWaitUpdate     = "wait-update"
	EventRoundUpdate    = "round-update"
	EventDrawerWord     = "drawer-word"
	EventCorrectGuess   = "correct-guess"
	EventGuessBroadcast = "guess-broadcast"
	EventStateSnapshot  = "state-snapshot"
	EventGameStarting   = "game-starting"
	EventGameFinished   = "game-finished"
	EventError          = "error"
)

// PlayerScore is one leaderboard line in a game-finished payload.
type PlayerScore struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}
