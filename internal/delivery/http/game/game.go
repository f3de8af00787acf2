package http_game

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	ws_game "github.com/paramsgit/scribble/internal/delivery/ws/game"
	"github.com/paramsgit/scribble/internal/model"
	usecase_roster "github.com/paramsgit/scribble/internal/usecase/roster"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Controller struct {
	roster *usecase_roster.Roster
	hub    *ws_game.Hub
	router *ws_game.Router
	logger *slog.Logger
}

func New(roster *usecase_roster.Roster, hub *ws_game.Hub, router *ws_game.Router) *Controller {
	return &Controller{
		roster: roster,
		hub:    hub,
		router: router,
		logger: slog.Default(),
	}
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/ws", c.gameWS)
	router.GET("/rooms", c.listRooms)
	router.GET("/healthz", c.healthz)
}

// gameWS upgrades the connection and starts the read and write pumps.
// Room membership is decided later by the join event, not by the URL.
func (c *Controller) gameWS(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.logger.Error("failed to upgrade to websocket",
			slog.String("error", err.Error()),
		)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	client := ws_game.NewClient(uuid.NewString(), conn)
	c.hub.RegisterClient(client)

	go c.router.StartClientReading(client)
	go c.hub.StartClientWriting(client)
}

type RoomInfoDTO struct {
	RoomID      model.RoomID `json:"room_id"`
	PlayerCount int          `json:"player_count"`
}

func (c *Controller) listRooms(ctx *gin.Context) {
	roomIDs, err := c.roster.GetAllActiveRooms(ctx.Request.Context())
	if err != nil {
		c.logger.Error("failed to list rooms", slog.String("error", err.Error()))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	rooms := make([]RoomInfoDTO, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		players, err := c.roster.GetRoomPlayers(ctx.Request.Context(), roomID)
		if err != nil {
			continue
		}
		rooms = append(rooms, RoomInfoDTO{
			RoomID:      roomID,
			PlayerCount: len(players),
		})
	}

	ctx.JSON(http.StatusOK, rooms)
}

func (c *Controller) healthz(ctx *gin.Context) {
	ctx.Status(http.StatusOK)
}
