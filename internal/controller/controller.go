package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/metrics"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/validator"
	"github.com/sharetube/watchsync/pkg/wsconn"
	"github.com/sharetube/watchsync/pkg/wsrouter"
)

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (domain.RoomState, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (domain.RoomState, error)
	UpdateRoom(context.Context, *room.UpdateRoomParams) (room.UpdateRoomResponse, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) error
	VideoEvent(context.Context, *room.VideoEventParams) (room.VideoEventResponse, error)
	Disconnect(context.Context, *wsconn.Conn) []string
	GetRoomState(context.Context, string) (domain.RoomState, error)
}

type iSender interface {
	SendTo(ctx context.Context, conn *wsconn.Conn, channel string, payload any) error
}

type controller struct {
	roomService iRoomService
	sender      iSender
	upgrader    websocket.Upgrader
	wsmux       *wsrouter.WSRouter
	metrics     *metrics.Metrics
	logger      *slog.Logger
	sendBuffer  int
}

func NewController(roomService iRoomService, sender iSender, m *metrics.Metrics, logger *slog.Logger, sendBuffer int) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		sender:      sender,
		metrics:     m,
		logger:      logger,
		sendBuffer:  sendBuffer,
	}
	c.wsmux = c.getWSRouter(validator.NewValidator())

	return c
}
