package room

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/metrics"
	"github.com/sharetube/watchsync/internal/repository/room"
	"github.com/sharetube/watchsync/pkg/wsconn"
)

const (
	SyncVideoType  = "syncVideo"
	VideoEventType = "videoEvent"
)

var ErrNotRoomMember = errors.New("connection is not a member of the room")

type iRoomRepo interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (domain.RoomState, error)
	GetRoom(context.Context, string) (domain.RoomState, error)
	UpdateVideoUrl(context.Context, *room.UpdateVideoUrlParams) (domain.RoomState, error)
	ApplyEvent(context.Context, *room.ApplyEventParams) (domain.RoomState, error)
}

type iMembershipRepo interface {
	Add(ctx context.Context, conn *wsconn.Conn, roomId string)
	Remove(ctx context.Context, conn *wsconn.Conn, roomId string) error
	RemoveConn(ctx context.Context, conn *wsconn.Conn) []string
	IsMember(conn *wsconn.Conn, roomId string) bool
	GetRoomIds(conn *wsconn.Conn) []string
}

type iSender interface {
	SendTo(ctx context.Context, conn *wsconn.Conn, channel string, payload any) error
	BroadcastToRoom(ctx context.Context, roomId, channel string, payload any, exclude *wsconn.Conn) (int, error)
}

type service struct {
	roomRepo       iRoomRepo
	membershipRepo iMembershipRepo
	sender         iSender
	locks          *roomLocks
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

func NewService(roomRepo iRoomRepo, membershipRepo iMembershipRepo, sender iSender, m *metrics.Metrics, logger *slog.Logger) *service {
	return &service{
		roomRepo:       roomRepo,
		membershipRepo: membershipRepo,
		sender:         sender,
		locks:          newRoomLocks(),
		metrics:        m,
		logger:         logger,
	}
}
