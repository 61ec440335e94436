package room

import (
	"context"

	"github.com/sharetube/watchsync/pkg/wsconn"
)

// Disconnect removes the connection from all broadcast groups. Room state is kept.
func (s service) Disconnect(ctx context.Context, conn *wsconn.Conn) []string {
	roomIds := s.membershipRepo.RemoveConn(ctx, conn)
	s.logger.DebugContext(ctx, "connection left rooms", "conn_id", conn.Id(), "room_ids", roomIds)

	return roomIds
}
