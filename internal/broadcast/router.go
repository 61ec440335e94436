package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sharetube/watchsync/internal/metrics"
	"github.com/sharetube/watchsync/pkg/wsconn"
)

// Output is the envelope of every server to client message.
type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type iMembershipRepo interface {
	GetConns(roomId string) []*wsconn.Conn
}

// Router delivers messages best effort: each message is queued on the receiving connection
// without blocking and dropped if that queue is full.
type Router struct {
	members iMembershipRepo
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewRouter(members iMembershipRepo, m *metrics.Metrics, logger *slog.Logger) *Router {
	return &Router{
		members: members,
		metrics: m,
		logger:  logger,
	}
}

func (r *Router) encode(channel string, payload any) ([]byte, error) {
	msg, err := json.Marshal(&Output{
		Type:    channel,
		Payload: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", channel, err)
	}

	return msg, nil
}

func (r *Router) enqueue(ctx context.Context, conn *wsconn.Conn, msg []byte) bool {
	if !conn.Enqueue(msg) {
		r.metrics.MessagesDropped.Inc()
		r.logger.WarnContext(ctx, "dropped outbound message", "conn_id", conn.Id())
		return false
	}

	r.metrics.MessagesSent.Inc()
	return true
}

func (r *Router) SendTo(ctx context.Context, conn *wsconn.Conn, channel string, payload any) error {
	msg, err := r.encode(channel, payload)
	if err != nil {
		return err
	}

	r.enqueue(ctx, conn, msg)

	return nil
}

// BroadcastToRoom sends to every member of roomId except exclude, which may be nil.
// It returns the number of connections the message was queued for.
func (r *Router) BroadcastToRoom(ctx context.Context, roomId, channel string, payload any, exclude *wsconn.Conn) (int, error) {
	msg, err := r.encode(channel, payload)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, conn := range r.members.GetConns(roomId) {
		if conn == exclude {
			continue
		}

		if r.enqueue(ctx, conn, msg) {
			delivered++
		}
	}

	r.logger.DebugContext(ctx, "broadcasted", "room_id", roomId, "type", channel, "delivered", delivered)
	return delivered, nil
}
