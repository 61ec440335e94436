package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchsync/pkg/ctxlogger"
	"github.com/sharetube/watchsync/pkg/validator"
	"github.com/sharetube/watchsync/pkg/wsconn"
	"github.com/sharetube/watchsync/pkg/wsrouter"
)

const errorType = "error"

type ErrorOutput struct {
	Message string                      `json:"message"`
	Errors  []validator.ValidationError `json:"errors,omitempty"`
}

func (c controller) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	conn := wsconn.New(ws, c.sendBuffer)
	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("conn_id", conn.Id()))

	c.metrics.ConnectionsOpen.Inc()
	c.logger.InfoContext(ctx, "connection opened", "remote_addr", r.RemoteAddr)

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		if err := conn.WriteLoop(ctx); err != nil && !errors.Is(err, wsconn.ErrClosed) {
			c.logger.DebugContext(ctx, "write loop stopped", "error", err)
		}
		// unblocks the reader when the writer stops first
		ws.Close()
	}()

	defer func() {
		roomIds := c.roomService.Disconnect(ctx, conn)
		conn.Close()
		<-writeDone
		c.metrics.ConnectionsOpen.Dec()
		c.logger.InfoContext(ctx, "connection closed", "left_rooms", roomIds)
	}()

	conn.PrepareRead()
	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			c.logger.InfoContext(ctx, "connection read failed", "error", err)
		}
	}
}

func (c controller) handleError(ctx context.Context, conn *wsconn.Conn, err error) {
	messageType := wsrouter.GetMessageTypeFromCtx(ctx)
	switch {
	case errors.Is(err, wsrouter.ErrUnknownMessageType):
		messageType = "unknown"
	case messageType == "":
		messageType = "invalid"
	}
	c.metrics.MessageErrors.WithLabelValues(messageType).Inc()
	c.logger.InfoContext(ctx, "failed to handle message", "message_type", messageType, "error", err)

	out := ErrorOutput{Message: err.Error()}
	var validationErr *wsrouter.ValidationError
	if errors.As(err, &validationErr) {
		out.Errors = validationErr.Errors
	}

	if err := c.sender.SendTo(ctx, conn, errorType, &out); err != nil {
		c.logger.WarnContext(ctx, "failed to send error", "error", err)
	}
}
