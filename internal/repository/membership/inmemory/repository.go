package inmemory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sharetube/watchsync/internal/repository/membership"
	"github.com/sharetube/watchsync/pkg/wsconn"
)

type repo struct {
	roomConns map[string]map[*wsconn.Conn]struct{}
	connRooms map[*wsconn.Conn]map[string]struct{}
	mu        sync.RWMutex
	logger    *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		roomConns: make(map[string]map[*wsconn.Conn]struct{}),
		connRooms: make(map[*wsconn.Conn]map[string]struct{}),
		logger:    logger,
	}
}

// Add puts conn into the broadcast group of roomId. Adding twice is a no-op.
func (r *repo) Add(ctx context.Context, conn *wsconn.Conn, roomId string) {
	r.logger.DebugContext(ctx, "called", "conn_id", conn.Id(), "room_id", roomId)
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.roomConns[roomId]
	if !ok {
		conns = make(map[*wsconn.Conn]struct{})
		r.roomConns[roomId] = conns
	}
	conns[conn] = struct{}{}

	rooms, ok := r.connRooms[conn]
	if !ok {
		rooms = make(map[string]struct{})
		r.connRooms[conn] = rooms
	}
	rooms[roomId] = struct{}{}
}

func (r *repo) Remove(ctx context.Context, conn *wsconn.Conn, roomId string) error {
	r.logger.DebugContext(ctx, "called", "conn_id", conn.Id(), "room_id", roomId)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connRooms[conn][roomId]; !ok {
		r.logger.DebugContext(ctx, "returned", "error", membership.ErrNotFound)
		return membership.ErrNotFound
	}

	r.remove(conn, roomId)

	return nil
}

// RemoveConn drops every membership of conn and returns the rooms it left.
func (r *repo) RemoveConn(ctx context.Context, conn *wsconn.Conn) []string {
	r.logger.DebugContext(ctx, "called", "conn_id", conn.Id())
	r.mu.Lock()
	defer r.mu.Unlock()

	roomIds := make([]string, 0, len(r.connRooms[conn]))
	for roomId := range r.connRooms[conn] {
		roomIds = append(roomIds, roomId)
	}

	for _, roomId := range roomIds {
		r.remove(conn, roomId)
	}

	r.logger.DebugContext(ctx, "returned", "room_ids", roomIds)
	return roomIds
}

func (r *repo) remove(conn *wsconn.Conn, roomId string) {
	delete(r.roomConns[roomId], conn)
	if len(r.roomConns[roomId]) == 0 {
		delete(r.roomConns, roomId)
	}

	delete(r.connRooms[conn], roomId)
	if len(r.connRooms[conn]) == 0 {
		delete(r.connRooms, conn)
	}
}

func (r *repo) IsMember(conn *wsconn.Conn, roomId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.connRooms[conn][roomId]
	return ok
}

func (r *repo) GetRoomIds(conn *wsconn.Conn) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomIds := make([]string, 0, len(r.connRooms[conn]))
	for roomId := range r.connRooms[conn] {
		roomIds = append(roomIds, roomId)
	}

	return roomIds
}

func (r *repo) GetConns(roomId string) []*wsconn.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*wsconn.Conn, 0, len(r.roomConns[roomId]))
	for conn := range r.roomConns[roomId] {
		conns = append(conns, conn)
	}

	return conns
}

func (r *repo) HasMembers(roomId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.roomConns[roomId]) > 0
}

func (r *repo) ConnsCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.connRooms)
}
