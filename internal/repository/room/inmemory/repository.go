package inmemory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/repository/room"
)

type entry struct {
	state     domain.RoomState
	touchedAt time.Time
}

type repo struct {
	rooms  map[string]*entry
	mu     sync.RWMutex
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewRepo returns an in-memory room registry. A zero ttl keeps rooms for the process lifetime.
func NewRepo(ttl time.Duration, logger *slog.Logger) *repo {
	return &repo{
		rooms:  make(map[string]*entry),
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

func (r *repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) (domain.RoomState, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	state := domain.NewRoomState(params.RoomId, params.VideoUrl)
	r.rooms[params.RoomId] = &entry{
		state:     state,
		touchedAt: r.now(),
	}

	r.logger.DebugContext(ctx, "returned", "state", state)
	return state, nil
}

func (r *repo) GetRoom(ctx context.Context, roomId string) (domain.RoomState, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rooms[roomId]
	if !ok {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return domain.RoomState{}, room.ErrRoomNotFound
	}

	// reads keep a watched room alive but never change its playback state
	e.touchedAt = r.now()

	return e.state, nil
}

func (r *repo) UpdateVideoUrl(ctx context.Context, params *room.UpdateVideoUrlParams) (domain.RoomState, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rooms[params.RoomId]
	if !ok {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return domain.RoomState{}, room.ErrRoomNotFound
	}

	e.state.VideoUrl = params.VideoUrl
	e.touchedAt = r.now()

	return e.state, nil
}

func (r *repo) ApplyEvent(ctx context.Context, params *room.ApplyEventParams) (domain.RoomState, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rooms[params.RoomId]
	if !ok {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return domain.RoomState{}, room.ErrRoomNotFound
	}

	e.state = domain.Reconcile(e.state, params.Event)
	e.touchedAt = r.now()

	return e.state, nil
}

func (r *repo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}

// RunExpiry evicts rooms idle for longer than the ttl until ctx is done. Rooms for which inUse
// reports true are kept and count as touched. A nil inUse treats every room as unused.
func (r *repo) RunExpiry(ctx context.Context, inUse func(roomId string) bool) {
	if r.ttl <= 0 {
		return
	}

	interval := r.ttl / 2
	if interval > time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.removeExpired(inUse); n > 0 {
				r.logger.InfoContext(ctx, "expired idle rooms", "count", n)
			}
		}
	}
}

func (r *repo) removeExpired(inUse func(roomId string) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	deadline := now.Add(-r.ttl)
	removed := 0
	for roomId, e := range r.rooms {
		if inUse != nil && inUse(roomId) {
			e.touchedAt = now
			continue
		}
		if e.touchedAt.Before(deadline) {
			delete(r.rooms, roomId)
			removed++
		}
	}

	return removed
}
