package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/repository/room"
)

const (
	videoUrlField      = "video_url"
	lastKnownTimeField = "last_known_time"
	stateField         = "state"
)

func (r repo) getRoomKey(roomId string) string {
	return "room:" + roomId + ":state"
}

func (r repo) parseRoomState(roomId string, fields map[string]string) domain.RoomState {
	state := domain.PlaybackState(fields[stateField])
	if state != domain.PlaybackStatePlaying {
		state = domain.PlaybackStatePaused
	}

	return domain.RoomState{
		RoomId:        roomId,
		VideoUrl:      fields[videoUrlField],
		LastKnownTime: r.fieldToInt64(fields[lastKnownTimeField]),
		State:         state,
	}
}

func (r repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) (domain.RoomState, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	roomKey := r.getRoomKey(params.RoomId)
	state := domain.NewRoomState(params.RoomId, params.VideoUrl)

	pipe := r.rc.TxPipeline()
	pipe.Del(ctx, roomKey)
	pipe.HSet(ctx, roomKey,
		videoUrlField, state.VideoUrl,
		lastKnownTimeField, state.LastKnownTime,
		stateField, string(state.State),
	)
	r.expire(ctx, pipe, roomKey)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.RoomState{}, fmt.Errorf("failed to create room: %w", err)
	}

	return state, nil
}

func (r repo) GetRoom(ctx context.Context, roomId string) (domain.RoomState, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	roomKey := r.getRoomKey(roomId)

	fields, err := r.rc.HGetAll(ctx, roomKey).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return domain.RoomState{}, fmt.Errorf("failed to get room: %w", err)
	}

	if len(fields) == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return domain.RoomState{}, room.ErrRoomNotFound
	}

	r.expire(ctx, r.rc, roomKey)

	return r.parseRoomState(roomId, fields), nil
}

func (r repo) UpdateVideoUrl(ctx context.Context, params *room.UpdateVideoUrlParams) (domain.RoomState, error) {
	r.logger.DebugContext(ctx, "called", "params", params)

	return r.modify(ctx, params.RoomId, func(state domain.RoomState) domain.RoomState {
		state.VideoUrl = params.VideoUrl
		return state
	})
}

func (r repo) ApplyEvent(ctx context.Context, params *room.ApplyEventParams) (domain.RoomState, error) {
	r.logger.DebugContext(ctx, "called", "params", params)

	return r.modify(ctx, params.RoomId, func(state domain.RoomState) domain.RoomState {
		return domain.Reconcile(state, params.Event)
	})
}

// modify runs a read-modify-write of the room hash inside a WATCH transaction, retrying when
// another writer touched the key in between.
func (r repo) modify(ctx context.Context, roomId string, fn func(domain.RoomState) domain.RoomState) (domain.RoomState, error) {
	roomKey := r.getRoomKey(roomId)

	var next domain.RoomState
	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, roomKey).Result()
		if err != nil {
			return err
		}

		if len(fields) == 0 {
			return room.ErrRoomNotFound
		}

		next = fn(r.parseRoomState(roomId, fields))

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, roomKey,
				videoUrlField, next.VideoUrl,
				lastKnownTimeField, next.LastKnownTime,
				stateField, string(next.State),
			)
			r.expire(ctx, pipe, roomKey)
			return nil
		})

		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.rc.Watch(ctx, txf, roomKey)
		if err == nil {
			return next, nil
		}

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		r.logger.DebugContext(ctx, "returned", "error", err)
		if errors.Is(err, room.ErrRoomNotFound) {
			return domain.RoomState{}, err
		}

		return domain.RoomState{}, fmt.Errorf("failed to modify room: %w", err)
	}

	return domain.RoomState{}, fmt.Errorf("failed to modify room: %w", redis.TxFailedErr)
}
