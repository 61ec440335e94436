package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/repository/membership"
	"github.com/sharetube/watchsync/internal/repository/room"
	"github.com/sharetube/watchsync/pkg/wsconn"
)

type CreateRoomParams struct {
	Conn     *wsconn.Conn
	RoomId   string
	VideoUrl string
}

// CreateRoom creates the room or fully overwrites an existing one, joins the creator and sends
// it the snapshot.
func (s service) CreateRoom(ctx context.Context, params *CreateRoomParams) (domain.RoomState, error) {
	unlock := s.locks.lock(params.RoomId)
	defer unlock()

	state, err := s.roomRepo.CreateRoom(ctx, &room.CreateRoomParams{
		RoomId:   params.RoomId,
		VideoUrl: params.VideoUrl,
	})
	if err != nil {
		return domain.RoomState{}, fmt.Errorf("failed to create room: %w", err)
	}

	s.membershipRepo.Add(ctx, params.Conn, params.RoomId)
	s.metrics.RoomsCreated.Inc()

	if err := s.sender.SendTo(ctx, params.Conn, SyncVideoType, state); err != nil {
		return domain.RoomState{}, fmt.Errorf("failed to send snapshot: %w", err)
	}

	return state, nil
}

type JoinRoomParams struct {
	Conn   *wsconn.Conn
	RoomId string
}

// JoinRoom is accepted for unknown rooms too; their members get the default snapshot.
// The room lock is held from joining until the snapshot is queued, so every event applied
// after the snapshot is relayed to the joiner.
func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (domain.RoomState, error) {
	unlock := s.locks.lock(params.RoomId)
	defer unlock()

	s.membershipRepo.Add(ctx, params.Conn, params.RoomId)

	state, err := s.GetRoomState(ctx, params.RoomId)
	if err != nil {
		s.membershipRepo.Remove(ctx, params.Conn, params.RoomId)
		return domain.RoomState{}, err
	}

	s.metrics.RoomJoins.Inc()

	if err := s.sender.SendTo(ctx, params.Conn, SyncVideoType, state); err != nil {
		return domain.RoomState{}, fmt.Errorf("failed to send snapshot: %w", err)
	}

	return state, nil
}

type UpdateRoomParams struct {
	Conn     *wsconn.Conn
	RoomId   string
	VideoUrl string
}

type UpdateRoomResponse struct {
	Room      domain.RoomState
	Updated   bool
	Delivered int
}

// UpdateRoom changes the video of an existing room and sends the snapshot to every member,
// the sender included. Unknown rooms are left alone.
func (s service) UpdateRoom(ctx context.Context, params *UpdateRoomParams) (UpdateRoomResponse, error) {
	unlock := s.locks.lock(params.RoomId)
	defer unlock()

	state, err := s.roomRepo.UpdateVideoUrl(ctx, &room.UpdateVideoUrlParams{
		RoomId:   params.RoomId,
		VideoUrl: params.VideoUrl,
	})
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			s.logger.DebugContext(ctx, "update of unknown room ignored", "room_id", params.RoomId)
			return UpdateRoomResponse{}, nil
		}

		return UpdateRoomResponse{}, fmt.Errorf("failed to update room: %w", err)
	}

	s.metrics.RoomsUpdated.Inc()

	delivered, err := s.sender.BroadcastToRoom(ctx, params.RoomId, SyncVideoType, state, nil)
	if err != nil {
		return UpdateRoomResponse{}, fmt.Errorf("failed to broadcast snapshot: %w", err)
	}

	return UpdateRoomResponse{
		Room:      state,
		Updated:   true,
		Delivered: delivered,
	}, nil
}

type LeaveRoomParams struct {
	Conn   *wsconn.Conn
	RoomId string
}

// LeaveRoom drops a single membership. Leaving a room that was never joined is a no-op.
func (s service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) error {
	if err := s.membershipRepo.Remove(ctx, params.Conn, params.RoomId); err != nil && !errors.Is(err, membership.ErrNotFound) {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	return nil
}

// GetRoomState returns the stored state or the default state of a never created room.
func (s service) GetRoomState(ctx context.Context, roomId string) (domain.RoomState, error) {
	state, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return domain.DefaultRoomState(roomId), nil
		}

		return domain.RoomState{}, fmt.Errorf("failed to get room: %w", err)
	}

	return state, nil
}
