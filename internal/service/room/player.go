package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/repository/room"
	"github.com/sharetube/watchsync/pkg/wsconn"
)

type VideoEventParams struct {
	Conn  *wsconn.Conn
	Event domain.VideoEvent
	// RoomId narrows the event to one room. Empty means every room the connection is in.
	RoomId string
}

type VideoEventResponse struct {
	RoomIds   []string
	Delivered int
}

// VideoEvent reconciles the event into each target room and relays it to the other members.
// Rooms that were joined but never created have no stored state; their members still get the
// relayed event.
func (s service) VideoEvent(ctx context.Context, params *VideoEventParams) (VideoEventResponse, error) {
	var roomIds []string
	if params.RoomId != "" {
		if !s.membershipRepo.IsMember(params.Conn, params.RoomId) {
			return VideoEventResponse{}, fmt.Errorf("failed to apply video event to %q: %w", params.RoomId, ErrNotRoomMember)
		}

		roomIds = []string{params.RoomId}
	} else {
		roomIds = s.membershipRepo.GetRoomIds(params.Conn)
	}

	s.metrics.VideoEvents.WithLabelValues(string(params.Event.Type)).Inc()

	resp := VideoEventResponse{RoomIds: roomIds}
	var errs []error
	for _, roomId := range roomIds {
		delivered, err := s.applyAndRelay(ctx, roomId, params)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		resp.Delivered += delivered
	}

	return resp, errors.Join(errs...)
}

// applyAndRelay holds the room lock across reconcile and relay, so members see events in the
// order they were applied.
func (s service) applyAndRelay(ctx context.Context, roomId string, params *VideoEventParams) (int, error) {
	unlock := s.locks.lock(roomId)
	defer unlock()

	if _, err := s.roomRepo.ApplyEvent(ctx, &room.ApplyEventParams{
		RoomId: roomId,
		Event:  params.Event,
	}); err != nil && !errors.Is(err, room.ErrRoomNotFound) {
		return 0, fmt.Errorf("failed to apply event to room %q: %w", roomId, err)
	}

	delivered, err := s.sender.BroadcastToRoom(ctx, roomId, VideoEventType, params.Event, params.Conn)
	if err != nil {
		return 0, fmt.Errorf("failed to broadcast event to room %q: %w", roomId, err)
	}

	return delivered, nil
}
