package controller

import (
	"context"
	"fmt"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/sharetube/watchsync/pkg/wsconn"
)

type EmptyInput struct{}

func (c controller) handleAlive(_ context.Context, _ *wsconn.Conn, _ EmptyInput) error {
	return nil
}

type CreateRoomInput struct {
	RoomId   string `json:"roomId" validate:"max=128"`
	VideoUrl string `json:"videoUrl" validate:"max=2048"`
}

func (c controller) handleCreateRoom(ctx context.Context, conn *wsconn.Conn, input CreateRoomInput) error {
	if _, err := c.roomService.CreateRoom(ctx, &room.CreateRoomParams{
		Conn:     conn,
		RoomId:   input.RoomId,
		VideoUrl: input.VideoUrl,
	}); err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	return nil
}

type JoinRoomInput struct {
	RoomId string `json:"roomId" validate:"max=128"`
}

func (c controller) handleJoinRoom(ctx context.Context, conn *wsconn.Conn, input JoinRoomInput) error {
	if _, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		Conn:   conn,
		RoomId: input.RoomId,
	}); err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}

	return nil
}

type UpdateRoomInput struct {
	RoomId   string `json:"roomId" validate:"max=128"`
	VideoUrl string `json:"videoUrl" validate:"max=2048"`
}

func (c controller) handleUpdateRoom(ctx context.Context, conn *wsconn.Conn, input UpdateRoomInput) error {
	if _, err := c.roomService.UpdateRoom(ctx, &room.UpdateRoomParams{
		Conn:     conn,
		RoomId:   input.RoomId,
		VideoUrl: input.VideoUrl,
	}); err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	return nil
}

type LeaveRoomInput struct {
	RoomId string `json:"roomId" validate:"max=128"`
}

func (c controller) handleLeaveRoom(ctx context.Context, conn *wsconn.Conn, input LeaveRoomInput) error {
	if err := c.roomService.LeaveRoom(ctx, &room.LeaveRoomParams{
		Conn:   conn,
		RoomId: input.RoomId,
	}); err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	return nil
}

type VideoEventInput struct {
	Type        domain.VideoEventType `json:"type" validate:"required,oneof=play pause seek"`
	CurrentTime int64                 `json:"currentTime" validate:"gte=0"`
	RoomId      string                `json:"roomId" validate:"max=128"`
}

func (c controller) handleVideoEvent(ctx context.Context, conn *wsconn.Conn, input VideoEventInput) error {
	if _, err := c.roomService.VideoEvent(ctx, &room.VideoEventParams{
		Conn: conn,
		Event: domain.VideoEvent{
			Type:        input.Type,
			CurrentTime: input.CurrentTime,
		},
		RoomId: input.RoomId,
	}); err != nil {
		return fmt.Errorf("failed to handle video event: %w", err)
	}

	return nil
}
