package room

import "github.com/sharetube/watchsync/internal/domain"

type CreateRoomParams struct {
	RoomId   string
	VideoUrl string
}

type UpdateVideoUrlParams struct {
	RoomId   string
	VideoUrl string
}

type ApplyEventParams struct {
	RoomId string
	Event  domain.VideoEvent
}
