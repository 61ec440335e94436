package domain

type PlaybackState string

const (
	PlaybackStatePlaying PlaybackState = "playing"
	PlaybackStatePaused  PlaybackState = "paused"
)

// RoomState is the canonical playback state of a room. Times are in milliseconds.
type RoomState struct {
	RoomId        string        `json:"roomId"`
	VideoUrl      string        `json:"videoUrl"`
	LastKnownTime int64         `json:"lastKnownTime"`
	State         PlaybackState `json:"state"`
}

func NewRoomState(roomId, videoUrl string) RoomState {
	return RoomState{
		RoomId:        roomId,
		VideoUrl:      videoUrl,
		LastKnownTime: 0,
		State:         PlaybackStatePaused,
	}
}

// DefaultRoomState is what a member sees when joining a room that was never created.
// It is not stored.
func DefaultRoomState(roomId string) RoomState {
	return NewRoomState(roomId, "")
}

func (s RoomState) IsPlaying() bool {
	return s.State == PlaybackStatePlaying
}
