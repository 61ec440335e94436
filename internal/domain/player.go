package domain

type VideoEventType string

const (
	VideoEventPlay  VideoEventType = "play"
	VideoEventPause VideoEventType = "pause"
	VideoEventSeek  VideoEventType = "seek"
)

func (t VideoEventType) IsValid() bool {
	switch t {
	case VideoEventPlay, VideoEventPause, VideoEventSeek:
		return true
	}

	return false
}

type VideoEvent struct {
	Type        VideoEventType `json:"type"`
	CurrentTime int64          `json:"currentTime"`
}

// Reconcile folds a playback event into a room state.
//
// Every accepted event overwrites LastKnownTime with the time the sender reported. Events are not
// ordered by arrival time, so a stale event delivered late wins over a fresher one (last message wins).
func Reconcile(state RoomState, event VideoEvent) RoomState {
	switch event.Type {
	case VideoEventPlay:
		state.State = PlaybackStatePlaying
	case VideoEventPause:
		state.State = PlaybackStatePaused
	case VideoEventSeek:
	default:
		return state
	}

	state.LastKnownTime = event.CurrentTime

	return state
}
