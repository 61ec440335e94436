package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// getRoom returns the snapshot a joining member would receive. Reads never change playback state.
func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	state, err := c.roomService.GetRoomState(r.Context(), roomId)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to get room state", "error", err)
		c.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	c.writeJSON(w, http.StatusOK, map[string]any{"data": state})
}
