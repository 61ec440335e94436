package controller

import (
	"github.com/sharetube/watchsync/pkg/validator"
	"github.com/sharetube/watchsync/pkg/wsrouter"
)

func (c *controller) getWSRouter(validate *validator.Validator) *wsrouter.WSRouter {
	mux := wsrouter.New(validate, c.handleError)
	mux.Use(c.wsRequestIdWSMw(), c.loggerWSMw())

	wsrouter.Handle(mux, "alive", c.handleAlive)

	// room lifecycle
	wsrouter.Handle(mux, "createRoom", c.handleCreateRoom)
	wsrouter.Handle(mux, "joinRoom", c.handleJoinRoom)
	wsrouter.Handle(mux, "updateRoom", c.handleUpdateRoom)
	wsrouter.Handle(mux, "leaveRoom", c.handleLeaveRoom)

	// player
	wsrouter.Handle(mux, "videoEvent", c.handleVideoEvent)

	return mux
}
