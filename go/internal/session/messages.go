package session

import (
	"github.com/google/uuid"
	"github.com/mcdev12/huemix/go/internal/models"
	"github.com/mcdev12/huemix/go/internal/roomstore"
)

// msg is anything the controller loop handles.
type msg interface{ isControllerMsg() }

type enterRoom struct {
	code  string
	role  models.Role
	token uuid.UUID
	reply chan error
}

type attachSub struct {
	code string
	sub  roomstore.Subscription
}

type snapshot struct {
	code string
	doc  *models.RoomDocument
}

type exitResult struct {
	code string
	role models.Role
	sub  roomstore.Subscription
	err  error
}

type exitRoom struct {
	cancel bool
	reply  chan exitResult
}

type pourCmd struct {
	ch    models.Channel
	reply chan error
}

type resetCmd struct{ reply chan error }

type submitCmd struct{ reply chan error }

type rematchCmd struct{ reply chan error }

type revealCmd struct{ reply chan error }

type balanceUpdate struct{ gold int }

type reinitRound struct{ code string }

type restartFailed struct{ code string }

type getState struct{ reply chan State }

func (enterRoom) isControllerMsg()     {}
func (attachSub) isControllerMsg()     {}
func (snapshot) isControllerMsg()      {}
func (exitRoom) isControllerMsg()      {}
func (pourCmd) isControllerMsg()       {}
func (resetCmd) isControllerMsg()      {}
func (submitCmd) isControllerMsg()     {}
func (rematchCmd) isControllerMsg()    {}
func (revealCmd) isControllerMsg()     {}
func (balanceUpdate) isControllerMsg() {}
func (reinitRound) isControllerMsg()   {}
func (restartFailed) isControllerMsg() {}
func (getState) isControllerMsg()      {}
