package command

import (
	"errors"
	"fmt"

	"github.com/banshee-data/sslbridge/internal/wire"
)

var (
	// ErrDuplicateRobotID is returned when one Dispatch call names a robot twice.
	ErrDuplicateRobotID = errors.New("command: duplicate robot id")
	// ErrInvalidIntent is returned for negative ids, negative kick speeds or
	// an unknown team.
	ErrInvalidIntent = errors.New("command: invalid intent")
	// ErrTransport wraps socket-level send failures. Sends are not retried.
	ErrTransport = errors.New("command: transport failure")
	// ErrClosed is returned by Dispatch after Close.
	ErrClosed = errors.New("command: dispatcher closed")
)

// NoRobot is the DispatchError.RobotID of failures that concern the whole
// packet rather than one intent.
const NoRobot = -1

// DispatchError describes a failed Dispatch. Err unwraps to one of the
// package sentinels or to wire.ErrEncode.
type DispatchError struct {
	Team    wire.Team
	RobotID int
	Err     error
}

func (e *DispatchError) Error() string {
	if e.RobotID == NoRobot {
		return fmt.Sprintf("dispatch to %s team: %v", e.Team, e.Err)
	}
	return fmt.Sprintf("dispatch to %s robot %d: %v", e.Team, e.RobotID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
