// Package command turns per-robot motion intents into grSim command packets
// and sends them over UDP, guaranteeing a stop packet on shutdown.
package command

import (
	"fmt"
	"math"

	"github.com/banshee-data/sslbridge/internal/wire"
)

// Intent is what control code wants one robot to do for the next tick.
// Velocities are in m/s and rad/s in the robot's frame; kick speeds in m/s.
type Intent struct {
	RobotID         int     `json:"robot_id"`
	ForwardVelocity float64 `json:"forward_velocity"`
	LateralVelocity float64 `json:"lateral_velocity"`
	AngularVelocity float64 `json:"angular_velocity"`
	KickSpeedX      float64 `json:"kick_speed_x"`
	KickSpeedZ      float64 `json:"kick_speed_z"`
	DribblerOn      bool    `json:"dribbler_on"`
}

// StopIntent is the full-stop command: no motion, no kick, dribbler off.
func StopIntent(id int) Intent {
	return Intent{RobotID: id}
}

// IsChip reports whether the kick leaves the ground.
func (in Intent) IsChip() bool {
	return in.KickSpeedZ > 0
}

// Validate checks the constraints that do not depend on the other intents
// of the batch.
func (in Intent) Validate() error {
	if in.RobotID < 0 {
		return fmt.Errorf("%w: robot id %d is negative", ErrInvalidIntent, in.RobotID)
	}
	for _, v := range []float64{in.ForwardVelocity, in.LateralVelocity, in.AngularVelocity, in.KickSpeedX, in.KickSpeedZ} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: robot %d has a non-finite speed", ErrInvalidIntent, in.RobotID)
		}
	}
	if in.KickSpeedX < 0 || in.KickSpeedZ < 0 {
		return fmt.Errorf("%w: kick speeds must be non-negative (x=%g, z=%g)", ErrInvalidIntent, in.KickSpeedX, in.KickSpeedZ)
	}
	return nil
}

// toWire narrows the intent to the float32 wire representation. Forward maps
// to veltangent and lateral to velnormal.
func (in Intent) toWire() (wire.RobotCommand, error) {
	var (
		rc  wire.RobotCommand
		err error
	)
	if rc.ID, err = wire.NarrowID(in.RobotID); err != nil {
		return rc, err
	}
	fields := []struct {
		name string
		v    float64
		dst  *float32
	}{
		{"kickspeedx", in.KickSpeedX, &rc.KickSpeedX},
		{"kickspeedz", in.KickSpeedZ, &rc.KickSpeedZ},
		{"veltangent", in.ForwardVelocity, &rc.VelTangent},
		{"velnormal", in.LateralVelocity, &rc.VelNormal},
		{"velangular", in.AngularVelocity, &rc.VelAngular},
	}
	for _, f := range fields {
		if *f.dst, err = wire.Narrow(f.name, f.v); err != nil {
			return rc, err
		}
	}
	rc.Spinner = in.DribblerOn
	return rc, nil
}

// buildCommands validates a batch and converts it in order. Nothing is
// converted if any intent is rejected.
func buildCommands(team wire.Team, intents []Intent) ([]wire.RobotCommand, error) {
	if team != wire.TeamBlue && team != wire.TeamYellow {
		return nil, &DispatchError{Team: team, RobotID: NoRobot, Err: fmt.Errorf("%w: unknown team", ErrInvalidIntent)}
	}
	seen := make(map[int]struct{}, len(intents))
	for _, in := range intents {
		if err := in.Validate(); err != nil {
			return nil, &DispatchError{Team: team, RobotID: in.RobotID, Err: err}
		}
		if _, dup := seen[in.RobotID]; dup {
			return nil, &DispatchError{Team: team, RobotID: in.RobotID, Err: ErrDuplicateRobotID}
		}
		seen[in.RobotID] = struct{}{}
	}

	cmds := make([]wire.RobotCommand, 0, len(intents))
	for _, in := range intents {
		rc, err := in.toWire()
		if err != nil {
			return nil, &DispatchError{Team: team, RobotID: in.RobotID, Err: err}
		}
		cmds = append(cmds, rc)
	}
	return cmds, nil
}
