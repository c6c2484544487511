package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	ballPixelX  = 6
	ballPixelY  = 7
	robotPixelX = 6
	robotPixelY = 7
)

// Narrow converts a float64 to the float32 the wire carries. Rounding to the
// nearest float32 is the documented precision boundary of the command
// schema; only finite values beyond float32's range are rejected.
func Narrow(field string, v float64) (float32, error) {
	if !math.IsInf(v, 0) && !math.IsNaN(v) && math.Abs(v) > math.MaxFloat32 {
		return 0, fmt.Errorf("%w: %s=%g exceeds float32 range", ErrEncode, field, v)
	}
	return float32(v), nil
}

// NarrowID converts a robot id to the wire's uint32.
func NarrowID(id int) (uint32, error) {
	if id < 0 || uint64(id) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: robot id %d outside uint32 range", ErrEncode, id)
	}
	return uint32(id), nil
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendVarint(b, num, protowire.EncodeBool(v))
}

// appendInt32 sign-extends negative values to ten bytes, matching int32 on
// the wire.
func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	return appendVarint(b, num, uint64(int64(v)))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// EncodeCommandPacket serialises p as a grSim_Packet. The output is
// deterministic: fields are written in field-number order and commands in
// slice order. Velocities and kick speeds are already float32 here; the
// float64 to float32 boundary is crossed in Narrow.
func EncodeCommandPacket(p *CommandPacket) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil command packet", ErrEncode)
	}
	if math.IsNaN(p.Timestamp) {
		return nil, fmt.Errorf("%w: timestamp is NaN", ErrEncode)
	}

	var cmds []byte
	cmds = appendDouble(cmds, commandsTimestamp, p.Timestamp)
	cmds = appendBool(cmds, commandsIsTeamYellow, p.TeamYellow)
	var rc []byte
	for _, c := range p.Commands {
		rc = rc[:0]
		rc = appendVarint(rc, cmdID, uint64(c.ID))
		rc = appendFloat(rc, cmdKickSpeedX, c.KickSpeedX)
		rc = appendFloat(rc, cmdKickSpeedZ, c.KickSpeedZ)
		rc = appendFloat(rc, cmdVelTangent, c.VelTangent)
		rc = appendFloat(rc, cmdVelNormal, c.VelNormal)
		rc = appendFloat(rc, cmdVelAngular, c.VelAngular)
		rc = appendBool(rc, cmdSpinner, c.Spinner)
		rc = appendBool(rc, cmdWheelsSpeed, c.WheelsSpeed)
		cmds = appendMessage(cmds, commandsRobotCommands, rc)
	}

	out := make([]byte, 0, len(cmds)+4)
	return appendMessage(out, packetCommands, cmds), nil
}

// EncodeWrapper serialises w as an SSL_WrapperPacket. Pixel coordinates are
// not modelled and are written as zero so strict proto2 readers accept the
// output.
func EncodeWrapper(w *WrapperPacket) ([]byte, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: nil wrapper", ErrEncode)
	}
	var out []byte
	if f := w.Detection; f != nil {
		out = appendMessage(out, wrapperDetection, encodeFrame(f))
	}
	if g := w.Geometry; g != nil {
		var fs []byte
		fs = appendInt32(fs, fieldLength, g.FieldLength)
		fs = appendInt32(fs, fieldWidth, g.FieldWidth)
		fs = appendInt32(fs, fieldGoalWidth, g.GoalWidth)
		fs = appendInt32(fs, fieldGoalDepth, g.GoalDepth)
		if g.BoundaryWidth != nil {
			fs = appendInt32(fs, fieldBoundaryWidth, *g.BoundaryWidth)
		}
		out = appendMessage(out, wrapperGeometry, appendMessage(nil, geometryField, fs))
	}
	return out, nil
}

func encodeFrame(f *DetectionFrame) []byte {
	var b []byte
	b = appendVarint(b, frameNumber, uint64(f.FrameNumber))
	b = appendDouble(b, frameTCapture, f.TCapture)
	b = appendDouble(b, frameTSent, f.TSent)
	b = appendVarint(b, frameCameraID, uint64(f.CameraID))
	for _, ball := range f.Balls {
		b = appendMessage(b, frameBalls, encodeBall(ball))
	}
	for _, r := range f.RobotsYellow {
		b = appendMessage(b, frameRobotsYellow, encodeRobot(r))
	}
	for _, r := range f.RobotsBlue {
		b = appendMessage(b, frameRobotsBlue, encodeRobot(r))
	}
	return b
}

func encodeBall(ball Ball) []byte {
	var b []byte
	b = appendFloat(b, ballConfidence, ball.Confidence)
	if ball.Area != nil {
		b = appendVarint(b, ballArea, uint64(*ball.Area))
	}
	b = appendFloat(b, ballX, ball.X)
	b = appendFloat(b, ballY, ball.Y)
	if ball.Z != nil {
		b = appendFloat(b, ballZ, *ball.Z)
	}
	b = appendFloat(b, ballPixelX, 0)
	return appendFloat(b, ballPixelY, 0)
}

func encodeRobot(r Robot) []byte {
	var b []byte
	b = appendFloat(b, robotConfidence, r.Confidence)
	if r.RobotID != nil {
		b = appendVarint(b, robotID, uint64(*r.RobotID))
	}
	b = appendFloat(b, robotX, r.X)
	b = appendFloat(b, robotY, r.Y)
	if r.Orientation != nil {
		b = appendFloat(b, robotOrientation, *r.Orientation)
	}
	b = appendFloat(b, robotPixelX, 0)
	b = appendFloat(b, robotPixelY, 0)
	if r.Height != nil {
		b = appendFloat(b, robotHeight, *r.Height)
	}
	return b
}
