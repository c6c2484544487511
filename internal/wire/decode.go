package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// fieldHandler decodes the value of one known field from b. It returns the
// number of bytes consumed, or 0 when the field is unknown and must be skipped.
type fieldHandler func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// walkMessage iterates the fields of an encoded message, passing each to fn and
// skipping fields fn does not recognise. Errors are wrapped with ErrDecode by
// the exported entry points only.
func walkMessage(msg string, b []byte, fn fieldHandler) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%s: tag: %w", msg, protowire.ParseError(n))
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("%s field %d: %w", msg, num, err)
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("%s field %d: %w", msg, num, protowire.ParseError(m))
			}
		}
		b = b[m:]
	}
	return nil
}

func wrongType(want, got protowire.Type) error {
	return fmt.Errorf("wire type %d, want %d", got, want)
}

func consumeFloat(typ protowire.Type, b []byte) (float32, int, error) {
	if typ != protowire.Fixed32Type {
		return 0, 0, wrongType(protowire.Fixed32Type, typ)
	}
	v, n := protowire.ConsumeFixed32(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return math.Float32frombits(v), n, nil
}

func consumeDouble(typ protowire.Type, b []byte) (float64, int, error) {
	if typ != protowire.Fixed64Type {
		return 0, 0, wrongType(protowire.Fixed64Type, typ)
	}
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return math.Float64frombits(v), n, nil
}

func consumeVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, wrongType(protowire.VarintType, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeMessage(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, wrongType(protowire.BytesType, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

// DecodeWrapper parses a single SSL_WrapperPacket datagram. Malformed or
// truncated input, a known field with the wrong wire type, or a missing
// required field yields an error wrapping ErrDecode. A valid wrapper with
// neither part present decodes successfully and reports IsEmpty.
func DecodeWrapper(b []byte) (*WrapperPacket, error) {
	w := &WrapperPacket{}
	err := walkMessage("wrapper", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case wrapperDetection:
			v, n, err := consumeMessage(typ, b)
			if err != nil {
				return 0, err
			}
			f, err := decodeFrame(v)
			if err != nil {
				return 0, err
			}
			w.Detection = f
			return n, nil
		case wrapperGeometry:
			v, n, err := consumeMessage(typ, b)
			if err != nil {
				return 0, err
			}
			g, err := decodeGeometryData(v)
			if err != nil {
				return 0, err
			}
			// A geometry message without field dimensions carries nothing
			// this bridge consumes (calibration only).
			if g != nil {
				w.Geometry = g
			}
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return w, nil
}

func decodeFrame(b []byte) (*DetectionFrame, error) {
	f := &DetectionFrame{}
	var haveNumber, haveCamera bool
	err := walkMessage("detection", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case frameNumber:
			v, n, err := consumeVarint(typ, b)
			f.FrameNumber, haveNumber = uint32(v), err == nil
			return n, err
		case frameCameraID:
			v, n, err := consumeVarint(typ, b)
			f.CameraID, haveCamera = uint32(v), err == nil
			return n, err
		case frameTCapture:
			v, n, err := consumeDouble(typ, b)
			f.TCapture = v
			return n, err
		case frameTSent:
			v, n, err := consumeDouble(typ, b)
			f.TSent = v
			return n, err
		case frameBalls:
			v, n, err := consumeMessage(typ, b)
			if err != nil {
				return 0, err
			}
			ball, err := decodeBall(v)
			if err != nil {
				return 0, err
			}
			f.Balls = append(f.Balls, ball)
			return n, nil
		case frameRobotsYellow, frameRobotsBlue:
			v, n, err := consumeMessage(typ, b)
			if err != nil {
				return 0, err
			}
			r, err := decodeRobot(v)
			if err != nil {
				return 0, err
			}
			if num == frameRobotsYellow {
				f.RobotsYellow = append(f.RobotsYellow, r)
			} else {
				f.RobotsBlue = append(f.RobotsBlue, r)
			}
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	if !haveNumber || !haveCamera {
		return nil, fmt.Errorf("detection frame missing frame_number or camera_id")
	}
	return f, nil
}

func decodeBall(b []byte) (Ball, error) {
	var ball Ball
	var seen uint8
	err := walkMessage("ball", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case ballConfidence, ballX, ballY, ballZ:
			v, n, err := consumeFloat(typ, b)
			if err != nil {
				return 0, err
			}
			switch num {
			case ballConfidence:
				ball.Confidence = v
			case ballX:
				ball.X = v
			case ballY:
				ball.Y = v
			case ballZ:
				ball.Z = &v
			}
			seen |= 1 << num
			return n, nil
		case ballArea:
			v, n, err := consumeVarint(typ, b)
			if err != nil {
				return 0, err
			}
			area := uint32(v)
			ball.Area = &area
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return Ball{}, err
	}
	const required = 1<<ballConfidence | 1<<ballX | 1<<ballY
	if seen&required != required {
		return Ball{}, fmt.Errorf("ball missing confidence, x or y")
	}
	return ball, nil
}

func decodeRobot(b []byte) (Robot, error) {
	var r Robot
	var seen uint16
	err := walkMessage("robot", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case robotConfidence, robotX, robotY, robotOrientation, robotHeight:
			v, n, err := consumeFloat(typ, b)
			if err != nil {
				return 0, err
			}
			switch num {
			case robotConfidence:
				r.Confidence = v
			case robotX:
				r.X = v
			case robotY:
				r.Y = v
			case robotOrientation:
				r.Orientation = &v
			case robotHeight:
				r.Height = &v
			}
			seen |= 1 << num
			return n, nil
		case robotID:
			v, n, err := consumeVarint(typ, b)
			if err != nil {
				return 0, err
			}
			id := uint32(v)
			r.RobotID = &id
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return Robot{}, err
	}
	const required = 1<<robotConfidence | 1<<robotX | 1<<robotY
	if seen&required != required {
		return Robot{}, fmt.Errorf("robot missing confidence, x or y")
	}
	return r, nil
}

// decodeGeometryData returns nil without error when the message carries no
// field size.
func decodeGeometryData(b []byte) (*Geometry, error) {
	var g *Geometry
	err := walkMessage("geometry", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != geometryField {
			return 0, nil
		}
		v, n, err := consumeMessage(typ, b)
		if err != nil {
			return 0, err
		}
		g, err = decodeFieldSize(v)
		return n, err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func decodeFieldSize(b []byte) (*Geometry, error) {
	g := &Geometry{}
	var seen uint8
	err := walkMessage("field size", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldLength, fieldWidth, fieldGoalWidth, fieldGoalDepth, fieldBoundaryWidth:
			v, n, err := consumeVarint(typ, b)
			if err != nil {
				return 0, err
			}
			val := int32(v)
			switch num {
			case fieldLength:
				g.FieldLength = val
			case fieldWidth:
				g.FieldWidth = val
			case fieldGoalWidth:
				g.GoalWidth = val
			case fieldGoalDepth:
				g.GoalDepth = val
			case fieldBoundaryWidth:
				g.BoundaryWidth = &val
			}
			seen |= 1 << num
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	const required = 1<<fieldLength | 1<<fieldWidth | 1<<fieldGoalWidth | 1<<fieldGoalDepth
	if seen&required != required {
		return nil, fmt.Errorf("field size missing a required dimension")
	}
	return g, nil
}

// DecodeCommandPacket parses a grSim_Packet the way the simulator does. It is
// the receiving side of EncodeCommandPacket.
func DecodeCommandPacket(b []byte) (*CommandPacket, error) {
	var p *CommandPacket
	err := walkMessage("grsim packet", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != packetCommands {
			return 0, nil
		}
		v, n, err := consumeMessage(typ, b)
		if err != nil {
			return 0, err
		}
		p, err = decodeCommands(v)
		return n, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: grsim packet carries no commands", ErrDecode)
	}
	return p, nil
}

func decodeCommands(b []byte) (*CommandPacket, error) {
	p := &CommandPacket{}
	err := walkMessage("commands", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case commandsTimestamp:
			v, n, err := consumeDouble(typ, b)
			p.Timestamp = v
			return n, err
		case commandsIsTeamYellow:
			v, n, err := consumeVarint(typ, b)
			p.TeamYellow = protowire.DecodeBool(v)
			return n, err
		case commandsRobotCommands:
			v, n, err := consumeMessage(typ, b)
			if err != nil {
				return 0, err
			}
			c, err := decodeRobotCommand(v)
			if err != nil {
				return 0, err
			}
			p.Commands = append(p.Commands, c)
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func decodeRobotCommand(b []byte) (RobotCommand, error) {
	var c RobotCommand
	err := walkMessage("robot command", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case cmdID, cmdSpinner, cmdWheelsSpeed:
			v, n, err := consumeVarint(typ, b)
			if err != nil {
				return 0, err
			}
			switch num {
			case cmdID:
				c.ID = uint32(v)
			case cmdSpinner:
				c.Spinner = protowire.DecodeBool(v)
			case cmdWheelsSpeed:
				c.WheelsSpeed = protowire.DecodeBool(v)
			}
			return n, nil
		case cmdKickSpeedX, cmdKickSpeedZ, cmdVelTangent, cmdVelNormal, cmdVelAngular:
			v, n, err := consumeFloat(typ, b)
			if err != nil {
				return 0, err
			}
			switch num {
			case cmdKickSpeedX:
				c.KickSpeedX = v
			case cmdKickSpeedZ:
				c.KickSpeedZ = v
			case cmdVelTangent:
				c.VelTangent = v
			case cmdVelNormal:
				c.VelNormal = v
			case cmdVelAngular:
				c.VelAngular = v
			}
			return n, nil
		}
		return 0, nil
	})
	return c, err
}
