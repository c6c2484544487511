// Package wire encodes and decodes the two UDP message families the bridge
// speaks: SSL-Vision wrapper packets on the way in and grSim command packets
// on the way out. It owns no state and performs no I/O.
package wire

import "errors"

// MaxDatagramSize is the largest UDP payload the protocol can carry.
const MaxDatagramSize = 65535

var (
	// ErrDecode is wrapped by every error returned from the decoders.
	ErrDecode = errors.New("wire: decode error")
	// ErrEncode is wrapped by every error returned from the encoders.
	ErrEncode = errors.New("wire: encode error")
)

// WrapperPacket is the inbound SSL-Vision envelope. Either part may be nil.
type WrapperPacket struct {
	Detection *DetectionFrame `json:"detection,omitempty"`
	Geometry  *Geometry       `json:"geometry,omitempty"`
}

// IsEmpty reports whether the wrapper carries neither detection nor geometry.
// Such packets are structurally valid and treated as no-op frames.
func (w *WrapperPacket) IsEmpty() bool {
	return w == nil || (w.Detection == nil && w.Geometry == nil)
}

// DetectionFrame is one camera's snapshot for one capture instant.
type DetectionFrame struct {
	FrameNumber  uint32  `json:"frame_number"`
	CameraID     uint32  `json:"camera_id"`
	TCapture     float64 `json:"t_capture"`
	TSent        float64 `json:"t_sent"`
	Balls        []Ball  `json:"balls"`
	RobotsYellow []Robot `json:"robots_yellow"`
	RobotsBlue   []Robot `json:"robots_blue"`
}

// Ball is a single ball observation. Coordinates are in millimetres.
// A nil Z means the ball is on the ground plane or its height is unknown.
type Ball struct {
	Confidence float32  `json:"confidence"`
	Area       *uint32  `json:"area,omitempty"`
	X          float32  `json:"x"`
	Y          float32  `json:"y"`
	Z          *float32 `json:"z,omitempty"`
}

// Robot is a single robot observation. A nil RobotID means the robot was
// detected but not identified; a nil Orientation means it was not resolved.
type Robot struct {
	Confidence  float32  `json:"confidence"`
	RobotID     *uint32  `json:"robot_id,omitempty"`
	X           float32  `json:"x"`
	Y           float32  `json:"y"`
	Orientation *float32 `json:"orientation,omitempty"`
	Height      *float32 `json:"height,omitempty"`
}

// Geometry holds the field dimensions in millimetres.
type Geometry struct {
	FieldLength   int32  `json:"field_length"`
	FieldWidth    int32  `json:"field_width"`
	GoalWidth     int32  `json:"goal_width"`
	GoalDepth     int32  `json:"goal_depth"`
	BoundaryWidth *int32 `json:"boundary_width,omitempty"`
}

// CommandPacket is the outbound grSim command batch for one team and tick.
type CommandPacket struct {
	Timestamp  float64
	TeamYellow bool
	Commands   []RobotCommand
}

// RobotCommand is a single robot's wire command. Velocities and kick speeds
// travel as float32; see EncodeCommandPacket for the precision boundary.
type RobotCommand struct {
	ID          uint32
	KickSpeedX  float32
	KickSpeedZ  float32
	VelTangent  float32
	VelNormal   float32
	VelAngular  float32
	Spinner     bool
	WheelsSpeed bool
}

// Field numbers for the SSL-Vision schema.
const (
	wrapperDetection = 1
	wrapperGeometry  = 2

	frameNumber       = 1
	frameTCapture     = 2
	frameTSent        = 3
	frameCameraID     = 4
	frameBalls        = 5
	frameRobotsYellow = 6
	frameRobotsBlue   = 7

	ballConfidence = 1
	ballArea       = 2
	ballX          = 3
	ballY          = 4
	ballZ          = 5

	robotConfidence  = 1
	robotID          = 2
	robotX           = 3
	robotY           = 4
	robotOrientation = 5
	robotHeight      = 8

	geometryField = 1

	fieldLength        = 1
	fieldWidth         = 2
	fieldGoalWidth     = 3
	fieldGoalDepth     = 4
	fieldBoundaryWidth = 5
)

// Field numbers for the grSim schema.
const (
	packetCommands = 1

	commandsTimestamp     = 1
	commandsIsTeamYellow  = 2
	commandsRobotCommands = 3

	cmdID          = 1
	cmdKickSpeedX  = 2
	cmdKickSpeedZ  = 3
	cmdVelTangent  = 4
	cmdVelNormal   = 5
	cmdVelAngular  = 6
	cmdSpinner     = 7
	cmdWheelsSpeed = 8
)
