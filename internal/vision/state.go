package vision

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/sslbridge/internal/wire"
)

// FieldState is an immutable snapshot of the merged vision feed: the last
// frame received from each camera plus the last geometry seen. Snapshots are
// never mutated after publication, so readers may hold them freely.
type FieldState struct {
	Cameras   map[uint32]*wire.DetectionFrame `json:"cameras"`
	Geometry  *wire.Geometry                  `json:"geometry,omitempty"`
	UpdatedAt time.Time                       `json:"updated_at"`
}

func emptyFieldState() *FieldState {
	return &FieldState{Cameras: map[uint32]*wire.DetectionFrame{}}
}

// merge returns the snapshot that results from applying w to s. A detection
// replaces the camera's previous frame unconditionally, even when its frame
// number regresses; geometry is last-write-wins and independent of
// detections. The camera table is copied only when a detection is present.
func (s *FieldState) merge(w *wire.WrapperPacket, at time.Time) *FieldState {
	next := &FieldState{
		Cameras:   s.Cameras,
		Geometry:  s.Geometry,
		UpdatedAt: at,
	}
	if f := w.Detection; f != nil {
		cameras := make(map[uint32]*wire.DetectionFrame, len(s.Cameras)+1)
		for id, frame := range s.Cameras {
			cameras[id] = frame
		}
		cameras[f.CameraID] = f
		next.Cameras = cameras
	}
	if w.Geometry != nil {
		next.Geometry = w.Geometry
	}
	return next
}

// Camera returns the last frame received from the given camera.
func (s *FieldState) Camera(id uint32) (*wire.DetectionFrame, bool) {
	f, ok := s.Cameras[id]
	return f, ok
}

// CameraIDs returns the ids of every camera that has reported, ascending.
func (s *FieldState) CameraIDs() []uint32 {
	ids := make([]uint32, 0, len(s.Cameras))
	for id := range s.Cameras {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BallEstimate is the ball position fused across cameras.
type BallEstimate struct {
	X, Y       float64
	Z          *float32
	Confidence float32 // best single-camera confidence
	Cameras    int     // cameras that contributed
}

// Ball fuses the most confident ball of every camera into one estimate,
// weighting each camera's observation by its confidence. Z is taken from the
// most confident observation that has one. It returns false when no camera
// currently sees a ball.
func (s *FieldState) Ball() (BallEstimate, bool) {
	var xs, ys, ws []float64
	var est BallEstimate
	var bestZConf float32 = -1
	for _, id := range s.CameraIDs() {
		f := s.Cameras[id]
		if len(f.Balls) == 0 {
			continue
		}
		best := f.Balls[0]
		for _, b := range f.Balls[1:] {
			if b.Confidence > best.Confidence {
				best = b
			}
		}
		xs = append(xs, float64(best.X))
		ys = append(ys, float64(best.Y))
		ws = append(ws, float64(best.Confidence))
		if best.Confidence > est.Confidence {
			est.Confidence = best.Confidence
		}
		if best.Z != nil && best.Confidence > bestZConf {
			est.Z, bestZConf = best.Z, best.Confidence
		}
	}
	if len(xs) == 0 {
		return BallEstimate{}, false
	}

	weights := ws
	if est.Confidence <= 0 {
		// All-zero confidences would divide by zero; fall back to a plain mean.
		weights = nil
	}
	est.X = stat.Mean(xs, weights)
	est.Y = stat.Mean(ys, weights)
	est.Cameras = len(xs)
	return est, true
}

// Robots returns the identified robots of one team across all cameras, keyed
// by robot id. When several cameras see the same robot the most confident
// observation wins. Unidentified detections are left out.
func (s *FieldState) Robots(team wire.Team) map[uint32]wire.Robot {
	out := make(map[uint32]wire.Robot)
	for _, id := range s.CameraIDs() {
		f := s.Cameras[id]
		robots := f.RobotsBlue
		if team == wire.TeamYellow {
			robots = f.RobotsYellow
		}
		for _, r := range robots {
			if r.RobotID == nil {
				continue
			}
			if prev, ok := out[*r.RobotID]; ok && prev.Confidence >= r.Confidence {
				continue
			}
			out[*r.RobotID] = r
		}
	}
	return out
}
