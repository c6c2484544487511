package vision

import (
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/sslbridge/internal/httputil"
	"github.com/banshee-data/sslbridge/internal/wire"
)

// ballView is the JSON form of BallEstimate.
type ballView struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          *float32 `json:"z,omitempty"`
	Confidence float32  `json:"confidence"`
	Cameras    int      `json:"cameras"`
}

type robotsView struct {
	Blue   map[uint32]wire.Robot `json:"blue"`
	Yellow map[uint32]wire.Robot `json:"yellow"`
}

// AttachAdminRoutes registers the vision debug pages under /debug/. The
// handler is shared with other components since tsweb.Debugger may only be
// created once per mux.
func (i *Ingestor) AttachAdminRoutes(debug *tsweb.DebugHandler) {
	debug.KVFunc("Vision listening", func() any { return i.Listening() })

	debug.HandleFunc("vision-state", "latest merged field state (JSON)", httputil.GetOnly(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, i.CurrentState())
	}))

	debug.HandleFunc("vision-summary", "fused ball and identified robots (JSON)", httputil.GetOnly(func(w http.ResponseWriter, r *http.Request) {
		s := i.CurrentState()
		out := struct {
			Ball    *ballView      `json:"ball"`
			Robots  robotsView     `json:"robots"`
			Cameras []uint32       `json:"cameras"`
			Field   *wire.Geometry `json:"field,omitempty"`
		}{
			Robots: robotsView{
				Blue:   s.Robots(wire.TeamBlue),
				Yellow: s.Robots(wire.TeamYellow),
			},
			Cameras: s.CameraIDs(),
			Field:   s.Geometry,
		}
		if b, ok := s.Ball(); ok {
			out.Ball = &ballView{X: b.X, Y: b.Y, Z: b.Z, Confidence: b.Confidence, Cameras: b.Cameras}
		}
		httputil.WriteJSONOK(w, out)
	}))
}
