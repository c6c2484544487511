package command

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"tailscale.com/tsweb"

	"github.com/banshee-data/sslbridge/internal/httputil"
	"github.com/banshee-data/sslbridge/internal/wire"
)

//go:embed templates/*
var adminTemplateFS embed.FS

var sendCommandTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/command-send.html.tmpl"))

// AttachAdminRoutes registers the dispatcher's counters under /debug/.
func (d *Dispatcher) AttachAdminRoutes(debug *tsweb.DebugHandler) {
	debug.KVFunc("Command packets sent", func() any { return d.Stats().Packets })
	debug.HandleFunc("command-stats", "command dispatcher counters (JSON)", httputil.GetOnly(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, d.Stats())
	}))
}

// AttachAdminRoutes registers the manual driving page and its API under
// /debug/.
func (l *Latch) AttachAdminRoutes(debug *tsweb.DebugHandler) {
	debug.HandleFunc("command-send", "latch a manual robot command", func(w http.ResponseWriter, r *http.Request) {
		buf := bytes.NewBuffer(nil)
		data := struct{ Teams []wire.Team }{Teams: l.Teams()}
		if err := sendCommandTemplate.Execute(buf, data); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		io.Copy(w, buf)
	})

	debug.HandleFunc("command-latch", "latched manual intents (JSON)", httputil.GetOnly(func(w http.ResponseWriter, r *http.Request) {
		out := make(map[string][]Intent, len(l.teams))
		for _, team := range l.teams {
			out[team.String()] = l.Intents(team)
		}
		httputil.WriteJSONOK(w, out)
	}))

	debug.HandleSilentFunc("command-send-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		team, err := wire.ParseTeam(r.FormValue("team"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		in, err := parseIntentForm(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := l.Set(team, in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		io.WriteString(w, fmt.Sprintf("Latched %s robot %d", team, in.RobotID))
	})

	debug.HandleSilentFunc("command-stop", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		team, err := wire.ParseTeam(r.FormValue("team"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if idStr := strings.TrimSpace(r.FormValue("id")); idStr != "" {
			id, err := strconv.Atoi(idStr)
			if err != nil {
				http.Error(w, "Invalid id", http.StatusBadRequest)
				return
			}
			if err := l.Stop(team, id); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			io.WriteString(w, fmt.Sprintf("Stopping %s robot %d", team, id))
			return
		}
		ids := l.StopAll(team)
		io.WriteString(w, fmt.Sprintf("Stopping %s robots %v", team, ids))
	})
}

func parseIntentForm(r *http.Request) (Intent, error) {
	var in Intent
	idStr := strings.TrimSpace(r.FormValue("id"))
	if idStr == "" {
		return in, fmt.Errorf("missing id")
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return in, fmt.Errorf("invalid id %q", idStr)
	}
	in.RobotID = id

	floats := []struct {
		key string
		dst *float64
	}{
		{"forward", &in.ForwardVelocity},
		{"lateral", &in.LateralVelocity},
		{"angular", &in.AngularVelocity},
		{"kick_x", &in.KickSpeedX},
		{"kick_z", &in.KickSpeedZ},
	}
	for _, f := range floats {
		v := strings.TrimSpace(r.FormValue(f.key))
		if v == "" {
			continue
		}
		if *f.dst, err = strconv.ParseFloat(v, 64); err != nil {
			return in, fmt.Errorf("invalid %s %q", f.key, v)
		}
	}

	if v := r.FormValue("dribbler"); v != "" {
		if in.DribblerOn, err = strconv.ParseBool(v); err != nil {
			return in, fmt.Errorf("invalid dribbler %q", v)
		}
	}
	return in, nil
}
