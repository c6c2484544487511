package command

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tailscale.com/tsweb"

	"github.com/banshee-data/sslbridge/internal/wire"
)

// localHostRequest creates a request that tsweb.AllowDebugAccess accepts.
func localHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req
}

func newAdminMux(t *testing.T) (*http.ServeMux, *Latch, *Dispatcher) {
	t.Helper()
	d, _, _ := newTestDispatcher(t)
	l := NewLatch()
	mux := http.NewServeMux()
	debug := tsweb.Debugger(mux)
	d.AttachAdminRoutes(debug)
	l.AttachAdminRoutes(debug)
	return mux, l, d
}

func TestAdmin_CommandSendPage(t *testing.T) {
	mux, _, _ := newAdminMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/command-send", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<option value="yellow">yellow</option>`)
	assert.Contains(t, rec.Body.String(), "command-send-api")
}

func TestAdmin_CommandSendAPI(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		form       url.Values
		wantStatus int
		wantBody   string
	}{
		{
			name:       "valid intent",
			method:     http.MethodPost,
			form:       url.Values{"team": {"yellow"}, "id": {"3"}, "forward": {"1.5"}, "kick_z": {"2"}, "dribbler": {"true"}},
			wantStatus: http.StatusOK,
			wantBody:   "Latched yellow robot 3",
		},
		{
			name:       "missing id",
			method:     http.MethodPost,
			form:       url.Values{"team": {"blue"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "missing id",
		},
		{
			name:       "bad team",
			method:     http.MethodPost,
			form:       url.Values{"team": {"green"}, "id": {"1"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "unknown team",
		},
		{
			name:       "bad number",
			method:     http.MethodPost,
			form:       url.Values{"team": {"blue"}, "id": {"1"}, "angular": {"fast"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid angular",
		},
		{
			name:       "negative kick",
			method:     http.MethodPost,
			form:       url.Values{"team": {"blue"}, "id": {"1"}, "kick_x": {"-1"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "non-negative",
		},
		{
			name:       "GET not allowed",
			method:     http.MethodGet,
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, _, _ := newAdminMux(t)
			var body io.Reader
			if tt.form != nil {
				body = strings.NewReader(tt.form.Encode())
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, localHostRequest(tt.method, "/debug/command-send-api", body))
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestAdmin_LatchAndStop(t *testing.T) {
	mux, latch, _ := newAdminMux(t)

	post := func(path string, form url.Values) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, localHostRequest(http.MethodPost, path, strings.NewReader(form.Encode())))
		return rec
	}

	require.Equal(t, http.StatusOK, post("/debug/command-send-api", url.Values{"team": {"blue"}, "id": {"2"}, "forward": {"1"}}).Code)
	require.Equal(t, http.StatusOK, post("/debug/command-send-api", url.Values{"team": {"blue"}, "id": {"5"}, "lateral": {"-1"}}).Code)
	assert.Equal(t, []Intent{{RobotID: 2, ForwardVelocity: 1}, {RobotID: 5, LateralVelocity: -1}}, latch.Intents(wire.TeamBlue))

	rec := post("/debug/command-stop", url.Values{"team": {"blue"}, "id": {"5"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, StopIntent(5), latch.Intents(wire.TeamBlue)[1])

	rec = post("/debug/command-stop", url.Values{"team": {"blue"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "[2 5]")
	assert.Equal(t, []Intent{StopIntent(2), StopIntent(5)}, latch.Intents(wire.TeamBlue))

	get := httptest.NewRecorder()
	mux.ServeHTTP(get, localHostRequest(http.MethodGet, "/debug/command-latch", nil))
	require.Equal(t, http.StatusOK, get.Code)
	var latched map[string][]Intent
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &latched))
	assert.Len(t, latched["blue"], 2)
	assert.Empty(t, latched["yellow"])
}

func TestAdmin_CommandStats(t *testing.T) {
	mux, _, d := newAdminMux(t)
	_, err := d.Dispatch(wire.TeamYellow, []Intent{{RobotID: 1}, {RobotID: 0}})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/command-stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats DispatcherStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, uint64(1), stats.Packets)
	assert.Equal(t, []uint32{0, 1}, stats.Commanded["yellow"])
	assert.False(t, stats.Closed)
}
