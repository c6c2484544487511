package command

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/sslbridge/internal/monitoring"
	"github.com/banshee-data/sslbridge/internal/timeutil"
	"github.com/banshee-data/sslbridge/internal/wire"
)

const (
	// DefaultTickPeriod is the recommended interval between Dispatch calls
	// for one team (about 60 Hz). The dispatcher does not enforce it.
	DefaultTickPeriod = 16 * time.Millisecond
	// DefaultAddress is grSim's command port on the local host.
	DefaultAddress = "127.0.0.1:20011"
)

// DispatcherConfig contains configuration options for the Dispatcher.
type DispatcherConfig struct {
	Address      string        // defaults to DefaultAddress
	WriteTimeout time.Duration // defaults to DefaultTickPeriod
	Dialer       Dialer        // defaults to UDPDialer
	Clock        timeutil.Clock
}

// Ack reports a datagram accepted for transmission. Nothing is known about
// its delivery.
type Ack struct {
	Team      wire.Team
	Timestamp float64
	Robots    int
	Bytes     int
	Session   string
}

// DispatcherStats is a snapshot of the dispatcher's counters.
type DispatcherStats struct {
	Packets   uint64              `json:"packets"`
	Failures  uint64              `json:"failures"`
	Commanded map[string][]uint32 `json:"commanded"`
	Closed    bool                `json:"closed"`
}

// Dispatcher owns the outbound socket. Calls are serialised, so packets for
// a team leave in call order with non-decreasing timestamps.
type Dispatcher struct {
	conn    PacketConn
	timeout time.Duration
	clock   timeutil.Clock
	session string
	logf    func(format string, v ...interface{})

	mu        sync.Mutex
	closed    bool
	last      map[wire.Team]float64
	commanded map[wire.Team]map[uint32]struct{}
	packets   uint64
	failures  uint64
}

// NewDispatcher dials the command destination. Errors wrap ErrTransport.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultTickPeriod
	}
	if cfg.Dialer == nil {
		cfg.Dialer = UDPDialer{}
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}

	conn, err := cfg.Dialer.DialUDP(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrTransport, cfg.Address, err)
	}
	d := &Dispatcher{
		conn:      conn,
		timeout:   cfg.WriteTimeout,
		clock:     cfg.Clock,
		session:   uuid.NewString(),
		logf:      monitoring.Prefixed("command"),
		last:      make(map[wire.Team]float64),
		commanded: make(map[wire.Team]map[uint32]struct{}),
	}
	d.logf("sending to %s (session %s)", conn.RemoteAddr(), d.session)
	return d, nil
}

// Dispatch sends one command packet for team carrying every intent in
// order. The whole batch is rejected, and nothing sent, if any intent is
// invalid or two intents name the same robot. Send failures wrap
// ErrTransport and are not retried; the next tick is the retry.
func (d *Dispatcher) Dispatch(team wire.Team, intents []Intent) (Ack, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return Ack{}, &DispatchError{Team: team, RobotID: NoRobot, Err: ErrClosed}
	}
	cmds, err := buildCommands(team, intents)
	if err != nil {
		return Ack{}, err
	}
	return d.send(team, cmds)
}

// send must be called with d.mu held.
func (d *Dispatcher) send(team wire.Team, cmds []wire.RobotCommand) (Ack, error) {
	ts := d.timestamp(team)
	b, err := wire.EncodeCommandPacket(&wire.CommandPacket{
		Timestamp:  ts,
		TeamYellow: team.IsYellow(),
		Commands:   cmds,
	})
	if err != nil {
		return Ack{}, &DispatchError{Team: team, RobotID: NoRobot, Err: err}
	}
	d.last[team] = ts

	ids := d.commanded[team]
	if ids == nil {
		ids = make(map[uint32]struct{})
		d.commanded[team] = ids
	}
	for _, c := range cmds {
		ids[c.ID] = struct{}{}
	}

	if err := d.conn.SetWriteDeadline(time.Now().Add(d.timeout)); err != nil {
		d.failures++
		return Ack{}, &DispatchError{Team: team, RobotID: NoRobot, Err: fmt.Errorf("%w: %v", ErrTransport, err)}
	}
	n, err := d.conn.Write(b)
	if err != nil {
		d.failures++
		return Ack{}, &DispatchError{Team: team, RobotID: NoRobot, Err: fmt.Errorf("%w: %v", ErrTransport, err)}
	}
	d.packets++
	return Ack{Team: team, Timestamp: ts, Robots: len(cmds), Bytes: n, Session: d.session}, nil
}

// timestamp returns the clock in seconds, held at the team's previous value
// if the clock stepped backwards.
func (d *Dispatcher) timestamp(team wire.Team) float64 {
	ts := float64(d.clock.Now().UnixNano()) / 1e9
	if last, ok := d.last[team]; ok && ts < last {
		return last
	}
	return ts
}

// Close sends, for each team, one packet stopping every robot that team has
// ever been commanded, then releases the socket. The socket is released even
// when a stop packet cannot be sent; such failures are joined into the
// returned error. Later calls return nil.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	for _, team := range wire.Teams {
		ids := sortedIDs(d.commanded[team])
		if len(ids) == 0 {
			continue
		}
		stops := make([]wire.RobotCommand, len(ids))
		for i, id := range ids {
			stops[i] = wire.RobotCommand{ID: id}
		}
		if _, err := d.send(team, stops); err != nil {
			d.logf("failed to stop %s robots %v: %v", team, ids, err)
			errs = append(errs, err)
			continue
		}
		d.logf("stopped %s robots %v", team, ids)
	}

	if err := d.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("%w: close: %v", ErrTransport, err))
	}
	d.logf("closed (session %s, %d packets, %d failures)", d.session, d.packets, d.failures)
	return errors.Join(errs...)
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() DispatcherStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := DispatcherStats{
		Packets:   d.packets,
		Failures:  d.failures,
		Commanded: make(map[string][]uint32, len(d.commanded)),
		Closed:    d.closed,
	}
	for team, ids := range d.commanded {
		s.Commanded[team.String()] = sortedIDs(ids)
	}
	return s
}

func sortedIDs(set map[uint32]struct{}) []uint32 {
	ids := make([]uint32, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
