// Package vision receives the SSL-Vision multicast feed and maintains the
// merged FieldState snapshot that control code reads.
package vision

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/sslbridge/internal/monitoring"
	"github.com/banshee-data/sslbridge/internal/timeutil"
	"github.com/banshee-data/sslbridge/internal/wire"
)

var (
	// ErrBind wraps failures to resolve, bind or join the multicast group.
	ErrBind = errors.New("vision: bind failed")
	// ErrAlreadyStarted is returned by Start while the ingestor is listening.
	ErrAlreadyStarted = errors.New("vision: ingestor already started")
)

// FeedObserver is told when the feed goes quiet and when it comes back.
type FeedObserver interface {
	// FeedActive is called on the first datagram after start or after an
	// idle report.
	FeedActive()
	// FeedIdle is called every IdleTimeout without datagrams.
	FeedIdle(idleFor time.Duration)
}

type noopObserver struct{}

func (noopObserver) FeedActive()            {}
func (noopObserver) FeedIdle(time.Duration) {}

// IngestorConfig contains configuration options for the Ingestor.
type IngestorConfig struct {
	Group     string // multicast group, e.g. 224.5.23.2
	Port      int
	Interface string // interface name to join on; empty lets the system choose
	RcvBuf    int

	IdleTimeout   time.Duration // defaults to 5s
	PollInterval  time.Duration // read deadline between cancellation checks, defaults to 100ms
	StatsInterval time.Duration // zero disables periodic stats logging

	Stats         PacketStatsInterface
	Observer      FeedObserver
	SocketFactory UDPSocketFactory
	Clock         timeutil.Clock // stamps merges and drives idle accounting
}

// Ingestor owns the multicast socket and is the only writer of FieldState.
// Its lifecycle is Stopped -> Listening -> Stopped; it may be started again
// after Stop.
type Ingestor struct {
	cfg      IngestorConfig
	stats    PacketStatsInterface
	observer FeedObserver
	factory  UDPSocketFactory
	clock    timeutil.Clock
	logf     func(format string, v ...interface{})

	state   atomic.Pointer[FieldState]
	writeMu sync.Mutex // serialises merges from the receive loop and replays

	mu      sync.Mutex // guards the fields below
	sock    UDPSocket
	cancel  context.CancelFunc
	done    chan struct{}
	session string
}

// NewIngestor creates a stopped ingestor with an empty FieldState.
func NewIngestor(cfg IngestorConfig) *Ingestor {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	i := &Ingestor{
		cfg:      cfg,
		stats:    cfg.Stats,
		observer: cfg.Observer,
		factory:  cfg.SocketFactory,
		clock:    cfg.Clock,
		logf:     monitoring.Prefixed("vision"),
	}
	if i.stats == nil {
		i.stats = noopStats{}
	}
	if i.observer == nil {
		i.observer = noopObserver{}
	}
	if i.factory == nil {
		i.factory = NewRealUDPSocketFactory()
	}
	if i.clock == nil {
		i.clock = timeutil.RealClock{}
	}
	i.state.Store(emptyFieldState())
	return i
}

// CurrentState returns the latest published snapshot. It is never nil.
func (i *Ingestor) CurrentState() *FieldState {
	return i.state.Load()
}

// Start binds the multicast socket, joins the group and begins receiving in
// a background goroutine. On error no resources are held. The loop ends when
// ctx is cancelled or Stop is called.
func (i *Ingestor) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.sock != nil {
		return ErrAlreadyStarted
	}

	group := net.ParseIP(i.cfg.Group)
	if group == nil || !group.IsMulticast() {
		return fmt.Errorf("%w: %q is not a multicast address", ErrBind, i.cfg.Group)
	}
	var ifi *net.Interface
	if i.cfg.Interface != "" {
		var err error
		if ifi, err = net.InterfaceByName(i.cfg.Interface); err != nil {
			return fmt.Errorf("%w: interface %s: %v", ErrBind, i.cfg.Interface, err)
		}
	}
	gaddr := &net.UDPAddr{IP: group, Port: i.cfg.Port}
	sock, err := i.factory.ListenMulticastUDP("udp4", ifi, gaddr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBind, gaddr, err)
	}

	if i.cfg.RcvBuf > 0 {
		if err := sock.SetReadBuffer(i.cfg.RcvBuf); err != nil {
			i.logf("Warning: Failed to set UDP receive buffer size to %d: %v", i.cfg.RcvBuf, err)
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	i.sock = sock
	i.cancel = cancel
	i.done = make(chan struct{})
	i.session = uuid.NewString()
	i.logf("listening on %s (session %s, idle timeout %v)", gaddr, i.session, i.cfg.IdleTimeout)

	go i.receive(loopCtx, sock, i.done)
	if i.cfg.StatsInterval > 0 {
		go i.logStats(loopCtx)
	}
	return nil
}

// Stop ends the receive loop and closes the socket. It is idempotent.
func (i *Ingestor) Stop() error {
	i.mu.Lock()
	sock, cancel, done, session := i.sock, i.cancel, i.done, i.session
	i.sock, i.cancel = nil, nil
	i.mu.Unlock()
	if sock == nil {
		return nil
	}

	cancel()
	err := sock.Close()
	<-done
	i.logf("stopped (session %s)", session)
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// Done returns a channel closed when the current receive loop exits. Before
// the first Start it returns a closed channel.
func (i *Ingestor) Done() <-chan struct{} {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.done == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return i.done
}

// Listening reports whether the ingestor currently holds a socket.
func (i *Ingestor) Listening() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.sock != nil
}

func (i *Ingestor) receive(ctx context.Context, sock UDPSocket, done chan struct{}) {
	defer close(done)
	// When ctx ends without Stop, the loop releases its own socket and
	// returns the ingestor to Stopped.
	defer func() {
		i.mu.Lock()
		if i.sock == sock {
			i.sock, i.cancel = nil, nil
			i.logf("receive loop ended (session %s)", i.session)
		}
		i.mu.Unlock()
	}()
	defer sock.Close()

	buf := make([]byte, wire.MaxDatagramSize)
	lastPacket := i.clock.Now()
	lastIdle := lastPacket
	live := false
	var readErrors uint64

	for {
		if ctx.Err() != nil {
			return
		}
		// Deadlines are wall-clock; i.clock only drives idle accounting.
		sock.SetReadDeadline(time.Now().Add(i.cfg.PollInterval))

		n, addr, err := sock.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				if t := i.clock.Now(); t.Sub(lastIdle) >= i.cfg.IdleTimeout {
					lastIdle = t
					live = false
					i.stats.AddIdle()
					i.observer.FeedIdle(t.Sub(lastPacket))
					i.logf("no vision data for %v", t.Sub(lastPacket).Round(time.Millisecond))
				}
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			// Persistent errors (e.g. ICMP unreachable) back off one poll
			// interval and are logged once per 100.
			if readErrors++; readErrors%100 == 1 {
				i.logf("UDP read error: %v (%d consecutive)", err, readErrors)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(i.cfg.PollInterval):
			}
			continue
		}
		readErrors = 0

		t := i.clock.Now()
		lastPacket, lastIdle = t, t
		if !live {
			live = true
			i.observer.FeedActive()
		}
		if err := i.HandlePacket(buf[:n], t); err != nil {
			i.logf("dropping packet from %v: %v", addr, err)
		}
	}
}

// HandlePacket decodes one datagram and merges it into the FieldState. A
// decode error is returned after being counted; the state is left untouched.
// Empty wrappers are counted and otherwise ignored.
func (i *Ingestor) HandlePacket(packet []byte, at time.Time) error {
	i.stats.AddPacket(len(packet))

	w, err := wire.DecodeWrapper(packet)
	if err != nil {
		i.stats.AddDecodeError()
		return err
	}
	if w.IsEmpty() {
		i.stats.AddEmpty()
		return nil
	}
	if f := w.Detection; f != nil {
		i.stats.AddDetection(len(f.Balls) + len(f.RobotsBlue) + len(f.RobotsYellow))
	}
	if w.Geometry != nil {
		i.stats.AddGeometry()
	}

	i.writeMu.Lock()
	i.state.Store(i.state.Load().merge(w, at))
	i.writeMu.Unlock()
	return nil
}

// logStats periodically logs packet statistics until ctx ends.
func (i *Ingestor) logStats(ctx context.Context) {
	ticker := i.clock.NewTicker(i.cfg.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			i.stats.LogStats()
		}
	}
}
