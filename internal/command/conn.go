package command

import (
	"net"
	"sync"
	"time"
)

// PacketConn is the connected datagram socket the dispatcher writes to.
// *net.UDPConn satisfies it.
type PacketConn interface {
	Write(b []byte) (int, error)
	SetWriteDeadline(t time.Time) error
	Close() error
	RemoteAddr() net.Addr
}

// Dialer opens the outbound socket.
type Dialer interface {
	DialUDP(address string) (PacketConn, error)
}

// UDPDialer dials with net.DialUDP.
type UDPDialer struct{}

func (UDPDialer) DialUDP(address string) (PacketConn, error) {
	raddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// MockPacketConn records written datagrams for testing.
type MockPacketConn struct {
	mu sync.Mutex

	// Written holds a copy of every datagram passed to Write.
	Written [][]byte
	// WriteError is returned by every Write while set.
	WriteError error
	// CloseError is returned by Close if set.
	CloseError error
	// Deadline holds the last write deadline.
	Deadline time.Time
	// Closed indicates whether Close was called.
	Closed bool
	// Remote is returned by RemoteAddr.
	Remote *net.UDPAddr
}

// NewMockPacketConn creates a MockPacketConn addressed to grSim's default port.
func NewMockPacketConn() *MockPacketConn {
	return &MockPacketConn{Remote: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 20011}}
}

func (m *MockPacketConn) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return 0, net.ErrClosed
	}
	if m.WriteError != nil {
		return 0, m.WriteError
	}
	m.Written = append(m.Written, append([]byte(nil), b...))
	return len(b), nil
}

func (m *MockPacketConn) SetWriteDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deadline = t
	return nil
}

func (m *MockPacketConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return m.CloseError
}

func (m *MockPacketConn) RemoteAddr() net.Addr { return m.Remote }

// SetWriteError changes the error returned by Write.
func (m *MockPacketConn) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteError = err
}

// Datagrams returns a copy of everything written so far.
func (m *MockPacketConn) Datagrams() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.Written...)
}

// IsClosed reports whether Close was called.
func (m *MockPacketConn) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Closed
}

// MockDialer hands out a fixed MockPacketConn.
type MockDialer struct {
	Conn    *MockPacketConn
	Error   error
	Dialled []string
}

func (d *MockDialer) DialUDP(address string) (PacketConn, error) {
	d.Dialled = append(d.Dialled, address)
	if d.Error != nil {
		return nil, d.Error
	}
	return d.Conn, nil
}
