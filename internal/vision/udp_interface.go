package vision

import (
	"net"
	"sync"
	"time"
)

// UDPSocket defines the socket operations the ingestor needs.
// This abstraction enables unit testing without real network connections.
type UDPSocket interface {
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)
	SetReadBuffer(bytes int) error
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

// UDPSocketFactory creates multicast receive sockets.
type UDPSocketFactory interface {
	// ListenMulticastUDP binds to the group's port and joins the group on
	// ifi, or on the system-chosen interface when ifi is nil.
	ListenMulticastUDP(network string, ifi *net.Interface, gaddr *net.UDPAddr) (UDPSocket, error)
}

// RealUDPSocketFactory implements UDPSocketFactory using net.ListenMulticastUDP,
// which sets SO_REUSEADDR so several listeners can share the feed.
type RealUDPSocketFactory struct{}

// NewRealUDPSocketFactory creates a new RealUDPSocketFactory.
func NewRealUDPSocketFactory() *RealUDPSocketFactory {
	return &RealUDPSocketFactory{}
}

// ListenMulticastUDP creates a new multicast socket. *net.UDPConn satisfies
// UDPSocket directly.
func (f *RealUDPSocketFactory) ListenMulticastUDP(network string, ifi *net.Interface, gaddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenMulticastUDP(network, ifi, gaddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// MockUDPSocket implements UDPSocket for testing.
type MockUDPSocket struct {
	mu sync.Mutex

	// Packets holds the packets to return from ReadFromUDP.
	Packets []MockUDPPacket
	// ReadIndex tracks the current position in Packets.
	ReadIndex int
	// Closed indicates whether Close was called.
	Closed bool
	// ReadBufferSize holds the value set by SetReadBuffer.
	ReadBufferSize int
	// ReadDeadline holds the value set by SetReadDeadline.
	ReadDeadline time.Time
	// LocalAddress is returned by LocalAddr.
	LocalAddress *net.UDPAddr
	// ReadError is returned on the next ReadFromUDP call if set.
	ReadError error
	// StickyReadError keeps returning ReadError instead of clearing it.
	StickyReadError bool
	// Reads counts ReadFromUDP calls.
	Reads int
	// SetReadBufferError is returned by SetReadBuffer if set.
	SetReadBufferError error
	// TimeoutDelay is slept before reporting a timeout once Packets is
	// exhausted, keeping the receive loop from spinning.
	TimeoutDelay time.Duration
}

// MockUDPPacket represents a packet for mock testing.
type MockUDPPacket struct {
	Data []byte
	Addr *net.UDPAddr
}

// NewMockUDPSocket creates a new MockUDPSocket with the given packets.
func NewMockUDPSocket(packets []MockUDPPacket) *MockUDPSocket {
	return &MockUDPSocket{
		Packets: packets,
		LocalAddress: &net.UDPAddr{
			IP:   net.ParseIP("224.5.23.2"),
			Port: 10006,
		},
		TimeoutDelay: time.Millisecond,
	}
}

// Push appends packets for subsequent reads.
func (m *MockUDPSocket) Push(packets ...MockUDPPacket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Packets = append(m.Packets, packets...)
}

// Consumed returns how many packets have been read.
func (m *MockUDPSocket) Consumed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ReadIndex
}

// ReadCount returns how many times ReadFromUDP was called.
func (m *MockUDPSocket) ReadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Reads
}

// IsClosed reports whether Close was called.
func (m *MockUDPSocket) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Closed
}

// ReadFromUDP returns the next packet from the mock buffer.
func (m *MockUDPSocket) ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error) {
	m.mu.Lock()
	m.Reads++
	if m.Closed {
		m.mu.Unlock()
		return 0, nil, net.ErrClosed
	}
	if m.ReadError != nil {
		err := m.ReadError
		if !m.StickyReadError {
			m.ReadError = nil
		}
		m.mu.Unlock()
		return 0, nil, err
	}
	if m.ReadIndex >= len(m.Packets) {
		delay := m.TimeoutDelay
		m.mu.Unlock()
		time.Sleep(delay)
		return 0, nil, &net.OpError{
			Op:  "read",
			Net: "udp",
			Err: &timeoutError{},
		}
	}
	pkt := m.Packets[m.ReadIndex]
	m.ReadIndex++
	m.mu.Unlock()
	n = copy(b, pkt.Data)
	return n, pkt.Addr, nil
}

// SetReadBuffer records the buffer size.
func (m *MockUDPSocket) SetReadBuffer(bytes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetReadBufferError != nil {
		return m.SetReadBufferError
	}
	m.ReadBufferSize = bytes
	return nil
}

// SetReadDeadline records the deadline.
func (m *MockUDPSocket) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadDeadline = t
	return nil
}

// Close marks the socket as closed.
func (m *MockUDPSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// LocalAddr returns the mock local address.
func (m *MockUDPSocket) LocalAddr() net.Addr {
	return m.LocalAddress
}

// MockUDPSocketFactory implements UDPSocketFactory for testing.
type MockUDPSocketFactory struct {
	// Socket is the socket to return from ListenMulticastUDP.
	Socket *MockUDPSocket
	// Error is returned by ListenMulticastUDP if set.
	Error error
	// ListenCalls records all ListenMulticastUDP calls.
	ListenCalls []MockListenCall
}

// MockListenCall records a call to ListenMulticastUDP.
type MockListenCall struct {
	Network   string
	Interface *net.Interface
	Group     *net.UDPAddr
}

// NewMockUDPSocketFactory creates a new MockUDPSocketFactory.
func NewMockUDPSocketFactory(socket *MockUDPSocket) *MockUDPSocketFactory {
	return &MockUDPSocketFactory{Socket: socket}
}

// ListenMulticastUDP returns the configured mock socket.
func (f *MockUDPSocketFactory) ListenMulticastUDP(network string, ifi *net.Interface, gaddr *net.UDPAddr) (UDPSocket, error) {
	f.ListenCalls = append(f.ListenCalls, MockListenCall{
		Network:   network,
		Interface: ifi,
		Group:     gaddr,
	})
	if f.Error != nil {
		return nil, f.Error
	}
	return f.Socket, nil
}

// timeoutError implements net.Error for timeout simulation.
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }
