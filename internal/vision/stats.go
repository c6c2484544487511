package vision

import (
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/sslbridge/internal/monitoring"
)

// PacketStatsInterface receives the ingestor's per-packet accounting.
type PacketStatsInterface interface {
	AddPacket(bytes int)
	AddDecodeError()
	AddEmpty()
	AddDetection(objects int)
	AddGeometry()
	AddIdle()
	LogStats()
}

// noopStats is used when no stats collector is provided.
type noopStats struct{}

func (noopStats) AddPacket(int)    {}
func (noopStats) AddDecodeError()  {}
func (noopStats) AddEmpty()        {}
func (noopStats) AddDetection(int) {}
func (noopStats) AddGeometry()     {}
func (noopStats) AddIdle()         {}
func (noopStats) LogStats()        {}

// StatsSnapshot holds counters for one reporting interval.
type StatsSnapshot struct {
	Packets      int64
	Bytes        int64
	DecodeErrors int64
	Empty        int64
	Detections   int64
	Objects      int64
	Geometry     int64
	IdleTicks    int64
	Duration     time.Duration
}

// PacketStats tracks ingest statistics with thread-safe operations.
type PacketStats struct {
	mu        sync.Mutex
	cur       StatsSnapshot
	lastReset time.Time
}

// NewPacketStats creates a new PacketStats instance.
func NewPacketStats() *PacketStats {
	return &PacketStats{lastReset: time.Now()}
}

func (ps *PacketStats) AddPacket(bytes int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.cur.Packets++
	ps.cur.Bytes += int64(bytes)
}

func (ps *PacketStats) AddDecodeError() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.cur.DecodeErrors++
}

func (ps *PacketStats) AddEmpty() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.cur.Empty++
}

// AddDetection counts one detection frame carrying the given number of balls
// and robots.
func (ps *PacketStats) AddDetection(objects int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.cur.Detections++
	ps.cur.Objects += int64(objects)
}

func (ps *PacketStats) AddGeometry() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.cur.Geometry++
}

func (ps *PacketStats) AddIdle() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.cur.IdleTicks++
}

// GetAndReset returns the counters accumulated since the last reset and
// clears them.
func (ps *PacketStats) GetAndReset() StatsSnapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now()
	snap := ps.cur
	snap.Duration = now.Sub(ps.lastReset)
	ps.cur = StatsSnapshot{}
	ps.lastReset = now
	return snap
}

// LogStats logs a per-second summary of the interval and resets the counters.
func (ps *PacketStats) LogStats() {
	s := ps.GetAndReset()
	if s.Packets == 0 && s.IdleTicks == 0 {
		return
	}
	secs := s.Duration.Seconds()
	if secs <= 0 {
		secs = 1
	}
	msg := fmt.Sprintf("Vision stats (/sec): %.1f packets, %.1f KB, %.1f frames, %.1f objects",
		float64(s.Packets)/secs, float64(s.Bytes)/secs/1024,
		float64(s.Detections)/secs, float64(s.Objects)/secs)
	if s.DecodeErrors > 0 {
		msg += fmt.Sprintf(", %d undecodable", s.DecodeErrors)
	}
	if s.Empty > 0 {
		msg += fmt.Sprintf(", %d empty", s.Empty)
	}
	if s.IdleTicks > 0 {
		msg += fmt.Sprintf(", %d idle timeouts", s.IdleTicks)
	}
	monitoring.Logf("%s", msg)
}
