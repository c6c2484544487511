package vision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ReplayConfig controls ReplayPCAP.
type ReplayConfig struct {
	// Port keeps only UDP datagrams sent to this destination port. Zero
	// accepts every UDP datagram in the capture.
	Port int
	// Realtime sleeps between packets to reproduce the capture's pacing.
	Realtime bool
}

// ReplaySummary reports what a replay processed.
type ReplaySummary struct {
	Packets      int // UDP datagrams fed to the ingestor
	DecodeErrors int
	Skipped      int // non-UDP frames or other ports
	Elapsed      time.Duration
}

// ReplayPCAP feeds the UDP payloads of a libpcap capture through HandlePacket,
// the same path live datagrams take. Capture timestamps become the snapshots'
// UpdatedAt. Undecodable payloads are counted and skipped.
func (i *Ingestor) ReplayPCAP(ctx context.Context, r io.Reader, cfg ReplayConfig) (ReplaySummary, error) {
	var sum ReplaySummary
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return sum, fmt.Errorf("failed to open PCAP stream: %w", err)
	}

	start := time.Now()
	var firstCapture time.Time
	for {
		if err := ctx.Err(); err != nil {
			i.logf("PCAP replay stopping due to context cancellation (processed %d packets)", sum.Packets)
			return sum, err
		}

		data, ci, err := reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			sum.Elapsed = time.Since(start)
			i.logf("PCAP replay complete: %d packets in %v", sum.Packets, sum.Elapsed)
			return sum, nil
		}
		if err != nil {
			return sum, fmt.Errorf("failed to read PCAP packet %d: %w", sum.Packets+sum.Skipped+1, err)
		}

		packet := gopacket.NewPacket(data, reader.LinkType(), gopacket.Default)
		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || (cfg.Port != 0 && int(udp.DstPort) != cfg.Port) || len(udp.Payload) == 0 {
			sum.Skipped++
			continue
		}

		if cfg.Realtime {
			if firstCapture.IsZero() {
				firstCapture = ci.Timestamp
			}
			wait := ci.Timestamp.Sub(firstCapture) - time.Since(start)
			if wait > 0 {
				select {
				case <-ctx.Done():
					return sum, ctx.Err()
				case <-time.After(wait):
				}
			}
		}

		sum.Packets++
		if err := i.HandlePacket(udp.Payload, ci.Timestamp); err != nil {
			sum.DecodeErrors++
			i.logf("PCAP packet %d: %v", sum.Packets, err)
		}
	}
}
