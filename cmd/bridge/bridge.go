package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/sslbridge/internal/command"
	"github.com/banshee-data/sslbridge/internal/config"
	"github.com/banshee-data/sslbridge/internal/health"
	"github.com/banshee-data/sslbridge/internal/timeutil"
	"github.com/banshee-data/sslbridge/internal/version"
	"github.com/banshee-data/sslbridge/internal/vision"
	"github.com/banshee-data/sslbridge/internal/wire"
)

// bridgeOptions carries the harness-only settings that are not part of
// BridgeConfig. Nil factories select the real network.
type bridgeOptions struct {
	PCAPFile     string
	PCAPRealtime bool
	NoCommand    bool

	SocketFactory vision.UDPSocketFactory
	Dialer        command.Dialer
}

type bridge struct {
	cfg  *config.BridgeConfig
	opts bridgeOptions
	team wire.Team

	feed       *health.FeedHealth
	ingestor   *vision.Ingestor
	latch      *command.Latch
	dispatcher *command.Dispatcher // nil with NoCommand
}

func newBridge(cfg *config.BridgeConfig, opts bridgeOptions) (*bridge, error) {
	team, err := wire.ParseTeam(cfg.GetTeam())
	if err != nil {
		return nil, fmt.Errorf("invalid team: %w", err)
	}

	b := &bridge{
		cfg:   cfg,
		opts:  opts,
		team:  team,
		feed:  health.NewFeedHealth(),
		latch: command.NewLatch(team),
	}
	b.ingestor = vision.NewIngestor(vision.IngestorConfig{
		Group:         cfg.GetVisionGroup(),
		Port:          cfg.GetVisionPort(),
		Interface:     cfg.GetVisionInterface(),
		RcvBuf:        cfg.GetRcvBuf(),
		IdleTimeout:   cfg.GetIdleTimeout(),
		PollInterval:  cfg.GetPollInterval(),
		StatsInterval: cfg.GetStatsInterval(),
		Stats:         vision.NewPacketStats(),
		Observer:      b.feed,
		SocketFactory: opts.SocketFactory,
	})

	if !opts.NoCommand {
		b.dispatcher, err = command.NewDispatcher(command.DispatcherConfig{
			Address:      cfg.GetSimAddress(),
			WriteTimeout: cfg.GetWriteTimeout(),
			Dialer:       opts.Dialer,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open command link: %w", err)
		}
	}
	return b, nil
}

// run serves until ctx ends. The tick loop has returned before the
// dispatcher is closed, so the stop packets are the last thing sent.
func (b *bridge) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	err := b.start(ctx, &wg)
	if err != nil {
		cancel()
	} else {
		<-ctx.Done()
	}
	wg.Wait()

	if stopErr := b.ingestor.Stop(); stopErr != nil {
		log.Printf("vision ingestor stop error: %v", stopErr)
	}
	if b.dispatcher != nil {
		if closeErr := b.dispatcher.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to stop robots cleanly: %w", closeErr))
		}
	}
	return err
}

func (b *bridge) start(ctx context.Context, wg *sync.WaitGroup) error {
	if b.opts.PCAPFile != "" {
		f, err := os.Open(b.opts.PCAPFile)
		if err != nil {
			return fmt.Errorf("failed to open PCAP file: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer f.Close()
			sum, err := b.ingestor.ReplayPCAP(ctx, f, vision.ReplayConfig{Port: b.cfg.GetVisionPort(), Realtime: b.opts.PCAPRealtime})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("PCAP replay failed: %v", err)
				return
			}
			log.Printf("PCAP replay: %d packets, %d undecodable, %d skipped in %v",
				sum.Packets, sum.DecodeErrors, sum.Skipped, sum.Elapsed)
		}()
	} else if err := b.ingestor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start vision ingestor: %w", err)
	}

	if addr := b.cfg.GetHealthListen(); addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen for health checks: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.feed.Serve(ctx, lis); err != nil {
				log.Printf("health server error: %v", err)
			}
		}()
	}

	if b.dispatcher != nil {
		loop := b.tickLoop(timeutil.RealClock{}.NewTicker(b.cfg.GetTickPeriod()))
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop.Run(ctx)
			log.Print("command tick loop terminated")
		}()
	}

	if addr := b.cfg.GetAdminListen(); addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.serveAdmin(ctx, addr)
		}()
	}
	return nil
}

// tickLoop dispatches the configured team's latched intents once per tick.
func (b *bridge) tickLoop(ticker timeutil.Ticker) *command.TickLoop {
	var failures uint64
	return &command.TickLoop{
		Ticker: ticker,
		Tick: func(_ context.Context, _ uint64) error {
			intents := b.latch.Intents(b.team)
			if len(intents) == 0 {
				return nil
			}
			_, err := b.dispatcher.Dispatch(b.team, intents)
			return err
		},
		OnError: func(n uint64, err error) {
			// Once per second at the default tick rate.
			if failures++; failures%60 == 1 {
				log.Printf("tick %d: %v (%d failed ticks)", n, err, failures)
			}
		},
	}
}

func (b *bridge) serveAdmin(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	debug := tsweb.Debugger(mux)
	debug.KV("Version", version.String())
	b.ingestor.AttachAdminRoutes(debug)
	if b.dispatcher != nil {
		b.dispatcher.AttachAdminRoutes(debug)
		b.latch.AttachAdminRoutes(debug)
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start admin server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down admin HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("admin server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("admin server force close error: %v", err)
		}
	}
	log.Printf("admin HTTP server routine stopped")
}
