// Command bridge joins the SSL-Vision multicast feed and relays manual
// robot commands to grSim, stopping every commanded robot on shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/banshee-data/sslbridge/internal/config"
	"github.com/banshee-data/sslbridge/internal/version"
)

var (
	configFile   = flag.String("config", "", "Path to a JSON bridge config (default: built-in defaults)")
	visionGroup  = flag.String("vision-group", config.DefaultVisionGroup, "Vision multicast group")
	visionPort   = flag.Int("vision-port", config.DefaultVisionPort, "Vision multicast port")
	visionIface  = flag.String("vision-interface", "", "Network interface to join the vision group on")
	simAddress   = flag.String("sim", config.DefaultSimAddress, "grSim command address (host:port)")
	team         = flag.String("team", config.DefaultTeam, "Team to command: blue or yellow")
	adminListen  = flag.String("admin-listen", "", "Listen address for the debug HTTP surface (empty disables)")
	healthListen = flag.String("health-listen", "", "Listen address for the gRPC health service (empty disables)")
	pcapFile     = flag.String("pcap", "", "Replay vision packets from a PCAP file instead of joining the feed")
	pcapRealtime = flag.Bool("pcap-realtime", false, "Replay the PCAP at capture pace")
	noCommand    = flag.Bool("no-command", false, "Only ingest vision; do not open the command link")
	showVersion  = flag.Bool("version", false, "Print version information and exit")
)

// loadConfig reads the config file, if any, and applies the flags that were
// set explicitly on the command line.
func loadConfig() (*config.BridgeConfig, error) {
	cfg := config.DefaultBridgeConfig()
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadBridgeConfig(*configFile); err != nil {
			return nil, err
		}
	}
	applyFlagOverrides(flag.CommandLine, cfg)
	return cfg, cfg.Validate()
}

func applyFlagOverrides(fs *flag.FlagSet, cfg *config.BridgeConfig) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "vision-group":
			cfg.VisionGroup = visionGroup
		case "vision-port":
			cfg.VisionPort = visionPort
		case "vision-interface":
			cfg.VisionInterface = visionIface
		case "sim":
			cfg.SimAddress = simAddress
		case "team":
			cfg.Team = team
		case "admin-listen":
			cfg.AdminListen = adminListen
		case "health-listen":
			cfg.HealthListen = healthListen
		}
	})
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Printf("starting %s", version.String())

	b, err := newBridge(cfg, bridgeOptions{
		PCAPFile:     *pcapFile,
		PCAPRealtime: *pcapRealtime,
		NoCommand:    *noCommand,
	})
	if err != nil {
		log.Fatalf("failed to start bridge: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := b.run(ctx); err != nil {
		log.Fatalf("bridge stopped with error: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}
