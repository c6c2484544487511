package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultConfigPath is the path to the canonical bridge defaults file.
const DefaultConfigPath = "config/bridge.defaults.json"

// Built-in defaults used by the Get* accessors when a field is unset.
const (
	DefaultVisionGroup   = "224.5.23.2"
	DefaultVisionPort    = 10006
	DefaultIdleTimeout   = 5 * time.Second
	DefaultPollInterval  = 100 * time.Millisecond
	DefaultRcvBuf        = 4 * 1024 * 1024
	DefaultSimAddress    = "127.0.0.1:20011"
	DefaultTeam          = "blue"
	DefaultTickPeriod    = 16 * time.Millisecond
	DefaultStatsInterval = time.Minute
)

// BridgeConfig is the root configuration of the bridge. Every field is
// optional; unset fields fall back to the built-in defaults, so partial
// configs are safe.
type BridgeConfig struct {
	// Vision feed
	VisionGroup     *string `json:"vision_group,omitempty"`
	VisionPort      *int    `json:"vision_port,omitempty"`
	VisionInterface *string `json:"vision_interface,omitempty"` // empty joins on any interface
	IdleTimeout     *string `json:"idle_timeout,omitempty"`     // duration string like "5s"
	PollInterval    *string `json:"poll_interval,omitempty"`
	RcvBuf          *int    `json:"rcv_buf,omitempty"`

	// Command link
	SimAddress   *string `json:"sim_address,omitempty"`
	Team         *string `json:"team,omitempty"` // "blue" or "yellow"
	TickPeriod   *string `json:"tick_period,omitempty"`
	WriteTimeout *string `json:"write_timeout,omitempty"` // defaults to the tick period

	// Operations
	StatsInterval *string `json:"stats_interval,omitempty"`
	AdminListen   *string `json:"admin_listen,omitempty"`  // empty disables the debug HTTP surface
	HealthListen  *string `json:"health_listen,omitempty"` // empty disables the gRPC health service
}

func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyBridgeConfig returns a BridgeConfig with all fields set to nil.
func EmptyBridgeConfig() *BridgeConfig {
	return &BridgeConfig{}
}

// DefaultBridgeConfig returns a config with every field populated from the
// built-in defaults.
func DefaultBridgeConfig() *BridgeConfig {
	return &BridgeConfig{
		VisionGroup:     ptrString(DefaultVisionGroup),
		VisionPort:      ptrInt(DefaultVisionPort),
		VisionInterface: ptrString(""),
		IdleTimeout:     ptrString(DefaultIdleTimeout.String()),
		PollInterval:    ptrString(DefaultPollInterval.String()),
		RcvBuf:          ptrInt(DefaultRcvBuf),
		SimAddress:      ptrString(DefaultSimAddress),
		Team:            ptrString(DefaultTeam),
		TickPeriod:      ptrString(DefaultTickPeriod.String()),
		WriteTimeout:    ptrString(DefaultTickPeriod.String()),
		StatsInterval:   ptrString(DefaultStatsInterval.String()),
		AdminListen:     ptrString(""),
		HealthListen:    ptrString(""),
	}
}

// LoadBridgeConfig loads a BridgeConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadBridgeConfig(path string) (*BridgeConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyBridgeConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file cannot
// be loaded, intended for test setup.
func MustLoadDefaultConfig() *BridgeConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadBridgeConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *BridgeConfig) Validate() error {
	if c.VisionGroup != nil {
		ip := net.ParseIP(*c.VisionGroup)
		if ip == nil || !ip.IsMulticast() {
			return fmt.Errorf("vision_group must be a multicast IP address, got %q", *c.VisionGroup)
		}
	}

	if c.VisionPort != nil {
		if *c.VisionPort < 1 || *c.VisionPort > 65535 {
			return fmt.Errorf("vision_port must be between 1 and 65535, got %d", *c.VisionPort)
		}
	}

	if c.RcvBuf != nil && *c.RcvBuf < 0 {
		return fmt.Errorf("rcv_buf must be non-negative, got %d", *c.RcvBuf)
	}

	if c.SimAddress != nil {
		if _, _, err := net.SplitHostPort(*c.SimAddress); err != nil {
			return fmt.Errorf("invalid sim_address '%s': %w", *c.SimAddress, err)
		}
	}

	if c.Team != nil {
		switch strings.ToLower(*c.Team) {
		case "blue", "yellow":
		default:
			return fmt.Errorf("team must be \"blue\" or \"yellow\", got %q", *c.Team)
		}
	}

	durations := []struct {
		name  string
		value *string
	}{
		{"idle_timeout", c.IdleTimeout},
		{"poll_interval", c.PollInterval},
		{"tick_period", c.TickPeriod},
		{"write_timeout", c.WriteTimeout},
		{"stats_interval", c.StatsInterval},
	}
	for _, d := range durations {
		if d.value == nil || *d.value == "" {
			continue
		}
		v, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.value, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, *d.value)
		}
	}

	return nil
}

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetVisionGroup returns the multicast group of the vision feed.
func (c *BridgeConfig) GetVisionGroup() string {
	if c.VisionGroup == nil || *c.VisionGroup == "" {
		return DefaultVisionGroup
	}
	return *c.VisionGroup
}

// GetVisionPort returns the UDP port of the vision feed.
func (c *BridgeConfig) GetVisionPort() int {
	if c.VisionPort == nil {
		return DefaultVisionPort
	}
	return *c.VisionPort
}

// GetVisionInterface returns the interface name to join on, or "" for any.
func (c *BridgeConfig) GetVisionInterface() string {
	if c.VisionInterface == nil {
		return ""
	}
	return *c.VisionInterface
}

func (c *BridgeConfig) GetIdleTimeout() time.Duration {
	return parseDurationOr(c.IdleTimeout, DefaultIdleTimeout)
}

func (c *BridgeConfig) GetPollInterval() time.Duration {
	return parseDurationOr(c.PollInterval, DefaultPollInterval)
}

// GetRcvBuf returns the requested OS receive buffer size in bytes.
func (c *BridgeConfig) GetRcvBuf() int {
	if c.RcvBuf == nil {
		return DefaultRcvBuf
	}
	return *c.RcvBuf
}

// GetSimAddress returns the simulator command endpoint.
func (c *BridgeConfig) GetSimAddress() string {
	if c.SimAddress == nil || *c.SimAddress == "" {
		return DefaultSimAddress
	}
	return *c.SimAddress
}

// GetTeam returns the lower-cased team colour.
func (c *BridgeConfig) GetTeam() string {
	if c.Team == nil || *c.Team == "" {
		return DefaultTeam
	}
	return strings.ToLower(*c.Team)
}

func (c *BridgeConfig) GetTickPeriod() time.Duration {
	return parseDurationOr(c.TickPeriod, DefaultTickPeriod)
}

// GetWriteTimeout returns the per-send deadline, defaulting to one tick.
func (c *BridgeConfig) GetWriteTimeout() time.Duration {
	return parseDurationOr(c.WriteTimeout, c.GetTickPeriod())
}

func (c *BridgeConfig) GetStatsInterval() time.Duration {
	return parseDurationOr(c.StatsInterval, DefaultStatsInterval)
}

func (c *BridgeConfig) GetAdminListen() string {
	if c.AdminListen == nil {
		return ""
	}
	return *c.AdminListen
}

func (c *BridgeConfig) GetHealthListen() string {
	if c.HealthListen == nil {
		return ""
	}
	return *c.HealthListen
}
