package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultBridgeConfig(t *testing.T) {
	cfg := DefaultBridgeConfig()

	if cfg.VisionGroup == nil || *cfg.VisionGroup != "224.5.23.2" {
		t.Errorf("Expected VisionGroup 224.5.23.2, got %v", cfg.VisionGroup)
	}
	if cfg.VisionPort == nil || *cfg.VisionPort != 10006 {
		t.Errorf("Expected VisionPort 10006, got %v", cfg.VisionPort)
	}
	if cfg.SimAddress == nil || *cfg.SimAddress != "127.0.0.1:20011" {
		t.Errorf("Expected SimAddress 127.0.0.1:20011, got %v", cfg.SimAddress)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate, got %v", err)
	}

	if cfg.GetIdleTimeout() != 5*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 5s", cfg.GetIdleTimeout())
	}
	if cfg.GetTickPeriod() != 16*time.Millisecond {
		t.Errorf("GetTickPeriod() = %v, want 16ms", cfg.GetTickPeriod())
	}
	if cfg.GetTeam() != "blue" {
		t.Errorf("GetTeam() = %q, want blue", cfg.GetTeam())
	}
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	fromFile := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultBridgeConfig(), fromFile); diff != "" {
		t.Errorf("%s drifted from DefaultBridgeConfig (-builtin +file):\n%s", DefaultConfigPath, diff)
	}
}

func TestEmptyConfigFallsBackToDefaults(t *testing.T) {
	cfg := EmptyBridgeConfig()

	if got := cfg.GetVisionGroup(); got != DefaultVisionGroup {
		t.Errorf("GetVisionGroup() = %q, want %q", got, DefaultVisionGroup)
	}
	if got := cfg.GetVisionPort(); got != DefaultVisionPort {
		t.Errorf("GetVisionPort() = %d, want %d", got, DefaultVisionPort)
	}
	if got := cfg.GetPollInterval(); got != DefaultPollInterval {
		t.Errorf("GetPollInterval() = %v, want %v", got, DefaultPollInterval)
	}
	if got := cfg.GetRcvBuf(); got != DefaultRcvBuf {
		t.Errorf("GetRcvBuf() = %d, want %d", got, DefaultRcvBuf)
	}
	if got := cfg.GetSimAddress(); got != DefaultSimAddress {
		t.Errorf("GetSimAddress() = %q, want %q", got, DefaultSimAddress)
	}
	if got := cfg.GetWriteTimeout(); got != DefaultTickPeriod {
		t.Errorf("GetWriteTimeout() = %v, want tick period %v", got, DefaultTickPeriod)
	}
	if got := cfg.GetStatsInterval(); got != DefaultStatsInterval {
		t.Errorf("GetStatsInterval() = %v, want %v", got, DefaultStatsInterval)
	}
	if cfg.GetAdminListen() != "" || cfg.GetHealthListen() != "" || cfg.GetVisionInterface() != "" {
		t.Error("optional listeners and interface should default to empty")
	}
}

func TestWriteTimeoutFollowsTickPeriod(t *testing.T) {
	cfg := EmptyBridgeConfig()
	cfg.TickPeriod = ptrString("10ms")
	if got := cfg.GetWriteTimeout(); got != 10*time.Millisecond {
		t.Errorf("GetWriteTimeout() = %v, want 10ms", got)
	}
}

func TestLoadBridgeConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bridge.json")

	testJSON := `{
  "vision_port": 10020,
  "idle_timeout": "2s",
  "sim_address": "192.168.1.10:20011",
  "team": "Yellow"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadBridgeConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetVisionPort() != 10020 {
		t.Errorf("GetVisionPort() = %d, want 10020", cfg.GetVisionPort())
	}
	if cfg.GetIdleTimeout() != 2*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 2s", cfg.GetIdleTimeout())
	}
	if cfg.GetSimAddress() != "192.168.1.10:20011" {
		t.Errorf("GetSimAddress() = %q", cfg.GetSimAddress())
	}
	if cfg.GetTeam() != "yellow" {
		t.Errorf("GetTeam() = %q, want yellow", cfg.GetTeam())
	}
	// Omitted fields keep their defaults.
	if cfg.GetVisionGroup() != DefaultVisionGroup {
		t.Errorf("GetVisionGroup() = %q, want default", cfg.GetVisionGroup())
	}
}

func TestLoadBridgeConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"wrong extension", write("bridge.yaml", "{}"), ".json extension"},
		{"missing file", filepath.Join(tmpDir, "missing.json"), "failed to stat"},
		{"bad json", write("bad.json", "{"), "failed to parse"},
		{"unicast group", write("group.json", `{"vision_group": "10.0.0.1"}`), "multicast"},
		{"port out of range", write("port.json", `{"vision_port": 70000}`), "vision_port"},
		{"bad team", write("team.json", `{"team": "red"}`), "team"},
		{"bad duration", write("dur.json", `{"idle_timeout": "soon"}`), "idle_timeout"},
		{"negative duration", write("neg.json", `{"tick_period": "-1ms"}`), "tick_period"},
		{"bad sim address", write("sim.json", `{"sim_address": "localhost"}`), "sim_address"},
		{"negative rcv_buf", write("buf.json", `{"rcv_buf": -1}`), "rcv_buf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBridgeConfig(tt.path)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadBridgeConfig_TooLarge(t *testing.T) {
	p := filepath.Join(t.TempDir(), "big.json")
	big := make([]byte, 1024*1024+1)
	for i := range big {
		big[i] = ' '
	}
	if err := os.WriteFile(p, big, 0644); err != nil {
		t.Fatalf("Failed to write big config: %v", err)
	}
	if _, err := LoadBridgeConfig(p); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected too large error, got %v", err)
	}
}
