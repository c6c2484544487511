package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sslbridge/internal/config"
)

func TestFlagDefaultsMatchConfigDefaults(t *testing.T) {
	cfg := config.DefaultBridgeConfig()
	assert.Equal(t, cfg.GetVisionGroup(), *visionGroup)
	assert.Equal(t, cfg.GetVisionPort(), *visionPort)
	assert.Equal(t, cfg.GetSimAddress(), *simAddress)
	assert.Equal(t, cfg.GetTeam(), *team)
}

func TestApplyFlagOverrides(t *testing.T) {
	fs := flag.NewFlagSet("bridge", flag.ContinueOnError)
	fs.StringVar(team, "team", config.DefaultTeam, "")
	fs.IntVar(visionPort, "vision-port", config.DefaultVisionPort, "")
	fs.StringVar(simAddress, "sim", config.DefaultSimAddress, "")
	t.Cleanup(func() {
		*team = config.DefaultTeam
		*visionPort = config.DefaultVisionPort
		*simAddress = config.DefaultSimAddress
	})
	require.NoError(t, fs.Parse([]string{"-team", "yellow", "-vision-port", "10020"}))

	cfg := config.EmptyBridgeConfig()
	cfg.SimAddress = ptr("10.0.0.2:20011")
	applyFlagOverrides(fs, cfg)

	assert.Equal(t, "yellow", cfg.GetTeam())
	assert.Equal(t, 10020, cfg.GetVisionPort())
	assert.Equal(t, "10.0.0.2:20011", cfg.GetSimAddress(), "unset flags leave the file's value alone")
	assert.NoError(t, cfg.Validate())
}

func ptr[T any](v T) *T { return &v }
