package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sslbridge/internal/wire"
)

func TestLatch(t *testing.T) {
	l := NewLatch()
	assert.Empty(t, l.Intents(wire.TeamBlue))

	require.NoError(t, l.Set(wire.TeamBlue, Intent{RobotID: 4, ForwardVelocity: 1}))
	require.NoError(t, l.Set(wire.TeamBlue, Intent{RobotID: 1, AngularVelocity: 2}))
	require.NoError(t, l.Set(wire.TeamBlue, Intent{RobotID: 4, ForwardVelocity: 3}))
	require.NoError(t, l.Set(wire.TeamYellow, Intent{RobotID: 0, KickSpeedZ: 2}))

	assert.Equal(t, []Intent{
		{RobotID: 1, AngularVelocity: 2},
		{RobotID: 4, ForwardVelocity: 3},
	}, l.Intents(wire.TeamBlue), "latest intent per robot, ordered by id")

	require.NoError(t, l.Stop(wire.TeamBlue, 4))
	assert.Equal(t, StopIntent(4), l.Intents(wire.TeamBlue)[1])

	assert.Equal(t, []int{0}, l.StopAll(wire.TeamYellow))
	assert.Equal(t, []Intent{StopIntent(0)}, l.Intents(wire.TeamYellow))
}

func TestLatch_RejectsInvalidIntent(t *testing.T) {
	l := NewLatch()
	assert.ErrorIs(t, l.Set(wire.TeamBlue, Intent{RobotID: 1, KickSpeedX: -2}), ErrInvalidIntent)
	assert.ErrorIs(t, l.Stop(wire.TeamBlue, -1), ErrInvalidIntent)
	assert.Empty(t, l.Intents(wire.TeamBlue))
}

func TestIntent(t *testing.T) {
	assert.True(t, Intent{KickSpeedZ: 0.5}.IsChip())
	assert.False(t, Intent{KickSpeedX: 5}.IsChip())
	assert.Equal(t, Intent{RobotID: 3}, StopIntent(3))
	assert.NoError(t, StopIntent(3).Validate())

	rc, err := Intent{RobotID: 2, ForwardVelocity: 0.1, LateralVelocity: -0.2, AngularVelocity: 1, KickSpeedX: 3, KickSpeedZ: 1, DribblerOn: true}.toWire()
	require.NoError(t, err)
	// float32 is the wire's precision.
	assert.Equal(t, wire.RobotCommand{
		ID: 2, KickSpeedX: 3, KickSpeedZ: 1,
		VelTangent: float32(0.1), VelNormal: float32(-0.2), VelAngular: 1,
		Spinner: true,
	}, rc)
	assert.False(t, rc.WheelsSpeed)
}

func TestLatch_RestrictedToTeams(t *testing.T) {
	l := NewLatch(wire.TeamYellow)
	assert.Equal(t, []wire.Team{wire.TeamYellow}, l.Teams())
	assert.ErrorIs(t, l.Set(wire.TeamBlue, Intent{RobotID: 1}), ErrInvalidIntent)
	require.NoError(t, l.Set(wire.TeamYellow, Intent{RobotID: 1}))
	assert.Empty(t, l.Intents(wire.TeamBlue))
}
