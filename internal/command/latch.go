package command

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/banshee-data/sslbridge/internal/wire"
)

// Latch holds the most recent intent per robot per team. The harness
// dispatches the latched intents every tick, so a robot keeps its last
// command until it is replaced or stopped.
type Latch struct {
	teams []wire.Team

	mu      sync.Mutex
	intents map[wire.Team]map[int]Intent
}

// NewLatch creates an empty Latch accepting intents for the given teams, or
// for both teams when none are given.
func NewLatch(teams ...wire.Team) *Latch {
	if len(teams) == 0 {
		teams = wire.Teams[:]
	}
	return &Latch{teams: teams, intents: make(map[wire.Team]map[int]Intent)}
}

// Teams returns the teams the latch accepts.
func (l *Latch) Teams() []wire.Team {
	return slices.Clone(l.teams)
}

// Set latches in for its robot, replacing any previous intent.
func (l *Latch) Set(team wire.Team, in Intent) error {
	if !slices.Contains(l.teams, team) {
		return fmt.Errorf("%w: team %s is not driven by this bridge", ErrInvalidIntent, team)
	}
	if err := in.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.intents[team]
	if m == nil {
		m = make(map[int]Intent)
		l.intents[team] = m
	}
	m[in.RobotID] = in
	return nil
}

// Stop latches a full stop for the robot. The stop keeps being sent.
func (l *Latch) Stop(team wire.Team, id int) error {
	return l.Set(team, StopIntent(id))
}

// StopAll latches a full stop for every robot the team has latched and
// returns their ids.
func (l *Latch) StopAll(team wire.Team) []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]int, 0, len(l.intents[team]))
	for id := range l.intents[team] {
		l.intents[team][id] = StopIntent(id)
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Intents returns the team's latched intents ordered by robot id.
func (l *Latch) Intents(team wire.Team) []Intent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Intent, 0, len(l.intents[team]))
	for _, in := range l.intents[team] {
		out = append(out, in)
	}
	slices.SortFunc(out, func(a, b Intent) int { return cmp.Compare(a.RobotID, b.RobotID) })
	return out
}
