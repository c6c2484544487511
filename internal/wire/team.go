package wire

import (
	"fmt"
	"strings"
)

// Team is the colour flag carried by every command packet.
type Team int

const (
	TeamBlue Team = iota
	TeamYellow
)

// Teams lists both colours in a stable order.
var Teams = [...]Team{TeamBlue, TeamYellow}

func (t Team) String() string {
	switch t {
	case TeamBlue:
		return "blue"
	case TeamYellow:
		return "yellow"
	}
	return fmt.Sprintf("Team(%d)", int(t))
}

// IsYellow reports the value of the isteamyellow wire flag.
func (t Team) IsYellow() bool { return t == TeamYellow }

// ParseTeam accepts "blue" or "yellow" in any case.
func ParseTeam(s string) (Team, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blue":
		return TeamBlue, nil
	case "yellow":
		return TeamYellow, nil
	}
	return 0, fmt.Errorf("unknown team %q", s)
}
