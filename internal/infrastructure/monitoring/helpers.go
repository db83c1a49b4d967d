package monitoring

import (
	"time"

	"github.com/GriffinCanCode/slowtty/internal/pump"
)

// Snapshot is the body of GET /status.
type Snapshot struct {
	Session     string       `json:"session"`
	StartedAt   time.Time    `json:"started_at"`
	Uptime      string       `json:"uptime"`
	Pid         int          `json:"pid,omitempty"`
	Command     []string     `json:"command,omitempty"`
	ChildActive bool         `json:"child_active"`
	Directions  []pump.Stats `json:"directions"`
}

// SnapshotFunc produces the current status.
type SnapshotFunc func() Snapshot

// Direction returns the stats for the named direction.
func (s Snapshot) Direction(name string) (pump.Stats, bool) {
	for _, d := range s.Directions {
		if d.Name == name {
			return d, true
		}
	}
	return pump.Stats{}, false
}
