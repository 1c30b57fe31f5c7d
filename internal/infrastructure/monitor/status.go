package monitor

import "time"

type ComponentStatus struct {
	Online   bool   `json:"online"`
	Critical bool   `json:"critical"`
	Error    string `json:"error,omitempty"`
}

type Status struct {
	Components map[string]ComponentStatus `json:"components"`
	Outbox     bool                       `json:"outbox"`
	OutboxSize int                        `json:"outbox_size"`
	LastCheck  time.Time                  `json:"last_check"`
}

// Healthy reports whether every critical component answered the last probe.
func (s Status) Healthy() bool {
	for _, c := range s.Components {
		if c.Critical && !c.Online {
			return false
		}
	}
	return true
}
