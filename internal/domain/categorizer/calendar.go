package categorizer

import "time"

// BusinessEvent is a period known to involve business spending, such as a
// conference trip
type BusinessEvent struct {
	Label    string    `yaml:"label" json:"label"`
	Start    time.Time `yaml:"start" json:"start"`
	End      time.Time `yaml:"end" json:"end"`
	Strength float64   `yaml:"strength" json:"strength"` // 0 means 1
}

// Calendar is a BusinessContext backed by a fixed list of events
type Calendar struct {
	events []BusinessEvent
}

// NewCalendar creates a calendar. Events with End before Start are ignored.
func NewCalendar(events []BusinessEvent) *Calendar {
	kept := make([]BusinessEvent, 0, len(events))
	for _, e := range events {
		if e.End.Before(e.Start) {
			continue
		}
		if e.Strength <= 0 {
			e.Strength = 1
		}
		kept = append(kept, e)
	}
	return &Calendar{events: kept}
}

// Strength returns the strongest event covering at (inclusive bounds)
func (c *Calendar) Strength(at time.Time) (float64, bool) {
	best, found := 0.0, false
	for _, e := range c.events {
		if at.Before(e.Start) || at.After(e.End) {
			continue
		}
		found = true
		best = max(best, e.Strength)
	}
	return best, found
}

// Len returns the number of usable events
func (c *Calendar) Len() int {
	return len(c.events)
}
