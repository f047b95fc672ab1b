package conversation

import (
	"time"
	"unicode/utf8"

	"github.com/mediswift/intake-platform/internal/session"
)

// Classifier watches each identity's messaging style during an initial
// monitoring window and decides, once, whether short-message aggregation stays
// on for the remainder of the session.
type Classifier struct {
	store     *session.Store
	threshold int
	window    time.Duration
	now       func() time.Time
}

// NewClassifier builds a classifier over the shared session store. threshold
// is the short-message character cutoff, window the monitoring duration.
func NewClassifier(store *session.Store, threshold int, window time.Duration) *Classifier {
	if store == nil {
		panic("conversation: classifier requires a session store")
	}
	return &Classifier{
		store:     store,
		threshold: threshold,
		window:    window,
		now:       time.Now,
	}
}

// Observe records one inbound message against the identity's counters. It is
// called before any aggregation decision. When the monitoring window has
// elapsed it makes the one-time call: aggregation is disabled permanently if
// long messages outnumber short ones, otherwise it stays enabled.
func (c *Classifier) Observe(identity, text string) {
	short := utf8.RuneCountInString(text) < c.threshold
	now := c.now()
	c.store.Update(identity, func(s *session.Session) {
		if !s.Behavior.Monitoring {
			return
		}
		if short {
			s.Behavior.ShortCount++
		} else {
			s.Behavior.LongCount++
		}
		if now.Sub(s.Behavior.MonitoringStartedAt) >= c.window {
			s.Behavior.Monitoring = false
			if s.Behavior.LongCount > s.Behavior.ShortCount {
				s.Behavior.AggregationEnabled = false
			}
		}
	})
}

// AggregationEnabled reports whether the identity still batches short
// messages.
func (c *Classifier) AggregationEnabled(identity string) bool {
	snap, ok := c.store.Snapshot(identity)
	if !ok {
		return false
	}
	return snap.Behavior.AggregationEnabled
}
