package conversation

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mediswift/intake-platform/internal/session"
	"github.com/mediswift/intake-platform/pkg/logging"
)

// FlushFunc receives the joined batch for an identity when the aggregator
// decides it is complete.
type FlushFunc func(identity, text string) error

// Aggregator batches rapid short messages into one logical turn. Fragments
// accumulate in the session's buffer; a burst of short messages is flushed
// after an inactivity delay, while a long message flushes the whole batch
// immediately.
type Aggregator struct {
	store     *session.Store
	threshold int
	delay     time.Duration
	flush     FlushFunc
	logger    *logging.Logger
}

// NewAggregator builds an aggregator over the shared session store. flush is
// invoked with the joined batch exactly once per buffered batch.
func NewAggregator(store *session.Store, threshold int, delay time.Duration, flush FlushFunc, logger *logging.Logger) *Aggregator {
	if store == nil {
		panic("conversation: aggregator requires a session store")
	}
	if flush == nil {
		panic("conversation: aggregator requires a flush func")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Aggregator{
		store:     store,
		threshold: threshold,
		delay:     delay,
		flush:     flush,
		logger:    logger,
	}
}

// Ingest appends text to the identity's buffer and either arms the inactivity
// timer (short fragment) or flushes immediately (long fragment). It reports
// whether the flush happened synchronously, and any error that flush hit.
func (a *Aggregator) Ingest(identity, text string) (bool, error) {
	if err := a.store.AppendFragment(identity, text); err != nil {
		// Session torn down between routing and ingest; nothing to batch.
		a.logger.Debug("aggregator: dropping fragment for dead session", "identity", identity)
		return false, nil
	}
	if utf8.RuneCountInString(text) < a.threshold {
		err := a.store.ScheduleFlush(identity, a.delay, func() {
			if err := a.Flush(identity); err != nil {
				a.logger.Error("aggregator: timed flush failed", "identity", identity, "error", err)
			}
		})
		if err != nil {
			return false, nil
		}
		return false, nil
	}
	return true, a.Flush(identity)
}

// Flush atomically takes the buffered fragments, joins them with single
// spaces, and forwards the result. The swap clears the buffer and cancels the
// pending timer before the callback runs, so a racing fragment lands in the
// next batch rather than being lost or doubled.
func (a *Aggregator) Flush(identity string) error {
	fragments := a.store.SwapBuffer(identity)
	if len(fragments) == 0 {
		return nil
	}
	return a.flush(identity, strings.Join(fragments, " "))
}
