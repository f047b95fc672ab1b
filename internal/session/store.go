package session

import (
	"errors"
	"sync"
	"time"

	"github.com/mediswift/intake-platform/pkg/logging"
)

var (
	// ErrExists indicates a session is already live for the identity.
	ErrExists = errors.New("session: already exists")
	// ErrNotFound indicates no live session for the identity.
	ErrNotFound = errors.New("session: not found")
)

// Store owns every live Session and the residual ended markers. Webhook
// deliveries, flush timers, and expiry timers all race against each other, so
// every mutation happens under one lock and callers re-validate state after
// any external call rather than assuming it survived.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ended    map[string]*time.Timer
	logger   *logging.Logger
}

// NewStore creates an empty session store.
func NewStore(logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		sessions: make(map[string]*Session),
		ended:    make(map[string]*time.Timer),
		logger:   logger,
	}
}

// Create registers a fresh session for the identity.
func (st *Store) Create(sess *Session) error {
	if sess == nil || sess.Identity == "" {
		return errors.New("session: identity required")
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[sess.Identity]; ok {
		return ErrExists
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	if sess.Step == "" {
		sess.Step = StepActive
	}
	sess.Behavior = Behavior{
		Monitoring:          true,
		AggregationEnabled:  true,
		MonitoringStartedAt: time.Now(),
	}
	st.sessions[sess.Identity] = sess
	return nil
}

// Snapshot returns a deep copy of the session, safe to read without the lock.
func (st *Store) Snapshot(identity string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[identity]
	if !ok {
		return nil, false
	}
	return sess.clone(), true
}

// Update applies fn to the live session under the store lock. It returns false
// when the session no longer exists, which callers treat as a torn-down
// session and abandon their work.
func (st *Store) Update(identity string, fn func(*Session)) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[identity]
	if !ok {
		return false
	}
	fn(sess)
	return true
}

// AppendTurns appends user/assistant turns, preserving the invariant that the
// transcript holds at most one system turn and only at position zero.
func (st *Store) AppendTurns(identity string, turns ...Turn) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[identity]
	if !ok {
		return ErrNotFound
	}
	for _, turn := range turns {
		if turn.Role == RoleSystem {
			return errors.New("session: system turns are seeded, not appended")
		}
		sess.Transcript = append(sess.Transcript, turn)
	}
	return nil
}

// SeedSystemPrompt installs or replaces the single leading system turn.
func (st *Store) SeedSystemPrompt(identity, content string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[identity]
	if !ok {
		return ErrNotFound
	}
	if sess.HasSystemTurn() {
		sess.Transcript[0].Content = content
		return nil
	}
	sess.Transcript = append([]Turn{{Role: RoleSystem, Content: content}}, sess.Transcript...)
	return nil
}

// Reset wipes the transcript, buffer, and behavior counters for a language
// switch. The session keeps its identity, channel, and start time; the step is
// set by the caller because the reset behaves differently mid-intake.
func (st *Store) Reset(identity, language string, step Step) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[identity]
	if !ok {
		return ErrNotFound
	}
	sess.Language = language
	sess.Step = step
	sess.Transcript = nil
	sess.buffer = nil
	if sess.flushTimer != nil {
		sess.flushTimer.Stop()
		sess.flushTimer = nil
	}
	sess.Behavior = Behavior{
		Monitoring:          true,
		AggregationEnabled:  true,
		MonitoringStartedAt: time.Now(),
	}
	return nil
}

// AppendFragment buffers one raw message fragment for later aggregation.
func (st *Store) AppendFragment(identity, text string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[identity]
	if !ok {
		return ErrNotFound
	}
	sess.buffer = append(sess.buffer, text)
	return nil
}

// SwapBuffer atomically takes the buffered fragments and clears the buffer, so
// a flush racing a new inbound fragment never loses or duplicates anything.
// The pending flush timer, if any, is cancelled.
func (st *Store) SwapBuffer(identity string) []string {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[identity]
	if !ok {
		return nil
	}
	out := sess.buffer
	sess.buffer = nil
	if sess.flushTimer != nil {
		sess.flushTimer.Stop()
		sess.flushTimer = nil
	}
	return out
}

// ScheduleFlush (re)arms the inactivity flush timer, cancelling any previous
// one first so a batch can only ever fire a single flush.
func (st *Store) ScheduleFlush(identity string, delay time.Duration, fire func()) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[identity]
	if !ok {
		return ErrNotFound
	}
	if sess.flushTimer != nil {
		sess.flushTimer.Stop()
	}
	sess.flushTimer = time.AfterFunc(delay, fire)
	return nil
}

// BeginEnding atomically moves the session to Ended for routing purposes and
// returns a snapshot for summarization. The second and every later call
// returns false, which makes summarization exactly-once even when the expiry
// timer races an explicit end.
func (st *Store) BeginEnding(identity string, markerTTL time.Duration) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[identity]
	if !ok || sess.Step == StepEnded {
		return nil, false
	}
	sess.Step = StepEnded
	st.markEndedLocked(identity, markerTTL)
	return sess.clone(), true
}

// Delete removes all in-memory state for the identity. Only the lifecycle
// manager calls this.
func (st *Store) Delete(identity string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[identity]
	if !ok {
		return
	}
	if sess.flushTimer != nil {
		sess.flushTimer.Stop()
	}
	delete(st.sessions, identity)
}

// IsEnded reports whether the residual ended marker is still set for the
// identity. While set, inbound messages are silently dropped.
func (st *Store) IsEnded(identity string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.ended[identity]
	return ok
}

// ClearEnded drops the ended marker early. Used by tests and shutdown.
func (st *Store) ClearEnded(identity string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if t, ok := st.ended[identity]; ok {
		t.Stop()
		delete(st.ended, identity)
	}
}

func (st *Store) markEndedLocked(identity string, ttl time.Duration) {
	if t, ok := st.ended[identity]; ok {
		t.Stop()
	}
	st.ended[identity] = time.AfterFunc(ttl, func() {
		st.mu.Lock()
		delete(st.ended, identity)
		st.mu.Unlock()
		st.logger.Debug("ended marker cleared", "identity", identity)
	})
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Close stops every timer. Sessions are not summarized; this is process
// shutdown only.
func (st *Store) Close() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, sess := range st.sessions {
		if sess.flushTimer != nil {
			sess.flushTimer.Stop()
		}
	}
	for id, t := range st.ended {
		t.Stop()
		delete(st.ended, id)
	}
}
