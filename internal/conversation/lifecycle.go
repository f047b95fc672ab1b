package conversation

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/mediswift/intake-platform/internal/observability/metrics"
	"github.com/mediswift/intake-platform/internal/session"
	"github.com/mediswift/intake-platform/pkg/logging"
)

var lifecycleTracer = otel.Tracer("mediswift.internal.conversation.lifecycle")

// LifecycleManager owns session expiry: it arms one timer per session and, on
// fire, runs the exactly-once teardown (summarize, persist, closing message,
// delete). It is the only component that deletes sessions.
type LifecycleManager struct {
	store     *session.Store
	archive   *session.Archive
	dialogue  DialogueClient
	registry  PatientRegistry
	summaries SummaryStore
	senders   map[string]Sender
	metrics   *metrics.IntakeMetrics
	logger    *logging.Logger

	duration  time.Duration
	markerTTL time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewLifecycleManager builds the manager. dialogue and senders are required;
// archive, registry, summaries, and metrics degrade to log-and-skip when nil.
func NewLifecycleManager(store *session.Store, archive *session.Archive, dialogue DialogueClient, registry PatientRegistry, summaries SummaryStore, senders map[string]Sender, m *metrics.IntakeMetrics, logger *logging.Logger, duration, markerTTL time.Duration) *LifecycleManager {
	if store == nil {
		panic("conversation: lifecycle requires a session store")
	}
	if dialogue == nil {
		panic("conversation: lifecycle requires a dialogue client")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LifecycleManager{
		store:     store,
		archive:   archive,
		dialogue:  dialogue,
		registry:  registry,
		summaries: summaries,
		senders:   senders,
		metrics:   m,
		logger:    logger,
		duration:  duration,
		markerTTL: markerTTL,
		timers:    make(map[string]*time.Timer),
	}
}

// Arm starts (or restarts) the expiry timer for a session.
func (m *LifecycleManager) Arm(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[identity]; ok {
		t.Stop()
	}
	m.timers[identity] = time.AfterFunc(m.duration, func() {
		m.End(context.Background(), identity)
	})
}

// End runs the teardown for a session. It is safe to call from the expiry
// timer and from an explicit trigger concurrently: only the first caller past
// BeginEnding does any work, every later call is a no-op.
func (m *LifecycleManager) End(ctx context.Context, identity string) {
	ctx, span := lifecycleTracer.Start(ctx, "LifecycleManager.End")
	defer span.End()

	snap, ok := m.store.BeginEnding(identity, m.markerTTL)
	if !ok {
		return
	}
	m.dropTimer(identity)
	m.logger.Info("session ending", "identity", identity, "turns", len(snap.Transcript))

	status := m.summarizeAndStore(ctx, identity, snap)

	// The closing message goes out no matter what happened above; the user
	// is never left hanging.
	m.deliver(ctx, snap.Channel, identity, ClosingMessage(snap.Language))

	m.store.Delete(identity)
	if m.archive != nil {
		if err := m.archive.Delete(ctx, identity); err != nil {
			m.logger.Warn("archive cleanup failed", "identity", identity, "error", err)
		}
	}
	if m.metrics != nil {
		m.metrics.ObserveSessionEnded(status)
	}
	m.logger.Info("session ended", "identity", identity, "status", status)
}

// summarizeAndStore runs the two-pass summarization and persists the result.
// Every failure is logged and swallowed; the returned status is the metrics
// label.
func (m *LifecycleManager) summarizeAndStore(ctx context.Context, identity string, snap *session.Session) string {
	dialogueTurns := StripSystemTurns(snap.Transcript)
	if len(dialogueTurns) == 0 {
		return "empty"
	}

	turns := append([]session.Turn{{Role: session.RoleSystem, Content: SummarizationInstruction}}, dialogueTurns...)
	start := time.Now()
	summary, err := m.dialogue.Summarize(ctx, turns)
	if m.metrics != nil {
		m.metrics.ObserveDialogueLatency("summarize", time.Since(start).Seconds())
	}
	if err != nil {
		m.logger.Error("summarization failed", "identity", identity, "error", err)
		return "summary_failed"
	}

	display, err := m.dialogue.ConvertSummaryToDisplay(ctx, summary)
	if err != nil {
		m.logger.Warn("display conversion failed, storing raw summary", "identity", identity, "error", err)
		display = summary
	}

	if m.registry == nil || m.summaries == nil {
		return "summarized"
	}
	patient, err := m.registry.ResolvePatient(ctx, identity)
	if err != nil || patient == nil {
		m.logger.Warn("no resolvable patient record for summary", "identity", identity, "error", err)
		return "unlinked"
	}
	if err := m.summaries.StoreSummary(ctx, patient.ID, display); err != nil {
		m.logger.Error("summary persistence failed", "identity", identity, "patient_id", patient.ID, "error", err)
		return "store_failed"
	}
	return "summarized"
}

func (m *LifecycleManager) deliver(ctx context.Context, channel, identity, text string) {
	sender, ok := m.senders[channel]
	if !ok {
		m.logger.Error("no sender for channel at session end", "channel", channel, "identity", identity)
		return
	}
	if err := sender.Send(ctx, identity, text, ""); err != nil {
		m.logger.Error("closing message delivery failed", "channel", channel, "identity", identity, "error", err)
	}
}

func (m *LifecycleManager) dropTimer(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[identity]; ok {
		t.Stop()
		delete(m.timers, identity)
	}
}

// Close stops every armed timer. Sessions are not summarized; this is process
// shutdown only.
func (m *LifecycleManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}
