package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/mediswift/intake-platform/internal/observability/metrics"
	"github.com/mediswift/intake-platform/internal/session"
	"github.com/mediswift/intake-platform/pkg/logging"
)

var engineTracer = otel.Tracer("mediswift.internal.conversation.engine")

// EngineDeps bundles the collaborators the engine drives. Store, Membership,
// Dialogue, and Senders are required; the rest degrade gracefully when nil.
type EngineDeps struct {
	Store      *session.Store
	Archive    *session.Archive
	Membership Membership
	Directory  Directory
	Registry   PatientRegistry
	Dialogue   DialogueClient
	Audio      AudioResolver
	Senders    map[string]Sender
	Lifecycle  *LifecycleManager
	Metrics    *metrics.IntakeMetrics
	Logger     *logging.Logger
}

// EngineConfig holds the tuning knobs for aggregation and language defaults.
type EngineConfig struct {
	DefaultLanguage       string
	ShortMessageThreshold int
	InactivityFlushDelay  time.Duration
	MonitoringWindow      time.Duration
}

// Engine routes every inbound message: eligibility, intake steps, language
// switches, audio resolution, aggregation, and finally the dialogue turn.
type Engine struct {
	store      *session.Store
	archive    *session.Archive
	membership Membership
	directory  Directory
	registry   PatientRegistry
	dialogue   DialogueClient
	audio      AudioResolver
	senders    map[string]Sender
	lifecycle  *LifecycleManager
	classifier *Classifier
	aggregator *Aggregator
	metrics    *metrics.IntakeMetrics
	logger     *logging.Logger
	cfg        EngineConfig
}

// NewEngine wires the engine and its internal classifier/aggregator.
func NewEngine(deps EngineDeps, cfg EngineConfig) *Engine {
	if deps.Store == nil {
		panic("conversation: engine requires a session store")
	}
	if deps.Membership == nil {
		panic("conversation: engine requires a membership service")
	}
	if deps.Dialogue == nil {
		panic("conversation: engine requires a dialogue client")
	}
	if len(deps.Senders) == 0 {
		panic("conversation: engine requires at least one sender")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "English"
	}

	e := &Engine{
		store:      deps.Store,
		archive:    deps.Archive,
		membership: deps.Membership,
		directory:  deps.Directory,
		registry:   deps.Registry,
		dialogue:   deps.Dialogue,
		audio:      deps.Audio,
		senders:    deps.Senders,
		lifecycle:  deps.Lifecycle,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		cfg:        cfg,
	}
	e.classifier = NewClassifier(deps.Store, cfg.ShortMessageThreshold, cfg.MonitoringWindow)
	e.aggregator = NewAggregator(deps.Store, cfg.ShortMessageThreshold, cfg.InactivityFlushDelay, func(identity, text string) error {
		_, err := e.respond(context.Background(), identity, text)
		return err
	}, deps.Logger)
	return e
}

// HandleInbound processes one normalized inbound event end to end.
func (e *Engine) HandleInbound(ctx context.Context, in Inbound) (Result, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.HandleInbound")
	defer span.End()

	result, err := e.handle(ctx, in)
	if e.metrics != nil {
		e.metrics.ObserveInbound(in.Channel, string(result.Outcome))
	}
	return result, err
}

func (e *Engine) handle(ctx context.Context, in Inbound) (Result, error) {
	if in.Identity == "" {
		return Result{}, fmt.Errorf("conversation: inbound event missing identity")
	}

	// Ended sessions swallow everything until the residual marker expires.
	if e.store.IsEnded(in.Identity) {
		e.logger.Debug("dropping message for ended session", "identity", in.Identity)
		return Result{Outcome: OutcomeIgnored}, nil
	}

	snap, exists := e.store.Snapshot(in.Identity)
	if !exists {
		proceed, res, err := e.startSession(ctx, in)
		if err != nil || !proceed {
			return res, err
		}
		snap, exists = e.store.Snapshot(in.Identity)
		if !exists {
			return Result{Outcome: OutcomeIgnored}, nil
		}
	}

	e.store.Update(in.Identity, func(s *session.Session) {
		if in.MessageRef != "" {
			s.LastMessageRef = in.MessageRef
		}
	})

	// Language switch is a hard reset: new transcript, fresh behavior
	// counters, re-seeded system prompt in the new language.
	if lang := NormalizeLanguage(in.LanguageSelector); lang != "" && lang != snap.Language && snap.Step != session.StepAwaitingLanguage {
		if err := e.switchLanguage(ctx, in.Identity, snap, lang); err != nil {
			return Result{}, err
		}
		refreshed, ok := e.store.Snapshot(in.Identity)
		if !ok {
			return Result{Outcome: OutcomeIgnored}, nil
		}
		snap = refreshed
	}

	switch snap.Step {
	case session.StepEnded:
		return Result{Outcome: OutcomeIgnored}, nil
	case session.StepAwaitingLanguage, session.StepAwaitingName, session.StepAwaitingHospitalCode:
		return e.handleIntakeStep(ctx, in, snap)
	default:
		return e.handleActive(ctx, in, snap)
	}
}

// startSession gates creation on membership and seeds the new session. It
// reports whether the caller should keep processing the triggering message;
// when it should not, the returned result is final.
func (e *Engine) startSession(ctx context.Context, in Inbound) (bool, Result, error) {
	pending, err := e.membership.IsPendingIntake(ctx, in.Identity)
	if err != nil {
		return false, Result{}, fmt.Errorf("conversation: pending-intake check: %w", err)
	}
	queued := false
	if !pending {
		queued, err = e.membership.IsQueued(ctx, in.Identity)
		if err != nil {
			return false, Result{}, fmt.Errorf("conversation: queue check: %w", err)
		}
	}
	if !pending && !queued {
		e.logger.Info("ineligible identity, no session created", "identity", in.Identity, "channel", in.Channel)
		e.deliver(ctx, in.Channel, in.Identity, textsFor(e.cfg.DefaultLanguage).notQueued, in.MessageRef)
		return false, Result{Outcome: OutcomeIneligible}, nil
	}

	sess := &session.Session{
		Identity:       in.Identity,
		Channel:        in.Channel,
		Language:       e.cfg.DefaultLanguage,
		LastMessageRef: in.MessageRef,
	}
	if pending {
		sess.Step = session.StepAwaitingLanguage
	} else {
		sess.Step = session.StepActive
	}
	if err := e.store.Create(sess); err != nil {
		// A concurrent webhook won the race; let the winner's session handle it.
		e.logger.Debug("session create raced", "identity", in.Identity, "error", err)
		return true, Result{}, nil
	}
	if e.lifecycle != nil {
		e.lifecycle.Arm(in.Identity)
	}
	e.logger.Info("session started", "identity", in.Identity, "channel", in.Channel, "pending_intake", pending)

	if pending {
		e.deliver(ctx, in.Channel, in.Identity, textsFor(e.cfg.DefaultLanguage).languagePrompt, in.MessageRef)
		return false, Result{Outcome: OutcomePrompted}, nil
	}

	// Queued patients may carry prior visit records; the system prompt
	// template depends on their presence.
	if err := e.seedPrompt(ctx, in.Identity, e.cfg.DefaultLanguage); err != nil {
		return false, Result{}, err
	}
	return true, Result{}, nil
}

// seedPrompt resolves medical history for the identity and installs the
// matching system prompt. The session may vanish while the registry call is in
// flight; that is treated as a torn-down session, not an error.
func (e *Engine) seedPrompt(ctx context.Context, identity, language string) error {
	var history []json.RawMessage
	if e.registry != nil {
		patient, err := e.registry.ResolvePatient(ctx, identity)
		if err != nil {
			e.logger.Warn("failed to resolve patient history, using new-patient prompt", "identity", identity, "error", err)
		} else if patient != nil {
			history = patient.MedicalHistory
		}
	}
	prompt := BuildSystemPrompt(history, language)
	e.store.Update(identity, func(s *session.Session) {
		s.MedicalHistory = history
	})
	if err := e.store.SeedSystemPrompt(identity, prompt); err != nil {
		e.logger.Debug("session gone before prompt seed", "identity", identity)
	}
	return nil
}

func (e *Engine) switchLanguage(ctx context.Context, identity string, snap *session.Session, language string) error {
	e.logger.Info("language switch, resetting session", "identity", identity, "from", snap.Language, "to", language)
	step := snap.Step
	if err := e.store.Reset(identity, language, step); err != nil {
		return nil
	}
	if step == session.StepActive {
		prompt := BuildSystemPrompt(snap.MedicalHistory, language)
		e.store.Update(identity, func(s *session.Session) {
			s.MedicalHistory = snap.MedicalHistory
		})
		if err := e.store.SeedSystemPrompt(identity, prompt); err != nil {
			return nil
		}
	}
	return nil
}

// handleIntakeStep drives the missed-call flow: language, name, hospital code.
func (e *Engine) handleIntakeStep(ctx context.Context, in Inbound, snap *session.Session) (Result, error) {
	texts := textsFor(snap.Language)
	text := strings.TrimSpace(in.Text)

	switch snap.Step {
	case session.StepAwaitingLanguage:
		lang := NormalizeLanguage(in.LanguageSelector)
		if lang == "" {
			lang = NormalizeLanguage(text)
		}
		if lang == "" {
			e.deliver(ctx, in.Channel, in.Identity, texts.languagePrompt, in.MessageRef)
			return Result{Outcome: OutcomePrompted}, nil
		}
		e.store.Update(in.Identity, func(s *session.Session) {
			s.Language = lang
			s.Step = session.StepAwaitingName
		})
		e.deliver(ctx, in.Channel, in.Identity, textsFor(lang).namePrompt, in.MessageRef)
		return Result{Outcome: OutcomePrompted}, nil

	case session.StepAwaitingName:
		if text == "" {
			e.deliver(ctx, in.Channel, in.Identity, texts.namePrompt, in.MessageRef)
			return Result{Outcome: OutcomePrompted}, nil
		}
		e.store.Update(in.Identity, func(s *session.Session) {
			s.Name = text
			s.Step = session.StepAwaitingHospitalCode
		})
		e.deliver(ctx, in.Channel, in.Identity, texts.hospitalCodePrompt, in.MessageRef)
		return Result{Outcome: OutcomePrompted}, nil

	case session.StepAwaitingHospitalCode:
		return e.completeIntake(ctx, in, snap, text)
	}
	return Result{Outcome: OutcomeIgnored}, nil
}

// completeIntake validates the hospital code and performs the registration
// side effects before the session goes active.
func (e *Engine) completeIntake(ctx context.Context, in Inbound, snap *session.Session, code string) (Result, error) {
	texts := textsFor(snap.Language)
	if code == "" || e.directory == nil {
		e.deliver(ctx, in.Channel, in.Identity, texts.invalidCode, in.MessageRef)
		return Result{Outcome: OutcomePrompted}, nil
	}
	hospital, err := e.directory.ResolveHospitalByCode(ctx, code)
	if err != nil {
		e.logger.Error("hospital lookup failed", "identity", in.Identity, "code", code, "error", err)
		e.deliver(ctx, in.Channel, in.Identity, texts.dialogueFailed, in.MessageRef)
		return Result{Outcome: OutcomeRejected}, nil
	}
	if hospital == nil {
		e.deliver(ctx, in.Channel, in.Identity, texts.invalidCode, in.MessageRef)
		return Result{Outcome: OutcomePrompted}, nil
	}

	patientID, err := e.registry.RegisterPatient(ctx, in.Identity, snap.Name, *hospital)
	if err != nil {
		e.logger.Error("patient registration failed", "identity", in.Identity, "error", err)
		e.deliver(ctx, in.Channel, in.Identity, texts.dialogueFailed, in.MessageRef)
		return Result{Outcome: OutcomeRejected}, nil
	}
	if err := e.registry.Enqueue(ctx, patientID, *hospital); err != nil {
		e.logger.Error("queue insert failed", "identity", in.Identity, "patient_id", patientID, "error", err)
		e.deliver(ctx, in.Channel, in.Identity, texts.dialogueFailed, in.MessageRef)
		return Result{Outcome: OutcomeRejected}, nil
	}
	if err := e.membership.RemovePendingIntake(ctx, in.Identity); err != nil {
		e.logger.Warn("failed to clear pending-intake entry", "identity", in.Identity, "error", err)
	}

	// Re-validate after the registry round trips: the expiry timer may have
	// torn the session down while we were registering.
	if !e.store.Update(in.Identity, func(s *session.Session) {
		s.HospitalCode = code
		s.Step = session.StepActive
	}) {
		return Result{Outcome: OutcomeIgnored}, nil
	}
	prompt := BuildSystemPrompt(nil, snap.Language)
	if err := e.store.SeedSystemPrompt(in.Identity, prompt); err != nil {
		return Result{Outcome: OutcomeIgnored}, nil
	}
	e.logger.Info("intake complete", "identity", in.Identity, "patient_id", patientID, "hospital", hospital.ID)

	// The code message itself opens the dialogue as the first user turn.
	reply, err := e.respond(ctx, in.Identity, code)
	if err != nil {
		return Result{Outcome: OutcomeRejected}, nil
	}
	return Result{Outcome: OutcomeReplied, Reply: reply}, nil
}

// handleActive resolves audio, classifies behavior, and either buffers the
// fragment or runs the dialogue turn immediately.
func (e *Engine) handleActive(ctx context.Context, in Inbound, snap *session.Session) (Result, error) {
	texts := textsFor(snap.Language)
	text := in.Text

	if in.AudioRef != "" {
		if e.audio == nil {
			e.deliver(ctx, in.Channel, in.Identity, texts.audioFailed, in.MessageRef)
			return Result{Outcome: OutcomeRejected}, nil
		}
		resolved, err := e.audio.ResolveText(ctx, in.Identity, in.Channel, in.AudioRef)
		if err != nil {
			e.logger.Error("audio resolution failed", "identity", in.Identity, "error", err)
			e.deliver(ctx, in.Channel, in.Identity, texts.audioFailed, in.MessageRef)
			return Result{Outcome: OutcomeRejected}, nil
		}
		text = resolved
		// The diarization wait can outlive the session.
		if e.store.IsEnded(in.Identity) {
			return Result{Outcome: OutcomeIgnored}, nil
		}
		if _, ok := e.store.Snapshot(in.Identity); !ok {
			return Result{Outcome: OutcomeIgnored}, nil
		}
	}

	if strings.TrimSpace(text) == "" && in.Text == "" && in.AudioRef == "" {
		// Selector-only event after a language switch: let the model re-open
		// in the new language.
		reply, err := e.respond(ctx, in.Identity, "")
		if err != nil {
			return Result{Outcome: OutcomeRejected}, nil
		}
		return Result{Outcome: OutcomeReplied, Reply: reply}, nil
	}

	e.classifier.Observe(in.Identity, text)
	if e.classifier.AggregationEnabled(in.Identity) {
		flushed, err := e.aggregator.Ingest(in.Identity, text)
		if !flushed {
			return Result{Outcome: OutcomeBuffered}, nil
		}
		if err != nil {
			return Result{Outcome: OutcomeRejected}, nil
		}
		return Result{Outcome: OutcomeReplied}, nil
	}

	reply, err := e.respond(ctx, in.Identity, text)
	if err != nil {
		return Result{Outcome: OutcomeRejected}, nil
	}
	return Result{Outcome: OutcomeReplied, Reply: reply}, nil
}

// respond runs one dialogue turn: append the user turn, call the model,
// append the assistant turn, archive, deliver. Every step re-validates that
// the session survived the preceding suspension point.
func (e *Engine) respond(ctx context.Context, identity, userText string) (string, error) {
	ctx, span := engineTracer.Start(ctx, "Engine.respond")
	defer span.End()

	if userText != "" {
		if err := e.store.AppendTurns(identity, session.Turn{Role: session.RoleUser, Content: userText}); err != nil {
			e.logger.Debug("session gone before user turn", "identity", identity)
			return "", nil
		}
	}
	snap, ok := e.store.Snapshot(identity)
	if !ok || snap.Step == session.StepEnded {
		return "", nil
	}

	start := time.Now()
	reply, err := e.dialogue.Converse(ctx, snap.Transcript, snap.Language)
	if e.metrics != nil {
		e.metrics.ObserveDialogueLatency("converse", time.Since(start).Seconds())
	}
	if err != nil {
		e.logger.Error("dialogue call failed", "identity", identity, "error", err)
		e.deliver(ctx, snap.Channel, identity, textsFor(snap.Language).dialogueFailed, snap.LastMessageRef)
		return "", fmt.Errorf("conversation: converse: %w", ErrUpstream)
	}

	if err := e.store.AppendTurns(identity, session.Turn{Role: session.RoleAssistant, Content: reply}); err != nil {
		// Torn down mid-call; the lifecycle manager already sent the closing
		// message, so this reply is dropped.
		e.logger.Debug("session gone before assistant turn", "identity", identity)
		return "", nil
	}

	if e.archive != nil {
		if current, ok := e.store.Snapshot(identity); ok {
			if err := e.archive.Save(ctx, identity, current.Transcript); err != nil {
				e.logger.Warn("transcript archive failed", "identity", identity, "error", err)
			}
		}
	}

	e.deliver(ctx, snap.Channel, identity, reply, snap.LastMessageRef)
	return reply, nil
}

// deliver sends text on the identity's channel, logging rather than
// propagating delivery failures.
func (e *Engine) deliver(ctx context.Context, channel, identity, text, replyTo string) {
	sender, ok := e.senders[channel]
	if !ok {
		e.logger.Error("no sender for channel", "channel", channel, "identity", identity)
		return
	}
	if err := sender.Send(ctx, identity, text, replyTo); err != nil {
		e.logger.Error("outbound delivery failed", "channel", channel, "identity", identity, "error", err)
	}
}

// NormalizeLanguage maps channel language selections onto the supported
// conversation languages. Unknown values yield the empty string.
func NormalizeLanguage(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "english", "en":
		return "English"
	case "hindi", "hi", "हिन्दी", "हिंदी":
		return "Hindi"
	default:
		return ""
	}
}
