package conversation

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mediswift/intake-platform/internal/session"
)

// Channel identifies which transport a message arrived on.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelTelegram = "telegram"
)

// Inbound is a channel-normalized incoming event. Channel adapters produce
// this shape; the engine never sees provider payloads.
type Inbound struct {
	Identity         string `json:"identity"`
	Channel          string `json:"channel"`
	Text             string `json:"text,omitempty"`
	AudioRef         string `json:"audioRef,omitempty"`
	LanguageSelector string `json:"languageSelector,omitempty"`
	MessageRef       string `json:"messageRef,omitempty"`
}

// Outcome classifies what the engine did with an inbound message.
type Outcome string

const (
	// OutcomeReplied means a dialogue turn completed and a reply was sent.
	OutcomeReplied Outcome = "replied"
	// OutcomeBuffered means the fragment was queued for aggregation.
	OutcomeBuffered Outcome = "buffered"
	// OutcomeIgnored means the session has ended and the message was dropped.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeIneligible means the identity is not queued for service.
	OutcomeIneligible Outcome = "ineligible"
	// OutcomePrompted means an intake-step prompt was sent.
	OutcomePrompted Outcome = "prompted"
	// OutcomeRejected means the message was dropped after a recoverable
	// failure (bad audio, upstream error) and the user was told.
	OutcomeRejected Outcome = "rejected"
)

// Result is returned to the webhook layer for the HTTP response body.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Reply   string  `json:"reply,omitempty"`
}

// ErrUpstream wraps dialogue/transcription provider failures. The engine never
// retries these; it degrades to a user-visible apology.
var ErrUpstream = errors.New("conversation: upstream provider failure")

// Hospital is the directory entry resolved from an intake hospital code.
type Hospital struct {
	ID   string
	Name string
}

// Patient carries the externally stored record the engine forwards to the
// dialogue service. MedicalHistory is opaque to the engine.
type Patient struct {
	ID             string
	Name           string
	MedicalHistory []json.RawMessage
}

// Membership gates session creation: only identities currently queued for
// service, or pending missed-call intake, may start a session.
type Membership interface {
	IsQueued(ctx context.Context, identity string) (bool, error)
	IsPendingIntake(ctx context.Context, identity string) (bool, error)
	RemovePendingIntake(ctx context.Context, identity string) error
}

// Directory resolves hospital codes entered during intake. A nil Hospital with
// a nil error means the code is unknown.
type Directory interface {
	ResolveHospitalByCode(ctx context.Context, code string) (*Hospital, error)
}

// PatientRegistry creates patient records and queue entries, and resolves the
// patient currently queued under an identity (nil, nil when none).
type PatientRegistry interface {
	RegisterPatient(ctx context.Context, identity, name string, hospital Hospital) (string, error)
	Enqueue(ctx context.Context, patientID string, hospital Hospital) error
	ResolvePatient(ctx context.Context, identity string) (*Patient, error)
}

// SummaryStore persists the structured clinical summary at session end.
type SummaryStore interface {
	StoreSummary(ctx context.Context, patientID string, summaryJSON string) error
}

// DialogueClient is the language-model backend. Converse expects the full
// transcript including the leading system turn. Summarize and
// ConvertSummaryToDisplay implement the two-pass summarization used at
// session end.
type DialogueClient interface {
	Converse(ctx context.Context, transcript []session.Turn, language string) (string, error)
	Summarize(ctx context.Context, transcript []session.Turn) (string, error)
	ConvertSummaryToDisplay(ctx context.Context, summary string) (string, error)
}

// AudioResolver turns a channel audio reference into text, transparently
// choosing between single-shot transcription and the diarization pipeline.
type AudioResolver interface {
	ResolveText(ctx context.Context, identity, channel, audioRef string) (string, error)
}

// Sender delivers outbound text on one channel. replyTo threads the message
// onto the inbound message it answers, for protocols that support it.
type Sender interface {
	Send(ctx context.Context, identity, text, replyTo string) error
}
