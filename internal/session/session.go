package session

import (
	"encoding/json"
	"time"
)

// Turn roles. The first transcript entry, when present, is the only system turn.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single transcript entry.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Step tracks where a session is in the intake flow.
type Step string

const (
	StepAwaitingLanguage     Step = "awaiting_language"
	StepAwaitingName         Step = "awaiting_name"
	StepAwaitingHospitalCode Step = "awaiting_hospital_code"
	StepActive               Step = "active"
	StepEnded                Step = "ended"
)

// Behavior tracks per-identity messaging style during the monitoring window.
type Behavior struct {
	ShortCount          int
	LongCount           int
	Monitoring          bool
	AggregationEnabled  bool
	MonitoringStartedAt time.Time
}

// Session is the live conversation state for one identity. All per-identity
// sub-state (transcript, buffer, behavior, timers) lives in this one record so
// nothing can fall out of sync across parallel maps.
type Session struct {
	Identity       string
	Channel        string
	Language       string
	Step           Step
	Transcript     []Turn
	MedicalHistory []json.RawMessage
	StartedAt      time.Time
	LastMessageRef string

	// Captured during the missed-call intake flow.
	Name         string
	HospitalCode string

	Behavior Behavior

	buffer     []string
	flushTimer *time.Timer
}

// HasSystemTurn reports whether the transcript carries a system prompt.
func (s *Session) HasSystemTurn() bool {
	return len(s.Transcript) > 0 && s.Transcript[0].Role == RoleSystem
}

func (s *Session) clone() *Session {
	cp := *s
	cp.Transcript = append([]Turn(nil), s.Transcript...)
	cp.MedicalHistory = append([]json.RawMessage(nil), s.MedicalHistory...)
	cp.buffer = append([]string(nil), s.buffer...)
	cp.flushTimer = nil
	return &cp
}
