package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mediswift/intake-platform/internal/conversation"
	"github.com/mediswift/intake-platform/pkg/logging"
)

// Store persists patients, queue entries, missed-call intake requests, and
// visit summaries in PostgreSQL. It backs the engine's membership, directory,
// registry, and summary collaborators.
type Store struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewStore creates a registry store. A nil db yields a nil store whose
// methods fail closed.
func NewStore(db *sql.DB, logger *logging.Logger) *Store {
	if db == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: db, logger: logger}
}

var _ conversation.Membership = (*Store)(nil)
var _ conversation.Directory = (*Store)(nil)
var _ conversation.PatientRegistry = (*Store)(nil)
var _ conversation.SummaryStore = (*Store)(nil)

// localPhone strips the Indian country-code prefix from channel identities.
// WhatsApp delivers "91XXXXXXXXXX" while the hospital's missed-call system
// records the 10-digit local number.
func localPhone(identity string) string {
	digits := strings.TrimPrefix(identity, "+")
	if len(digits) == 12 && strings.HasPrefix(digits, "91") {
		return digits[2:]
	}
	return digits
}

// IsQueued reports whether the identity has a waiting queue entry.
func (s *Store) IsQueued(ctx context.Context, identity string) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	var queued bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM queue_entries q
			JOIN patients p ON p.id = q.patient_id
			WHERE p.phone = $1 AND q.status = 'waiting'
		)
	`, localPhone(identity)).Scan(&queued)
	if err != nil {
		return false, fmt.Errorf("registry: queue check: %w", err)
	}
	return queued, nil
}

// IsPendingIntake reports whether a missed-call intake request is open for
// the identity.
func (s *Store) IsPendingIntake(ctx context.Context, identity string) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	var pending bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM intake_requests WHERE phone = $1)
	`, localPhone(identity)).Scan(&pending)
	if err != nil {
		return false, fmt.Errorf("registry: intake check: %w", err)
	}
	return pending, nil
}

// RemovePendingIntake closes the missed-call intake request once the patient
// is registered and queued.
func (s *Store) RemovePendingIntake(ctx context.Context, identity string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM intake_requests WHERE phone = $1
	`, localPhone(identity)); err != nil {
		return fmt.Errorf("registry: remove intake request: %w", err)
	}
	return nil
}

// ResolveHospitalByCode looks up a hospital by its intake code. An unknown
// code returns (nil, nil).
func (s *Store) ResolveHospitalByCode(ctx context.Context, code string) (*conversation.Hospital, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var h conversation.Hospital
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name FROM hospitals WHERE code = $1
	`, strings.ToUpper(strings.TrimSpace(code))).Scan(&h.ID, &h.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: hospital lookup: %w", err)
	}
	return &h, nil
}

// RegisterPatient creates or updates the patient record for an identity and
// returns the patient id.
func (s *Store) RegisterPatient(ctx context.Context, identity, name string, hospital conversation.Hospital) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("registry: store not configured")
	}
	id := uuid.NewString()
	var patientID string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO patients (id, phone, name, hospital_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (phone) DO UPDATE SET name = EXCLUDED.name, hospital_id = EXCLUDED.hospital_id
		RETURNING id
	`, id, localPhone(identity), name, hospital.ID).Scan(&patientID)
	if err != nil {
		return "", fmt.Errorf("registry: register patient: %w", err)
	}
	s.logger.Info("patient registered", "patient_id", patientID, "hospital", hospital.ID)
	return patientID, nil
}

// Enqueue adds a waiting queue entry for the patient.
func (s *Store) Enqueue(ctx context.Context, patientID string, hospital conversation.Hospital) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("registry: store not configured")
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO queue_entries (id, patient_id, hospital_id, status)
		VALUES ($1, $2, $3, 'waiting')
	`, uuid.NewString(), patientID, hospital.ID); err != nil {
		return fmt.Errorf("registry: enqueue patient: %w", err)
	}
	return nil
}

// ResolvePatient returns the patient behind an identity together with the
// summaries of their previous visits as medical history. An unknown identity
// returns (nil, nil).
func (s *Store) ResolvePatient(ctx context.Context, identity string) (*conversation.Patient, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var p conversation.Patient
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name FROM patients WHERE phone = $1
	`, localPhone(identity)).Scan(&p.ID, &p.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: patient lookup: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT summary FROM visit_summaries
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT 10
	`, p.ID)
	if err != nil {
		return nil, fmt.Errorf("registry: history lookup: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("registry: history scan: %w", err)
		}
		p.MedicalHistory = append(p.MedicalHistory, json.RawMessage(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: history rows: %w", err)
	}
	return &p, nil
}

// StoreSummary persists one visit summary against the patient record.
func (s *Store) StoreSummary(ctx context.Context, patientID, summaryJSON string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("registry: store not configured")
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO visit_summaries (id, patient_id, summary)
		VALUES ($1, $2, $3)
	`, uuid.NewString(), patientID, summaryJSON); err != nil {
		return fmt.Errorf("registry: store summary: %w", err)
	}
	return nil
}
