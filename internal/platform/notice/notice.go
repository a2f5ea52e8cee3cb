// Package notice renders human-readable notices for issued prescriptions and
// sent referrals and hands them to a sink (text files, .eml files or both).
package notice

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/clinic/internal/domain/medication"
	"github.com/ehr/clinic/internal/domain/referral"
)

// ---------------------------------------------------------------------------
// Notice Types
// ---------------------------------------------------------------------------

// Kind identifies what a notice is about.
type Kind string

const (
	KindPrescription Kind = "prescription"
	KindReferral     Kind = "referral"
)

// Status is the delivery state of a notice.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

var ErrNoticeNotFound = errors.New("notice not found")

// Notice is one rendered notice.
type Notice struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"kind"`
	RecordID  string     `json:"record_id"`
	Recipient string     `json:"recipient,omitempty"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Sink delivers a rendered notice.
type Sink interface {
	Deliver(ctx context.Context, n *Notice) error
}

// ---------------------------------------------------------------------------
// Template Engine
// ---------------------------------------------------------------------------

// Template defines a reusable notice layout.
type Template struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages notice templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

var banner = strings.Repeat("=", 60)

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      string(KindPrescription),
			Subject: "Prescription {{id}} for patient {{patient_id}}",
			Body: banner + "\nPRESCRIPTION\n" + banner + "\n" +
				"Prescription ID: {{id}}\n" +
				"Patient ID: {{patient_id}}\n" +
				"Clinician ID: {{clinician_id}}\n" +
				"Date: {{date}}\n" +
				"Medication: {{medication}}\n" +
				"Dosage: {{dosage}}\n" +
				"Frequency: {{frequency}}\n" +
				"Duration: {{duration_days}} days\n" +
				"Quantity: {{quantity}}\n" +
				"Instructions: {{instructions}}\n" +
				"Pharmacy: {{pharmacy}}\n" +
				"Status: {{status}}\n" +
				banner + "\n",
		},
		{
			ID:      string(KindReferral),
			Subject: "{{urgency}} referral {{id}} for patient {{patient_id}}",
			Body: banner + "\nREFERRAL NOTIFICATION\n" + banner + "\n" +
				"Referral ID: {{id}}\n" +
				"Patient ID: {{patient_id}}\n" +
				"From Clinician: {{from_clinician}}\n" +
				"To Clinician: {{to_clinician}}\n" +
				"Date: {{date}}\n" +
				"Urgency: {{urgency}}\n" +
				"Reason: {{reason}}\n" +
				"Clinical Summary: {{clinical_summary}}\n" +
				"Investigations: {{investigations}}\n" +
				banner + "\n\n",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is. Substituted values are not scanned for further placeholders.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	pairs := make([]string, 0, 2*len(data))
	for k, v := range data {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(t.Subject), r.Replace(t.Body), nil
}

func prescriptionData(p *medication.Prescription) map[string]string {
	return map[string]string{
		"id":            p.ID,
		"patient_id":    p.PatientID,
		"clinician_id":  p.ClinicianID,
		"date":          p.Date,
		"medication":    p.MedicationName,
		"dosage":        p.Dosage,
		"frequency":     p.Frequency,
		"duration_days": strconv.Itoa(p.DurationDays),
		"quantity":      strconv.Itoa(p.Quantity),
		"instructions":  p.Instructions,
		"pharmacy":      p.PharmacyName,
		"status":        string(p.Status),
	}
}

func referralData(r *referral.Referral) map[string]string {
	return map[string]string{
		"id":               r.ID,
		"patient_id":       r.PatientID,
		"from_clinician":   r.ReferringClinicianID,
		"to_clinician":     r.ReferredToClinicianID,
		"date":             r.Date,
		"urgency":          string(r.Urgency),
		"reason":           r.Reason,
		"clinical_summary": r.ClinicalSummary,
		"investigations":   r.RequestedInvestigations,
	}
}

// ---------------------------------------------------------------------------
// Notice Manager
// ---------------------------------------------------------------------------

// Manager renders notices, hands them to its sink and keeps every notice it
// produced in memory. It satisfies both the record store's prescription
// notifier and the referral registry's notifier.
type Manager struct {
	sink      Sink
	templates *TemplateEngine
	logger    zerolog.Logger

	mu      sync.RWMutex
	notices []*Notice
}

// NewManager constructs a Manager. A nil tpl uses the built-in templates.
func NewManager(sink Sink, tpl *TemplateEngine, logger zerolog.Logger) *Manager {
	if tpl == nil {
		tpl = NewTemplateEngine()
	}
	return &Manager{
		sink:      sink,
		templates: tpl,
		logger:    logger.With().Str("component", "notice").Logger(),
	}
}

// NotifyPrescription renders and delivers the notice for an issued prescription.
func (m *Manager) NotifyPrescription(ctx context.Context, p *medication.Prescription) error {
	if p == nil {
		return errors.New("notice: prescription is required")
	}
	_, err := m.SendFromTemplate(ctx, KindPrescription, p.ID, p.PharmacyName, prescriptionData(p))
	return err
}

// NotifyReferral renders and delivers the notice for a sent referral.
func (m *Manager) NotifyReferral(ctx context.Context, r *referral.Referral) error {
	if r == nil {
		return errors.New("notice: referral is required")
	}
	_, err := m.SendFromTemplate(ctx, KindReferral, r.ID, r.ReferredToClinicianID, referralData(r))
	return err
}

// SendFromTemplate renders the template for kind and sends the result.
func (m *Manager) SendFromTemplate(ctx context.Context, kind Kind, recordID, recipient string, data map[string]string) (*Notice, error) {
	subject, body, err := m.templates.Render(string(kind), data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	n := &Notice{
		Kind:      kind,
		RecordID:  recordID,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	}
	return n, m.Send(ctx, n)
}

// Send delivers n through the sink, assigns an ID and timestamps, and keeps
// the result in memory.
func (m *Manager) Send(ctx context.Context, n *Notice) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now().UTC()
	n.Status = StatusPending

	sendErr := m.deliver(ctx, n)

	m.mu.Lock()
	m.notices = append(m.notices, n)
	m.mu.Unlock()

	return sendErr
}

func (m *Manager) deliver(ctx context.Context, n *Notice) error {
	var err error
	if m.sink == nil {
		err = errors.New("notice: no sink configured")
	} else {
		err = m.sink.Deliver(ctx, n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		m.logger.Error().Err(err).Str("kind", string(n.Kind)).Str("record_id", n.RecordID).Msg("notice delivery failed")
		return err
	}
	n.Status = StatusSent
	n.Error = ""
	sentAt := time.Now().UTC()
	n.SentAt = &sentAt
	m.logger.Info().Str("kind", string(n.Kind)).Str("record_id", n.RecordID).Msg("notice delivered")
	return nil
}

// Get retrieves a notice by ID.
func (m *Manager) Get(id string) (*Notice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, n := range m.notices {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoticeNotFound, id)
}

// Notices returns the notices produced so far in send order.
func (m *Manager) Notices() []*Notice {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Notice, len(m.notices))
	copy(out, m.notices)
	return out
}

// Retry re-delivers a failed notice. Returns an error if the notice is not in
// failed status.
func (m *Manager) Retry(ctx context.Context, id string) error {
	n, err := m.Get(id)
	if err != nil {
		return err
	}
	m.mu.RLock()
	status := n.Status
	m.mu.RUnlock()
	if status != StatusFailed {
		return fmt.Errorf("notice %q is not in failed status (current: %s)", id, status)
	}
	return m.deliver(ctx, n)
}

// Stats returns counts of notices grouped by status.
func (m *Manager) Stats() map[Status]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := make(map[Status]int)
	for _, n := range m.notices {
		stats[n.Status]++
	}
	return stats
}
