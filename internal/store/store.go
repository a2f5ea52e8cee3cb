// Package store holds the practice's patients, appointments and prescriptions
// in memory, delegates referrals to the referral registry, and persists every
// collection through the flat-file codec.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/ehr/clinic/internal/domain/identity"
	"github.com/ehr/clinic/internal/domain/medication"
	"github.com/ehr/clinic/internal/domain/referral"
	"github.com/ehr/clinic/internal/domain/scheduling"
	"github.com/ehr/clinic/internal/platform/flatfile"
)

var (
	ErrNilRecord   = errors.New("record is required")
	ErrNotFound    = errors.New("record not found")
	ErrDuplicateID = errors.New("record id already exists")
)

// PrescriptionNotifier renders a notice for a newly added prescription.
type PrescriptionNotifier interface {
	NotifyPrescription(ctx context.Context, p *medication.Prescription) error
}

// Metrics receives operation and collection-size observations.
type Metrics interface {
	ObserveOperation(entity, op string, err error)
	SetRecords(entity string, n int)
	ObserveDiagnostic(file, kind string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, string, error) {}
func (nopMetrics) SetRecords(string, int)                 {}
func (nopMetrics) ObserveDiagnostic(string, string)       {}

// Store is the in-memory record store.
type Store struct {
	mu            sync.RWMutex
	patients      collection[*identity.Patient]
	appointments  collection[*scheduling.Appointment]
	prescriptions collection[*medication.Prescription]

	registry *referral.Registry
	codec    *flatfile.Codec
	notifier PrescriptionNotifier
	metrics  Metrics
	region   string
	logger   zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l.With().Str("component", "store").Logger() }
}

func WithPrescriptionNotifier(n PrescriptionNotifier) Option {
	return func(s *Store) { s.notifier = n }
}

func WithMetrics(m Metrics) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithPhoneRegion sets the default region used to check patient phone numbers.
func WithPhoneRegion(region string) Option {
	return func(s *Store) { s.region = region }
}

// New returns an empty Store backed by codec. registry must be the
// application's single referral registry.
func New(codec *flatfile.Codec, registry *referral.Registry, opts ...Option) *Store {
	s := &Store{
		patients:      newCollection(func(p *identity.Patient) string { return p.UserID }),
		appointments:  newCollection(func(a *scheduling.Appointment) string { return a.ID }),
		prescriptions: newCollection(func(p *medication.Prescription) string { return p.ID }),
		registry:      registry,
		codec:         codec,
		metrics:       nopMetrics{},
		region:        "GB",
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the referral registry the store delegates to.
func (s *Store) Registry() *referral.Registry { return s.registry }

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// LoadResult reports what LoadAll read.
type LoadResult struct {
	Counts  map[Kind]int
	Reports []flatfile.Report
	// Errors holds the files that could not be read to the end, including
	// missing files. Their collections are left empty.
	Errors map[Kind]error
}

// OK reports whether every file was read.
func (r LoadResult) OK() bool { return len(r.Errors) == 0 }

// Skipped returns the total number of rows dropped across all files.
func (r LoadResult) Skipped() int {
	return lo.SumBy(r.Reports, func(rep flatfile.Report) int { return rep.Skipped() })
}

// LoadAll replaces the patient, appointment and prescription collections with
// the contents of their files and registers every stored referral. A file
// that cannot be read leaves its collection empty; LoadAll never fails.
func (s *Store) LoadAll(ctx context.Context) LoadResult {
	res := LoadResult{Counts: make(map[Kind]int), Errors: make(map[Kind]error)}

	patients, rep, err := flatfile.Load(ctx, s.codec, patientTable)
	patients = keepLoaded(s.noteLoad(&res, KindPatient, rep, err), patients)
	appointments, rep, err := flatfile.Load(ctx, s.codec, appointmentTable)
	appointments = keepLoaded(s.noteLoad(&res, KindAppointment, rep, err), appointments)
	prescriptions, rep, err := flatfile.Load(ctx, s.codec, prescriptionTable)
	prescriptions = keepLoaded(s.noteLoad(&res, KindPrescription, rep, err), prescriptions)
	referrals, rep, err := flatfile.Load(ctx, s.codec, referralTable)
	referrals = keepLoaded(s.noteLoad(&res, KindReferral, rep, err), referrals)

	s.mu.Lock()
	s.patients.reset(patients)
	s.appointments.reset(appointments)
	s.prescriptions.reset(prescriptions)
	res.Counts[KindPatient] = s.patients.len()
	res.Counts[KindAppointment] = s.appointments.len()
	res.Counts[KindPrescription] = s.prescriptions.len()
	s.mu.Unlock()

	for _, r := range referrals {
		if _, err := s.registry.Register(r); err != nil {
			s.logger.Warn().Err(err).Msg("skipping stored referral")
		}
	}
	res.Counts[KindReferral] = s.registry.Count()

	s.refreshGauges()
	s.logger.Info().
		Int("patients", res.Counts[KindPatient]).
		Int("appointments", res.Counts[KindAppointment]).
		Int("prescriptions", res.Counts[KindPrescription]).
		Int("referrals", res.Counts[KindReferral]).
		Int("skipped_rows", res.Skipped()).
		Msg("records loaded")
	return res
}

// noteLoad records the outcome of one file read and reports whether it
// succeeded.
func (s *Store) noteLoad(res *LoadResult, kind Kind, rep flatfile.Report, err error) bool {
	res.Reports = append(res.Reports, rep)
	for _, d := range rep.Diagnostics {
		s.metrics.ObserveDiagnostic(d.File, string(d.Kind))
	}
	s.metrics.ObserveOperation(string(kind), "load", err)
	if err == nil {
		return true
	}
	res.Errors[kind] = err
	if flatfile.IsNotExist(err) {
		s.logger.Info().Str("file", rep.File).Msg("no data file, starting empty")
		return false
	}
	s.logger.Error().Err(err).Str("file", rep.File).Msg("failed to load data file, discarding partial read")
	return false
}

// keepLoaded drops records from a file that was not read to the end.
func keepLoaded[T any](ok bool, records []T) []T {
	if !ok {
		return nil
	}
	return records
}

// SaveAll writes every collection to its file. Every write is attempted even
// when an earlier one fails; the returned error combines all failures.
func (s *Store) SaveAll(ctx context.Context) error {
	s.mu.RLock()
	patients := s.patients.list()
	appointments := s.appointments.list()
	prescriptions := s.prescriptions.list()
	s.mu.RUnlock()
	referrals := s.registry.All()

	var err error
	err = multierr.Append(err, s.noteSave(KindPatient, func() (flatfile.Report, error) {
		return flatfile.Save(ctx, s.codec, patientTable, patients)
	}))
	err = multierr.Append(err, s.noteSave(KindAppointment, func() (flatfile.Report, error) {
		return flatfile.Save(ctx, s.codec, appointmentTable, appointments)
	}))
	err = multierr.Append(err, s.noteSave(KindPrescription, func() (flatfile.Report, error) {
		return flatfile.Save(ctx, s.codec, prescriptionTable, prescriptions)
	}))
	err = multierr.Append(err, s.noteSave(KindReferral, func() (flatfile.Report, error) {
		return flatfile.Save(ctx, s.codec, referralTable, referrals)
	}))

	if err != nil {
		s.logger.Error().Err(err).Msg("save incomplete")
		return err
	}
	s.logger.Info().Str("dir", s.codec.Dir()).Msg("records saved")
	return nil
}

func (s *Store) noteSave(kind Kind, save func() (flatfile.Report, error)) error {
	rep, err := save()
	for _, d := range rep.Diagnostics {
		s.metrics.ObserveDiagnostic(d.File, string(d.Kind))
	}
	s.metrics.ObserveOperation(string(kind), "save", err)
	return err
}

// ---------------------------------------------------------------------------
// Patients
// ---------------------------------------------------------------------------

func (s *Store) ListPatients() []*identity.Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patients.list()
}

func (s *Store) FindPatient(id string) (*identity.Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patients.find(id)
}

// AddPatient appends p. Contact details that do not parse are logged but do
// not block the add.
func (s *Store) AddPatient(p *identity.Patient) error {
	if p == nil {
		return s.observe(KindPatient, "add", ErrNilRecord)
	}
	s.mu.Lock()
	if p.UserID == "" {
		p.UserID = nextSequentialID(patientPrefix, s.patients.ids())
	}
	err := s.addLocked(KindPatient, p.UserID, s.patients.index(p.UserID) >= 0, func() { s.patients.append(p) })
	s.mu.Unlock()

	if err == nil {
		for _, issue := range identity.ContactIssues(p, s.region) {
			s.logger.Warn().Str("patient_id", p.UserID).Msg(issue)
		}
	}
	return s.observe(KindPatient, "add", err)
}

func (s *Store) UpdatePatient(id string, p *identity.Patient) error {
	if p == nil {
		return s.observe(KindPatient, "update", ErrNilRecord)
	}
	s.mu.Lock()
	err := updateLocked(&s.patients, KindPatient, id, p)
	s.mu.Unlock()
	return s.observe(KindPatient, "update", err)
}

func (s *Store) DeletePatient(id string) error {
	s.mu.Lock()
	err := s.removeLocked(KindPatient, id, s.patients.remove(id))
	s.mu.Unlock()
	return s.observe(KindPatient, "delete", err)
}

// ---------------------------------------------------------------------------
// Appointments
// ---------------------------------------------------------------------------

func (s *Store) ListAppointments() []*scheduling.Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appointments.list()
}

func (s *Store) FindAppointment(id string) (*scheduling.Appointment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appointments.find(id)
}

// AppointmentsForPatient returns the patient's appointments in stored order.
func (s *Store) AppointmentsForPatient(patientID string) []*scheduling.Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Filter(s.appointments.items, func(a *scheduling.Appointment, _ int) bool {
		return a.PatientID == patientID
	})
}

func (s *Store) AddAppointment(a *scheduling.Appointment) error {
	if a == nil {
		return s.observe(KindAppointment, "add", ErrNilRecord)
	}
	s.mu.Lock()
	if a.ID == "" {
		a.ID = nextSequentialID(appointmentPrefix, s.appointments.ids())
	}
	err := s.addLocked(KindAppointment, a.ID, s.appointments.index(a.ID) >= 0, func() { s.appointments.append(a) })
	s.mu.Unlock()
	return s.observe(KindAppointment, "add", err)
}

func (s *Store) UpdateAppointment(id string, a *scheduling.Appointment) error {
	if a == nil {
		return s.observe(KindAppointment, "update", ErrNilRecord)
	}
	s.mu.Lock()
	err := updateLocked(&s.appointments, KindAppointment, id, a)
	s.mu.Unlock()
	return s.observe(KindAppointment, "update", err)
}

func (s *Store) DeleteAppointment(id string) error {
	s.mu.Lock()
	err := s.removeLocked(KindAppointment, id, s.appointments.remove(id))
	s.mu.Unlock()
	return s.observe(KindAppointment, "delete", err)
}

// ---------------------------------------------------------------------------
// Prescriptions
// ---------------------------------------------------------------------------

func (s *Store) ListPrescriptions() []*medication.Prescription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prescriptions.list()
}

func (s *Store) FindPrescription(id string) (*medication.Prescription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prescriptions.find(id)
}

// PrescriptionsForPatient returns the patient's prescriptions in stored order.
func (s *Store) PrescriptionsForPatient(patientID string) []*medication.Prescription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Filter(s.prescriptions.items, func(p *medication.Prescription, _ int) bool {
		return p.PatientID == patientID
	})
}

// AddPrescription appends p, assigning the next RX id when p has none, and
// renders its notice. A failing notifier is logged and does not fail the add.
func (s *Store) AddPrescription(ctx context.Context, p *medication.Prescription) error {
	if p == nil {
		return s.observe(KindPrescription, "add", ErrNilRecord)
	}
	s.mu.Lock()
	if p.ID == "" {
		p.ID = nextSequentialID(prescriptionPrefix, s.prescriptions.ids())
	}
	err := s.addLocked(KindPrescription, p.ID, s.prescriptions.index(p.ID) >= 0, func() { s.prescriptions.append(p) })
	s.mu.Unlock()
	if err != nil {
		return s.observe(KindPrescription, "add", err)
	}

	if verr := p.Validate(); verr != nil {
		s.logger.Warn().Err(verr).Msg("incomplete prescription stored")
	}
	if s.notifier != nil {
		if nerr := s.notifier.NotifyPrescription(ctx, p); nerr != nil {
			s.logger.Error().Err(nerr).Str("prescription_id", p.ID).Msg("failed to render prescription notice")
		}
	}
	return s.observe(KindPrescription, "add", nil)
}

func (s *Store) UpdatePrescription(id string, p *medication.Prescription) error {
	if p == nil {
		return s.observe(KindPrescription, "update", ErrNilRecord)
	}
	s.mu.Lock()
	err := updateLocked(&s.prescriptions, KindPrescription, id, p)
	s.mu.Unlock()
	return s.observe(KindPrescription, "update", err)
}

func (s *Store) DeletePrescription(id string) error {
	s.mu.Lock()
	err := s.removeLocked(KindPrescription, id, s.prescriptions.remove(id))
	s.mu.Unlock()
	return s.observe(KindPrescription, "delete", err)
}

// ---------------------------------------------------------------------------
// Referrals (delegated to the registry)
// ---------------------------------------------------------------------------

func (s *Store) ListReferrals() []*referral.Referral { return s.registry.All() }

func (s *Store) FindReferral(id string) (*referral.Referral, bool) { return s.registry.Find(id) }

// ReferralsForPatient returns the patient's referrals in registry order.
func (s *Store) ReferralsForPatient(patientID string) []*referral.Referral {
	return lo.Filter(s.registry.All(), func(r *referral.Referral, _ int) bool {
		return r.PatientID == patientID
	})
}

func (s *Store) AddReferral(r *referral.Referral) error {
	return s.observe(KindReferral, "add", s.registry.Add(r))
}

func (s *Store) UpdateReferral(id string, r *referral.Referral) error {
	return s.observe(KindReferral, "update", s.registry.Update(id, r))
}

func (s *Store) DeleteReferral(id string) error {
	return s.observe(KindReferral, "delete", s.registry.Delete(id))
}

// SendReferral marks r as sent and renders its notice through the registry.
func (s *Store) SendReferral(ctx context.Context, r *referral.Referral) error {
	return s.observe(KindReferral, "send", s.registry.Send(ctx, r))
}

// AcceptReferral accepts the registered referral with id.
func (s *Store) AcceptReferral(id string) (bool, error) {
	ok, err := s.registry.Accept(id)
	return ok, s.observe(KindReferral, "accept", err)
}

// ---------------------------------------------------------------------------
// Identifier generation
// ---------------------------------------------------------------------------

// GenerateNewPatientID returns the next P<nnn> id.
func (s *Store) GenerateNewPatientID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return nextSequentialID(patientPrefix, s.patients.ids())
}

// GenerateNewAppointmentID returns the next A<nnn> id.
func (s *Store) GenerateNewAppointmentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return nextSequentialID(appointmentPrefix, s.appointments.ids())
}

// GenerateNewPrescriptionID returns the next RX<nnn> id.
func (s *Store) GenerateNewPrescriptionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return nextSequentialID(prescriptionPrefix, s.prescriptions.ids())
}

// GenerateNewID returns the next id for kind. Referral ids are issued by the
// registry and consume a number.
func (s *Store) GenerateNewID(kind Kind) (string, error) {
	switch kind {
	case KindPatient:
		return s.GenerateNewPatientID(), nil
	case KindAppointment:
		return s.GenerateNewAppointmentID(), nil
	case KindPrescription:
		return s.GenerateNewPrescriptionID(), nil
	case KindReferral:
		return s.registry.GenerateID(), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Counts returns the number of records held per kind.
func (s *Store) Counts() map[Kind]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[Kind]int{
		KindPatient:      s.patients.len(),
		KindAppointment:  s.appointments.len(),
		KindPrescription: s.prescriptions.len(),
		KindReferral:     s.registry.Count(),
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func (s *Store) addLocked(kind Kind, id string, exists bool, add func()) error {
	if exists {
		return fmt.Errorf("%s %s: %w", kind, id, ErrDuplicateID)
	}
	add()
	return nil
}

// updateLocked replaces the record stored under id with v. v may carry a new
// id, but not one already held by another record.
func updateLocked[T any](c *collection[T], kind Kind, id string, v T) error {
	if c.index(id) < 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	if newID := c.id(v); newID != id && c.index(newID) >= 0 {
		return fmt.Errorf("%s %s: %w", kind, newID, ErrDuplicateID)
	}
	c.replace(id, v)
	return nil
}

func (s *Store) removeLocked(kind Kind, id string, removed int) error {
	if removed == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

// observe records the outcome of an operation and refreshes the gauge for kind.
func (s *Store) observe(kind Kind, op string, err error) error {
	s.metrics.ObserveOperation(string(kind), op, err)
	if err == nil {
		s.refreshGauge(kind)
	}
	return err
}

func (s *Store) refreshGauges() {
	for _, k := range Kinds {
		s.refreshGauge(k)
	}
}

func (s *Store) refreshGauge(kind Kind) {
	s.metrics.SetRecords(string(kind), s.Counts()[kind])
}
