package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/ehr/clinic/internal/domain/clinical"
	"github.com/ehr/clinic/internal/domain/medication"
	"github.com/ehr/clinic/internal/domain/referral"
	"github.com/ehr/clinic/internal/domain/scheduling"
)

// Clinician is a medical professional who can author clinical records. The
// set of implementations is closed: GP, Nurse and Specialist.
type Clinician interface {
	Actor
	CreateRecord(p *Patient) *clinical.Record
	Profile() *ClinicianProfile
	isClinician()
}

// ClinicianProfile holds the professional fields shared by every clinician.
type ClinicianProfile struct {
	Person
	Specialty          string `json:"specialty"`
	WorkplaceID        string `json:"workplace_id"`
	WorkplaceType      string `json:"workplace_type"`
	RegistrationNumber string `json:"gmc_number"`
	Title              string `json:"title"`
	EmploymentStatus   string `json:"employment_status"`
	StartDate          string `json:"start_date"`
}

func (c *ClinicianProfile) Profile() *ClinicianProfile { return c }

func (c *ClinicianProfile) isClinician() {}

// FullName includes the clinician's title when one is set.
func (c *ClinicianProfile) FullName() string {
	return strings.TrimSpace(c.Title + " " + c.FirstName + " " + c.LastName)
}

// Authenticate reports whether the clinician id and professional registration
// number are present.
func (c *ClinicianProfile) Authenticate() bool {
	return c.UserID != "" && c.RegistrationNumber != ""
}

// newRecord stamps a record for p authored by c at the current time.
func (c *ClinicianProfile) newRecord(p *Patient) *clinical.Record {
	return clinical.NewRecord(p.UserID, c.UserID)
}

func (c *ClinicianProfile) newPrescription(p *Patient, medicationName string) *medication.Prescription {
	rx := medication.NewPrescription()
	rx.PatientID = p.UserID
	rx.ClinicianID = c.UserID
	rx.MedicationName = medicationName
	rx.Date = time.Now().Format(time.DateOnly)
	return rx
}

// patientSet keeps patient references unique by id, in assignment order.
type patientSet []*Patient

func (s *patientSet) add(p *Patient) bool {
	if p == nil {
		return false
	}
	for _, cur := range *s {
		if cur.UserID == p.UserID {
			return false
		}
	}
	*s = append(*s, p)
	return true
}

func (s patientSet) list() []*Patient {
	out := make([]*Patient, len(s))
	copy(out, s)
	return out
}

// -- GP --

// GP is a general practitioner. GPs keep a panel of assigned patients and can
// write prescriptions and referrals.
type GP struct {
	ClinicianProfile
	ClinicAddress string `json:"clinic_address"`

	assigned patientSet
}

func NewGP(profile ClinicianProfile, clinicAddress string) *GP {
	profile.RoleTag = RoleGP
	return &GP{ClinicianProfile: profile, ClinicAddress: clinicAddress}
}

func (g *GP) CreateRecord(p *Patient) *clinical.Record {
	return g.newRecord(p)
}

// WritePrescription drafts an Issued prescription. The id is left empty for
// the record store to assign.
func (g *GP) WritePrescription(p *Patient, medicationName string) *medication.Prescription {
	return g.newPrescription(p, medicationName)
}

// CreateReferral drafts a routine referral of p to specialist. The id is left
// empty for the referral registry to assign.
func (g *GP) CreateReferral(p *Patient, specialist *Specialist, reason string) *referral.Referral {
	r := referral.New()
	r.PatientID = p.UserID
	r.ReferringClinicianID = g.UserID
	r.ReferringFacilityID = g.WorkplaceID
	if specialist != nil {
		r.ReferredToClinicianID = specialist.UserID
		r.ReferredToFacilityID = specialist.WorkplaceID
	}
	r.Reason = reason
	r.Date = time.Now().Format(time.DateOnly)
	return r
}

func (g *GP) AssignPatient(p *Patient) bool { return g.assigned.add(p) }

func (g *GP) AssignedPatients() []*Patient { return g.assigned.list() }

func (g *GP) String() string {
	return fmt.Sprintf("GP ID: %s, Name: %s, Specialty: %s, Clinic: %s, Patients: %d",
		g.UserID, g.FullName(), g.Specialty, g.ClinicAddress, len(g.assigned))
}

// -- Nurse --

// Nurse documents observations for assigned patients under a supervising doctor.
type Nurse struct {
	ClinicianProfile
	ShiftSchedule  string `json:"shift_schedule"`
	AssignedDoctor string `json:"assigned_doctor"`

	assigned patientSet
}

func NewNurse(profile ClinicianProfile, shiftSchedule, assignedDoctor string) *Nurse {
	profile.RoleTag = RoleNurse
	return &Nurse{ClinicianProfile: profile, ShiftSchedule: shiftSchedule, AssignedDoctor: assignedDoctor}
}

func (n *Nurse) CreateRecord(p *Patient) *clinical.Record {
	return n.newRecord(p)
}

// UpdateClinicalObservations files a new record holding observations on p.
func (n *Nurse) UpdateClinicalObservations(p *Patient, observations string) *clinical.Record {
	r := n.CreateRecord(p)
	r.Notes = observations
	p.AddClinicalRecord(r)
	return r
}

// RecordVitalSigns files a new record with the vitals as its symptoms.
func (n *Nurse) RecordVitalSigns(p *Patient, vitals string) bool {
	r := n.CreateRecord(p)
	r.Symptoms = "Vital Signs: " + vitals
	p.AddClinicalRecord(r)
	return true
}

// AssistClinicalDocumentation renders a short documentation header.
func (n *Nurse) AssistClinicalDocumentation(p *Patient, docType string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Clinical Documentation by %s\n", n.FullName())
	fmt.Fprintf(&b, "Patient: %s\n", p.FullName())
	fmt.Fprintf(&b, "Type: %s\n", docType)
	fmt.Fprintf(&b, "Date: %s\n", time.Now().Format(time.DateTime))
	return b.String()
}

func (n *Nurse) AssignPatient(p *Patient) bool { return n.assigned.add(p) }

func (n *Nurse) AssignedPatients() []*Patient { return n.assigned.list() }

func (n *Nurse) String() string {
	return fmt.Sprintf("Nurse ID: %s, Name: %s, Specialty: %s, Shift: %s, Assigned Patients: %d",
		n.UserID, n.FullName(), n.Specialty, n.ShiftSchedule, len(n.assigned))
}

// -- Specialist --

// Specialist receives referrals and keeps its own consultation records.
type Specialist struct {
	ClinicianProfile
	HospitalDepartment string `json:"hospital_department"`

	referred      patientSet
	consultations []*clinical.Record
}

func NewSpecialist(profile ClinicianProfile, department string) *Specialist {
	profile.RoleTag = RoleSpecialist
	return &Specialist{ClinicianProfile: profile, HospitalDepartment: department}
}

// CreateRecord also files the record among the specialist's consultations.
func (s *Specialist) CreateRecord(p *Patient) *clinical.Record {
	r := s.newRecord(p)
	s.consultations = append(s.consultations, r)
	return r
}

func (s *Specialist) ConsultationRecords() []*clinical.Record {
	out := make([]*clinical.Record, len(s.consultations))
	copy(out, s.consultations)
	return out
}

func (s *Specialist) addressedToMe(r *referral.Referral) bool {
	return r != nil && r.ReferredToClinicianID == s.UserID
}

// ReceiveReferral moves a referral addressed to this specialist to In Progress.
// Like every other status change it also stamps LastUpdated.
func (s *Specialist) ReceiveReferral(r *referral.Referral) bool {
	if !s.addressedToMe(r) {
		return false
	}
	r.MarkInProgress()
	return true
}

// AcceptReferral accepts a New or Sent referral addressed to this specialist.
func (s *Specialist) AcceptReferral(r *referral.Referral) bool {
	if !s.addressedToMe(r) {
		return false
	}
	return r.Accept()
}

// ReviewReferral records that an assessment was made; both arguments are required.
func (s *Specialist) ReviewReferral(referralID, assessment string) bool {
	return referralID != "" && assessment != ""
}

// AcceptAppointment confirms an appointment booked with this specialist.
func (s *Specialist) AcceptAppointment(a *scheduling.Appointment) bool {
	if a == nil || a.ClinicianID != s.UserID {
		return false
	}
	return a.Confirm()
}

func (s *Specialist) AddReferredPatient(p *Patient) bool { return s.referred.add(p) }

func (s *Specialist) ReferredPatients() []*Patient { return s.referred.list() }

// CreatePrescription drafts an Issued prescription with no id.
func (s *Specialist) CreatePrescription(p *Patient, medicationName string) *medication.Prescription {
	return s.newPrescription(p, medicationName)
}

func (s *Specialist) String() string {
	return fmt.Sprintf("Specialist ID: %s, Name: %s, Specialty: %s, Department: %s, Referred Patients: %d",
		s.UserID, s.FullName(), s.Specialty, s.HospitalDepartment, len(s.referred))
}

var (
	_ Clinician = (*GP)(nil)
	_ Clinician = (*Nurse)(nil)
	_ Clinician = (*Specialist)(nil)
	_ Actor     = (*Patient)(nil)
)
