package identity

import (
	"fmt"

	"github.com/ehr/clinic/internal/domain/clinical"
	"github.com/ehr/clinic/internal/domain/scheduling"
)

// Role tags the kind of actor.
type Role string

const (
	RolePatient    Role = "Patient"
	RoleGP         Role = "GP"
	RoleNurse      Role = "Nurse"
	RoleSpecialist Role = "Specialist"
)

// Actor is any person with an identity in the practice.
//
// Authenticate is a placeholder: it only checks that the identifying fields
// of the actor are filled in. It performs no credential verification and must
// not be relied on for access control.
type Actor interface {
	ID() string
	FullName() string
	Authenticate() bool
	Role() Role
}

// Person holds the fields shared by every actor.
type Person struct {
	UserID    string `json:"id"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"-"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone_number"`
	RoleTag   Role   `json:"role"`
	Email     string `json:"email"`
}

func (p *Person) ID() string { return p.UserID }

func (p *Person) Role() Role { return p.RoleTag }

func (p *Person) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Patient is a registered patient of the practice. The patient owns its
// appointment history and clinical records.
type Patient struct {
	Person
	NHSNumber             string `json:"nhs_number"`
	DateOfBirth           string `json:"date_of_birth"`
	Address               string `json:"address"`
	Postcode              string `json:"postcode"`
	Gender                string `json:"gender"`
	EmergencyContactName  string `json:"emergency_contact_name"`
	EmergencyContactPhone string `json:"emergency_contact_phone"`
	RegistrationDate      string `json:"registration_date"`
	GPSurgeryID           string `json:"gp_surgery_id"`

	Appointments    []*scheduling.Appointment `json:"-"`
	ClinicalRecords []*clinical.Record        `json:"-"`
}

// NewPatient returns a blank patient.
func NewPatient() *Patient {
	return &Patient{Person: Person{RoleTag: RolePatient}}
}

// Authenticate reports whether the patient id and first name are present.
func (p *Patient) Authenticate() bool {
	return p.UserID != "" && p.FirstName != ""
}

func (p *Patient) BookAppointment(a *scheduling.Appointment) bool {
	if a == nil {
		return false
	}
	p.Appointments = append(p.Appointments, a)
	return true
}

// ModifyAppointment replaces the appointment with the given id.
func (p *Patient) ModifyAppointment(id string, a *scheduling.Appointment) bool {
	if a == nil {
		return false
	}
	for i, cur := range p.Appointments {
		if cur.ID == id {
			p.Appointments[i] = a
			return true
		}
	}
	return false
}

func (p *Patient) CancelAppointment(id string) bool {
	for _, a := range p.Appointments {
		if a.ID == id {
			return a.Cancel()
		}
	}
	return false
}

// ViewRecords returns a copy of the patient's clinical records.
func (p *Patient) ViewRecords() []*clinical.Record {
	out := make([]*clinical.Record, len(p.ClinicalRecords))
	copy(out, p.ClinicalRecords)
	return out
}

func (p *Patient) AddClinicalRecord(r *clinical.Record) {
	if r != nil {
		p.ClinicalRecords = append(p.ClinicalRecords, r)
	}
}

func (p *Patient) String() string {
	return fmt.Sprintf("Patient ID: %s, Name: %s, NHS: %s, DOB: %s, Gender: %s, Email: %s",
		p.UserID, p.FullName(), p.NHSNumber, p.DateOfBirth, p.Gender, p.Email)
}
