package scheduling

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusConfirmed Status = "Confirmed"
	StatusCancelled Status = "Cancelled"
	StatusCompleted Status = "Completed"
)

var validStatuses = map[Status]bool{
	StatusScheduled: true, StatusConfirmed: true,
	StatusCancelled: true, StatusCompleted: true,
}

// IsValid reports whether s is a known appointment status.
func (s Status) IsValid() bool { return validStatuses[s] }

// Appointment is one booked slot between a patient and a clinician.
type Appointment struct {
	ID              string `json:"appointment_id"`
	PatientID       string `json:"patient_id"`
	ClinicianID     string `json:"clinician_id"`
	FacilityID      string `json:"facility_id"`
	Date            string `json:"appointment_date"`
	Time            string `json:"appointment_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Type            string `json:"appointment_type"`
	Status          Status `json:"status"`
	Reason          string `json:"reason_for_visit"`
	Notes           string `json:"notes"`
	CreatedDate     string `json:"created_date"`
	LastModified    string `json:"last_modified"`
}

// NewAppointment returns a blank appointment in the Scheduled state.
func NewAppointment() *Appointment {
	return &Appointment{Status: StatusScheduled}
}

// Schedule puts the appointment (back) into the Scheduled state. Date and time
// must already be set.
func (a *Appointment) Schedule() bool {
	if a.Date == "" || a.Time == "" {
		return false
	}
	a.Status = StatusScheduled
	a.LastModified = today()
	return true
}

// Reschedule moves the appointment to a new date and time. Status is left
// untouched.
func (a *Appointment) Reschedule(date, tm string) bool {
	if date == "" || tm == "" {
		return false
	}
	a.Date = date
	a.Time = tm
	a.LastModified = today()
	return true
}

// Confirm marks a scheduled appointment as confirmed by the clinician.
// Cancelled and completed appointments cannot be confirmed.
func (a *Appointment) Confirm() bool {
	if a.Status == StatusCancelled || a.Status == StatusCompleted {
		return false
	}
	a.Status = StatusConfirmed
	a.LastModified = today()
	return true
}

// Cancel always succeeds.
func (a *Appointment) Cancel() bool {
	a.Status = StatusCancelled
	a.LastModified = today()
	return true
}

func (a *Appointment) String() string {
	return fmt.Sprintf("Appointment ID: %s, Patient: %s, Clinician: %s, Date: %s %s, Type: %s, Status: %s",
		a.ID, a.PatientID, a.ClinicianID, a.Date, a.Time, a.Type, a.Status)
}

func today() string {
	return time.Now().Format(time.DateOnly)
}
