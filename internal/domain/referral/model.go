package referral

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a referral.
type Status string

const (
	StatusNew        Status = "New"
	StatusSent       Status = "Sent"
	StatusAccepted   Status = "Accepted"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusRejected   Status = "Rejected"
)

// Urgency is how quickly the receiving clinician should act.
type Urgency string

const (
	UrgencyRoutine   Urgency = "Routine"
	UrgencyUrgent    Urgency = "Urgent"
	UrgencyEmergency Urgency = "Emergency"
)

// Referral transfers a patient's care from one clinician/facility to another.
type Referral struct {
	ID                      string  `json:"referral_id"`
	PatientID               string  `json:"patient_id"`
	ReferringClinicianID    string  `json:"referring_clinician_id"`
	ReferredToClinicianID   string  `json:"referred_to_clinician_id"`
	ReferringFacilityID     string  `json:"referring_facility_id"`
	ReferredToFacilityID    string  `json:"referred_to_facility_id"`
	Date                    string  `json:"referral_date"`
	Urgency                 Urgency `json:"urgency_level"`
	Reason                  string  `json:"referral_reason"`
	ClinicalSummary         string  `json:"clinical_summary"`
	RequestedInvestigations string  `json:"requested_investigations"`
	Status                  Status  `json:"status"`
	AppointmentID           string  `json:"appointment_id"`
	Notes                   string  `json:"notes"`
	CreatedDate             string  `json:"created_date"`
	LastUpdated             string  `json:"last_updated"`
}

// New returns a blank routine referral in the New state.
func New() *Referral {
	return &Referral{Status: StatusNew, Urgency: UrgencyRoutine}
}

// Send marks the referral as sent regardless of its current state.
func (r *Referral) Send() {
	r.Status = StatusSent
	r.LastUpdated = today()
}

// Accept moves a New or Sent referral to Accepted. Any other state is left
// unchanged and false is returned.
func (r *Referral) Accept() bool {
	if r.Status != StatusNew && r.Status != StatusSent {
		return false
	}
	r.Status = StatusAccepted
	r.LastUpdated = today()
	return true
}

// MarkInProgress records that the receiving clinician has picked the referral up.
func (r *Referral) MarkInProgress() {
	r.Status = StatusInProgress
	r.LastUpdated = today()
}

func (r *Referral) String() string {
	return fmt.Sprintf("Referral ID: %s, Patient: %s, From: %s, To: %s, Urgency: %s, Status: %s",
		r.ID, r.PatientID, r.ReferringClinicianID, r.ReferredToClinicianID, r.Urgency, r.Status)
}

func today() string {
	return time.Now().Format(time.DateOnly)
}
