package clinical

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is a single clinical note about a patient authored by a clinician.
type Record struct {
	ID          string    `json:"record_id"`
	PatientID   string    `json:"patient_id"`
	ClinicianID string    `json:"clinician_id"`
	Diagnosis   string    `json:"diagnosis"`
	Symptoms    string    `json:"symptoms"`
	Treatment   string    `json:"treatment"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewRecord stamps a fresh record for patientID authored by clinicianID.
func NewRecord(patientID, clinicianID string) *Record {
	return &Record{
		ID:          "CR-" + uuid.New().String(),
		PatientID:   patientID,
		ClinicianID: clinicianID,
		CreatedAt:   time.Now(),
	}
}

// AddEntry appends a line to the notes. Existing notes are never rewritten.
func (r *Record) AddEntry(entry string) {
	r.Notes += "\n" + entry
}

func (r *Record) String() string {
	return fmt.Sprintf("Record ID: %s, Patient: %s, Diagnosis: %s, Date: %s",
		r.ID, r.PatientID, r.Diagnosis, r.CreatedAt.Format(time.RFC3339))
}
