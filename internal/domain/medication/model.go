package medication

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Status is the dispensing state of a prescription.
type Status string

const (
	StatusIssued         Status = "Issued"
	StatusSentToPharmacy Status = "Sent to Pharmacy"
	StatusCollected      Status = "Collected"
	StatusCancelled      Status = "Cancelled"
)

// Prescription is a medication order written by a clinician for a patient.
type Prescription struct {
	ID             string `json:"prescription_id"`
	PatientID      string `json:"patient_id"`
	ClinicianID    string `json:"clinician_id"`
	AppointmentID  string `json:"appointment_id"`
	Date           string `json:"prescription_date"`
	MedicationName string `json:"medication_name" validate:"required"`
	Dosage         string `json:"dosage" validate:"required"`
	Frequency      string `json:"frequency"`
	DurationDays   int    `json:"duration_days" validate:"gte=0"`
	Quantity       int    `json:"quantity" validate:"gte=0"`
	Instructions   string `json:"instructions"`
	PharmacyName   string `json:"pharmacy_name"`
	Status         Status `json:"status"`
	IssueDate      string `json:"issue_date"`
	CollectionDate string `json:"collection_date"`
}

var validate = validator.New()

// NewPrescription returns a blank prescription in the Issued state.
func NewPrescription() *Prescription {
	return &Prescription{Status: StatusIssued}
}

// Validate checks the prescription is usable: medication name and dosage are
// required and counts must not be negative.
func (p *Prescription) Validate() error {
	if err := validate.Struct(p); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return fmt.Errorf("prescription %s: field %s failed %q", p.ID, errs[0].Field(), errs[0].Tag())
		}
		return fmt.Errorf("prescription %s: %w", p.ID, err)
	}
	return nil
}

// Valid is Validate as a boolean.
func (p *Prescription) Valid() bool {
	return p.Validate() == nil
}

func (p *Prescription) SendToPharmacy() {
	p.Status = StatusSentToPharmacy
}

func (p *Prescription) String() string {
	return fmt.Sprintf("Prescription ID: %s, Patient: %s, Medication: %s, Dosage: %s, Status: %s",
		p.ID, p.PatientID, p.MedicationName, p.Dosage, p.Status)
}
