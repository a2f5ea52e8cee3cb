package store

import (
	"strconv"

	"github.com/ehr/clinic/internal/domain/identity"
	"github.com/ehr/clinic/internal/domain/medication"
	"github.com/ehr/clinic/internal/domain/referral"
	"github.com/ehr/clinic/internal/domain/scheduling"
	"github.com/ehr/clinic/internal/platform/flatfile"
)

// File names under the data directory.
const (
	PatientsFile      = "patients.csv"
	AppointmentsFile  = "appointments.csv"
	PrescriptionsFile = "prescriptions.csv"
	ReferralsFile     = "referrals.csv"
)

var patientTable = flatfile.Schema[*identity.Patient]{
	File: PatientsFile,
	Header: []string{
		"patient_id", "first_name", "last_name", "date_of_birth", "nhs_number",
		"gender", "phone_number", "email", "address", "postcode",
		"emergency_contact_name", "emergency_contact_phone", "registration_date", "gp_surgery_id",
	},
	Quoted: []int{8},
	Decode: func(r *flatfile.Row) *identity.Patient {
		p := identity.NewPatient()
		p.UserID = r.Str(0)
		p.FirstName = r.Str(1)
		p.LastName = r.Str(2)
		p.DateOfBirth = r.Str(3)
		p.NHSNumber = r.Str(4)
		p.Gender = r.Str(5)
		p.Phone = r.Str(6)
		p.Email = r.Str(7)
		p.Address = r.Str(8)
		p.Postcode = r.Str(9)
		p.EmergencyContactName = r.Str(10)
		p.EmergencyContactPhone = r.Str(11)
		p.RegistrationDate = r.Str(12)
		p.GPSurgeryID = r.Str(13)
		return p
	},
	Encode: func(p *identity.Patient) []string {
		return []string{
			p.UserID, p.FirstName, p.LastName, p.DateOfBirth, p.NHSNumber,
			p.Gender, p.Phone, p.Email, p.Address, p.Postcode,
			p.EmergencyContactName, p.EmergencyContactPhone, p.RegistrationDate, p.GPSurgeryID,
		}
	},
}

var appointmentTable = flatfile.Schema[*scheduling.Appointment]{
	File: AppointmentsFile,
	Header: []string{
		"appointment_id", "patient_id", "clinician_id", "facility_id", "appointment_date",
		"appointment_time", "duration_minutes", "appointment_type", "status", "reason_for_visit",
		"notes", "created_date", "last_modified",
	},
	Quoted: []int{10},
	Decode: func(r *flatfile.Row) *scheduling.Appointment {
		return &scheduling.Appointment{
			ID:              r.Str(0),
			PatientID:       r.Str(1),
			ClinicianID:     r.Str(2),
			FacilityID:      r.Str(3),
			Date:            r.Str(4),
			Time:            r.Str(5),
			DurationMinutes: r.Int(6),
			Type:            r.Str(7),
			Status:          scheduling.Status(r.Str(8)),
			Reason:          r.Str(9),
			Notes:           r.Str(10),
			CreatedDate:     r.Str(11),
			LastModified:    r.Str(12),
		}
	},
	Encode: func(a *scheduling.Appointment) []string {
		return []string{
			a.ID, a.PatientID, a.ClinicianID, a.FacilityID, a.Date,
			a.Time, strconv.Itoa(a.DurationMinutes), a.Type, string(a.Status), a.Reason,
			a.Notes, a.CreatedDate, a.LastModified,
		}
	},
}

var prescriptionTable = flatfile.Schema[*medication.Prescription]{
	File: PrescriptionsFile,
	Header: []string{
		"prescription_id", "patient_id", "clinician_id", "appointment_id", "prescription_date",
		"medication_name", "dosage", "frequency", "duration_days", "quantity",
		"instructions", "pharmacy_name", "status", "issue_date", "collection_date",
	},
	Decode: func(r *flatfile.Row) *medication.Prescription {
		return &medication.Prescription{
			ID:             r.Str(0),
			PatientID:      r.Str(1),
			ClinicianID:    r.Str(2),
			AppointmentID:  r.Str(3),
			Date:           r.Str(4),
			MedicationName: r.Str(5),
			Dosage:         r.Str(6),
			Frequency:      r.Str(7),
			DurationDays:   r.Int(8),
			Quantity:       r.Int(9),
			Instructions:   r.Str(10),
			PharmacyName:   r.Str(11),
			Status:         medication.Status(r.Str(12)),
			IssueDate:      r.Str(13),
			CollectionDate: r.Str(14),
		}
	},
	Encode: func(p *medication.Prescription) []string {
		return []string{
			p.ID, p.PatientID, p.ClinicianID, p.AppointmentID, p.Date,
			p.MedicationName, p.Dosage, p.Frequency, strconv.Itoa(p.DurationDays), strconv.Itoa(p.Quantity),
			p.Instructions, p.PharmacyName, string(p.Status), p.IssueDate, p.CollectionDate,
		}
	},
}

var referralTable = flatfile.Schema[*referral.Referral]{
	File: ReferralsFile,
	Header: []string{
		"referral_id", "patient_id", "referring_clinician_id", "referred_to_clinician_id",
		"referring_facility_id", "referred_to_facility_id", "referral_date", "urgency_level",
		"referral_reason", "clinical_summary", "requested_investigations", "status",
		"appointment_id", "notes", "created_date", "last_updated",
	},
	Quoted: []int{9, 13},
	Decode: func(r *flatfile.Row) *referral.Referral {
		return &referral.Referral{
			ID:                      r.Str(0),
			PatientID:               r.Str(1),
			ReferringClinicianID:    r.Str(2),
			ReferredToClinicianID:   r.Str(3),
			ReferringFacilityID:     r.Str(4),
			ReferredToFacilityID:    r.Str(5),
			Date:                    r.Str(6),
			Urgency:                 referral.Urgency(r.Str(7)),
			Reason:                  r.Str(8),
			ClinicalSummary:         r.Str(9),
			RequestedInvestigations: r.Str(10),
			Status:                  referral.Status(r.Str(11)),
			AppointmentID:           r.Str(12),
			Notes:                   r.Str(13),
			CreatedDate:             r.Str(14),
			LastUpdated:             r.Str(15),
		}
	},
	Encode: func(r *referral.Referral) []string {
		return []string{
			r.ID, r.PatientID, r.ReferringClinicianID, r.ReferredToClinicianID,
			r.ReferringFacilityID, r.ReferredToFacilityID, r.Date, string(r.Urgency),
			r.Reason, r.ClinicalSummary, r.RequestedInvestigations, string(r.Status),
			r.AppointmentID, r.Notes, r.CreatedDate, r.LastUpdated,
		}
	},
}
