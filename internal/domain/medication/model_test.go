package medication

import (
	"strings"
	"testing"
)

func TestNewPrescription_Defaults(t *testing.T) {
	p := NewPrescription()
	if p.Status != StatusIssued {
		t.Errorf("expected status Issued, got %q", p.Status)
	}
	if p.Valid() {
		t.Error("blank prescription must not be valid")
	}
}

func TestPrescription_Validate(t *testing.T) {
	tests := []struct {
		name    string
		p       Prescription
		wantErr string
	}{
		{"ok", Prescription{MedicationName: "Amoxicillin", Dosage: "500mg"}, ""},
		{"missing medication", Prescription{Dosage: "500mg"}, "MedicationName"},
		{"missing dosage", Prescription{MedicationName: "Amoxicillin"}, "Dosage"},
		{"negative quantity", Prescription{MedicationName: "Amoxicillin", Dosage: "500mg", Quantity: -1}, "Quantity"},
		{"negative duration", Prescription{MedicationName: "Amoxicillin", Dosage: "500mg", DurationDays: -3}, "DurationDays"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !tt.p.Valid() {
					t.Error("expected Valid() to be true")
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error mentioning %s", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPrescription_SendToPharmacy(t *testing.T) {
	p := NewPrescription()
	p.SendToPharmacy()
	if p.Status != StatusSentToPharmacy {
		t.Errorf("expected %q, got %q", StatusSentToPharmacy, p.Status)
	}
}
