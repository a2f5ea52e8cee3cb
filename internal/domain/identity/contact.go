package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone parses raw in the given default region and returns it in
// E.164 form.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPhone)
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidPhone, raw, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// ContactIssues lists problems with the patient's contact details. Blank
// numbers are not reported; the flat files routinely leave them out.
func ContactIssues(p *Patient, region string) []string {
	if p == nil {
		return nil
	}
	var issues []string
	check := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		if _, err := NormalizePhone(value, region); err != nil {
			issues = append(issues, fmt.Sprintf("%s: %q is not a valid number", field, value))
		}
	}
	check("phone_number", p.Phone)
	check("emergency_contact_phone", p.EmergencyContactPhone)
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		issues = append(issues, fmt.Sprintf("email: %q has no domain", p.Email))
	}
	return issues
}
