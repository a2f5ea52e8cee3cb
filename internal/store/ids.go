package store

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind names an entity collection.
type Kind string

const (
	KindPatient      Kind = "patient"
	KindAppointment  Kind = "appointment"
	KindPrescription Kind = "prescription"
	KindReferral     Kind = "referral"
)

// Kinds lists every entity kind in load/save order.
var Kinds = []Kind{KindPatient, KindAppointment, KindPrescription, KindReferral}

var ErrUnknownKind = errors.New("unknown entity kind")

// ParseKind accepts a kind name, singular or plural.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Identifier prefixes. Referral ids come from the referral registry.
const (
	patientPrefix      = "P"
	appointmentPrefix  = "A"
	prescriptionPrefix = "RX"
)

// nextSequentialID returns prefix followed by one more than the largest
// numeric suffix among ids carrying that prefix, zero-padded to three digits.
// Ids whose suffix is not all digits, or too large to increment, are ignored.
func nextSequentialID(prefix string, ids []string) string {
	highest := 0
	for _, id := range ids {
		n, ok := numericSuffix(id, prefix)
		if ok && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%03d", prefix, highest+1)
}

func numericSuffix(id, prefix string) (int, bool) {
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	digits := id[len(prefix):]
	if digits == "" {
		return 0, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n >= math.MaxInt32 {
		return 0, false
	}
	return n, true
}
