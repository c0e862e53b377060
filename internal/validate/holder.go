// Package validate checks reservation input coming from the public form.
// The form has no other anti-spam control, so beyond basic shape checks it
// applies a phone-liveness heuristic that filters out obviously fabricated
// numbers.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/lectorium/ticketing/internal/model"
)

// FieldError reports a user-correctable problem with a single input field.
// Handlers surface it as a 400 with the field name attached; it is never
// retried automatically.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// emailRe accepts the basic shape local@domain.tld.  Deliverability is the
// notification dispatcher's problem, not the form's.
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// PhonePolicy decides whether a phone number looks like one a real person
// would enter.  The heuristic is a weak anti-abuse signal, so it is a
// value the caller can swap rather than a fixed rule set.
type PhonePolicy struct {
	// MinDigits is the minimum number of digit characters required after
	// stripping formatting.
	MinDigits int
	// RejectMonotone rejects numbers whose digits are all identical
	// (1111111111) or all zero once formatting is stripped.
	RejectMonotone bool
}

// DefaultPhonePolicy mirrors the rules of the public reservation form.
var DefaultPhonePolicy = PhonePolicy{MinDigits: 6, RejectMonotone: true}

// Check applies the policy to a raw phone string.
func (p PhonePolicy) Check(phone string) error {
	digits := make([]byte, 0, len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, byte(r))
		}
	}
	if len(digits) < p.MinDigits {
		return &FieldError{Field: "holder_phone", Message: "phone number has too few digits"}
	}
	if p.RejectMonotone {
		same := true
		for _, d := range digits[1:] {
			if d != digits[0] {
				same = false
				break
			}
		}
		if same {
			return &FieldError{Field: "holder_phone", Message: "phone number does not look real"}
		}
	}
	return nil
}

// Holder bundles the reservation form fields that need validation.
type Holder struct {
	Name  string
	Email string
	Phone string
	Seats int
}

// Holder validates the reservation input against the given phone policy.
// The first failing field is reported; the client fixes fields one at a
// time anyway.
func (p PhonePolicy) Holder(h Holder) error {
	if utf8.RuneCountInString(strings.TrimSpace(h.Name)) < 2 {
		return &FieldError{Field: "holder_name", Message: "name must be at least 2 characters"}
	}
	if !emailRe.MatchString(h.Email) {
		return &FieldError{Field: "holder_email", Message: "invalid email address"}
	}
	if err := p.Check(h.Phone); err != nil {
		return err
	}
	if h.Seats < 1 || h.Seats > model.MaxSeatsPerTicket {
		return &FieldError{
			Field:   "number_of_seats",
			Message: fmt.Sprintf("number of seats must be between 1 and %d", model.MaxSeatsPerTicket),
		}
	}
	return nil
}
