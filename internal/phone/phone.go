// Package phone normalizes and validates phone numbers in E.164 form.
package phone

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalid is returned when a phone number cannot be normalized to E.164.
var ErrInvalid = errors.New("invalid phone number")

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// Normalize strips common separators, ensures a leading plus and validates
// the result against E.164 (+ followed by 7-15 digits, no leading zero).
func Normalize(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// separator, drop
		default:
			return "", ErrInvalid
		}
	}
	s := b.String()
	if s == "" {
		return "", ErrInvalid
	}
	if !strings.HasPrefix(s, "+") {
		s = "+" + s
	}
	if !e164.MatchString(s) {
		return "", ErrInvalid
	}
	return s, nil
}

// Mask hides the middle of a phone number for logging (e.g. +15******67).
// Inputs too short to keep any digit hidden are masked entirely.
func Mask(phone string) string {
	if len(phone) <= 5 {
		return "****"
	}
	return phone[:3] + strings.Repeat("*", len(phone)-5) + phone[len(phone)-2:]
}
