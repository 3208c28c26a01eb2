// Package validator provides phone number validation for customer SMS
package validator

import (
	"regexp"
)

var (
	phoneRegex      = regexp.MustCompile(`^\+[1-9]\d{7,14}$`) // E.164 format
	phoneDigitsOnly = regexp.MustCompile(`[^0-9]`)            // For cleaning phone numbers
)

// IsValidPhone validates phone number (E.164 format)
func IsValidPhone(phone string) bool {
	return phoneRegex.MatchString(phone)
}

// NormalizePhone converts a phone number to E.164 format
// Accepts formats like: 526621816014, +526621816014, (52) 662-181-6014
// Returns format: +526621816014, or "" when no digits remain
func NormalizePhone(phone string) string {
	digitsOnly := phoneDigitsOnly.ReplaceAllString(phone, "")
	if digitsOnly == "" {
		return ""
	}
	return "+" + digitsOnly
}
