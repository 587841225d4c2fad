package forms

import (
	"errors"
	"strings"
	"unicode"
)

// Validation error messages are shown to the user verbatim, so they carry
// the full instruction text rather than terse reasons.
var (
	errBadFullName = errors.New("❌ Пожалуйста, введите корректное ФИО (Фамилия Имя Отчество).\nФИО должно содержать только буквы и состоять минимум из двух слов.")
	errBadPhone    = errors.New("❌ Пожалуйста, введите корректный номер телефона в формате +7XXXXXXXXXX или 8XXXXXXXXXX.")
)

// AcceptAny trims the input and accepts it without validation.
func AcceptAny(raw string) (string, error) {
	return strings.TrimSpace(raw), nil
}

// NonEmpty rejects blank input with the given message.
func NonEmpty(msg string) func(string) (string, error) {
	return func(raw string) (string, error) {
		v := strings.TrimSpace(raw)
		if v == "" {
			return "", errors.New(msg)
		}
		return v, nil
	}
}

// MinLen rejects input shorter than n runes with the given message.
func MinLen(n int, msg string) func(string) (string, error) {
	return func(raw string) (string, error) {
		v := strings.TrimSpace(raw)
		if len([]rune(v)) < n {
			return "", errors.New(msg)
		}
		return v, nil
	}
}

// ValidateFullName accepts a full name of at least two whitespace-separated
// tokens, each composed solely of letters.
func ValidateFullName(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	parts := strings.Fields(v)
	if len(parts) < 2 {
		return "", errBadFullName
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsLetter(r) {
				return "", errBadFullName
			}
		}
	}
	return v, nil
}

// ValidatePhone accepts +7 or 8 followed by exactly 10 digits (spaces
// ignored) and normalizes to +7 plus the trailing 10 digits. Normalization
// is idempotent: an already-normalized number passes through unchanged.
func ValidatePhone(raw string) (string, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	digits := digitsOf(cleaned)
	switch {
	case strings.HasPrefix(cleaned, "+7") && len(digits) == 11 && cleaned == "+7"+digits[1:]:
	case strings.HasPrefix(cleaned, "8") && len(digits) == 11 && cleaned == digits:
	default:
		return "", errBadPhone
	}
	return "+7" + digits[len(digits)-10:], nil
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
