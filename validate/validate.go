// Package validate holds the local, synchronous input checks that run before
// any network call is made. This consolidates validation rules that were
// previously scattered across the individual auth forms.
package validate

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nameRegex  = regexp.MustCompile(`^[A-Za-z]+(\s+[A-Za-z]+)?$`)
)

// Symbols is the fixed set of special characters a password may (and must) contain.
const Symbols = "@$!%*?&"

// Email reports whether s has the local@domain.tld shape.
func Email(s string) bool {
	return emailRegex.MatchString(s)
}

// Password reports whether s meets the password requirements:
// minimum 8 characters, at least one uppercase letter, one lowercase letter,
// one digit, and one symbol from Symbols. No other characters are allowed.
func Password(s string) bool {
	if len(s) < 8 {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case unicode.IsDigit(r) && r < 128:
			digit = true
		case strings.ContainsRune(Symbols, r):
			symbol = true
		default:
			return false
		}
	}
	return lower && upper && digit && symbol
}

// Name reports whether s is one or two alphabetic tokens separated by
// whitespace, with at least two letters in total.
func Name(s string) bool {
	s = strings.TrimSpace(s)
	if !nameRegex.MatchString(s) {
		return false
	}
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 2
}
