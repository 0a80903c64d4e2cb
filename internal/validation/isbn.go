package validation

import (
	"errors"
	"strings"
)

// ErrInvalidISBN is returned for malformed or badly checksummed ISBNs.
var ErrInvalidISBN = errors.New("isbn must be a valid ISBN-10 or ISBN-13")

// NormalizeISBN strips spaces and hyphens and upper-cases a trailing x.
func NormalizeISBN(isbn string) string {
	isbn = strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(isbn))
	return strings.ToUpper(isbn)
}

// ValidateISBN normalizes isbn and verifies its checksum.
func ValidateISBN(isbn string) (string, error) {
	n := NormalizeISBN(isbn)
	switch len(n) {
	case 10:
		if validISBN10(n) {
			return n, nil
		}
	case 13:
		if validISBN13(n) {
			return n, nil
		}
	}
	return "", ErrInvalidISBN
}

func validISBN10(s string) bool {
	sum := 0
	for i := 0; i < 10; i++ {
		c := s[i]
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c == 'X' && i == 9:
			v = 10
		default:
			return false
		}
		sum += v * (10 - i)
	}
	return sum%11 == 0
}

func validISBN13(s string) bool {
	sum := 0
	for i := 0; i < 13; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		v := int(c - '0')
		if i%2 == 1 {
			v *= 3
		}
		sum += v
	}
	return sum%10 == 0
}
