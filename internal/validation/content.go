package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var categorySlugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,30}[a-z0-9]$`)

// ValidateCategorySlug checks forum and resource category slugs.
func ValidateCategorySlug(slug string) error {
	if !categorySlugRegex.MatchString(slug) || strings.Contains(slug, "--") {
		return fmt.Errorf("category must be 2-32 lowercase letters, numbers or single hyphens")
	}
	return nil
}

// ValidateLength trims s and checks it holds between min and max runes.
func ValidateLength(field, s string, min, max int) (string, error) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n < min {
		if min == 1 {
			return "", fmt.Errorf("%s is required", field)
		}
		return "", fmt.Errorf("%s must be at least %d characters", field, min)
	}
	if n > max {
		return "", fmt.Errorf("%s too long (max %d characters)", field, max)
	}
	return s, nil
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("url must be an absolute http or https address")
	}
	return u.String(), nil
}
