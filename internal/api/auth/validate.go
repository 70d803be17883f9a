package auth

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/stashly/stashly-api/config"
	"github.com/stashly/stashly-api/internal/types"
)

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{2,50}$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateUsername(username string) error {
	if !usernameRe.MatchString(username) {
		return fmt.Errorf("%w: username must be 2-50 characters of letters, digits, '_' or '-'", types.ErrValidation)
	}
	return nil
}

// validateEmail checks basic address shape and that the domain ends in one of
// the allowed suffixes. The allowlist is a business rule, not general email
// validation: .net addresses are rejected with the defaults.
func validateEmail(email string, allowedDomains []string) error {
	if !emailRe.MatchString(email) {
		return fmt.Errorf("%w: malformed email address", types.ErrValidation)
	}
	if len(allowedDomains) == 0 {
		return nil
	}
	lower := strings.ToLower(email)
	for _, suffix := range allowedDomains {
		if strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return nil
		}
	}
	return fmt.Errorf("%w: email domain is not accepted", types.ErrValidation)
}

// validatePassword enforces the complexity policy: length bounds plus at
// least one upper-case letter, one digit and one special character.
func validatePassword(password string, cfg config.AuthConfig) error {
	minLen, maxLen := cfg.PasswordMinLength, cfg.PasswordMaxLength
	if minLen <= 0 {
		minLen = 8
	}
	if maxLen <= 0 {
		maxLen = 16
	}
	if len(password) < minLen || len(password) > maxLen {
		return fmt.Errorf("%w: password must be between %d and %d characters", types.ErrValidation, minLen, maxLen)
	}
	var hasUpper, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			hasSpecial = true
		}
	}
	if !hasUpper || !hasDigit || !hasSpecial {
		return fmt.Errorf("%w: password must contain an upper-case letter, a digit and a special character", types.ErrValidation)
	}
	return nil
}
