// Package validate provides the syntactic checks flow handlers apply to
// caller input and node attributes: DTMF strings, extensions, phone
// numbers, URLs, timestamps, and required-field sets.
package validate

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	dtmfRe  = regexp.MustCompile(`^[0-9*#]+$`)
	extRe   = regexp.MustCompile(`^[0-9]{2,6}$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9]{5,15}$`)
)

// DTMF reports whether s is a non-empty string of DTMF symbols (0-9, *, #).
func DTMF(s string) bool {
	return dtmfRe.MatchString(s)
}

// Extension reports whether s looks like an internal extension: two to six
// digits.
func Extension(s string) bool {
	return extRe.MatchString(s)
}

// Phone reports whether s looks like a dialable phone number: an optional
// leading plus followed by five to fifteen digits. Separators are not
// accepted; normalize before calling.
func Phone(s string) bool {
	return phoneRe.MatchString(s)
}

// URL reports whether s parses as an absolute http or https URL.
func URL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// DateTime reports whether s parses under any of the given layouts. With no
// layouts, RFC 3339 and the switch's "2006-01-02 15:04:05" format are tried.
func DateTime(s string, layouts ...string) bool {
	if len(layouts) == 0 {
		layouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}
	}
	for _, l := range layouts {
		if _, err := time.Parse(l, s); err == nil {
			return true
		}
	}
	return false
}

// Required checks that every value in fields is non-blank. The map key is
// the field name used in the error. All failures are joined.
func Required(fields map[string]string) error {
	var errs []error
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
