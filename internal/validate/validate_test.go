package validate

import (
	"strings"
	"testing"
)

func TestDTMF(t *testing.T) {
	for _, ok := range []string{"1", "0123456789", "*", "#", "1*2#"} {
		if !DTMF(ok) {
			t.Errorf("DTMF(%q) = false", ok)
		}
	}
	for _, bad := range []string{"", "12a", "1 2", "+49", "one"} {
		if DTMF(bad) {
			t.Errorf("DTMF(%q) = true", bad)
		}
	}
}

func TestExtension(t *testing.T) {
	for _, ok := range []string{"10", "1001", "999999"} {
		if !Extension(ok) {
			t.Errorf("Extension(%q) = false", ok)
		}
	}
	for _, bad := range []string{"", "1", "1234567", "10a", "*10"} {
		if Extension(bad) {
			t.Errorf("Extension(%q) = true", bad)
		}
	}
}

func TestPhone(t *testing.T) {
	for _, ok := range []string{"12345", "+4915112345678", "004912345"} {
		if !Phone(ok) {
			t.Errorf("Phone(%q) = false", ok)
		}
	}
	for _, bad := range []string{"", "1234", "+49 151", "call-me", "+123456789012345678"} {
		if Phone(bad) {
			t.Errorf("Phone(%q) = true", bad)
		}
	}
}

func TestURL(t *testing.T) {
	for _, ok := range []string{"http://crm.local/api", "https://idp.example.com/token?x=1"} {
		if !URL(ok) {
			t.Errorf("URL(%q) = false", ok)
		}
	}
	for _, bad := range []string{"", "ftp://files.local", "crm.local/api", "https://"} {
		if URL(bad) {
			t.Errorf("URL(%q) = true", bad)
		}
	}
}

func TestDateTime(t *testing.T) {
	for _, ok := range []string{"2026-08-24T10:30:00Z", "2026-08-24 10:30:00", "2026-08-24"} {
		if !DateTime(ok) {
			t.Errorf("DateTime(%q) = false", ok)
		}
	}
	if DateTime("24.08.2026") {
		t.Error(`DateTime("24.08.2026") = true with default layouts`)
	}
	if !DateTime("24.08.2026", "02.01.2006") {
		t.Error("DateTime with custom layout = false")
	}
}

func TestRequired(t *testing.T) {
	if err := Required(map[string]string{"a": "x", "b": "y"}); err != nil {
		t.Errorf("Required() = %v", err)
	}
	err := Required(map[string]string{"token_url": "", "client_id": "  "})
	if err == nil {
		t.Fatal("Required() = nil")
	}
	for _, want := range []string{"token_url", "client_id"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}
