package session

import (
	"testing"

	"github.com/voxflow/voxflow/pkg/host/mock"
)

func TestNewDefaultsMissingHeadersToUnknown(t *testing.T) {
	sess := mock.NewSession()
	sess.UUIDValue = "abc-123"
	sess.CallerIDValue = ""
	sess.CallerNameValue = ""
	sess.DomainValue = ""

	c := New(sess)
	if c.UUID() != "abc-123" {
		t.Errorf("UUID() = %q", c.UUID())
	}
	if c.CallerID() != "unknown" || c.CallerName() != "unknown" || c.Domain() != "unknown" {
		t.Errorf("header defaults = %q/%q/%q, want unknown", c.CallerID(), c.CallerName(), c.Domain())
	}
	if c.StartEpoch() == 0 {
		t.Error("StartEpoch() = 0")
	}
}

func TestGetWriteThroughCache(t *testing.T) {
	sess := mock.NewSession()
	sess.SetVar("account", "42")
	c := New(sess)

	if got := c.Get("account", "", true); got != "42" {
		t.Fatalf("Get() = %q", got)
	}

	// The switch value changes behind the cache; the cached read still wins.
	sess.SetVar("account", "99")
	if got := c.Get("account", "", true); got != "42" {
		t.Errorf("cached Get() = %q, want 42", got)
	}

	// A bypass read sees the live value without touching the cache.
	if got := c.Get("account", "", false); got != "99" {
		t.Errorf("bypass Get() = %q, want 99", got)
	}
	if got := c.Get("account", "", true); got != "42" {
		t.Errorf("Get() after bypass = %q, want cached 42", got)
	}

	c.ClearCache()
	if got := c.Get("account", "", true); got != "99" {
		t.Errorf("Get() after ClearCache = %q, want 99", got)
	}
}

func TestBypassReadDoesNotPopulateCache(t *testing.T) {
	sess := mock.NewSession()
	sess.SetVar("lang", "en")
	c := New(sess)

	if got := c.Get("lang", "", false); got != "en" {
		t.Fatalf("bypass Get() = %q", got)
	}
	sess.SetVar("lang", "de")
	// A cached read now must miss and read through the fresh value.
	if got := c.Get("lang", "", true); got != "de" {
		t.Errorf("Get() = %q, want de (bypass must not have cached en)", got)
	}
}

func TestGetDefaultsOnAbsentVariable(t *testing.T) {
	c := New(mock.NewSession())
	if got := c.Get("nothing", "fallback", true); got != "fallback" {
		t.Errorf("Get() = %q", got)
	}
}

func TestSetWritesThroughToSwitch(t *testing.T) {
	sess := mock.NewSession()
	c := New(sess)

	if err := c.Set("result", "ok"); err != nil {
		t.Fatal(err)
	}
	if got := sess.Var("result"); got != "ok" {
		t.Errorf("switch variable = %q", got)
	}
	if err := c.SetAny("code", 42); err != nil {
		t.Fatal(err)
	}
	if got := sess.Var("code"); got != "42" {
		t.Errorf("SetAny stored %q", got)
	}

	if err := c.Unset("result"); err != nil {
		t.Fatal(err)
	}
	if got := c.Get("result", "gone", true); got != "gone" {
		t.Errorf("Get() after Unset = %q", got)
	}
}

func TestVisitCountsPerNode(t *testing.T) {
	c := New(mock.NewSession(), WithVisitBudget(3))
	if c.Budget() != 3 {
		t.Fatalf("Budget() = %d", c.Budget())
	}
	for want := 1; want <= 3; want++ {
		if got := c.Visit(7); got != want {
			t.Errorf("Visit(7) #%d = %d", want, got)
		}
	}
	if got := c.Visits(7); got != 3 {
		t.Errorf("Visits(7) = %d", got)
	}
	if got := c.Visits(8); got != 0 {
		t.Errorf("Visits(8) = %d", got)
	}
}

func TestEnsureAnsweredAnswersOnce(t *testing.T) {
	sess := mock.NewSession()
	c := New(sess)

	if err := c.EnsureAnswered(); err != nil {
		t.Fatal(err)
	}
	if !c.IsAnswered() {
		t.Fatal("IsAnswered() = false")
	}
	// Second call is a no-op.
	if err := c.EnsureAnswered(); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureAnsweredAfterHangup(t *testing.T) {
	sess := mock.NewSession()
	c := New(sess)
	if err := c.Hangup(); err != nil {
		t.Fatal(err)
	}
	if err := c.EnsureAnswered(); err != ErrNotReady {
		t.Errorf("EnsureAnswered() = %v, want ErrNotReady", err)
	}
	// Double hangup is a no-op.
	if err := c.Hangup(); err != nil {
		t.Errorf("second Hangup() = %v", err)
	}
	if sess.HangupCount() != 1 {
		t.Errorf("HangupCount() = %d", sess.HangupCount())
	}
}
