package version

import "testing"

func TestUserAgent_UsesVersion(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "1.2.3"
	if got := UserAgent(); got != "posthog-openfeature-go/1.2.3" {
		t.Errorf("UserAgent() = %q, want %q", got, "posthog-openfeature-go/1.2.3")
	}
}

func TestUserAgent_NormalisesPrefix(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "v2.0.1"
	if got := UserAgent(); got != "posthog-openfeature-go/2.0.1" {
		t.Errorf("UserAgent() = %q, want %q", got, "posthog-openfeature-go/2.0.1")
	}
}

func TestSemver_InvalidFallsBack(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "not-a-version"
	if got := Semver().String(); got != "0.0.0" {
		t.Errorf("Semver() = %q, want 0.0.0", got)
	}
}
