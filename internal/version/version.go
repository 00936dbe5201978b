// Package version holds the release version stamped into outgoing requests
// and provider metadata.
package version

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version is the current release. It is rewritten by the release tooling.
var Version = "0.4.0"

// userAgentProduct prefixes every User-Agent header sent to PostHog.
const userAgentProduct = "posthog-openfeature-go"

// Semver parses Version. A malformed Version falls back to 0.0.0 so that
// a bad release stamp never breaks request construction.
func Semver() *semver.Version {
	v, err := semver.NewVersion(Version)
	if err != nil {
		return semver.MustParse("0.0.0")
	}
	return v
}

// UserAgent returns the User-Agent header value, e.g. "posthog-openfeature-go/0.4.0".
func UserAgent() string {
	return fmt.Sprintf("%s/%s", userAgentProduct, Semver().String())
}
