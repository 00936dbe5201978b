// Package hooks provides OpenFeature hooks for logging, tracing, metrics and
// static context enrichment. They work with any provider but are tuned for
// the PostHog one in pkg/provider.
package hooks

import (
	"strings"

	"github.com/open-feature/go-sdk/openfeature"
)

// IgnoreDataHint is a hook hint key. When set to true, hooks leave flag
// values and evaluation context attributes out of what they emit.
const IgnoreDataHint = "ignoreData"

var knownErrorCodes = []openfeature.ErrorCode{
	openfeature.ProviderNotReadyCode,
	openfeature.FlagNotFoundCode,
	openfeature.ParseErrorCode,
	openfeature.TypeMismatchCode,
	openfeature.TargetingKeyMissingCode,
	openfeature.InvalidContextCode,
	openfeature.GeneralCode,
}

// errorCode recovers the OpenFeature error code from an error passed to
// Error hooks. The SDK only hands hooks the formatted error, so the code is
// matched by name.
func errorCode(err error) openfeature.ErrorCode {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, code := range knownErrorCodes {
		if strings.Contains(msg, string(code)) {
			return code
		}
	}
	return openfeature.GeneralCode
}

func ignoreData(hints openfeature.HookHints) bool {
	v, _ := hints.Value(IgnoreDataHint).(bool)
	return v
}

func reasonOrUnknown(r openfeature.Reason) string {
	if r == "" {
		return string(openfeature.UnknownReason)
	}
	return string(r)
}
