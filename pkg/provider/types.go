package provider

// Reason explains why a flag resolved to its value.
type Reason string

const (
	ReasonTargetingMatch Reason = "TARGETING_MATCH"
	ReasonDefault        Reason = "DEFAULT"
	ReasonDisabled       Reason = "DISABLED"
	ReasonSplit          Reason = "SPLIT"
	ReasonError          Reason = "ERROR"
	ReasonUnknown        Reason = "UNKNOWN"
)

// ErrorCode is the machine-readable cause of a resolution that fell back to
// the default value.
type ErrorCode string

const (
	ErrorCodeTargetingKeyMissing ErrorCode = "TARGETING_KEY_MISSING"
	ErrorCodeFlagNotFound        ErrorCode = "FLAG_NOT_FOUND"
	ErrorCodeTypeMismatch        ErrorCode = "TYPE_MISMATCH"
	ErrorCodeParseError          ErrorCode = "PARSE_ERROR"
	ErrorCodeInvalidContext      ErrorCode = "INVALID_CONTEXT"
	ErrorCodeGeneral             ErrorCode = "GENERAL"
)

// EvaluationContext describes the subject a flag is evaluated for.
//
// Groups, PersonProperties and GroupProperties must only contain string
// leaves; nested maps are allowed, arrays and other scalars are not.
type EvaluationContext struct {
	// TargetingKey is the PostHog distinct id. Required for evaluation.
	TargetingKey string `json:"targetingKey,omitempty"`
	// Groups maps a group type to a group key. Needs group analytics enabled.
	Groups map[string]any `json:"groups,omitempty"`
	// PersonProperties are extra targeting attributes for the person.
	PersonProperties map[string]any `json:"personProperties,omitempty"`
	// GroupProperties maps a group type to its properties. Top-level string
	// values apply to every group in Groups.
	GroupProperties map[string]any `json:"groupProperties,omitempty"`
}

// ResolutionDetails is the result of one evaluation.
//
// Value is always usable: either the resolved flag value or the caller's
// default. ErrorCode is only set when Reason is DEFAULT or ERROR.
type ResolutionDetails[T any] struct {
	Value        T         `json:"value"`
	Variant      string    `json:"variant,omitempty"`
	Reason       Reason    `json:"reason"`
	ErrorCode    ErrorCode `json:"errorCode,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// Name is the provider name reported through Metadata.
const Name = "PostHog Provider"

// FlagCalledEvent is the analytics event emitted after a successful lookup.
const FlagCalledEvent = "$feature_flag_called"
