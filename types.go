package featdeps

import (
	"errors"
	"fmt"
)

// ErrEnvironment marks failures of the detection environment itself
// (missing compiler, unreadable registry, ...). Such failures are fatal
// regardless of whether the feature being probed is mandatory.
var ErrEnvironment = errors.New("detection environment failure")

// ErrUnsupportedPlatform is returned by host-only probes on platforms
// where they cannot run.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// FeatureError is the fatal configuration error raised when a mandatory
// feature cannot be satisfied, or when probing a feature failed because of
// the environment.
type FeatureError struct {
	Feature string
	Reason  string
	Err     error
}

func (e *FeatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feature %s: %s: %v", e.Feature, e.Reason, e.Err)
	}
	return fmt.Sprintf("feature %s: %s", e.Feature, e.Reason)
}

func (e *FeatureError) Unwrap() error {
	return e.Err
}

// Outcome is the terminal resolution state of a feature within one run.
type Outcome int

const (
	// OutcomeSatisfied means the probe succeeded and the feature was added
	// to the satisfaction set.
	OutcomeSatisfied Outcome = iota
	// OutcomeSkippedDisabled means the feature was disabled by an override.
	OutcomeSkippedDisabled
	// OutcomeSkippedMissingAny means none of the any-of prerequisites were satisfied.
	OutcomeSkippedMissingAny
	// OutcomeSkippedMissingAll means at least one all-of prerequisite was missing.
	OutcomeSkippedMissingAll
	// OutcomeSkippedConflict means every conflicting fact was satisfied.
	OutcomeSkippedConflict
	// OutcomeProbeFailed means the probe ran and reported a negative result.
	OutcomeProbeFailed
)

var outcomeNames = map[Outcome]string{
	OutcomeSatisfied:         "satisfied",
	OutcomeSkippedDisabled:   "skipped-disabled",
	OutcomeSkippedMissingAny: "skipped-missing-any",
	OutcomeSkippedMissingAll: "skipped-missing-all",
	OutcomeSkippedConflict:   "skipped-conflict",
	OutcomeProbeFailed:       "probe-failed",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Outcome(%d)", o)
}

// Skipped reports whether the outcome was decided before the probe ran.
func (o Outcome) Skipped() bool {
	switch o {
	case OutcomeSkippedDisabled, OutcomeSkippedMissingAny, OutcomeSkippedMissingAll, OutcomeSkippedConflict:
		return true
	default:
		return false
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result is the per-feature outcome of a resolution step.
type Result struct {
	Feature string  `json:"feature"`
	Desc    string  `json:"desc"`
	Outcome Outcome `json:"outcome"`
	// Reason is the short status shown to the user ("yes", "no",
	// "disabled", "foo, bar not found", ...).
	Reason string `json:"reason"`
	// Detail is the optional message probes attach to a feature.
	Detail string `json:"detail,omitempty"`
}

// Override is the externally supplied tri-state enable switch of a feature.
type Override int

const (
	// OverrideUnset leaves the decision to autodetection.
	OverrideUnset Override = iota
	// OverrideEnable forces the feature on: autodetection failure becomes fatal.
	OverrideEnable
	// OverrideDisable skips the feature without probing.
	OverrideDisable
)

func (o Override) String() string {
	switch o {
	case OverrideUnset:
		return "auto"
	case OverrideEnable:
		return "enable"
	case OverrideDisable:
		return "disable"
	default:
		return fmt.Sprintf("Override(%d)", o)
	}
}

// Overrides maps feature identifiers to their override state.
// Missing identifiers are [OverrideUnset].
type Overrides map[string]Override
