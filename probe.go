package featdeps

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Probe detects whether a feature is available.
//
// A negative detection is (false, nil). A non-nil error means the detection
// environment itself is broken; it must wrap [ErrEnvironment] and aborts
// the run.
type Probe interface {
	Evaluate(ctx context.Context, run *Run, id string) (bool, error)
}

// ProbeFunc adapts a function to the [Probe] interface.
type ProbeFunc func(ctx context.Context, run *Run, id string) (bool, error)

// Evaluate calls f.
func (f ProbeFunc) Evaluate(ctx context.Context, run *Run, id string) (bool, error) {
	return f(ctx, run, id)
}

// TrueProbe always succeeds and defines the feature key. It is used for
// features decided purely by prerequisites.
type TrueProbe struct{}

// Evaluate defines the feature key and reports success.
func (TrueProbe) Evaluate(_ context.Context, run *Run, id string) (bool, error) {
	run.defines.Define(DefineKey(id), "1")
	return true, nil
}

// StubProbe always fails and clears the feature key. It marks a feature as
// unavailable on a platform.
type StubProbe struct{}

// Evaluate clears the feature key and reports failure.
func (StubProbe) Evaluate(_ context.Context, run *Run, id string) (bool, error) {
	run.defines.Undefine(DefineKey(id))
	return false, nil
}

// ComposeProbe succeeds if every probe succeeds. Probes run left to right
// and evaluation stops at the first failure.
type ComposeProbe struct {
	Probes []Probe
}

// Evaluate runs the probes until one fails or errors.
func (p ComposeProbe) Evaluate(ctx context.Context, run *Run, id string) (bool, error) {
	for _, probe := range p.Probes {
		ok, err := probe.Evaluate(ctx, run, id)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// FirstOfProbe succeeds at the first successful probe, trying them left to
// right.
type FirstOfProbe struct {
	Probes []Probe
}

// Evaluate runs the probes until one succeeds or errors.
func (p FirstOfProbe) Evaluate(ctx context.Context, run *Run, id string) (bool, error) {
	for _, probe := range p.Probes {
		ok, err := probe.Evaluate(ctx, run, id)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// EnvVarsProbe succeeds if all variables are present in the run environment.
type EnvVarsProbe struct {
	Vars []string
}

// Evaluate checks the variables and attaches the missing ones as detail.
func (p EnvVarsProbe) Evaluate(_ context.Context, run *Run, id string) (bool, error) {
	var missing []string
	for _, v := range p.Vars {
		if !run.env.Has(v) {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		run.AddMessage(id, "missing "+strings.Join(missing, ", "))
		return false, nil
	}
	return true, nil
}

// VersionProbe succeeds if the first value of environment variable Var is
// a version satisfying Constraint (e.g. ">= 3.0.2").
type VersionProbe struct {
	Var        string
	Constraint string
}

// Evaluate checks the version. An invalid constraint is an [ErrEnvironment] error.
func (p VersionProbe) Evaluate(_ context.Context, run *Run, id string) (bool, error) {
	c, err := semver.NewConstraint(p.Constraint)
	if err != nil {
		return false, fmt.Errorf("%w: version constraint %q: %w", ErrEnvironment, p.Constraint, err)
	}

	values, _ := run.env.Get(p.Var)
	if len(values) == 0 || values[0] == "" {
		run.AddMessage(id, fmt.Sprintf("'%s' not found, found none", p.Constraint))
		return false, nil
	}

	found := values[0]
	v, err := semver.NewVersion(found)
	if err != nil || !c.Check(v) {
		run.AddMessage(id, fmt.Sprintf("'%s' not found, found %s", p.Constraint, found))
		return false, nil
	}
	run.AddMessage(id, "version found: "+found)
	return true, nil
}
