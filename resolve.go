package featdeps

import (
	"context"
	"fmt"
	"strings"
)

// Resolve evaluates descs in declaration order against the run state.
// Each satisfied feature is added to the satisfaction set before the next
// descriptor is evaluated, so later descriptors observe earlier results.
//
// Skips and negative probe results are absorbed and reported. Resolve stops
// at the first fatal error: a mandatory (or force-enabled) feature that was
// not satisfied yields a *[FeatureError]; a broken detection environment
// yields a *[FeatureError] wrapping [ErrEnvironment]. The returned results
// cover every descriptor evaluated so far, including the failing one.
func (r *Run) Resolve(ctx context.Context, descs ...Descriptor) ([]Result, error) {
	if err := ValidateDescriptors(descs); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(descs))
	for _, d := range descs {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("resolve canceled: %w", err)
		}
		res, err := r.resolve(ctx, d)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// resolve runs the pipeline of a single descriptor.
func (r *Run) resolve(ctx context.Context, d Descriptor) (Result, error) {
	attrs, fact := d.effective(r.satisfied)
	if fact != "" {
		r.logger.Debug("applied platform override", "feature", d.ID, "fact", fact)
	}

	res := Result{Feature: d.ID, Desc: d.Desc}
	if outcome, reason, skipped := r.prerequisites(d.ID, &attrs); skipped {
		res.Outcome, res.Reason = outcome, reason
		return r.finish(d, attrs, res)
	}

	if attrs.Probe == nil {
		res.Outcome, res.Reason = OutcomeProbeFailed, "no probe"
		r.commit(d, &res)
		return res, &FeatureError{Feature: d.ID, Reason: "no probe for platform " + r.platform}
	}

	ok, err := attrs.Probe.Evaluate(ctx, r, d.ID)
	if err != nil {
		res.Outcome, res.Reason = OutcomeProbeFailed, "error"
		r.commit(d, &res)
		return res, &FeatureError{Feature: d.ID, Reason: "autodetection failed", Err: err}
	}
	if ok {
		res.Outcome, res.Reason = OutcomeSatisfied, "yes"
	} else {
		res.Outcome, res.Reason = OutcomeProbeFailed, "no"
	}
	return r.finish(d, attrs, res)
}

// prerequisites applies the override, any-of, all-of and conflict checks
// in that order. It reports whether the feature was skipped.
func (r *Run) prerequisites(id string, attrs *Attributes) (Outcome, string, bool) {
	switch r.Override(id) {
	case OverrideDisable:
		return OutcomeSkippedDisabled, "disabled", true
	case OverrideEnable:
		attrs.Mandatory = true
		attrs.FailureMessage = fmt.Sprintf("You manually enabled the feature '%s', but the autodetection check failed.", id)
	}

	if len(attrs.RequiresAny) > 0 && len(r.satisfied.Intersect(attrs.RequiresAny)) == 0 {
		return OutcomeSkippedMissingAny, "not found any of " + strings.Join(attrs.RequiresAny, ", "), true
	}

	if len(attrs.RequiresAll) > 0 {
		if missing := r.satisfied.Missing(attrs.RequiresAll); len(missing) > 0 {
			return OutcomeSkippedMissingAll, strings.Join(missing, ", ") + " not found", true
		}
	}

	if len(attrs.ConflictsWith) > 0 && r.satisfied.ContainsAll(attrs.ConflictsWith) {
		return OutcomeSkippedConflict, strings.Join(r.satisfied.Intersect(attrs.ConflictsWith), ", ") + " found", true
	}

	return 0, "", false
}

// finish commits the result and escalates it when the feature is mandatory.
func (r *Run) finish(d Descriptor, attrs Attributes, res Result) (Result, error) {
	r.commit(d, &res)
	if res.Outcome != OutcomeSatisfied && attrs.Mandatory {
		return res, &FeatureError{Feature: d.ID, Reason: attrs.failureMessage(d)}
	}
	return res, nil
}

// commit records the outcome in the run state and reports it.
func (r *Run) commit(d Descriptor, res *Result) {
	key := DefineKey(d.ID)
	if res.Outcome == OutcomeSatisfied {
		r.satisfied.add(d.ID)
		if !r.defines.IsDefined(key) {
			r.defines.Define(key, "1")
		}
	} else {
		r.defines.Undefine(key)
	}
	res.Detail = r.Message(d.ID)
	r.logger.Debug("resolved feature", "feature", d.ID, "outcome", res.Outcome, "reason", res.Reason)
	r.reporter.Report(*res)
}

// IsSatisfied reports whether fact is satisfied in the run.
func (r *Run) IsSatisfied(fact string) bool {
	return r.satisfied.Has(fact)
}
