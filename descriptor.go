package featdeps

import (
	"fmt"
	"slices"
	"strings"
)

// Attributes are the evaluated properties of a feature descriptor.
type Attributes struct {
	// RequiresAny needs at least one satisfied member.
	RequiresAny []string
	// RequiresAll needs every member satisfied.
	RequiresAll []string
	// ConflictsWith skips the feature when every member is satisfied.
	ConflictsWith []string
	// Probe performs the actual detection. It may be nil when platform
	// overrides supply the probe; resolving on a platform where no probe
	// applies is a fatal error.
	Probe Probe
	// Mandatory turns any skip or probe failure into a fatal error.
	Mandatory bool
	// FailureMessage is the fatal error text. The placeholders {feature}
	// and {desc} are replaced with the identifier and description.
	FailureMessage string
}

// Overlay is a partial set of [Attributes]. Nil slices, a nil probe, a nil
// Mandatory pointer and an empty FailureMessage inherit the base value.
type Overlay struct {
	RequiresAny    []string
	RequiresAll    []string
	ConflictsWith  []string
	Probe          Probe
	Mandatory      *bool
	FailureMessage string
}

// PlatformOverride replaces attributes of a descriptor when Fact is satisfied.
type PlatformOverride struct {
	Fact       string
	Attributes Overlay
}

// Descriptor declares one optional feature and how to detect it.
type Descriptor struct {
	ID    string
	Desc  string
	Attributes
	// PlatformOverrides are tried in order; the first one whose fact is
	// satisfied is applied.
	PlatformOverrides []PlatformOverride
}

// apply overlays o onto a copy of a.
func (a Attributes) apply(o Overlay) Attributes {
	if o.RequiresAny != nil {
		a.RequiresAny = o.RequiresAny
	}
	if o.RequiresAll != nil {
		a.RequiresAll = o.RequiresAll
	}
	if o.ConflictsWith != nil {
		a.ConflictsWith = o.ConflictsWith
	}
	if o.Probe != nil {
		a.Probe = o.Probe
	}
	if o.Mandatory != nil {
		a.Mandatory = *o.Mandatory
	}
	if o.FailureMessage != "" {
		a.FailureMessage = o.FailureMessage
	}
	return a
}

// effective returns the attributes of d after the first matching platform
// override, together with the fact that selected it ("" if none matched).
func (d Descriptor) effective(facts *SatisfactionSet) (Attributes, string) {
	attrs := d.Attributes
	attrs.RequiresAny = slices.Clone(attrs.RequiresAny)
	attrs.RequiresAll = slices.Clone(attrs.RequiresAll)
	attrs.ConflictsWith = slices.Clone(attrs.ConflictsWith)
	for _, po := range d.PlatformOverrides {
		if facts.Has(po.Fact) {
			return attrs.apply(po.Attributes), po.Fact
		}
	}
	return attrs, ""
}

// failureMessage renders the fatal message of the descriptor.
func (a Attributes) failureMessage(d Descriptor) string {
	msg := a.FailureMessage
	if msg == "" {
		msg = "required feature '{feature}' ({desc}) is not available"
	}
	return strings.NewReplacer("{feature}", d.ID, "{desc}", d.Desc).Replace(msg)
}

// Validate checks the descriptor for programmer errors.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("descriptor: empty identifier")
	}
	if d.Probe == nil && !d.overridesProbe() {
		return fmt.Errorf("descriptor %q: nil probe", d.ID)
	}
	for i, po := range d.PlatformOverrides {
		if strings.TrimSpace(po.Fact) == "" {
			return fmt.Errorf("descriptor %q: platform override %d: empty fact", d.ID, i)
		}
	}
	return nil
}

// overridesProbe reports whether some platform override supplies a probe.
func (d Descriptor) overridesProbe() bool {
	for _, po := range d.PlatformOverrides {
		if po.Attributes.Probe != nil {
			return true
		}
	}
	return false
}

// ValidateDescriptors validates each descriptor and rejects duplicate
// identifiers.
func ValidateDescriptors(descs []Descriptor) error {
	seen := make(map[string]struct{}, len(descs))
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return err
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("descriptor %q: duplicate identifier", d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	return nil
}
