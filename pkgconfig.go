package featdeps

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// PackageRequirement names a package and an optional version constraint
// such as ">= 1.2.0".
type PackageRequirement struct {
	Name    string
	Version string
}

func (p PackageRequirement) String() string {
	if p.Version == "" {
		return p.Name
	}
	return p.Name + " " + p.Version
}

// PackageQuery is a lookup in the package registry.
type PackageQuery struct {
	Packages []PackageRequirement
	// Static requests flags for static linking.
	Static bool
}

// PackageInfo holds the compiler and linker flags of a found package set.
type PackageInfo struct {
	Includes  []string
	CFlags    []string
	LibPaths  []string
	Libs      []string
	LinkFlags []string
}

// Registry answers package queries (pkg-config or an equivalent).
//
// Query returns found=false when the packages are absent or do not match
// the version constraints, and an error wrapping [ErrEnvironment] when the
// registry cannot be queried.
type Registry interface {
	Query(ctx context.Context, q PackageQuery) (info PackageInfo, found bool, err error)
}

// PackageConfigProbe succeeds if all packages are found in the registry.
// On success the package flags are stored under Store (the feature's
// identifier when empty). On failure the feature key is undefined.
// Static linking is requested when [StaticBuildFact] is satisfied.
type PackageConfigProbe struct {
	Packages []PackageRequirement
	Store    string
}

// Evaluate queries the registry and stores the flags of the found packages.
func (p PackageConfigProbe) Evaluate(ctx context.Context, run *Run, id string) (bool, error) {
	if run.registry == nil {
		return false, fmt.Errorf("%w: no package registry configured", ErrEnvironment)
	}

	q := PackageQuery{
		Packages: p.Packages,
		Static:   run.satisfied.Has(StaticBuildFact),
	}
	info, found, err := run.registry.Query(ctx, q)
	if err != nil {
		if !errors.Is(err, ErrEnvironment) {
			err = fmt.Errorf("%w: %w", ErrEnvironment, err)
		}
		return false, err
	}
	if !found {
		run.logger.Debug("package query failed", "feature", id, "packages", packageList(p.Packages))
		run.defines.Undefine(DefineKey(id))
		return false, nil
	}

	store := p.Store
	if store == "" {
		store = id
	}
	for _, kv := range []struct {
		prefix string
		values []string
	}{
		{"INCLUDES", info.Includes},
		{"CFLAGS", info.CFlags},
		{"LIBPATH", info.LibPaths},
		{"LIB", info.Libs},
		{"LINKFLAGS", info.LinkFlags},
	} {
		if len(kv.values) > 0 {
			run.env.Append(envVar(kv.prefix, store), kv.values...)
		}
	}
	run.defines.Define(DefineKey(id), "1")
	return true, nil
}

func packageList(pkgs []PackageRequirement) string {
	parts := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, " ")
}
