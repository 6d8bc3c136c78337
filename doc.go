// Package featdeps decides which optional features of a build are compiled in.
//
// Features are declared as an ordered list of [Descriptor] values. Each one
// names its prerequisites (any-of, all-of, conflicts) and a [Probe] that
// performs the actual detection: compiling a fragment, sweeping candidate
// libraries, querying pkg-config, looking for headers, and so on. A [Run]
// evaluates descriptors strictly in declaration order and accumulates the
// satisfied facts, so later descriptors can depend on earlier ones.
//
// # API Model
//
// A run is explicit state, not a process-wide singleton:
//
//	run := featdeps.NewRun(
//	    featdeps.WithToolchain(&featdeps.CCToolchain{CC: "cc"}),
//	    featdeps.WithRegistry(&featdeps.PkgConfig{}),
//	    featdeps.WithOverrides(featdeps.Overrides{"vdpau": featdeps.OverrideDisable}),
//	    featdeps.WithReporter(featdeps.NewTextReporter(os.Stdout)),
//	)
//	results, err := run.Resolve(ctx, descs...)
//	if err != nil {
//	    var fe *featdeps.FeatureError
//	    if errors.As(err, &fe) {
//	        log.Fatalf("configuration failed: %s", fe.Reason)
//	    }
//	    log.Fatal(err)
//	}
//
// [NewRun] performs platform detection once: the fact "os-<target>" is
// satisfied before any descriptor is evaluated.
//
// # Pipeline
//
// For every descriptor the first matching platform override is applied,
// then, each step possibly ending the evaluation:
//  1. a disable override skips the feature; an enable override makes it mandatory
//  2. requires-any needs one satisfied member
//  3. requires-all needs every member satisfied
//  4. conflicts-with skips when every member is satisfied
//  5. the probe runs; success adds the feature to the satisfaction set
//  6. a mandatory feature that was not satisfied aborts the run with a *[FeatureError]
//
// Negative detections are never errors. Errors returned by probes wrap
// [ErrEnvironment] and always abort the run.
//
// # Outputs
//
// [Run.Defines] holds the preprocessor table ([Defines.WriteHeader] emits a
// config header), [Run.Env] the auxiliary flags recorded by probes, and
// [FilterSources] selects conditional sources from the satisfied facts.
//
// # Declarative files
//
// [LoadFile] reads descriptors and sources from YAML or TOML, turning each
// probe entry into one of the typed probe kinds.
package featdeps
