package featdeps

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// CompileRequest describes one compile-and-link check.
type CompileRequest struct {
	// Fragment is the C source to compile.
	Fragment string
	// CFlags and LinkFlags are passed to the compiler and linker.
	CFlags    []string
	LinkFlags []string
	// Libs are linked as -l<name>.
	Libs []string
}

// Toolchain compiles and links code fragments.
//
// Compile returns (false, nil) when the fragment does not build, and an
// error wrapping [ErrEnvironment] when the compiler cannot be invoked.
type Toolchain interface {
	Compile(ctx context.Context, req CompileRequest) (bool, error)
}

// CompileProbe succeeds if a fragment compiles and links with the given
// flags. On success it defines the feature key and stores the flags and
// libraries under the feature's storage key.
type CompileProbe struct {
	// Fragment is the source to compile. When empty, a trivial program
	// including Header (if set) is used.
	Fragment  string
	Header    string
	CFlags    []string
	LinkFlags []string
	Libs      []string
}

// Statement returns a probe compiling statement inside main after
// including header.
func Statement(header, statement string) CompileProbe {
	return CompileProbe{
		Fragment: fmt.Sprintf("#include <%s>\nint main(int argc, char **argv)\n{ %s; return 0; }\n", header, statement),
	}
}

// Evaluate compiles the fragment with the probe's flags and libraries.
func (p CompileProbe) Evaluate(ctx context.Context, run *Run, id string) (bool, error) {
	return p.compile(ctx, run, id, nil)
}

func (p CompileProbe) fragment() string {
	if p.Fragment != "" {
		return p.Fragment
	}
	return includeFragment(p.Header)
}

func (p CompileProbe) compile(ctx context.Context, run *Run, id string, extraLibs []string) (bool, error) {
	libs := append(slices.Clone(p.Libs), extraLibs...)
	ok, err := compileWith(ctx, run, CompileRequest{
		Fragment:  p.fragment(),
		CFlags:    p.CFlags,
		LinkFlags: p.LinkFlags,
		Libs:      libs,
	})
	if err != nil || !ok {
		return false, err
	}

	run.defines.Define(DefineKey(id), "1")
	if len(p.CFlags) > 0 {
		run.env.Append(envVar("CFLAGS", id), p.CFlags...)
	}
	if len(p.LinkFlags) > 0 {
		run.env.Append(envVar("LINKFLAGS", id), p.LinkFlags...)
	}
	if len(libs) > 0 {
		run.env.Append(envVar("LIB", id), libs...)
	}
	return true, nil
}

// LibrarySweepProbe tries Base without extra libraries, then with each
// candidate in order, and stops at the first success. A candidate may name
// several libraries separated by spaces (e.g. "dl iconv").
type LibrarySweepProbe struct {
	Base CompileProbe
	Libs []string
}

// Evaluate runs the sweep and keeps the first library set that links.
func (p LibrarySweepProbe) Evaluate(ctx context.Context, run *Run, id string) (bool, error) {
	candidates := append([]string{""}, p.Libs...)
	for _, candidate := range candidates {
		ok, err := p.Base.compile(ctx, run, id, strings.Fields(candidate))
		if err != nil {
			return false, err
		}
		if ok {
			run.logger.Debug("library sweep matched", "feature", id, "libs", candidate)
			return true, nil
		}
	}
	return false, nil
}

// HeaderProbe succeeds at the first header that a trivial program can
// include. The matching header's key and the feature key are defined; the
// keys of all other candidates are explicitly undefined, so that at most
// one header's symbol is ever set.
type HeaderProbe struct {
	Headers []string
	CFlags  []string
}

// Evaluate compiles a trivial program for each header in order. An empty
// header name is an error.
func (p HeaderProbe) Evaluate(ctx context.Context, run *Run, id string) (bool, error) {
	for i, header := range p.Headers {
		if strings.TrimSpace(header) == "" {
			return false, fmt.Errorf("%w: empty header at %d", ErrEnvironment, i)
		}
	}
	for _, header := range p.Headers {
		ok, err := compileWith(ctx, run, CompileRequest{
			Fragment: includeFragment(header),
			CFlags:   p.CFlags,
		})
		if err != nil {
			return false, err
		}
		if ok {
			p.undefineOthers(run, header)
			run.defines.Define(DefineKey(header), "1")
			run.defines.Define(DefineKey(id), "1")
			return true, nil
		}
	}
	p.undefineOthers(run, "")
	return false, nil
}

func (p HeaderProbe) undefineOthers(run *Run, found string) {
	for _, header := range p.Headers {
		if header != found {
			run.defines.Undefine(DefineKey(header))
		}
	}
}

func compileWith(ctx context.Context, run *Run, req CompileRequest) (bool, error) {
	if run.toolchain == nil {
		return false, fmt.Errorf("%w: no toolchain configured", ErrEnvironment)
	}
	ok, err := run.toolchain.Compile(ctx, req)
	if err != nil {
		if !errors.Is(err, ErrEnvironment) {
			err = fmt.Errorf("%w: %w", ErrEnvironment, err)
		}
		return false, err
	}
	return ok, nil
}

func includeFragment(header string) string {
	if header == "" {
		return "int main(void) { return 0; }\n"
	}
	return fmt.Sprintf("#include <%s>\nint main(void) { return 0; }\n", header)
}
