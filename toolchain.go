package featdeps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/shell"
)

// SplitFlags splits a flag string with shell quoting rules, e.g. the value
// of CFLAGS or the output of pkg-config.
func SplitFlags(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	fields, err := shell.Fields(s, func(string) string { return "" })
	if err != nil {
		return nil, fmt.Errorf("split flags %q: %w", s, err)
	}
	return fields, nil
}

// CCToolchain compiles fragments with a C compiler subprocess.
type CCToolchain struct {
	// CC is the compiler command, possibly with leading arguments
	// (e.g. "ccache gcc"). Defaults to "cc".
	CC string
	// CFlags and LinkFlags are added to every compilation.
	CFlags    []string
	LinkFlags []string
	// Dir is the parent of the per-check scratch directories.
	// Defaults to the system temp directory.
	Dir string
	// Timeout bounds every compiler invocation when positive.
	Timeout time.Duration
	Logger  *log.Logger
}

var _ Toolchain = (*CCToolchain)(nil)

// Compile writes the fragment to a scratch directory and builds it.
// A non-zero compiler exit is a negative result.
func (t *CCToolchain) Compile(ctx context.Context, req CompileRequest) (bool, error) {
	cc := t.CC
	if cc == "" {
		cc = "cc"
	}
	argv, err := SplitFlags(cc)
	if err != nil || len(argv) == 0 {
		return false, fmt.Errorf("%w: invalid compiler command %q", ErrEnvironment, cc)
	}

	dir, err := os.MkdirTemp(t.Dir, "featdeps-")
	if err != nil {
		return false, fmt.Errorf("%w: create scratch dir: %w", ErrEnvironment, err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "test.c")
	if err := os.WriteFile(src, []byte(req.Fragment), 0o644); err != nil {
		return false, fmt.Errorf("%w: write fragment: %w", ErrEnvironment, err)
	}

	args := append([]string{}, argv[1:]...)
	args = append(args, t.CFlags...)
	args = append(args, req.CFlags...)
	args = append(args, src, "-o", filepath.Join(dir, "test"))
	args = append(args, t.LinkFlags...)
	args = append(args, req.LinkFlags...)
	for _, lib := range req.Libs {
		args = append(args, "-l"+lib)
	}

	_, ok, err := runTool(ctx, t.logger(), t.Timeout, argv[0], args)
	return ok, err
}

func (t *CCToolchain) logger() *log.Logger {
	if t.Logger == nil {
		return log.Default()
	}
	return t.Logger
}

// PkgConfig queries packages with the pkg-config command.
type PkgConfig struct {
	// Path is the pkg-config executable. Defaults to "pkg-config".
	Path string
	// Timeout bounds every invocation when positive.
	Timeout time.Duration
	Logger  *log.Logger
}

var _ Registry = (*PkgConfig)(nil)

// Query runs pkg-config --cflags and --libs for the requested packages.
func (p *PkgConfig) Query(ctx context.Context, q PackageQuery) (PackageInfo, bool, error) {
	exe := p.Path
	if exe == "" {
		exe = "pkg-config"
	}
	logger := p.Logger
	if logger == nil {
		logger = log.Default()
	}

	mods := make([]string, 0, len(q.Packages))
	for _, pkg := range q.Packages {
		mods = append(mods, pkg.String())
	}

	var info PackageInfo
	for _, mode := range []string{"--cflags", "--libs"} {
		args := []string{mode}
		if q.Static {
			args = append(args, "--static")
		}
		args = append(args, mods...)

		out, ok, err := runTool(ctx, logger, p.Timeout, exe, args)
		if err != nil || !ok {
			return PackageInfo{}, false, err
		}
		fields, err := SplitFlags(out)
		if err != nil {
			return PackageInfo{}, false, fmt.Errorf("%w: parse %s output: %w", ErrEnvironment, exe, err)
		}
		if mode == "--cflags" {
			info.addCFlags(fields)
		} else {
			info.addLibs(fields)
		}
	}
	return info, true, nil
}

// ParsePackageFlags classifies compiler and linker flags as printed by
// pkg-config --cflags and --libs.
func ParsePackageFlags(cflags, libs []string) PackageInfo {
	var info PackageInfo
	info.addCFlags(cflags)
	info.addLibs(libs)
	return info
}

func (info *PackageInfo) addCFlags(fields []string) {
	for _, f := range fields {
		if strings.HasPrefix(f, "-I") && len(f) > 2 {
			info.Includes = append(info.Includes, f[2:])
			continue
		}
		info.CFlags = append(info.CFlags, f)
	}
}

func (info *PackageInfo) addLibs(fields []string) {
	for _, f := range fields {
		switch {
		case strings.HasPrefix(f, "-L") && len(f) > 2:
			info.LibPaths = append(info.LibPaths, f[2:])
		case strings.HasPrefix(f, "-l") && len(f) > 2:
			info.Libs = append(info.Libs, f[2:])
		default:
			info.LinkFlags = append(info.LinkFlags, f)
		}
	}
}

// runTool runs a detection subprocess. It returns the standard output and
// ok=false when the tool exited non-zero. Failing to run the tool at all,
// or hitting the timeout, is an [ErrEnvironment] error.
func runTool(ctx context.Context, logger *log.Logger, timeout time.Duration, exe string, args []string) (string, bool, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	logger.Debug("exec", "cmd", cmd.String())

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", false, fmt.Errorf("%w: %s: %w", ErrEnvironment, exe, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		logger.Debug("exec failed", "cmd", cmd.String(), "code", exitErr.ExitCode(), "stderr", strings.TrimSpace(stderr.String()))
		return "", false, nil
	}
	if err != nil {
		logger.Error("cannot run tool", "cmd", cmd.String(), "error", err)
		return "", false, fmt.Errorf("%w: run %s: %w", ErrEnvironment, exe, err)
	}
	return stdout.String(), true, nil
}
