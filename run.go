package featdeps

import (
	"os"
	"runtime"

	"github.com/charmbracelet/log"
)

// StaticBuildFact is the fact that switches package queries to static linking.
const StaticBuildFact = "static-build"

// Run is the state of one resolution run: the satisfaction set, the
// define table, the auxiliary environment and the injected detection
// capabilities. A Run is not safe for concurrent use; descriptors must be
// resolved in declaration order.
type Run struct {
	satisfied *SatisfactionSet
	defines   *Defines
	env       *Environment
	messages  map[string]string

	toolchain Toolchain
	registry  Registry
	overrides Overrides
	reporter  Reporter
	logger    *log.Logger
	targetOS  string
	platform  string
}

// runConfig holds the configuration for a run.
type runConfig struct {
	toolchain Toolchain
	registry  Registry
	overrides Overrides
	reporter  Reporter
	logger    *log.Logger
	targetOS  string
	env       map[string][]string
}

// RunOption configures a [Run].
type RunOption func(*runConfig)

// WithToolchain sets the compiler used by compile and header probes.
func WithToolchain(tc Toolchain) RunOption {
	return func(c *runConfig) {
		c.toolchain = tc
	}
}

// WithRegistry sets the package registry used by package-config probes.
func WithRegistry(r Registry) RunOption {
	return func(c *runConfig) {
		c.registry = r
	}
}

// WithOverrides sets the user-supplied enable/disable switches.
func WithOverrides(o Overrides) RunOption {
	return func(c *runConfig) {
		c.overrides = o
	}
}

// WithReporter sets the sink receiving per-feature outcomes.
func WithReporter(r Reporter) RunOption {
	return func(c *runConfig) {
		c.reporter = r
	}
}

// WithLogger sets the logger. The default logs warnings to stderr.
func WithLogger(l *log.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = l
	}
}

// WithTargetOS sets the target operating system. Defaults to runtime.GOOS.
func WithTargetOS(goos string) RunOption {
	return func(c *runConfig) {
		c.targetOS = goos
	}
}

// WithEnvironment seeds the auxiliary environment.
func WithEnvironment(vars map[string][]string) RunOption {
	return func(c *runConfig) {
		c.env = vars
	}
}

// NewRun creates a run and performs platform detection: the fact
// "os-<target>" is satisfied before any descriptor is resolved.
func NewRun(opts ...RunOption) *Run {
	cfg := &runConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "featdeps",
			Level:  log.WarnLevel,
		})
	}
	if cfg.reporter == nil {
		cfg.reporter = NopReporter{}
	}
	if cfg.targetOS == "" {
		cfg.targetOS = runtime.GOOS
	}

	r := &Run{
		satisfied: NewSatisfactionSet(),
		defines:   newDefines(),
		env:       NewEnvironment(cfg.env),
		messages:  make(map[string]string),
		toolchain: cfg.toolchain,
		registry:  cfg.registry,
		overrides: cfg.overrides,
		reporter:  cfg.reporter,
		logger:    cfg.logger,
		targetOS:  cfg.targetOS,
	}
	r.detectPlatform()
	return r
}

func (r *Run) detectPlatform() {
	r.platform = "os-" + r.targetOS
	r.satisfied.add(r.platform)
	r.env.Set("DEST_OS", r.targetOS)
	if r.targetOS == runtime.GOOS {
		if release := hostKernelRelease(); release != "" {
			r.env.Set("KERNEL_RELEASE", release)
		}
	}
	r.reporter.Detected(r.platform)
	r.logger.Debug("detected target platform", "fact", r.platform)
}

// Platform returns the platform fact added by detection, e.g. "os-linux".
func (r *Run) Platform() string {
	return r.platform
}

// TargetOS returns the target operating system name.
func (r *Run) TargetOS() string {
	return r.targetOS
}

// Satisfied returns the satisfaction set of the run.
func (r *Run) Satisfied() *SatisfactionSet {
	return r.satisfied
}

// Defines returns the define table of the run.
func (r *Run) Defines() *Defines {
	return r.defines
}

// Env returns the auxiliary environment of the run.
func (r *Run) Env() *Environment {
	return r.env
}

// Logger returns the run logger.
func (r *Run) Logger() *log.Logger {
	return r.logger
}

// AddMessage attaches an optional detail to a feature. The reporter shows
// it in parentheses after the status.
func (r *Run) AddMessage(id, msg string) {
	r.messages[id] = msg
}

// Message returns the detail attached to a feature.
func (r *Run) Message(id string) string {
	return r.messages[id]
}

// Override returns the override state of a feature.
func (r *Run) Override(id string) Override {
	return r.overrides[id]
}
