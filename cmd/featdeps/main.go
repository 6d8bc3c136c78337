package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/leodido/featdeps"
	"github.com/leodido/structcli"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thediveo/enumflag/v2"
)

// Build metadata injected via ldflags.
// When built without ldflags (e.g., plain `go build`), these remain
// at their zero values and the version command omits them gracefully.
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	root := &cobra.Command{
		Use:   "featdeps",
		Short: "Optional feature resolution for builds",
		Long: `featdeps decides which optional features of a build are compiled in.

It evaluates an ordered feature file against the target platform, user
enable/disable switches and compiler, header and pkg-config probes, then
emits a config header and the list of conditional sources to build.`,
		SilenceUsage: true,
	}

	root.AddCommand(configureCmd())
	root.AddCommand(sourcesCmd())
	root.AddCommand(inflectCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

type outputFormat int

const (
	formatText outputFormat = iota
	formatJSON
)

var formatIdentifiers = map[outputFormat][]string{
	formatText: {"text"},
	formatJSON: {"json"},
}

func parseFormat(input string) (outputFormat, error) {
	var f outputFormat
	value := enumflag.New(&f, "format", formatIdentifiers, enumflag.EnumCaseInsensitive)
	if err := value.Set(strings.TrimSpace(input)); err != nil {
		return formatText, fmt.Errorf("unknown format: %q (available: text, json)", input)
	}
	return f, nil
}

// ConfigureOptions defines flags shared by the configure and sources subcommands.
type ConfigureOptions struct {
	File      string        `flag:"file" flagshort:"f" flagdescr:"Feature file (.yaml, .yml or .toml)" flagrequired:"true"`
	Enable    featureList   `flag:"enable" flagshort:"e" flagdescr:"Features to force on; autodetection failure becomes fatal" flagcustom:"true"`
	Disable   featureList   `flag:"disable" flagshort:"d" flagdescr:"Features to skip without probing" flagcustom:"true"`
	TargetOS  string        `flag:"target-os" flagdescr:"Target operating system (defaults to the host)"`
	CC        string        `flag:"cc" flagdescr:"C compiler command (defaults to $CC or cc)"`
	PkgConfig string        `flag:"pkg-config" flagdescr:"pkg-config executable (defaults to $PKG_CONFIG or pkg-config)"`
	Header    string        `flag:"header" flagshort:"o" flagdescr:"Write the config header to this path"`
	Timeout   time.Duration `flag:"timeout" flagdescr:"Bound for every compiler or pkg-config invocation (0 disables)"`
	Format    outputFormat  `flag:"format" flagdescr:"Output format" flagcustom:"true"`
	Verbose   bool          `flag:"verbose" flagshort:"v" flagdescr:"Log probe invocations"`
}

func (o *ConfigureOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func (o *ConfigureOptions) DefineEnable(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*featureList)
	*fieldPtr = nil
	return fieldPtr, descr
}

func (o *ConfigureOptions) DecodeEnable(input any) (any, error) {
	return decodeFeatureList(input)
}

func (o *ConfigureOptions) DefineDisable(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*featureList)
	*fieldPtr = nil
	return fieldPtr, descr
}

func (o *ConfigureOptions) DecodeDisable(input any) (any, error) {
	return decodeFeatureList(input)
}

func (o *ConfigureOptions) DefineFormat(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*outputFormat)
	return enumflag.New(fieldPtr, "format", formatIdentifiers, enumflag.EnumCaseInsensitive), descr + " (text, json)"
}

func (o *ConfigureOptions) DecodeFormat(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}
	return parseFormat(s)
}

// overrides merges the enable and disable lists.
func (o *ConfigureOptions) overrides() (featdeps.Overrides, error) {
	ov := make(featdeps.Overrides, len(o.Enable)+len(o.Disable))
	for _, id := range o.Enable {
		ov[id] = featdeps.OverrideEnable
	}
	for _, id := range o.Disable {
		if ov[id] == featdeps.OverrideEnable {
			return nil, fmt.Errorf("feature %q is both enabled and disabled", id)
		}
		ov[id] = featdeps.OverrideDisable
	}
	return ov, nil
}

func configureCmd() *cobra.Command {
	opts := &ConfigureOptions{}

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Resolve features and write the config header",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			file, err := featdeps.LoadFile(opts.File)
			if err != nil {
				return err
			}
			run, results, err := configure(c.Context(), opts, file, c.OutOrStdout())
			if err != nil {
				return reportFailure(opts, results, err)
			}

			if opts.Header != "" {
				if err := writeHeader(opts.Header, run.Defines()); err != nil {
					return err
				}
			}

			if opts.Format == formatJSON {
				return printJSON(c.OutOrStdout(), map[string]any{
					"ok":        true,
					"platform":  run.Platform(),
					"results":   results,
					"satisfied": run.Satisfied().Facts(),
					"defines":   run.Defines().Map(),
				})
			}
			fmt.Fprint(c.OutOrStdout(), "\n"+featdeps.Summary(results))
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func sourcesCmd() *cobra.Command {
	opts := &ConfigureOptions{}

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Resolve features and list the sources to build",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			file, err := featdeps.LoadFile(opts.File)
			if err != nil {
				return err
			}
			// Status lines go to stderr so stdout stays a clean source list.
			run, results, err := configure(c.Context(), opts, file, c.ErrOrStderr())
			if err != nil {
				return reportFailure(opts, results, err)
			}

			paths := featdeps.FilterSources(run.Satisfied(), file.SourceList())

			if opts.Format == formatJSON {
				return printJSON(c.OutOrStdout(), map[string]any{
					"sources":  paths,
					"uselib":   run.Uselib(),
					"includes": run.Includes(),
				})
			}
			for _, p := range paths {
				fmt.Fprintln(c.OutOrStdout(), p)
			}
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// configure resolves the features of file. Status lines are written to
// status in text mode.
func configure(ctx context.Context, opts *ConfigureOptions, file *featdeps.File, status io.Writer) (*featdeps.Run, []featdeps.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	descs, err := file.Descriptors()
	if err != nil {
		return nil, nil, fmt.Errorf("features: %s: %w", opts.File, err)
	}
	overrides, err := opts.overrides()
	if err != nil {
		return nil, nil, err
	}

	logger := newLogger(opts.Verbose)
	toolchain, err := newToolchain(opts, logger)
	if err != nil {
		return nil, nil, err
	}

	var reporter featdeps.Reporter = featdeps.NopReporter{}
	if opts.Format == formatText {
		reporter = featdeps.NewTextReporter(status)
	}

	run := featdeps.NewRun(
		featdeps.WithToolchain(toolchain),
		featdeps.WithRegistry(&featdeps.PkgConfig{
			Path:    firstNonEmpty(opts.PkgConfig, os.Getenv("PKG_CONFIG"), "pkg-config"),
			Timeout: opts.Timeout,
			Logger:  logger,
		}),
		featdeps.WithOverrides(overrides),
		featdeps.WithReporter(reporter),
		featdeps.WithLogger(logger),
		featdeps.WithTargetOS(opts.TargetOS),
		featdeps.WithEnvironment(hostEnvironment()),
	)

	results, err := run.Resolve(ctx, descs...)
	return run, results, err
}

func newToolchain(opts *ConfigureOptions, logger *log.Logger) (*featdeps.CCToolchain, error) {
	cflags, err := featdeps.SplitFlags(os.Getenv("CFLAGS"))
	if err != nil {
		return nil, fmt.Errorf("CFLAGS: %w", err)
	}
	ldflags, err := featdeps.SplitFlags(os.Getenv("LDFLAGS"))
	if err != nil {
		return nil, fmt.Errorf("LDFLAGS: %w", err)
	}
	return &featdeps.CCToolchain{
		CC:        firstNonEmpty(opts.CC, os.Getenv("CC"), "cc"),
		CFlags:    cflags,
		LinkFlags: ldflags,
		Timeout:   opts.Timeout,
		Logger:    logger,
	}, nil
}

// hostEnvironment seeds the run environment with the process variables
// probes commonly consult.
func hostEnvironment() map[string][]string {
	env := make(map[string][]string)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = []string{value}
	}
	return env
}

func reportFailure(opts *ConfigureOptions, results []featdeps.Result, err error) error {
	var fe *featdeps.FeatureError
	if !errors.As(err, &fe) {
		return err
	}
	if opts.Format == formatJSON {
		_ = printJSON(os.Stdout, map[string]any{
			"ok":          false,
			"feature":     fe.Feature,
			"reason":      fe.Reason,
			"environment": errors.Is(err, featdeps.ErrEnvironment),
			"results":     results,
		})
	} else {
		fmt.Fprintf(os.Stderr, "FAIL: %s\n", err)
	}
	os.Exit(1)
	return nil
}

func writeHeader(path string, defines *featdeps.Defines) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := defines.WriteHeader(f); err != nil {
		f.Close()
		return fmt.Errorf("write header %s: %w", path, err)
	}
	return f.Close()
}

func newLogger(verbose bool) *log.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "featdeps",
		Level:  level,
	})
}

func inflectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inflect <feature>...",
		Short: "Show the define and storage keys of feature identifiers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			for _, id := range args {
				if strings.TrimSpace(id) == "" {
					return fmt.Errorf("empty feature identifier")
				}
				fmt.Fprintf(c.OutOrStdout(), "%s\t%s\t%s\n", id, featdeps.DefineKey(id), featdeps.StorageKey(id))
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show tool version and detected platform",
		RunE: func(c *cobra.Command, args []string) error {
			out := c.OutOrStdout()
			if version != "" {
				fmt.Fprintf(out, "featdeps %s", version)
				if commit != "" {
					fmt.Fprintf(out, " (%s)", commit)
				}
				if date != "" {
					fmt.Fprintf(out, " built %s", date)
				}
				fmt.Fprintln(out)
			} else {
				fmt.Fprintln(out, "featdeps (dev)")
			}

			run := featdeps.NewRun(featdeps.WithLogger(newLogger(false)))
			fmt.Fprintf(out, "Platform: %s\n", run.Platform())
			if release, ok := run.Env().Get("KERNEL_RELEASE"); ok && len(release) > 0 {
				fmt.Fprintf(out, "Kernel: %s\n", release[0])
			}
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type featureList []string

func (l *featureList) String() string {
	return strings.Join(*l, ",")
}

func (l *featureList) Set(input string) error {
	ids, err := parseFeatureList(input)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if !slices.Contains(*l, id) {
			*l = append(*l, id)
		}
	}
	return nil
}

func (l *featureList) Type() string {
	return "features"
}

func decodeFeatureList(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}
	return parseFeatureList(s)
}

func parseFeatureList(input string) (featureList, error) {
	if strings.TrimSpace(input) == "" {
		return featureList{}, nil
	}

	parts := strings.Split(input, ",")
	ids := make(featureList, 0, len(parts))
	for _, part := range parts {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if strings.ContainsAny(id, " \t=") {
			return nil, fmt.Errorf("invalid feature identifier: %q", id)
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
