package featdeps

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Probe kinds accepted in descriptor files.
const (
	KindCompile   = "compile"
	KindStatement = "statement"
	KindLibs      = "libs"
	KindPkgConfig = "pkg-config"
	KindHeaders   = "headers"
	KindCompose   = "compose"
	KindFirstOf   = "first"
	KindStub      = "stub"
	KindTrue      = "true"
	KindEnv       = "env"
	KindVersion   = "version"
	KindKernel    = "kernel"
)

// File is a declarative feature file: the ordered descriptor list and the
// conditional source list.
type File struct {
	Features []FeatureSpec `yaml:"features" toml:"features"`
	Sources  []SourceSpec  `yaml:"sources" toml:"sources"`

	// dir resolves fragment_file paths.
	dir string
}

// FeatureSpec is the file form of a [Descriptor].
type FeatureSpec struct {
	Name              string         `yaml:"name" toml:"name"`
	Desc              string         `yaml:"desc" toml:"desc"`
	RequiresAny       []string       `yaml:"requires_any" toml:"requires_any"`
	RequiresAll       []string       `yaml:"requires_all" toml:"requires_all"`
	ConflictsWith     []string       `yaml:"conflicts_with" toml:"conflicts_with"`
	Mandatory         bool           `yaml:"mandatory" toml:"mandatory"`
	FailureMessage    string         `yaml:"failure_message" toml:"failure_message"`
	Probe             *ProbeSpec     `yaml:"probe" toml:"probe"`
	PlatformOverrides []OverrideSpec `yaml:"platform_overrides" toml:"platform_overrides"`
}

// OverrideSpec is the file form of a [PlatformOverride].
type OverrideSpec struct {
	Fact           string     `yaml:"fact" toml:"fact"`
	RequiresAny    []string   `yaml:"requires_any" toml:"requires_any"`
	RequiresAll    []string   `yaml:"requires_all" toml:"requires_all"`
	ConflictsWith  []string   `yaml:"conflicts_with" toml:"conflicts_with"`
	Mandatory      *bool      `yaml:"mandatory" toml:"mandatory"`
	FailureMessage string     `yaml:"failure_message" toml:"failure_message"`
	Probe          *ProbeSpec `yaml:"probe" toml:"probe"`
}

// ProbeSpec is the file form of a [Probe]. Which fields apply depends on Kind.
type ProbeSpec struct {
	Kind string `yaml:"kind" toml:"kind"`

	// compile, statement, libs
	Fragment     string   `yaml:"fragment" toml:"fragment"`
	FragmentFile string   `yaml:"fragment_file" toml:"fragment_file"`
	Header       string   `yaml:"header" toml:"header"`
	Statement    string   `yaml:"statement" toml:"statement"`
	CFlags       []string `yaml:"cflags" toml:"cflags"`
	LinkFlags    []string `yaml:"linkflags" toml:"linkflags"`
	Libs         []string `yaml:"libs" toml:"libs"`

	// headers
	Headers []string `yaml:"headers" toml:"headers"`

	// pkg-config
	Packages []PackageSpec `yaml:"packages" toml:"packages"`
	Store    string        `yaml:"store" toml:"store"`

	// compose, first
	Probes []ProbeSpec `yaml:"probes" toml:"probes"`

	// env, version
	Vars       []string `yaml:"vars" toml:"vars"`
	Var        string   `yaml:"var" toml:"var"`
	Constraint string   `yaml:"constraint" toml:"constraint"`

	// kernel
	ProgramTypes []string `yaml:"program_types" toml:"program_types"`
	MapTypes     []string `yaml:"map_types" toml:"map_types"`
}

// PackageSpec is the file form of a [PackageRequirement].
type PackageSpec struct {
	Name    string `yaml:"name" toml:"name"`
	Version string `yaml:"version" toml:"version"`
}

// SourceSpec is the file form of a [Source].
type SourceSpec struct {
	Path string `yaml:"path" toml:"path"`
	When string `yaml:"when" toml:"when"`
}

// LoadFile reads a feature file. The format is chosen by extension:
// .yaml/.yml for YAML and .toml for TOML.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("features: read %s: %w", path, err)
	}

	var f *File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		f, err = ParseYAML(data)
	case ".toml":
		f, err = ParseTOML(data)
	default:
		return nil, fmt.Errorf("features: %s: unsupported file extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("features: %s: %w", path, err)
	}
	f.dir = filepath.Dir(path)
	return f, nil
}

// ParseYAML decodes a YAML feature file.
func ParseYAML(data []byte) (*File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty feature file")
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &f, nil
}

// ParseTOML decodes a TOML feature file.
func ParseTOML(data []byte) (*File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty feature file")
	}
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode toml: %w", err)
	}
	return &f, nil
}

// Descriptors compiles the feature specs into descriptors, in file order.
func (f *File) Descriptors() ([]Descriptor, error) {
	descs := make([]Descriptor, 0, len(f.Features))
	for _, fs := range f.Features {
		d, err := fs.descriptor(f.dir)
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	if err := ValidateDescriptors(descs); err != nil {
		return nil, err
	}
	return descs, nil
}

// SourceList returns the source references, in file order.
func (f *File) SourceList() []Source {
	sources := make([]Source, 0, len(f.Sources))
	for _, s := range f.Sources {
		sources = append(sources, Source{Path: s.Path, Dep: strings.TrimSpace(s.When)})
	}
	return sources
}

func (fs FeatureSpec) descriptor(dir string) (Descriptor, error) {
	if strings.TrimSpace(fs.Name) == "" {
		return Descriptor{}, fmt.Errorf("feature without name")
	}
	if fs.Probe == nil && !fs.overridesProbe() {
		return Descriptor{}, fmt.Errorf("feature %q: missing probe", fs.Name)
	}
	var (
		probe Probe
		err   error
	)
	if fs.Probe != nil {
		if probe, err = fs.Probe.Build(dir); err != nil {
			return Descriptor{}, fmt.Errorf("feature %q: %w", fs.Name, err)
		}
	}

	desc := fs.Desc
	if desc == "" {
		desc = fs.Name
	}
	d := Descriptor{
		ID:   fs.Name,
		Desc: desc,
		Attributes: Attributes{
			RequiresAny:    fs.RequiresAny,
			RequiresAll:    fs.RequiresAll,
			ConflictsWith:  fs.ConflictsWith,
			Probe:          probe,
			Mandatory:      fs.Mandatory,
			FailureMessage: fs.FailureMessage,
		},
	}
	for i, ov := range fs.PlatformOverrides {
		overlay := Overlay{
			RequiresAny:    ov.RequiresAny,
			RequiresAll:    ov.RequiresAll,
			ConflictsWith:  ov.ConflictsWith,
			Mandatory:      ov.Mandatory,
			FailureMessage: ov.FailureMessage,
		}
		if ov.Probe != nil {
			if overlay.Probe, err = ov.Probe.Build(dir); err != nil {
				return Descriptor{}, fmt.Errorf("feature %q: platform override %d (%s): %w", fs.Name, i, ov.Fact, err)
			}
		}
		d.PlatformOverrides = append(d.PlatformOverrides, PlatformOverride{Fact: ov.Fact, Attributes: overlay})
	}
	return d, nil
}

func (fs FeatureSpec) overridesProbe() bool {
	for _, ov := range fs.PlatformOverrides {
		if ov.Probe != nil {
			return true
		}
	}
	return false
}

// Build compiles ps into a [Probe]. dir resolves fragment_file.
func (ps ProbeSpec) Build(dir string) (Probe, error) {
	switch ps.Kind {
	case KindCompile:
		p, err := ps.compileProbe(dir)
		if err != nil {
			return nil, err
		}
		return p, nil
	case KindStatement:
		if ps.Header == "" || ps.Statement == "" {
			return nil, fmt.Errorf("probe %s: header and statement are required", ps.Kind)
		}
		p := Statement(ps.Header, ps.Statement)
		p.CFlags, p.LinkFlags, p.Libs = ps.CFlags, ps.LinkFlags, ps.Libs
		return p, nil
	case KindLibs:
		base, err := ps.compileProbe(dir)
		if err != nil {
			return nil, err
		}
		// Libs are the sweep candidates here, not fixed libraries.
		base.Libs = nil
		return LibrarySweepProbe{Base: base, Libs: ps.Libs}, nil
	case KindPkgConfig:
		if len(ps.Packages) == 0 {
			return nil, fmt.Errorf("probe %s: no packages", ps.Kind)
		}
		pkgs := make([]PackageRequirement, 0, len(ps.Packages))
		for _, p := range ps.Packages {
			if p.Name == "" {
				return nil, fmt.Errorf("probe %s: package without name", ps.Kind)
			}
			pkgs = append(pkgs, PackageRequirement{Name: p.Name, Version: p.Version})
		}
		return PackageConfigProbe{Packages: pkgs, Store: ps.Store}, nil
	case KindHeaders:
		if len(ps.Headers) == 0 {
			return nil, fmt.Errorf("probe %s: no headers", ps.Kind)
		}
		for i, h := range ps.Headers {
			if strings.TrimSpace(h) == "" {
				return nil, fmt.Errorf("probe %s: empty header at %d", ps.Kind, i)
			}
		}
		return HeaderProbe{Headers: ps.Headers, CFlags: ps.CFlags}, nil
	case KindCompose, KindFirstOf:
		if len(ps.Probes) == 0 {
			return nil, fmt.Errorf("probe %s: no probes", ps.Kind)
		}
		probes := make([]Probe, 0, len(ps.Probes))
		for i, sub := range ps.Probes {
			p, err := sub.Build(dir)
			if err != nil {
				return nil, fmt.Errorf("probe %s[%d]: %w", ps.Kind, i, err)
			}
			probes = append(probes, p)
		}
		if ps.Kind == KindCompose {
			return ComposeProbe{Probes: probes}, nil
		}
		return FirstOfProbe{Probes: probes}, nil
	case KindStub:
		return StubProbe{}, nil
	case KindTrue:
		return TrueProbe{}, nil
	case KindEnv:
		if len(ps.Vars) == 0 {
			return nil, fmt.Errorf("probe %s: no vars", ps.Kind)
		}
		return EnvVarsProbe{Vars: ps.Vars}, nil
	case KindVersion:
		if ps.Var == "" || ps.Constraint == "" {
			return nil, fmt.Errorf("probe %s: var and constraint are required", ps.Kind)
		}
		return VersionProbe{Var: ps.Var, Constraint: ps.Constraint}, nil
	case KindKernel:
		if len(ps.ProgramTypes) == 0 && len(ps.MapTypes) == 0 {
			return nil, fmt.Errorf("probe %s: no program or map types", ps.Kind)
		}
		return KernelProbe{ProgramTypes: ps.ProgramTypes, MapTypes: ps.MapTypes}, nil
	case "":
		return nil, fmt.Errorf("probe without kind")
	default:
		return nil, fmt.Errorf("unknown probe kind %q", ps.Kind)
	}
}

func (ps ProbeSpec) compileProbe(dir string) (CompileProbe, error) {
	fragment := ps.Fragment
	if ps.FragmentFile != "" {
		if fragment != "" {
			return CompileProbe{}, fmt.Errorf("probe %s: fragment and fragment_file are exclusive", ps.Kind)
		}
		path := ps.FragmentFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return CompileProbe{}, fmt.Errorf("probe %s: read fragment: %w", ps.Kind, err)
		}
		fragment = string(data)
	}
	return CompileProbe{
		Fragment:  fragment,
		Header:    ps.Header,
		CFlags:    ps.CFlags,
		LinkFlags: ps.LinkFlags,
		Libs:      ps.Libs,
	}, nil
}
