package featdeps

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCompileProbe(t *testing.T) {
	t.Run("success records flags", func(t *testing.T) {
		tc := &fakeToolchain{ok: func(CompileRequest) bool { return true }}
		run := newTestRun(t, WithToolchain(tc))

		p := CompileProbe{Header: "zlib.h", CFlags: []string{"-DZ"}, LinkFlags: []string{"-Wl,--as-needed"}, Libs: []string{"z"}}
		ok, err := p.Evaluate(context.Background(), run, "zlib")
		if err != nil || !ok {
			t.Fatalf("Evaluate() = %v, %v; want true, nil", ok, err)
		}
		if !strings.Contains(tc.calls[0].Fragment, "#include <zlib.h>") {
			t.Errorf("fragment = %q, want zlib.h include", tc.calls[0].Fragment)
		}
		if !run.Defines().IsDefined("HAVE_ZLIB") {
			t.Error("HAVE_ZLIB should be defined")
		}
		for key, want := range map[string][]string{
			"CFLAGS_ZLIB":    {"-DZ"},
			"LINKFLAGS_ZLIB": {"-Wl,--as-needed"},
			"LIB_ZLIB":       {"z"},
		} {
			if got, _ := run.Env().Get(key); !cmp.Equal(got, want) {
				t.Errorf("%s = %v, want %v", key, got, want)
			}
		}
	})

	t.Run("failure records nothing", func(t *testing.T) {
		tc := &fakeToolchain{}
		run := newTestRun(t, WithToolchain(tc))
		before := run.Env().Keys()

		ok, err := CompileProbe{Libs: []string{"z"}}.Evaluate(context.Background(), run, "zlib")
		if err != nil || ok {
			t.Fatalf("Evaluate() = %v, %v; want false, nil", ok, err)
		}
		if !cmp.Equal(before, run.Env().Keys()) {
			t.Errorf("environment changed: %v", run.Env().Keys())
		}
	})

	t.Run("toolchain error wraps ErrEnvironment", func(t *testing.T) {
		tc := &fakeToolchain{err: errors.New("exec format error")}
		run := newTestRun(t, WithToolchain(tc))

		_, err := CompileProbe{}.Evaluate(context.Background(), run, "x")
		if !errors.Is(err, ErrEnvironment) {
			t.Fatalf("Evaluate() error = %v, want ErrEnvironment", err)
		}
	})
}

func TestStatement(t *testing.T) {
	p := Statement("sys/mman.h", "mmap(0, 0, 0, 0, 0, 0)")
	want := "#include <sys/mman.h>\nint main(int argc, char **argv)\n{ mmap(0, 0, 0, 0, 0, 0); return 0; }\n"
	if p.Fragment != want {
		t.Errorf("Fragment = %q, want %q", p.Fragment, want)
	}
}

func TestLibrarySweepProbe(t *testing.T) {
	tests := []struct {
		name      string
		available string
		candidate []string
		wantOK    bool
		wantCalls int
		wantLibs  []string
	}{
		{"no extra library needed", "", []string{"dl"}, true, 1, nil},
		{"second candidate", "dl iconv", []string{"iconv", "dl iconv", "never"}, true, 3, []string{"dl", "iconv"}},
		{"none match", "m", []string{"dl", "iconv"}, false, 3, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := &fakeToolchain{ok: func(req CompileRequest) bool {
				return strings.Join(req.Libs, " ") == tt.available
			}}
			run := newTestRun(t, WithToolchain(tc))

			ok, err := LibrarySweepProbe{Base: Statement("dlfcn.h", "dlopen(0, 0)"), Libs: tt.candidate}.Evaluate(context.Background(), run, "libdl")
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if ok != tt.wantOK {
				t.Errorf("Evaluate() = %v, want %v", ok, tt.wantOK)
			}
			if len(tc.calls) != tt.wantCalls {
				t.Errorf("compiled %d times, want %d", len(tc.calls), tt.wantCalls)
			}
			if len(tc.calls) > 0 && len(tc.calls[0].Libs) != 0 {
				t.Errorf("first attempt libs = %v, want none", tc.calls[0].Libs)
			}
			got, _ := run.Env().Get("LIB_LIBDL")
			if !cmp.Equal(got, tt.wantLibs) {
				t.Errorf("LIB_LIBDL = %v, want %v", got, tt.wantLibs)
			}
		})
	}
}

func TestHeaderProbe(t *testing.T) {
	headers := []string{"sys/soundcard.h", "soundcard.h", "linux/soundcard.h"}

	t.Run("first includable header wins", func(t *testing.T) {
		tc := &fakeToolchain{ok: func(req CompileRequest) bool {
			return !strings.Contains(req.Fragment, "<sys/soundcard.h>")
		}}
		run := newTestRun(t, WithToolchain(tc))

		ok, err := HeaderProbe{Headers: headers}.Evaluate(context.Background(), run, "oss-audio")
		if err != nil || !ok {
			t.Fatalf("Evaluate() = %v, %v; want true, nil", ok, err)
		}
		if len(tc.calls) != 2 {
			t.Errorf("compiled %d times, want 2", len(tc.calls))
		}
		want := map[string]string{
			"HAVE_SYS_SOUNDCARD_H":   "0",
			"HAVE_SOUNDCARD_H":       "1",
			"HAVE_LINUX_SOUNDCARD_H": "0",
			"HAVE_OSS_AUDIO":         "1",
		}
		if diff := cmp.Diff(want, run.Defines().Map()); diff != "" {
			t.Errorf("Defines mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty header name is an error", func(t *testing.T) {
		tc := &fakeToolchain{ok: func(CompileRequest) bool { return true }}
		run := newTestRun(t, WithToolchain(tc))

		ok, err := HeaderProbe{Headers: []string{"a.h", ""}}.Evaluate(context.Background(), run, "oss-audio")
		if ok || !errors.Is(err, ErrEnvironment) {
			t.Fatalf("Evaluate() = %v, %v; want false, ErrEnvironment", ok, err)
		}
		if len(tc.calls) != 0 {
			t.Errorf("compiled %d times, want 0", len(tc.calls))
		}
		if keys := run.Defines().Keys(); len(keys) != 0 {
			t.Errorf("Defines keys = %v, want none", keys)
		}
	})

	t.Run("none found clears every header", func(t *testing.T) {
		run := newTestRun(t, WithToolchain(&fakeToolchain{}))

		ok, err := HeaderProbe{Headers: headers}.Evaluate(context.Background(), run, "oss-audio")
		if err != nil || ok {
			t.Fatalf("Evaluate() = %v, %v; want false, nil", ok, err)
		}
		for _, h := range headers {
			if state, _ := run.Defines().Lookup(DefineKey(h)); state != DefineCleared {
				t.Errorf("%s state = %v, want cleared", DefineKey(h), state)
			}
		}
	})
}

func TestComposeProbe(t *testing.T) {
	var a, b, c int
	p := ComposeProbe{Probes: []Probe{countingProbe(true, &a), countingProbe(false, &b), countingProbe(true, &c)}}

	ok, err := p.Evaluate(context.Background(), newTestRun(t), "x")
	if err != nil || ok {
		t.Fatalf("Evaluate() = %v, %v; want false, nil", ok, err)
	}
	if a != 1 || b != 1 || c != 0 {
		t.Errorf("calls = %d, %d, %d; want 1, 1, 0", a, b, c)
	}

	ok, err = ComposeProbe{Probes: []Probe{TrueProbe{}, TrueProbe{}}}.Evaluate(context.Background(), newTestRun(t), "x")
	if err != nil || !ok {
		t.Errorf("Evaluate() = %v, %v; want true, nil", ok, err)
	}
}

func TestFirstOfProbe(t *testing.T) {
	var a, b, c int
	p := FirstOfProbe{Probes: []Probe{countingProbe(false, &a), countingProbe(true, &b), countingProbe(true, &c)}}

	ok, err := p.Evaluate(context.Background(), newTestRun(t), "x")
	if err != nil || !ok {
		t.Fatalf("Evaluate() = %v, %v; want true, nil", ok, err)
	}
	if a != 1 || b != 1 || c != 0 {
		t.Errorf("calls = %d, %d, %d; want 1, 1, 0", a, b, c)
	}
}

func TestPackageConfigProbe(t *testing.T) {
	info := PackageInfo{
		Includes: []string{"/usr/include/libass"},
		Libs:     []string{"ass"},
		LibPaths: []string{"/usr/lib"},
	}

	t.Run("found stores flags", func(t *testing.T) {
		reg := &fakeRegistry{found: map[string]PackageInfo{"libass >= 0.12.1": info}}
		run := newTestRun(t, WithRegistry(reg))

		p := PackageConfigProbe{Packages: []PackageRequirement{{Name: "libass", Version: ">= 0.12.1"}}}
		ok, err := p.Evaluate(context.Background(), run, "libass")
		if err != nil || !ok {
			t.Fatalf("Evaluate() = %v, %v; want true, nil", ok, err)
		}
		if reg.queries[0].Static {
			t.Error("query should not be static")
		}
		if got, _ := run.Env().Get("INCLUDES_LIBASS"); !cmp.Equal(got, info.Includes) {
			t.Errorf("INCLUDES_LIBASS = %v", got)
		}
		if got, _ := run.Env().Get("LIBPATH_LIBASS"); !cmp.Equal(got, info.LibPaths) {
			t.Errorf("LIBPATH_LIBASS = %v", got)
		}
		if run.Env().Has("CFLAGS_LIBASS") {
			t.Error("empty CFLAGS must not be stored")
		}
		if !run.Defines().IsDefined("HAVE_LIBASS") {
			t.Error("HAVE_LIBASS should be defined")
		}
	})

	t.Run("custom store and static query", func(t *testing.T) {
		reg := &fakeRegistry{found: map[string]PackageInfo{"libavcodec libavutil": info}}
		run := newTestRun(t, WithRegistry(reg))
		run.satisfied.add(StaticBuildFact)

		p := PackageConfigProbe{
			Packages: []PackageRequirement{{Name: "libavcodec"}, {Name: "libavutil"}},
			Store:    "ffmpeg",
		}
		ok, err := p.Evaluate(context.Background(), run, "libav")
		if err != nil || !ok {
			t.Fatalf("Evaluate() = %v, %v; want true, nil", ok, err)
		}
		if !reg.queries[0].Static {
			t.Error("query should be static")
		}
		if !run.Env().Has("LIB_FFMPEG") {
			t.Error("flags should be stored under LIB_FFMPEG")
		}
		if !run.Defines().IsDefined("HAVE_LIBAV") {
			t.Error("HAVE_LIBAV should be defined")
		}
	})

	t.Run("not found clears key", func(t *testing.T) {
		run := newTestRun(t, WithRegistry(&fakeRegistry{}))

		ok, err := PackageConfigProbe{Packages: []PackageRequirement{{Name: "libass"}}}.Evaluate(context.Background(), run, "libass")
		if err != nil || ok {
			t.Fatalf("Evaluate() = %v, %v; want false, nil", ok, err)
		}
		if state, _ := run.Defines().Lookup("HAVE_LIBASS"); state != DefineCleared {
			t.Errorf("HAVE_LIBASS state = %v, want cleared", state)
		}
	})

	t.Run("registry errors are environment errors", func(t *testing.T) {
		run := newTestRun(t, WithRegistry(&fakeRegistry{err: errors.New("boom")}))
		_, err := PackageConfigProbe{Packages: []PackageRequirement{{Name: "x"}}}.Evaluate(context.Background(), run, "x")
		if !errors.Is(err, ErrEnvironment) {
			t.Fatalf("Evaluate() error = %v, want ErrEnvironment", err)
		}

		_, err = PackageConfigProbe{}.Evaluate(context.Background(), newTestRun(t), "x")
		if !errors.Is(err, ErrEnvironment) {
			t.Fatalf("Evaluate() without registry error = %v, want ErrEnvironment", err)
		}
	})
}

func TestEnvVarsProbe(t *testing.T) {
	run := newTestRun(t, WithEnvironment(map[string][]string{"SWIFT_VERSION": {"5.9"}}))

	ok, err := EnvVarsProbe{Vars: []string{"SWIFT_VERSION"}}.Evaluate(context.Background(), run, "swift")
	if err != nil || !ok {
		t.Fatalf("Evaluate() = %v, %v; want true, nil", ok, err)
	}

	ok, err = EnvVarsProbe{Vars: []string{"SWIFT_VERSION", "SWIFT_LIB", "SWIFTC"}}.Evaluate(context.Background(), run, "swift-lib")
	if err != nil || ok {
		t.Fatalf("Evaluate() = %v, %v; want false, nil", ok, err)
	}
	if got, want := run.Message("swift-lib"), "missing SWIFT_LIB, SWIFTC"; got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
}

func TestVersionProbe(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string][]string
		wantOK  bool
		wantMsg string
	}{
		{"satisfied", map[string][]string{"SWIFT_VERSION": {"5.9.1"}}, true, "version found: 5.9.1"},
		{"too old", map[string][]string{"SWIFT_VERSION": {"4.2"}}, false, "'>= 5.0' not found, found 4.2"},
		{"not a version", map[string][]string{"SWIFT_VERSION": {"dev"}}, false, "'>= 5.0' not found, found dev"},
		{"missing", nil, false, "'>= 5.0' not found, found none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := newTestRun(t, WithEnvironment(tt.env))
			ok, err := VersionProbe{Var: "SWIFT_VERSION", Constraint: ">= 5.0"}.Evaluate(context.Background(), run, "swift")
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if ok != tt.wantOK {
				t.Errorf("Evaluate() = %v, want %v", ok, tt.wantOK)
			}
			if got := run.Message("swift"); got != tt.wantMsg {
				t.Errorf("Message() = %q, want %q", got, tt.wantMsg)
			}
		})
	}

	t.Run("invalid constraint", func(t *testing.T) {
		_, err := VersionProbe{Var: "V", Constraint: "not a constraint"}.Evaluate(context.Background(), newTestRun(t), "x")
		if !errors.Is(err, ErrEnvironment) {
			t.Fatalf("Evaluate() error = %v, want ErrEnvironment", err)
		}
	})
}

func TestStubAndTrueProbe(t *testing.T) {
	run := newTestRun(t)

	if ok, _ := (TrueProbe{}).Evaluate(context.Background(), run, "a"); !ok {
		t.Error("TrueProbe should succeed")
	}
	if _, v := run.Defines().Lookup("HAVE_A"); v != "1" {
		t.Errorf("HAVE_A = %q, want 1", v)
	}

	if ok, _ := (StubProbe{}).Evaluate(context.Background(), run, "b"); ok {
		t.Error("StubProbe should fail")
	}
	if state, _ := run.Defines().Lookup("HAVE_B"); state != DefineCleared {
		t.Errorf("HAVE_B state = %v, want cleared", state)
	}
}
