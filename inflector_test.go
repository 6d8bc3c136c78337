package featdeps

import "testing"

func TestDefineKey(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"libass", "HAVE_LIBASS"},
		{"libav-codec", "HAVE_LIBAV_CODEC"},
		{"sys/soundcard.h", "HAVE_SYS_SOUNDCARD_H"},
		{"gl-x11", "HAVE_GL_X11"},
		{"CamelCase", "HAVE_CAMELCASE"},
		{"os-win32", "HAVE_OS_WIN32"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := DefineKey(tt.id); got != tt.want {
				t.Errorf("DefineKey(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestStorageKey(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"libass", "libass"},
		{"libav-codec", "libav_codec"},
		{"Foo.Bar", "foo_bar"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := StorageKey(tt.id); got != tt.want {
				t.Errorf("StorageKey(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestInflectorDeterministic(t *testing.T) {
	for _, id := range []string{"a-b", "x11"} {
		if DefineKey(id) != DefineKey(id) || StorageKey(id) != StorageKey(id) {
			t.Errorf("keys for %q are not stable", id)
		}
	}
}

func TestEnvVar(t *testing.T) {
	if got, want := envVar("INCLUDES", "libav-codec"), "INCLUDES_LIBAV_CODEC"; got != want {
		t.Errorf("envVar() = %q, want %q", got, want)
	}
}

func TestDefineKey_EmptyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("DefineKey(\"\") should panic")
		}
	}()
	DefineKey("")
}
