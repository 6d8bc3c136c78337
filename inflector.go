package featdeps

import "strings"

// DefineKey returns the preprocessor symbol of a feature identifier,
// e.g. "libav-codec" becomes "HAVE_LIBAV_CODEC" and "sys/soundcard.h"
// becomes "HAVE_SYS_SOUNDCARD_H".
//
// It panics on an empty identifier.
func DefineKey(id string) string {
	return "HAVE_" + strings.ToUpper(underscore(id))
}

// StorageKey returns the normalized key under which auxiliary values of a
// feature are stored, e.g. "libav-codec" becomes "libav_codec".
//
// It panics on an empty identifier.
func StorageKey(id string) string {
	return strings.ToLower(underscore(id))
}

// envVar names an auxiliary environment variable of a feature,
// e.g. envVar("INCLUDES", "libass") is "INCLUDES_LIBASS".
func envVar(prefix, id string) string {
	return prefix + "_" + strings.ToUpper(underscore(id))
}

func underscore(id string) string {
	if id == "" {
		panic("featdeps: empty feature identifier")
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, id)
}
