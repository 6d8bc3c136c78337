//go:build !linux

package featdeps

// hostKernelRelease is only known on Linux.
func hostKernelRelease() string {
	return ""
}
