//go:build linux

package featdeps

import "golang.org/x/sys/unix"

// hostKernelRelease returns the kernel release string (e.g., "6.1.0-generic").
func hostKernelRelease() string {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return ""
	}
	return unix.ByteSliceToString(uname.Release[:])
}
