//go:build !linux

package featdeps

import "context"

// KernelProbe succeeds if the running kernel supports the listed eBPF
// program and map types. On non-Linux platforms it always fails.
type KernelProbe struct {
	ProgramTypes []string
	MapTypes     []string
}

// Evaluate clears the feature key and reports failure.
func (KernelProbe) Evaluate(_ context.Context, run *Run, id string) (bool, error) {
	run.AddMessage(id, ErrUnsupportedPlatform.Error()+", requires Linux")
	run.defines.Undefine(DefineKey(id))
	return false, nil
}
