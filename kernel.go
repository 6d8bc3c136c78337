//go:build linux

package featdeps

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/features"
)

var programTypes = map[string]ebpf.ProgramType{
	"socket-filter": ebpf.SocketFilter,
	"kprobe":        ebpf.Kprobe,
	"sched-cls":     ebpf.SchedCLS,
	"sched-act":     ebpf.SchedACT,
	"tracepoint":    ebpf.TracePoint,
	"xdp":           ebpf.XDP,
	"perf-event":    ebpf.PerfEvent,
	"cgroup-skb":    ebpf.CGroupSKB,
	"tracing":       ebpf.Tracing,
	"lsm":           ebpf.LSM,
}

var mapTypes = map[string]ebpf.MapType{
	"hash":             ebpf.Hash,
	"array":            ebpf.Array,
	"perf-event-array": ebpf.PerfEventArray,
	"percpu-hash":      ebpf.PerCPUHash,
	"percpu-array":     ebpf.PerCPUArray,
	"lru-hash":         ebpf.LRUHash,
	"lpm-trie":         ebpf.LPMTrie,
	"ringbuf":          ebpf.RingBuf,
}

// KernelProbe succeeds if the running kernel supports the listed eBPF
// program and map types (e.g. "kprobe", "ringbuf"). It gates features that
// need host kernel support at runtime.
type KernelProbe struct {
	ProgramTypes []string
	MapTypes     []string
}

// Evaluate checks each program type, then each map type, against the running kernel.
func (p KernelProbe) Evaluate(_ context.Context, run *Run, id string) (bool, error) {
	for _, name := range p.ProgramTypes {
		pt, ok := programTypes[name]
		if !ok {
			return false, fmt.Errorf("%w: unknown program type %q", ErrEnvironment, name)
		}
		if ok, err := kernelSupports(features.HaveProgramType(pt)); err != nil || !ok {
			if err == nil {
				run.AddMessage(id, fmt.Sprintf("program type %s not supported by running kernel", name))
			}
			return false, err
		}
	}
	for _, name := range p.MapTypes {
		mt, ok := mapTypes[name]
		if !ok {
			return false, fmt.Errorf("%w: unknown map type %q", ErrEnvironment, name)
		}
		if ok, err := kernelSupports(features.HaveMapType(mt)); err != nil || !ok {
			if err == nil {
				run.AddMessage(id, fmt.Sprintf("map type %s not supported by running kernel", name))
			}
			return false, err
		}
	}
	run.defines.Define(DefineKey(id), "1")
	return true, nil
}

// kernelSupports maps a cilium/ebpf feature probe error to a detection result.
// Missing privileges count as a negative result.
func kernelSupports(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ebpf.ErrNotSupported) || errors.Is(err, os.ErrPermission) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %w", ErrEnvironment, err)
}
