package netctx

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// SetCPUAffinity pins the calling goroutine's OS thread to core, the way the
// teacher's cmd/server/main.go calls a same-named (never-defined-in-pack)
// helper before entering each dataplane goroutine. Grounded on the ublk
// runner's SchedSetaffinity usage: LockOSThread first, since affinity
// applies to the current thread and Go may otherwise migrate the goroutine
// off it before the call takes effect.
func SetCPUAffinity(core int) error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("netctx: set affinity to core %d: %w", core, err)
	}
	return nil
}

// Topology reports the NUMA layout detected from sysfs, one entry per node
// with its member logical CPUs.
type Topology struct {
	Nodes []NUMANode
}

// NUMANode is one NUMA node's CPU membership.
type NUMANode struct {
	ID   int
	CPUs []int
}

// NodeOf returns the NUMA node id owning core, or -1 if the topology has no
// record of it (core out of range, or NUMA accounting unavailable, e.g.
// running inside a container without /sys/devices/system/node mounted).
func (t Topology) NodeOf(core int) int {
	for _, n := range t.Nodes {
		for _, c := range n.CPUs {
			if c == core {
				return n.ID
			}
		}
	}
	return -1
}

// DetectNUMATopology reads /sys/devices/system/node to build a Topology.
// Falls back to a single node covering every logical CPU runtime.NumCPU
// reports when the sysfs tree is absent (most
// development and container environments).
func DetectNUMATopology() (Topology, error) {
	nodeDirs, err := filepath.Glob("/sys/devices/system/node/node[0-9]*")
	if err != nil || len(nodeDirs) == 0 {
		return Topology{Nodes: []NUMANode{{ID: 0, CPUs: sequentialCPUs(runtime.NumCPU())}}}, nil
	}

	nodes := make([]NUMANode, 0, len(nodeDirs))
	for _, dir := range nodeDirs {
		id, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(dir), "node"))
		if err != nil {
			continue
		}
		cpus, err := parseCPUList(filepath.Join(dir, "cpulist"))
		if err != nil {
			continue
		}
		nodes = append(nodes, NUMANode{ID: id, CPUs: cpus})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	if len(nodes) == 0 {
		return Topology{Nodes: []NUMANode{{ID: 0, CPUs: sequentialCPUs(runtime.NumCPU())}}}, nil
	}
	return Topology{Nodes: nodes}, nil
}

func sequentialCPUs(n int) []int {
	cpus := make([]int, n)
	for i := range cpus {
		cpus[i] = i
	}
	return cpus
}

// parseCPUList parses a Linux cpulist file's contents, a comma-separated
// list of single CPUs and inclusive ranges (e.g. "0-3,8,10-11").
func parseCPUList(path string) ([]int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, nil
	}

	var cpus []int
	for _, field := range strings.Split(text, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if dash := strings.IndexByte(field, '-'); dash >= 0 {
			lo, err := strconv.Atoi(field[:dash])
			if err != nil {
				return nil, fmt.Errorf("netctx: parse cpulist %s: %w", path, err)
			}
			hi, err := strconv.Atoi(field[dash+1:])
			if err != nil {
				return nil, fmt.Errorf("netctx: parse cpulist %s: %w", path, err)
			}
			for c := lo; c <= hi; c++ {
				cpus = append(cpus, c)
			}
		} else {
			c, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("netctx: parse cpulist %s: %w", path, err)
			}
			cpus = append(cpus, c)
		}
	}
	return cpus, nil
}
