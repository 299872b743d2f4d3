package netctx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCPUListRangesAndSingles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cpulist")
	require.NoError(t, os.WriteFile(path, []byte("0-3,8,10-11\n"), 0o644))

	cpus, err := parseCPUList(path)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 8, 10, 11}, cpus)
}

func TestParseCPUListEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cpulist")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o644))

	cpus, err := parseCPUList(path)
	require.NoError(t, err)
	assert.Empty(t, cpus)
}

func TestDetectNUMATopologyFallsBackWithoutSysfs(t *testing.T) {
	topo, err := DetectNUMATopology()
	require.NoError(t, err)
	assert.NotEmpty(t, topo.Nodes)
}

func TestTopologyNodeOfUnknownCoreReturnsNegativeOne(t *testing.T) {
	topo := Topology{Nodes: []NUMANode{{ID: 0, CPUs: []int{0, 1}}}}
	assert.Equal(t, 0, topo.NodeOf(1))
	assert.Equal(t, -1, topo.NodeOf(99))
}
