package sharedstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/flowcore/pkg/flow"
)

func TestDirectoryRegisterEntries(t *testing.T) {
	d := NewDirectory("flows")
	idx, ok := d.RegisterNewEntry("active_flows")
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, []string{"active_flows"}, d.Entries())
}

func TestDirectoryRejectsOverlongName(t *testing.T) {
	d := NewDirectory("flows")
	long := make([]byte, MaxEntryNameLen+1)
	_, ok := d.RegisterNewEntry(string(long))
	assert.False(t, ok)
}

func TestDirectorySnapshotVersioning(t *testing.T) {
	d := NewDirectory("flows")
	assert.True(t, d.SnapshotStable())

	d.BeginSnapshot()
	assert.False(t, d.SnapshotStable())

	d.EndSnapshot()
	assert.True(t, d.SnapshotStable())
	assert.Equal(t, d.CurrentVersion(), d.CommittedVersion())
}

func TestMergeStoreUpdateAndRemove(t *testing.T) {
	combine := func(a, b int) int { return a + b }
	s := NewMergeStore[int](2, 16, combine)

	f := flow.Flow{SrcIP: 1, DstIP: 2, SrcPort: 10, DstPort: 20, Protocol: 6}
	s.Update(f, 5)
	s.Update(f, 7) // triggers merge at cacheSize == 2

	assert.Equal(t, 12, s.Remove(f))
	assert.Equal(t, 0, s.Remove(f), "removing twice returns the zero value")
}

func TestMergeStoreLenForcesMerge(t *testing.T) {
	s := NewMergeStore[int](100, 16, func(a, b int) int { return a + b })
	f := flow.Flow{SrcIP: 1}
	s.Update(f, 1)
	s.Update(f, 2)
	assert.Equal(t, 1, s.Len())

	snap := s.Snapshot()
	assert.Equal(t, 3, snap[f])
}

func TestMergeStoreIsEmpty(t *testing.T) {
	s := New[int](func(a, b int) int { return a + b })
	assert.True(t, s.IsEmpty())
	s.Update(flow.Flow{SrcIP: 1}, 1)
	assert.False(t, s.IsEmpty())
}

func TestRingBufferOverwritesOldest(t *testing.T) {
	r := NewRingBuffer(3)
	r.Record(1)
	r.Record(2)
	r.Record(3)
	r.Record(4) // overwrites the sample for latency 1

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, int64(2), snap[0].Latency)
	assert.Equal(t, int64(3), snap[1].Latency)
	assert.Equal(t, int64(4), snap[2].Latency)
}

func TestRingBufferLenBeforeFull(t *testing.T) {
	r := NewRingBuffer(4)
	r.Record(10)
	r.Record(20)
	assert.Equal(t, 2, r.Len())
}
