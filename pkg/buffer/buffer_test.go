package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuffer(t *testing.T, capacity int) (*Buffer, *bool) {
	t.Helper()
	freed := false
	backing := make([]byte, capacity)
	b := New(backing, func(*Buffer) { freed = true })
	return b, &freed
}

func TestAddRemoveDataEnd(t *testing.T) {
	b, _ := newTestBuffer(t, 64)
	added := b.AddDataEnd(10)
	assert.Equal(t, 10, added)
	assert.Equal(t, 10, b.DataLen())

	// Grow past capacity: clamps to what's available.
	added = b.AddDataEnd(1000)
	assert.Equal(t, 54, added)
	assert.Equal(t, 64, b.DataLen())

	removed := b.RemoveDataEnd(64)
	assert.Equal(t, 64, removed)
	assert.Equal(t, 0, b.DataLen())
}

func TestRemoveDataBeginningShiftsOverlap(t *testing.T) {
	b, _ := newTestBuffer(t, 16)
	b.AddDataEnd(16)
	data := b.Bytes()
	for i := range data {
		data[i] = byte(i)
	}
	removed := b.RemoveDataBeginning(4)
	assert.Equal(t, 4, removed)
	require.Equal(t, 12, b.DataLen())
	for i, v := range b.Bytes() {
		assert.Equal(t, byte(i+4), v)
	}
}

func TestRefcountConservation(t *testing.T) {
	b, freed := newTestBuffer(t, 16)
	assert.Equal(t, int32(1), b.Refcnt())
	b.Reference()
	assert.Equal(t, int32(2), b.Refcnt())
	b.Free()
	assert.False(t, *freed)
	b.Free()
	assert.True(t, *freed)
}

func TestDoubleFreePanics(t *testing.T) {
	b, _ := newTestBuffer(t, 16)
	b.Free()
	assert.Panics(t, func() { b.Free() })
}

func TestMetadataStack(t *testing.T) {
	b, _ := newTestBuffer(t, 16)
	_, ok := b.PopStackOffset()
	assert.False(t, ok, "empty stack pops to nothing")

	assert.True(t, b.PushStackOffset(14))
	assert.True(t, b.PushStackOffset(34))
	assert.Equal(t, 2, b.StackDepth())

	off, ok := b.PopStackOffset()
	assert.True(t, ok)
	assert.Equal(t, 34, off)

	off, ok = b.PopStackOffset()
	assert.True(t, ok)
	assert.Equal(t, 14, off)

	_, ok = b.PopStackOffset()
	assert.False(t, ok)
}

func TestStackCapacity(t *testing.T) {
	b, _ := newTestBuffer(t, 16)
	for i := 0; i < StackCap; i++ {
		require.True(t, b.PushStackOffset(i))
	}
	assert.False(t, b.PushStackOffset(999), "stack is at capacity")
}

func TestFreeformMetadataRoundTrip(t *testing.T) {
	b, _ := newTestBuffer(t, 16)
	payload := []byte("hello-metadata")
	require.NoError(t, b.WriteFreeform(payload))
	got := b.ReadFreeform(len(payload))
	assert.Equal(t, payload, got)
}

func TestFreeformMetadataTooLarge(t *testing.T) {
	b, _ := newTestBuffer(t, 16)
	big := make([]byte, FreeformSize+1)
	err := b.WriteFreeform(big)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata too large")
}

func TestResetStack(t *testing.T) {
	b, _ := newTestBuffer(t, 16)
	b.PushStackOffset(1)
	b.PushStackOffset(2)
	b.ResetStack()
	assert.Equal(t, 0, b.StackDepth())
}
