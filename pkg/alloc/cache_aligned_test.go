package alloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	a uint64
	b [3]byte
}

func TestAllocateIsAligned(t *testing.T) {
	o := Allocate(sample{a: 7, b: [3]byte{1, 2, 3}})
	require.True(t, o.Valid())
	addr := uintptr(unsafe.Pointer(o.Get()))
	assert.Zero(t, addr%CacheLineSize)
	assert.Equal(t, uint64(7), o.Get().a)
}

func TestCloneDoesNotAlias(t *testing.T) {
	o := Allocate(sample{a: 1})
	c := o.Clone()
	c.Get().a = 99
	assert.Equal(t, uint64(1), o.Get().a)
	assert.Equal(t, uint64(99), c.Get().a)
	assert.NotEqual(t, o.Get(), c.Get())
}

func TestZeroValueInvalid(t *testing.T) {
	var o Owner[sample]
	assert.False(t, o.Valid())
}
