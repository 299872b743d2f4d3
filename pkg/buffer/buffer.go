// Package buffer implements a reference-counted, fixed-capacity NIC
// packet buffer. It is the core's own model, not a wrapper over a
// specific driver's mbuf type, so that pkg/packet and pkg/pipeline can be
// driver-agnostic; pkg/nic binds real buffers (AF_XDP UMEM frames or
// host-allocated fallback frames) into this shape.
package buffer

import (
	"sync/atomic"

	"github.com/flowcore/flowcore/pkg/errs"
)

// MetadataSlots is the number of word-sized (8 byte) metadata slots
// reserved per buffer, laid out as:
//
//	slot 0            current-header pointer surrogate (byte offset into buf)
//	slot 1            current-offset
//	slot 2            header-stack depth
//	slots 3..3+StackCap recorded offsets
//	remaining slots   freeform metadata region
const MetadataSlots = 32

// StackCap bounds the runtime header-offset stack. NetBricks itself ships
// with a stack capacity of zero in practice (see NetBricks' STACK_SIZE);
// flowcore gives pipelines enough depth to parse Mac->IPv4->TCP/UDP and
// still have headroom for one tunneling layer.
const StackCap = 8

const (
	headerPtrSlot   = 0
	offsetSlot      = 1
	stackDepthSlot  = 2
	stackBaseSlot   = 3
	freeformSlot    = stackBaseSlot + StackCap
	slotWidth       = 8 // bytes per metadata word
	freeformOffset  = freeformSlot * slotWidth
	FreeformSize    = (MetadataSlots - freeformSlot) * slotWidth
	totalMetaOctets = MetadataSlots * slotWidth
)

// Buffer is a fixed-capacity, contiguous, reference-counted byte region.
// Every live Packet holds exactly one reference; the buffer returns to its
// pool only when the count drops to zero.
type Buffer struct {
	data   []byte // len(data) == dataLen; cap(data) == capacity
	meta   [totalMetaOctets]byte
	refcnt int32

	// release is invoked once, when refcnt reaches zero. It is supplied by
	// whichever pool (driver-backed or software) produced the buffer.
	release func(*Buffer)
}

// New wraps an externally-owned backing array (driver-provided frame, or a
// software-allocated one) as a Buffer with data_len == 0 and refcnt == 1.
// release is called exactly once when the last reference is dropped.
func New(backing []byte, release func(*Buffer)) *Buffer {
	return &Buffer{data: backing[:0], refcnt: 1, release: release}
}

// Capacity returns the fixed size of the backing storage.
func (b *Buffer) Capacity() int { return cap(b.data) }

// DataLen returns the current payload length.
func (b *Buffer) DataLen() int { return len(b.data) }

// Bytes exposes the live data region. Callers must not retain the slice
// beyond an operation that might grow/shrink the buffer, since AddDataEnd
// and RemoveDataBeginning may reslice or shift data.
func (b *Buffer) Bytes() []byte { return b.data }

// DataAddress returns a slice of the live region starting at offset, or
// nil if offset is out of range.
func (b *Buffer) DataAddress(offset int) []byte {
	if offset < 0 || offset > len(b.data) {
		return nil
	}
	return b.data[offset:]
}

// AddDataEnd grows the tail by n bytes if capacity allows, returning the
// number of bytes actually added (n, or less than n if capacity was
// insufficient: mirroring the driver's add_data_end contract, which
// callers must check against the amount they asked for).
func (b *Buffer) AddDataEnd(n int) int {
	avail := cap(b.data) - len(b.data)
	added := n
	if added > avail {
		added = avail
	}
	b.data = b.data[:len(b.data)+added]
	return added
}

// RemoveDataEnd shrinks the tail by n bytes (clamped to data_len).
func (b *Buffer) RemoveDataEnd(n int) int {
	if n > len(b.data) {
		n = len(b.data)
	}
	b.data = b.data[:len(b.data)-n]
	return n
}

// RemoveDataBeginning advances the head by n bytes, shifting the remaining
// live bytes down to keep the backing array's start at index 0. Source and
// destination regions for a head-trim always overlap when n < data_len, so
// this uses copy, which is memmove-semantics in Go.
func (b *Buffer) RemoveDataBeginning(n int) int {
	if n > len(b.data) {
		n = len(b.data)
	}
	remaining := len(b.data) - n
	copy(b.data[:remaining], b.data[n:])
	b.data = b.data[:remaining]
	return n
}

// Reference increments the refcount. Used by the driver hot path when a
// buffer is handed to more than one consumer transiently (e.g. RX mirror).
func (b *Buffer) Reference() {
	atomic.AddInt32(&b.refcnt, 1)
}

// Free decrements the refcount, invoking release when it reaches zero.
// Freeing an already-freed buffer is a caller bug; it is reported rather
// than silently ignored so double-free shows up in tests immediately.
func (b *Buffer) Free() {
	n := atomic.AddInt32(&b.refcnt, -1)
	if n == 0 {
		b.data = b.data[:0]
		if b.release != nil {
			b.release(b)
		}
	} else if n < 0 {
		panic("buffer: refcount dropped below zero")
	}
}

// Refcnt returns the current reference count.
func (b *Buffer) Refcnt() int32 {
	return atomic.LoadInt32(&b.refcnt)
}

// ---- metadata slot accessors ----

func (b *Buffer) readSlot(i int) uint64 {
	off := i * slotWidth
	return uint64(b.meta[off]) | uint64(b.meta[off+1])<<8 | uint64(b.meta[off+2])<<16 | uint64(b.meta[off+3])<<24 |
		uint64(b.meta[off+4])<<32 | uint64(b.meta[off+5])<<40 | uint64(b.meta[off+6])<<48 | uint64(b.meta[off+7])<<56
}

func (b *Buffer) writeSlot(i int, v uint64) {
	off := i * slotWidth
	b.meta[off] = byte(v)
	b.meta[off+1] = byte(v >> 8)
	b.meta[off+2] = byte(v >> 16)
	b.meta[off+3] = byte(v >> 24)
	b.meta[off+4] = byte(v >> 32)
	b.meta[off+5] = byte(v >> 40)
	b.meta[off+6] = byte(v >> 48)
	b.meta[off+7] = byte(v >> 56)
}

// SavedHeaderOffset and CurrentOffset surrogate a raw header pointer:
// rather than an unsafe pointer into the backing array, flowcore stores
// the byte offset of the current header within the buffer, which survives
// reslicing and keeps the bounds checker happy.

func (b *Buffer) SaveHeaderOffset(headerOffset int)  { b.writeSlot(headerPtrSlot, uint64(headerOffset)) }
func (b *Buffer) SavedHeaderOffset() int             { return int(b.readSlot(headerPtrSlot)) }
func (b *Buffer) SaveCurrentOffset(currentOffset int) { b.writeSlot(offsetSlot, uint64(currentOffset)) }
func (b *Buffer) SavedCurrentOffset() int             { return int(b.readSlot(offsetSlot)) }

// PushStackOffset records payloadOffset on the runtime header-offset
// stack, returning false if the stack is already at StackCap (mirrors
// Packet::push_offset in NetBricks, which is a no-op failure path
// rather than a panic).
func (b *Buffer) PushStackOffset(payloadOffset int) bool {
	depth := int(b.readSlot(stackDepthSlot))
	if depth >= StackCap {
		return false
	}
	b.writeSlot(stackBaseSlot+depth, uint64(payloadOffset))
	b.writeSlot(stackDepthSlot, uint64(depth+1))
	return true
}

// PopStackOffset pops the most recently recorded offset, or reports ok ==
// false if the stack is empty.
func (b *Buffer) PopStackOffset() (offset int, ok bool) {
	depth := int(b.readSlot(stackDepthSlot))
	if depth == 0 {
		return 0, false
	}
	depth--
	offset = int(b.readSlot(stackBaseSlot + depth))
	b.writeSlot(stackDepthSlot, uint64(depth))
	return offset, true
}

// StackDepth reports the number of offsets currently recorded.
func (b *Buffer) StackDepth() int {
	return int(b.readSlot(stackDepthSlot))
}

// ResetStack clears the header-offset stack, used at composition
// boundaries so a spliced sub-pipeline cannot deparse across the splice.
func (b *Buffer) ResetStack() {
	b.writeSlot(stackDepthSlot, 0)
}

// WriteFreeform copies raw into the freeform metadata region, failing with
// MetadataTooLarge if it does not fit.
func (b *Buffer) WriteFreeform(raw []byte) error {
	if len(raw) > FreeformSize {
		return &errs.MetadataTooLarge{Want: len(raw), Have: FreeformSize}
	}
	copy(b.meta[freeformOffset:freeformOffset+FreeformSize], raw)
	return nil
}

// ReadFreeform returns the first n bytes of the freeform metadata region.
func (b *Buffer) ReadFreeform(n int) []byte {
	if n > FreeformSize {
		n = FreeformSize
	}
	out := make([]byte, n)
	copy(out, b.meta[freeformOffset:freeformOffset+n])
	return out
}
