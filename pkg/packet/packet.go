// Package packet implements a typed Packet<H, M> view over buffer.Buffer,
// grounded on NetBricks' interface/packet.rs. Go has no type-level
// PreviousHeader relation and no generic methods, so lineage transitions
// (Parse, Deparse, ...) are standalone generic functions rather than methods,
// and a header's own Kind/PreviousKind (pkg/headers) stands in for the
// compile-time PreviousHeader bound.
package packet

import (
	"github.com/flowcore/flowcore/pkg/buffer"
	"github.com/flowcore/flowcore/pkg/errs"
	"github.com/flowcore/flowcore/pkg/headers"
)

// Empty is the metadata type of a packet that carries no user metadata yet,
// the Go analogue of NetBricks' EmptyMetadata.
type Empty struct{}

// Packet is a typed view over a Buffer: the current header's byte offset
// from the buffer's start, and a constructor that turns that offset's bytes
// into an H value on demand. M is a phantom type parameter carrying the
// freeform-metadata shape the caller expects to find in the buffer.
type Packet[H headers.Header, M any] struct {
	buf          *buffer.Buffer
	headerOffset int
	wrap         func([]byte) H
}

// FromBuffer wraps buf without touching its refcount, the driver hot path
// variant of NetBricks' packet_from_mbuf_no_increment.
func FromBuffer[H headers.Header, M any](buf *buffer.Buffer, headerOffset int, wrap func([]byte) H) Packet[H, M] {
	return Packet[H, M]{buf: buf, headerOffset: headerOffset, wrap: wrap}
}

// New allocates a fresh buffer via alloc (a NIC driver's pool binding)
// and returns it as a Null/Empty packet with refcount 1.
func New(alloc func() *buffer.Buffer) (Packet[headers.Null, Empty], error) {
	buf := alloc()
	if buf == nil {
		return Packet[headers.Null, Empty]{}, errs.FailedAllocation
	}
	return FromBuffer[headers.Null, Empty](buf, 0, headers.NewNull), nil
}

// NewArray allocates up to n packets in a batch, stopping early if the pool
// is exhausted (NetBricks' new_packet_array).
func NewArray(alloc func() *buffer.Buffer, n int) []Packet[headers.Null, Empty] {
	out := make([]Packet[headers.Null, Empty], 0, n)
	for i := 0; i < n; i++ {
		buf := alloc()
		if buf == nil {
			break
		}
		out = append(out, FromBuffer[headers.Null, Empty](buf, 0, headers.NewNull))
	}
	return out
}

// Buffer returns the packet's underlying buffer.
func (p Packet[H, M]) Buffer() *buffer.Buffer { return p.buf }

// HeaderOffset returns the current header's absolute byte offset from the
// start of the buffer.
func (p Packet[H, M]) HeaderOffset() int { return p.headerOffset }

// Header returns the current header view, constructed over the live bytes
// at the packet's header offset. Because H is itself a slice-backed view,
// mutating via the returned value's setters mutates the packet's buffer in
// place; there is no separate mutable accessor as in NetBricks' Rust implementation.
func (p Packet[H, M]) Header() H {
	return p.wrap(p.buf.DataAddress(p.headerOffset))
}

// PayloadOffset is the number of bytes from the start of the current header
// to the start of its payload.
func (p Packet[H, M]) PayloadOffset() int {
	return p.Header().HeaderLen()
}

// DataLen returns the buffer's total live data length.
func (p Packet[H, M]) DataLen() int { return p.buf.DataLen() }

// PayloadSize returns the number of bytes remaining after the current
// header.
func (p Packet[H, M]) PayloadSize() int {
	return p.buf.DataLen() - p.headerOffset - p.PayloadOffset()
}

// Payload slices the live payload region following the current header.
func (p Packet[H, M]) Payload() []byte {
	return p.buf.DataAddress(p.headerOffset + p.PayloadOffset())
}

// WriteHeaderAt writes encoded at byte offset within the payload, failing
// with BadOffset if offset falls outside the payload.
func (p Packet[H, M]) WriteHeaderAt(offset int, encoded []byte) error {
	if offset > p.PayloadSize() {
		return &errs.BadOffset{Offset: offset}
	}
	dst := p.Payload()[offset:]
	copy(dst, encoded)
	return nil
}

// ReplaceHeader overwrites the current header's bytes with encoded.
func (p Packet[H, M]) ReplaceHeader(encoded []byte) {
	dst := p.buf.DataAddress(p.headerOffset)
	copy(dst, encoded)
}

// Parse advances from H to H2, where H2's declared PreviousKind must match
// H's Kind and at least H2's minimum size must remain in the payload.
// Violating either is a caller bug, since parse preconditions are caller
// contracts, and panics rather than returning an error.
func Parse[H headers.Header, H2 headers.Lineage, M any](p Packet[H, M], wrap func([]byte) H2) Packet[H2, M] {
	var probe H2
	if probe.PreviousKind() != p.Header().Kind() {
		panic("packet: parse lineage mismatch")
	}
	if p.PayloadSize() < probe.Size() {
		panic("packet: parse precondition violated: payload too small")
	}
	newOffset := p.headerOffset + p.PayloadOffset()
	return FromBuffer[H2, M](p.buf, newOffset, wrap)
}

// ParseAndRecord behaves like Parse but additionally pushes the current
// payload offset onto the buffer's runtime header-offset stack, so a later
// DeparseStack call can unwind back to H.
func ParseAndRecord[H headers.Header, H2 headers.Lineage, M any](p Packet[H, M], wrap func([]byte) H2) Packet[H2, M] {
	payloadOffset := p.PayloadOffset()
	next := Parse(p, wrap)
	p.buf.PushStackOffset(payloadOffset)
	return next
}

// Deparse retreats the current header pointer by offset, returning a packet
// typed as the previous header. offset must match the offset consumed by
// the corresponding Parse call.
func Deparse[H headers.Lineage, HPrev headers.Header, M any](p Packet[H, M], offset int, wrapPrev func([]byte) HPrev) Packet[HPrev, M] {
	return FromBuffer[HPrev, M](p.buf, p.headerOffset-offset, wrapPrev)
}

// DeparseStack pops the most recently recorded offset and deparses with it,
// reporting ok == false if the stack is empty.
func DeparseStack[H headers.Lineage, HPrev headers.Header, M any](p Packet[H, M], wrapPrev func([]byte) HPrev) (prev Packet[HPrev, M], ok bool) {
	offset, has := p.buf.PopStackOffset()
	if !has {
		return Packet[HPrev, M]{}, false
	}
	return Deparse(p, offset, wrapPrev), true
}

// PushHeader inserts encoded at the current payload position, shifting
// trailing payload bytes right to make room and growing the buffer's tail.
// It fails with FailedAllocation if the tail cannot grow by len(encoded).
func PushHeader[H headers.Header, H2 headers.Lineage, M any](p Packet[H, M], encoded []byte, wrap func([]byte) H2) (Packet[H2, M], error) {
	size := len(encoded)
	originalLen := p.buf.DataLen()
	added := p.buf.AddDataEnd(size)
	if added < size {
		return Packet[H2, M]{}, errs.FailedAllocation
	}

	offset := p.headerOffset + p.PayloadOffset()
	data := p.buf.Bytes()
	if originalLen != offset {
		toMove := originalLen - offset
		copy(data[offset+size:offset+size+toMove], data[offset:offset+toMove])
	}
	copy(data[offset:offset+size], encoded)
	return FromBuffer[H2, M](p.buf, offset, wrap), nil
}

// RemoveFromPayloadHead trims size bytes from the very start of the buffer,
// shifting the current header back by the same amount so it keeps pointing
// at the same logical header.
func (p *Packet[H, M]) RemoveFromPayloadHead(size int) {
	p.buf.RemoveDataBeginning(size)
	p.headerOffset -= size
	if p.headerOffset < 0 {
		p.headerOffset = 0
	}
}

// AddToPayloadHead grows the tail by size bytes and shifts the current
// payload right by size, opening a size-byte hole at the front of the
// payload for the caller to fill.
func (p Packet[H, M]) AddToPayloadHead(size int) error {
	originalLen := p.buf.DataLen()
	added := p.buf.AddDataEnd(size)
	if added < size {
		return errs.FailedAllocation
	}
	offset := p.headerOffset + p.PayloadOffset()
	toMove := originalLen - offset
	data := p.buf.Bytes()
	copy(data[offset+size:offset+size+toMove], data[offset:offset+toMove])
	return nil
}

// RemoveFromPayloadTail shrinks the buffer's tail by size bytes.
func (p Packet[H, M]) RemoveFromPayloadTail(size int) { p.buf.RemoveDataEnd(size) }

// AddToPayloadTail grows the buffer's tail by size bytes, failing with
// FailedAllocation if capacity does not allow it.
func (p Packet[H, M]) AddToPayloadTail(size int) error {
	if p.buf.AddDataEnd(size) < size {
		return errs.FailedAllocation
	}
	return nil
}

// CopyPayload copies src into this packet's payload, growing the tail as
// needed to fit all of src. It returns the number of bytes actually copied.
func (p Packet[H, M]) CopyPayload(src []byte) int {
	copyLen := len(src)
	payloadSize := p.PayloadSize()
	should := copyLen
	if payloadSize < copyLen {
		increment := copyLen - payloadSize
		should = payloadSize + p.buf.AddDataEnd(increment)
	}
	dst := p.Payload()
	return copy(dst[:should], src[:should])
}

// Reset retypes the packet back to Null/Empty pointed at the buffer's
// start, without touching the header-offset stack. Used by the Reset
// pipeline operator.
func Reset[H headers.Header, M any](p Packet[H, M]) Packet[headers.Null, Empty] {
	return FromBuffer[headers.Null, Empty](p.buf, 0, headers.NewNull)
}

// ComposeReset is Reset plus clearing the header-offset stack, the
// Composition operator's boundary semantics: a spliced sub-pipeline must
// not let a later Deparse wind back across the splice.
func ComposeReset[H headers.Header, M any](p Packet[H, M]) Packet[headers.Null, Empty] {
	p.buf.ResetStack()
	return Reset(p)
}

// SaveHeaderAndOffset stashes the current header offset into the buffer's
// metadata slots so it can be recovered later by RestoreSavedHeader, even
// after the buffer has crossed an MPSC queue boundary and lost its Go-level
// type.
func (p Packet[H, M]) SaveHeaderAndOffset() {
	p.buf.SaveHeaderOffset(p.headerOffset)
	p.buf.SaveCurrentOffset(p.headerOffset)
}

// RestoreSavedHeader reconstructs a typed packet from a buffer's previously
// saved header offset. Callers are expected to pair every
// SaveHeaderAndOffset with exactly one RestoreSavedHeader on the consumer
// side (GroupBy's producer / RestoreHeader's consumer), so this never needs
// to report absence.
func RestoreSavedHeader[H2 headers.Header, M2 any](buf *buffer.Buffer, wrap func([]byte) H2) Packet[H2, M2] {
	return FromBuffer[H2, M2](buf, buf.SavedHeaderOffset(), wrap)
}

// Free returns the packet's buffer to its pool, consuming the packet.
func (p Packet[H, M]) Free() { p.buf.Free() }

// Reference increments the underlying buffer's refcount.
func (p Packet[H, M]) Reference() { p.buf.Reference() }

// Refcnt returns the underlying buffer's current refcount.
func (p Packet[H, M]) Refcnt() int32 { return p.buf.Refcnt() }
