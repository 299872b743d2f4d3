package pipeline

import (
	"github.com/flowcore/flowcore/pkg/headers"
	"github.com/flowcore/flowcore/pkg/packet"
)

// DeparseBatch calls DeparseStack on each packet, retyping to HPrev.
// Popping an empty stack is a caller bug and panics rather than silently
// passing the packet through untyped.
type DeparseBatch[H headers.Lineage, HPrev headers.Header, M any] struct {
	parent   Batch[H, M]
	wrapPrev func([]byte) HPrev
}

// NewDeparse wraps parent, retyping each yielded packet back to HPrev via
// its recorded header-offset stack entry.
func NewDeparse[H headers.Lineage, HPrev headers.Header, M any](parent Batch[H, M], wrapPrev func([]byte) HPrev) *DeparseBatch[H, HPrev, M] {
	return &DeparseBatch[H, HPrev, M]{parent: parent, wrapPrev: wrapPrev}
}

func (d *DeparseBatch[H, HPrev, M]) Act() error { return d.parent.Act() }
func (d *DeparseBatch[H, HPrev, M]) Start() int { return d.parent.Start() }

func (d *DeparseBatch[H, HPrev, M]) NextPayload(idx int) (packet.Packet[HPrev, M], bool) {
	parentPkt, ok := d.parent.NextPayload(idx)
	if !ok {
		var zero packet.Packet[HPrev, M]
		return zero, false
	}
	prev, ok := packet.DeparseStack(parentPkt, d.wrapPrev)
	if !ok {
		panic("pipeline: deparse on empty header-offset stack")
	}
	return prev, true
}

func (d *DeparseBatch[H, HPrev, M]) Done()                    { d.parent.Done() }
func (d *DeparseBatch[H, HPrev, M]) Capacity() int32          { return d.parent.Capacity() }
func (d *DeparseBatch[H, HPrev, M]) DropPackets(idxs []int) int { return d.parent.DropPackets(idxs) }
func (d *DeparseBatch[H, HPrev, M]) ClearPackets()            { d.parent.ClearPackets() }
func (d *DeparseBatch[H, HPrev, M]) Dependencies() []TaskID   { return d.parent.Dependencies() }
