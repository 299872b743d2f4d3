package pipeline

import (
	"github.com/flowcore/flowcore/pkg/headers"
	"github.com/flowcore/flowcore/pkg/packet"
)

// CompositionBatch is a type-erasing boundary: it resets every packet to
// Null/Empty and clears the header-offset stack, so a heterogeneous
// sub-pipeline can be spliced into a larger one without leaking its
// internal header lineage past the splice point.
type CompositionBatch[H headers.Header, M any] struct {
	parent Batch[H, M]
}

// NewComposition wraps parent as a Null/Empty-producing boundary.
func NewComposition[H headers.Header, M any](parent Batch[H, M]) *CompositionBatch[H, M] {
	return &CompositionBatch[H, M]{parent: parent}
}

func (c *CompositionBatch[H, M]) Act() error { return c.parent.Act() }
func (c *CompositionBatch[H, M]) Start() int { return c.parent.Start() }

func (c *CompositionBatch[H, M]) NextPayload(idx int) (packet.Packet[headers.Null, packet.Empty], bool) {
	p, ok := c.parent.NextPayload(idx)
	if !ok {
		var zero packet.Packet[headers.Null, packet.Empty]
		return zero, false
	}
	return packet.ComposeReset(p), true
}

func (c *CompositionBatch[H, M]) Done()                    { c.parent.Done() }
func (c *CompositionBatch[H, M]) Capacity() int32          { return c.parent.Capacity() }
func (c *CompositionBatch[H, M]) DropPackets(idxs []int) int { return c.parent.DropPackets(idxs) }
func (c *CompositionBatch[H, M]) ClearPackets()            { c.parent.ClearPackets() }
func (c *CompositionBatch[H, M]) Dependencies() []TaskID   { return c.parent.Dependencies() }
