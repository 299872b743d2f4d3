package pipeline

import (
	"github.com/flowcore/flowcore/pkg/headers"
	"github.com/flowcore/flowcore/pkg/packet"
)

// ResetBatch retypes each packet back to Null/Empty pointed at its buffer's
// start, without touching the header-offset stack.
type ResetBatch[H headers.Header, M any] struct {
	parent Batch[H, M]
}

// NewReset wraps parent.
func NewReset[H headers.Header, M any](parent Batch[H, M]) *ResetBatch[H, M] {
	return &ResetBatch[H, M]{parent: parent}
}

func (r *ResetBatch[H, M]) Act() error { return r.parent.Act() }
func (r *ResetBatch[H, M]) Start() int { return r.parent.Start() }

func (r *ResetBatch[H, M]) NextPayload(idx int) (packet.Packet[headers.Null, packet.Empty], bool) {
	p, ok := r.parent.NextPayload(idx)
	if !ok {
		var zero packet.Packet[headers.Null, packet.Empty]
		return zero, false
	}
	return packet.Reset(p), true
}

func (r *ResetBatch[H, M]) Done()                    { r.parent.Done() }
func (r *ResetBatch[H, M]) Capacity() int32          { return r.parent.Capacity() }
func (r *ResetBatch[H, M]) DropPackets(idxs []int) int { return r.parent.DropPackets(idxs) }
func (r *ResetBatch[H, M]) ClearPackets()            { r.parent.ClearPackets() }
func (r *ResetBatch[H, M]) Dependencies() []TaskID   { return r.parent.Dependencies() }
