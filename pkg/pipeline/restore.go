package pipeline

import (
	"github.com/flowcore/flowcore/pkg/headers"
	"github.com/flowcore/flowcore/pkg/packet"
)

// RestoreHeaderBatch is GroupBy's consumer-side counterpart: it wraps a
// ReceiveBatch over a group's queue and calls RestoreSavedHeader on each
// packet so downstream operators see the original typed header again.
type RestoreHeaderBatch[H headers.Header, M any] struct {
	parent  Batch[headers.Null, packet.Empty]
	wrap    func([]byte) H
	produce TaskID
}

// NewRestoreHeader wraps parent (a group's ReceiveBatch), retyping each
// packet to H. produce is the GroupByProducer's TaskID, reported as this
// batch's sole dependency.
func NewRestoreHeader[H headers.Header, M any](parent Batch[headers.Null, packet.Empty], wrap func([]byte) H, produce TaskID) *RestoreHeaderBatch[H, M] {
	return &RestoreHeaderBatch[H, M]{parent: parent, wrap: wrap, produce: produce}
}

func (r *RestoreHeaderBatch[H, M]) Act() error { return r.parent.Act() }
func (r *RestoreHeaderBatch[H, M]) Start() int { return r.parent.Start() }

func (r *RestoreHeaderBatch[H, M]) NextPayload(idx int) (packet.Packet[H, M], bool) {
	p, ok := r.parent.NextPayload(idx)
	if !ok {
		var zero packet.Packet[H, M]
		return zero, false
	}
	return packet.RestoreSavedHeader[H, M](p.Buffer(), r.wrap), true
}

func (r *RestoreHeaderBatch[H, M]) Done()                    { r.parent.Done() }
func (r *RestoreHeaderBatch[H, M]) Capacity() int32          { return r.parent.Capacity() }
func (r *RestoreHeaderBatch[H, M]) DropPackets(idxs []int) int { return r.parent.DropPackets(idxs) }
func (r *RestoreHeaderBatch[H, M]) ClearPackets()            { r.parent.ClearPackets() }
func (r *RestoreHeaderBatch[H, M]) Dependencies() []TaskID   { return []TaskID{r.produce} }
