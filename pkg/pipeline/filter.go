package pipeline

import (
	"github.com/flowcore/flowcore/pkg/headers"
	"github.com/flowcore/flowcore/pkg/packet"
)

// FilterBatch drops packets for which pred reports false: Act frees each
// rejected packet and keeps the survivors, in order, in its own packetBatch.
type FilterBatch[H headers.Header, M any] struct {
	packetBatch[H, M]
	parent Batch[H, M]
	pred   func(packet.Packet[H, M]) bool
}

// NewFilter wraps parent, keeping only packets for which pred is true.
func NewFilter[H headers.Header, M any](parent Batch[H, M], pred func(packet.Packet[H, M]) bool) *FilterBatch[H, M] {
	return &FilterBatch[H, M]{parent: parent, pred: pred}
}

func (f *FilterBatch[H, M]) Act() error {
	if err := f.parent.Act(); err != nil {
		return err
	}
	n := f.parent.Start()
	f.pkts = f.pkts[:0]
	for i := 0; i < n; i++ {
		p, ok := f.parent.NextPayload(i)
		if !ok {
			continue
		}
		if f.pred(p) {
			f.pkts = append(f.pkts, p)
		} else {
			p.Free()
		}
	}
	return nil
}

func (f *FilterBatch[H, M]) Start() int { return f.start() }
func (f *FilterBatch[H, M]) NextPayload(idx int) (packet.Packet[H, M], bool) {
	return f.nextPayload(idx)
}
func (f *FilterBatch[H, M]) Done()                    { f.parent.Done() }
func (f *FilterBatch[H, M]) Capacity() int32          { return f.parent.Capacity() }
func (f *FilterBatch[H, M]) DropPackets(idxs []int) int { return f.dropPackets(idxs) }
func (f *FilterBatch[H, M]) ClearPackets()            { f.clearPackets() }
func (f *FilterBatch[H, M]) Dependencies() []TaskID   { return f.parent.Dependencies() }
