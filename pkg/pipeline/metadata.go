package pipeline

import (
	"github.com/flowcore/flowcore/pkg/headers"
	"github.com/flowcore/flowcore/pkg/packet"
)

// MetadataBatch computes M2 from each packet via fn, writes it into the
// packet's freeform metadata region, and retypes the batch to M2. The
// computation is memoized per Act, the same once-per-tick discipline as
// MapBatch.
type MetadataBatch[H headers.Header, M, M2 any] struct {
	parent  Batch[H, M]
	fn      func(packet.Packet[H, M]) M2
	applied bool
}

// NewMetadata wraps parent, writing fn's result into each packet's
// metadata region once per Act.
func NewMetadata[H headers.Header, M, M2 any](parent Batch[H, M], fn func(packet.Packet[H, M]) M2) *MetadataBatch[H, M, M2] {
	return &MetadataBatch[H, M, M2]{parent: parent, fn: fn}
}

func (m *MetadataBatch[H, M, M2]) Act() error {
	if err := m.parent.Act(); err != nil {
		return err
	}
	m.applied = false
	return nil
}

func (m *MetadataBatch[H, M, M2]) apply() {
	if m.applied {
		return
	}
	for i := 0; i < m.parent.Start(); i++ {
		p, ok := m.parent.NextPayload(i)
		if !ok {
			continue
		}
		meta := m.fn(p)
		_ = packet.WriteMetadata(p, meta)
	}
	m.applied = true
}

func (m *MetadataBatch[H, M, M2]) Start() int {
	m.apply()
	return m.parent.Start()
}

func (m *MetadataBatch[H, M, M2]) NextPayload(idx int) (packet.Packet[H, M2], bool) {
	m.apply()
	p, ok := m.parent.NextPayload(idx)
	if !ok {
		var zero packet.Packet[H, M2]
		return zero, false
	}
	return packet.ReinterpretMetadata[H, M, M2](p), true
}

func (m *MetadataBatch[H, M, M2]) Done()                    { m.parent.Done() }
func (m *MetadataBatch[H, M, M2]) Capacity() int32          { return m.parent.Capacity() }
func (m *MetadataBatch[H, M, M2]) DropPackets(idxs []int) int { return m.parent.DropPackets(idxs) }
func (m *MetadataBatch[H, M, M2]) ClearPackets()            { m.parent.ClearPackets() }
func (m *MetadataBatch[H, M, M2]) Dependencies() []TaskID   { return m.parent.Dependencies() }

// AddMetadataBatch is Metadata's eager counterpart: rather than memoizing
// per Act, it recomputes and rewrites metadata on
// every NextPayload call, so a caller re-reading the same index mid-tick
// always sees a value computed
// against that call's packet state rather than a stale per-Act snapshot.
type AddMetadataBatch[H headers.Header, M, M2 any] struct {
	parent Batch[H, M]
	fn     func(packet.Packet[H, M]) M2
}

// NewAddMetadata wraps parent, computing and writing fn's result on every
// NextPayload call.
func NewAddMetadata[H headers.Header, M, M2 any](parent Batch[H, M], fn func(packet.Packet[H, M]) M2) *AddMetadataBatch[H, M, M2] {
	return &AddMetadataBatch[H, M, M2]{parent: parent, fn: fn}
}

func (a *AddMetadataBatch[H, M, M2]) Act() error { return a.parent.Act() }
func (a *AddMetadataBatch[H, M, M2]) Start() int { return a.parent.Start() }

func (a *AddMetadataBatch[H, M, M2]) NextPayload(idx int) (packet.Packet[H, M2], bool) {
	p, ok := a.parent.NextPayload(idx)
	if !ok {
		var zero packet.Packet[H, M2]
		return zero, false
	}
	meta := a.fn(p)
	_ = packet.WriteMetadata(p, meta)
	return packet.ReinterpretMetadata[H, M, M2](p), true
}

func (a *AddMetadataBatch[H, M, M2]) Done()                    { a.parent.Done() }
func (a *AddMetadataBatch[H, M, M2]) Capacity() int32          { return a.parent.Capacity() }
func (a *AddMetadataBatch[H, M, M2]) DropPackets(idxs []int) int { return a.parent.DropPackets(idxs) }
func (a *AddMetadataBatch[H, M, M2]) ClearPackets()            { a.parent.ClearPackets() }
func (a *AddMetadataBatch[H, M, M2]) Dependencies() []TaskID   { return a.parent.Dependencies() }
