package pipeline

import (
	"github.com/flowcore/flowcore/pkg/headers"
	"github.com/flowcore/flowcore/pkg/packet"
)

// MapBatch applies fn to every packet exactly once per Act. Act clears the
// applied flag and the first Start or NextPayload after it applies fn, so
// the repeated Start/NextPayload calls made within one tick never apply fn
// twice.
type MapBatch[H headers.Header, M any] struct {
	parent  Batch[H, M]
	fn      func(packet.Packet[H, M])
	applied bool
}

// NewMap wraps parent, calling fn once per packet per batch.
func NewMap[H headers.Header, M any](parent Batch[H, M], fn func(packet.Packet[H, M])) *MapBatch[H, M] {
	return &MapBatch[H, M]{parent: parent, fn: fn}
}

func (m *MapBatch[H, M]) Act() error {
	if err := m.parent.Act(); err != nil {
		return err
	}
	m.applied = false
	return nil
}

func (m *MapBatch[H, M]) apply() {
	if m.applied {
		return
	}
	for i := 0; i < m.parent.Start(); i++ {
		if p, ok := m.parent.NextPayload(i); ok {
			m.fn(p)
		}
	}
	m.applied = true
}

func (m *MapBatch[H, M]) Start() int {
	m.apply()
	return m.parent.Start()
}

func (m *MapBatch[H, M]) NextPayload(idx int) (packet.Packet[H, M], bool) {
	m.apply()
	return m.parent.NextPayload(idx)
}

func (m *MapBatch[H, M]) Done()                    { m.parent.Done() }
func (m *MapBatch[H, M]) Capacity() int32          { return m.parent.Capacity() }
func (m *MapBatch[H, M]) DropPackets(idxs []int) int { return m.parent.DropPackets(idxs) }
func (m *MapBatch[H, M]) ClearPackets()            { m.parent.ClearPackets() }
func (m *MapBatch[H, M]) Dependencies() []TaskID   { return m.parent.Dependencies() }
