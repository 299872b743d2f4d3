package pipeline

import (
	"time"

	"github.com/flowcore/flowcore/pkg/headers"
	"github.com/flowcore/flowcore/pkg/packet"
	"github.com/flowcore/flowcore/pkg/sharedstate"
)

// MeasureBatch is the framework's own latency-sampling operator, grounded
// on NetBricks' measure module: it stamps the time Act() pulled each
// packet's batch and, as each packet is yielded to the next operator,
// records the elapsed time into a ring buffer. It is not an external
// measurement harness; that would be whatever reads the ring buffer over
// a control socket.
type MeasureBatch[H headers.Header, M any] struct {
	parent  Batch[H, M]
	samples *sharedstate.RingBuffer
	pulled  time.Time
}

// NewMeasure wraps parent, recording per-packet latency samples into
// samples.
func NewMeasure[H headers.Header, M any](parent Batch[H, M], samples *sharedstate.RingBuffer) *MeasureBatch[H, M] {
	return &MeasureBatch[H, M]{parent: parent, samples: samples}
}

func (m *MeasureBatch[H, M]) Act() error {
	m.pulled = time.Now()
	return m.parent.Act()
}

func (m *MeasureBatch[H, M]) Start() int { return m.parent.Start() }

func (m *MeasureBatch[H, M]) NextPayload(idx int) (packet.Packet[H, M], bool) {
	p, ok := m.parent.NextPayload(idx)
	if ok {
		m.samples.Record(time.Since(m.pulled).Nanoseconds())
	}
	return p, ok
}

func (m *MeasureBatch[H, M]) Done()                    { m.parent.Done() }
func (m *MeasureBatch[H, M]) Capacity() int32          { return m.parent.Capacity() }
func (m *MeasureBatch[H, M]) DropPackets(idxs []int) int { return m.parent.DropPackets(idxs) }
func (m *MeasureBatch[H, M]) ClearPackets()            { m.parent.ClearPackets() }
func (m *MeasureBatch[H, M]) Dependencies() []TaskID   { return m.parent.Dependencies() }
