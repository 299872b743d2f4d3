package pipeline

import (
	"github.com/flowcore/flowcore/pkg/headers"
	"github.com/flowcore/flowcore/pkg/packet"
)

// MergeBatch round-robins over same-typed parents: Start/NextPayload/Act
// all delegate to parents[which], and Done advances which to the next
// parent.
type MergeBatch[H headers.Header, M any] struct {
	parents []Batch[H, M]
	which   int
}

// NewMerge wraps parents as a single fair-round-robin Batch. Panics if
// parents is empty, mirroring the caller contract that Merge always joins
// at least one upstream.
func NewMerge[H headers.Header, M any](parents []Batch[H, M]) *MergeBatch[H, M] {
	if len(parents) == 0 {
		panic("pipeline: merge requires at least one parent")
	}
	return &MergeBatch[H, M]{parents: parents}
}

func (m *MergeBatch[H, M]) current() Batch[H, M] { return m.parents[m.which] }

func (m *MergeBatch[H, M]) Act() error { return m.current().Act() }
func (m *MergeBatch[H, M]) Start() int { return m.current().Start() }

func (m *MergeBatch[H, M]) NextPayload(idx int) (packet.Packet[H, M], bool) {
	return m.current().NextPayload(idx)
}

func (m *MergeBatch[H, M]) Done() {
	m.current().Done()
	m.which = (m.which + 1) % len(m.parents)
}

// Capacity is the maximum of all parents' capacities.
func (m *MergeBatch[H, M]) Capacity() int32 {
	var max int32
	for _, p := range m.parents {
		if c := p.Capacity(); c > max {
			max = c
		}
	}
	return max
}

func (m *MergeBatch[H, M]) DropPackets(idxs []int) int { return m.current().DropPackets(idxs) }
func (m *MergeBatch[H, M]) ClearPackets()              { m.current().ClearPackets() }

// Dependencies is the deduplicated union of every parent's dependencies, so
// the scheduler can respect the transitive DAG a GroupBy introduces
// upstream of any of the merged branches.
func (m *MergeBatch[H, M]) Dependencies() []TaskID {
	seen := make(map[TaskID]struct{})
	var out []TaskID
	for _, p := range m.parents {
		for _, d := range p.Dependencies() {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	return out
}
