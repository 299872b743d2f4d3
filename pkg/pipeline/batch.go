// Package pipeline implements the Batch operator algebra: a lazy tree of
// operators rooted at a ReceiveBatch and terminating in a Send sink or a
// Composition boundary. Grounded on the scheduling and
// act/done cadence of NetBricks' scheduler/standalone_scheduler.rs
// and the operator contracts of NetBricks' operators/.
//
// Go has no generic methods, so every type-changing operator (Parse,
// Deparse, Metadata, Reset, Composition, RestoreHeader) is a standalone
// generic constructor function returning a new concrete Batch[H2, M2] that
// wraps the parent Batch[H, M] by value, rather than a method on Batch
// itself.
package pipeline

import (
	"github.com/flowcore/flowcore/pkg/headers"
	"github.com/flowcore/flowcore/pkg/packet"
)

// TaskID identifies a schedulable task (a root Send or GroupBy producer)
// within a Context, used to express the transitive dependency DAG GroupBy
// introduces between a producer and its consumers.
type TaskID int

// Batch is the operator contract: Iteration (Start/NextPayload) plus Act
// (the side-effecting pull-from-upstream step) and batch bookkeeping
// (Capacity/DropPackets/ClearPackets/Dependencies).
type Batch[H headers.Header, M any] interface {
	// Start returns the number of packets available this tick.
	Start() int
	// NextPayload returns the packet at idx in source order.
	NextPayload(idx int) (packet.Packet[H, M], bool)
	// Act pulls (and applies this operator's side effects to) a batch from
	// upstream. Called bottom-up, from the sink toward the root, once per
	// scheduler tick.
	Act() error
	// Done resets this tick's bookkeeping after the tree has been fully
	// consumed. Every packet is freed exactly once, at the point it is
	// disposed of (a Filter or GroupByProducer freeing a packet it drops,
	// a SendTask freeing its unsent tail, a Sender taking ownership of the
	// rest), so Done itself never frees; a ReceiveBatch's Done just resets
	// its own slice rather than re-freeing packets a downstream operator
	// already settled.
	Done()
	// Capacity is the maximum number of packets this operator can hold per
	// batch; Merge reports the largest of its parents' capacities.
	Capacity() int32
	// DropPackets removes the packets at idxs (which must be in increasing
	// order) from the live batch, freeing them, and returns the new count.
	DropPackets(idxs []int) int
	// ClearPackets drops every packet in the current batch.
	ClearPackets()
	// Dependencies returns the TaskIDs this operator's tree transitively
	// depends on, non-empty only below a GroupBy, whose producer task must
	// run before its RestoreHeader consumers can see anything.
	Dependencies() []TaskID
}

// packetBatch is the common backing store most leaf operators use: a plain
// slice of packets. DropPackets swap-removes in O(k), filling each dropped
// slot with the current last packet, so surviving packets may change index;
// this matches NetBricks' drop_packets on PacketBatch.
type packetBatch[H headers.Header, M any] struct {
	pkts []packet.Packet[H, M]
}

func (b *packetBatch[H, M]) start() int { return len(b.pkts) }

func (b *packetBatch[H, M]) nextPayload(idx int) (packet.Packet[H, M], bool) {
	if idx < 0 || idx >= len(b.pkts) {
		var zero packet.Packet[H, M]
		return zero, false
	}
	return b.pkts[idx], true
}

// dropPackets removes idxs (ascending, deduplicated) via swap-remove from
// the tail, freeing each dropped packet.
func (b *packetBatch[H, M]) dropPackets(idxs []int) int {
	for i := len(idxs) - 1; i >= 0; i-- {
		idx := idxs[i]
		if idx < 0 || idx >= len(b.pkts) {
			continue
		}
		b.pkts[idx].Free()
		last := len(b.pkts) - 1
		b.pkts[idx] = b.pkts[last]
		b.pkts = b.pkts[:last]
	}
	return len(b.pkts)
}

func (b *packetBatch[H, M]) clearPackets() {
	for _, p := range b.pkts {
		p.Free()
	}
	b.pkts = b.pkts[:0]
}
