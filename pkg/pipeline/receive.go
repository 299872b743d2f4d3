package pipeline

import (
	"github.com/flowcore/flowcore/pkg/buffer"
	"github.com/flowcore/flowcore/pkg/errs"
	"github.com/flowcore/flowcore/pkg/headers"
	"github.com/flowcore/flowcore/pkg/metrics"
	"github.com/flowcore/flowcore/pkg/packet"
)

// Receiver is a NIC driver's RX queue or any other source of raw buffers,
// such as the per-group consumer end of a GroupBy's MPSC queue.
type Receiver interface {
	// Receive fills up to len(burst) entries with ready buffers and returns
	// the count actually filled. A negative return indicates a driver
	// error (wrapped as errs.ReceiveFailed).
	Receive(burst []*buffer.Buffer) int
}

// ReceiveBatch is the root of every pipeline: it polls a Receiver once per
// Act and exposes the resulting buffers as Null/Empty packets.
type ReceiveBatch struct {
	packetBatch[headers.Null, packet.Empty]
	source       Receiver
	burstSize    int
	scratch      []*buffer.Buffer
	receiveCount uint64
	metrics      *metrics.Metrics
	port         string
}

// SetMetrics attaches a Metrics collector set, labeling this receiver's
// counters under port. Optional; a ReceiveBatch with no Metrics attached
// still works, it just isn't exported.
func (r *ReceiveBatch) SetMetrics(m *metrics.Metrics, port string) {
	r.metrics = m
	r.port = port
}

// NewReceive constructs a ReceiveBatch polling source for up to burstSize
// buffers per Act.
func NewReceive(source Receiver, burstSize int) *ReceiveBatch {
	return &ReceiveBatch{
		source:    source,
		burstSize: burstSize,
		scratch:   make([]*buffer.Buffer, burstSize),
	}
}

// ReceiveCount reports the running total of packets pulled from the source.
func (r *ReceiveBatch) ReceiveCount() uint64 { return r.receiveCount }

func (r *ReceiveBatch) Act() error {
	n := r.source.Receive(r.scratch)
	if n < 0 {
		return errs.ReceiveFailed
	}
	r.pkts = r.pkts[:0]
	for i := 0; i < n; i++ {
		r.pkts = append(r.pkts, packet.FromBuffer[headers.Null, packet.Empty](r.scratch[i], 0, headers.NewNull))
	}
	r.receiveCount += uint64(n)
	if r.metrics != nil {
		r.metrics.Received.WithLabelValues(r.port).Add(float64(n))
	}
	return nil
}

// Done resets this tick's bookkeeping without freeing anything: every
// packet pulled this tick has already reached a terminal disposition by
// the time Done runs, either freed downstream (a Filter reject, a
// GroupByProducer reject, a SendTask's unsent tail) or handed off to a
// Sender that took ownership of its buffer. Freeing here too would free
// buffers a downstream operator already freed or transferred.
func (r *ReceiveBatch) Done()                  { r.pkts = r.pkts[:0] }
func (r *ReceiveBatch) Start() int             { return r.start() }
func (r *ReceiveBatch) NextPayload(idx int) (packet.Packet[headers.Null, packet.Empty], bool) {
	return r.nextPayload(idx)
}
func (r *ReceiveBatch) Capacity() int32         { return int32(r.burstSize) }
func (r *ReceiveBatch) DropPackets(idxs []int) int { return r.dropPackets(idxs) }
func (r *ReceiveBatch) ClearPackets()           { r.clearPackets() }
func (r *ReceiveBatch) Dependencies() []TaskID  { return nil }
