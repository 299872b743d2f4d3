package pipeline

import (
	"fmt"

	"github.com/flowcore/flowcore/pkg/buffer"
	"github.com/flowcore/flowcore/pkg/headers"
	"github.com/flowcore/flowcore/pkg/metrics"
	"github.com/flowcore/flowcore/pkg/packet"
	"github.com/flowcore/flowcore/pkg/queue"
)

// queueReceiver adapts a queue.Queue[*buffer.Buffer] to the Receiver
// interface so a GroupBy group's consumer side can be built from an
// ordinary ReceiveBatch.
type queueReceiver struct {
	q *queue.Queue[*buffer.Buffer]
}

func (r *queueReceiver) Receive(burst []*buffer.Buffer) int { return r.q.PopBatch(burst) }

// GroupByProducer is the scheduler task a GroupBy introduces: each tick it
// pulls a batch from upstream, classifies every packet, saves its header
// and offset (so typed state survives the MPSC crossing), and enqueues its
// buffer into the classified group's queue. Packets the classifier routes
// to an out-of-range group, or whose group queue is full, are freed.
type GroupByProducer[H headers.Header, M any] struct {
	parent     Batch[H, M]
	classifier func(packet.Packet[H, M]) int
	queues     []*queue.Queue[*buffer.Buffer]
	id         TaskID
	metrics    *metrics.Metrics
	queueName  string
}

// SetMetrics attaches a Metrics collector set. Each group's queue is
// labeled "<name>.<index>" in QueueDepth/QueueDropped.
func (g *GroupByProducer[H, M]) SetMetrics(m *metrics.Metrics, name string) {
	g.metrics = m
	g.queueName = name
}

// NewGroupBy splits parent into n classified groups. id is the TaskID the
// caller registers this producer under with the scheduler. The returned
// groups report no dependencies themselves; a RestoreHeader built over a
// group with this id reports it as its sole dependency, so a Context can
// order producer before consumer
// if it chooses to (the MPSC queue makes this a liveness optimization, not
// a correctness requirement). queueCapacity bounds each group's queue.
func NewGroupBy[H headers.Header, M any](
	parent Batch[H, M],
	n int,
	classifier func(packet.Packet[H, M]) int,
	queueCapacity int,
	id TaskID,
) (*GroupByProducer[H, M], []Batch[headers.Null, packet.Empty]) {
	producer := &GroupByProducer[H, M]{parent: parent, classifier: classifier, id: id}
	producer.queues = make([]*queue.Queue[*buffer.Buffer], n)
	groups := make([]Batch[headers.Null, packet.Empty], n)
	for i := 0; i < n; i++ {
		producer.queues[i] = queue.New[*buffer.Buffer](queueCapacity)
		groups[i] = NewReceive(&queueReceiver{q: producer.queues[i]}, queueCapacity)
	}
	return producer, groups
}

func (g *GroupByProducer[H, M]) Execute() error {
	if err := g.parent.Act(); err != nil {
		return err
	}
	defer g.parent.Done()

	n := g.parent.Start()
	for i := 0; i < n; i++ {
		p, ok := g.parent.NextPayload(i)
		if !ok {
			continue
		}
		group := g.classifier(p)
		if group < 0 || group >= len(g.queues) {
			p.Free()
			continue
		}
		p.SaveHeaderAndOffset()
		if !g.queues[group].Push(p.Buffer()) {
			p.Free()
			if g.metrics != nil {
				g.metrics.QueueDropped.WithLabelValues(g.groupLabel(group)).Inc()
			}
		}
	}
	if g.metrics != nil {
		for i, q := range g.queues {
			g.metrics.QueueDepth.WithLabelValues(g.groupLabel(i)).Set(float64(q.Len()))
		}
	}
	return nil
}

func (g *GroupByProducer[H, M]) groupLabel(i int) string {
	return fmt.Sprintf("%s.%d", g.queueName, i)
}

func (g *GroupByProducer[H, M]) Dependencies() []TaskID { return g.parent.Dependencies() }

// ID returns the TaskID this producer was constructed with.
func (g *GroupByProducer[H, M]) ID() TaskID { return g.id }
