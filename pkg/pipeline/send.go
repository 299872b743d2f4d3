package pipeline

import (
	"github.com/flowcore/flowcore/pkg/buffer"
	"github.com/flowcore/flowcore/pkg/errs"
	"github.com/flowcore/flowcore/pkg/headers"
	"github.com/flowcore/flowcore/pkg/metrics"
	"github.com/flowcore/flowcore/pkg/packet"
)

// Sender is a NIC driver's TX queue.
type Sender interface {
	// Send transfers ownership of bufs to the driver, returning the number
	// actually accepted. A negative return indicates a driver error.
	Send(bufs []*buffer.Buffer) int
}

// Task is a schedulable unit of work: a Send sink, or a GroupBy producer.
// The scheduler (pkg/scheduler) drives these, one Execute per tick.
type Task interface {
	Execute() error
	Dependencies() []TaskID
}

// SendTask is the terminal operator of a pipeline: each tick it runs the
// upstream tree's Act cascade, then forwards every surviving packet to its
// TX sink. When the sink reports a driver error, Execute returns
// errs.SendFailed; pkg/scheduler logs that error and keeps the task on its
// run queue, so the task is not stopped.
type SendTask[H headers.Header, M any] struct {
	parent  Batch[H, M]
	sink    Sender
	metrics *metrics.Metrics
	port    string
}

// NewSend wraps parent as a Task feeding sink.
func NewSend[H headers.Header, M any](parent Batch[H, M], sink Sender) *SendTask[H, M] {
	return &SendTask[H, M]{parent: parent, sink: sink}
}

// SetMetrics attaches a Metrics collector set, labeling this sink's
// counters under port.
func (s *SendTask[H, M]) SetMetrics(m *metrics.Metrics, port string) {
	s.metrics = m
	s.port = port
}

func (s *SendTask[H, M]) Execute() error {
	if err := s.parent.Act(); err != nil {
		return err
	}
	defer s.parent.Done()

	n := s.parent.Start()
	bufs := make([]*buffer.Buffer, 0, n)
	for i := 0; i < n; i++ {
		p, ok := s.parent.NextPayload(i)
		if !ok {
			continue
		}
		bufs = append(bufs, p.Buffer())
	}
	if len(bufs) == 0 {
		return nil
	}

	sent := s.sink.Send(bufs)
	if sent < 0 {
		return errs.SendFailed
	}
	for _, b := range bufs[sent:] {
		b.Free()
	}
	if s.metrics != nil {
		s.metrics.Sent.WithLabelValues(s.port).Add(float64(sent))
		if dropped := len(bufs) - sent; dropped > 0 {
			s.metrics.Dropped.WithLabelValues("send", "tx_rejected").Add(float64(dropped))
		}
	}
	return nil
}

func (s *SendTask[H, M]) Dependencies() []TaskID { return s.parent.Dependencies() }
