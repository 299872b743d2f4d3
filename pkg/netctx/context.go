// Package netctx implements a deployment container: a set of scheduler
// threads pinned to cores, a set of NIC ports/queues, and the pipeline
// factories wired to them. Grounded on a start sequence of detect
// topology, initialize the NIC, pin goroutines to cores, run until
// signaled, generalized to an arbitrary (port, queue, core) assignment
// list rather than one hardcoded pairing.
package netctx

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/flowcore/flowcore/pkg/metrics"
	"github.com/flowcore/flowcore/pkg/nic"
	"github.com/flowcore/flowcore/pkg/pipeline"
	"github.com/flowcore/flowcore/pkg/scheduler"
)

// Assignment binds one NIC queue to the core whose scheduler should poll it.
type Assignment struct {
	Port  string
	Queue int
	Core  int
}

// TaskFactory builds the schedulable task for one assignment's queue. Most
// implementations close over q to build a Receive→...→Send pipeline.Batch
// chain and wrap its terminal operator (pipeline.NewSend, or a
// pipeline.GroupByProducer) as the returned Task.
type TaskFactory func(q nic.Queue) pipeline.Task

// Context owns one driver, the per-core schedulers it has started, and
// tracks whether it attached as a secondary process. Not safe for
// concurrent use from multiple goroutines beyond Shutdown, which may be
// called from a signal handler while Start's goroutines are running.
type Context struct {
	driver    nic.Driver
	log       *zap.Logger
	metrics   *metrics.Metrics
	mu        sync.Mutex
	cores     map[int]*scheduler.Scheduler
	secondary bool
}

// New constructs a Context over driver. A nil logger is replaced with
// zap.NewNop(), matching pkg/scheduler's convention.
func New(driver nic.Driver, log *zap.Logger) *Context {
	if log == nil {
		log = zap.NewNop()
	}
	return &Context{driver: driver, log: log, cores: make(map[int]*scheduler.Scheduler)}
}

// SetMetrics attaches a Metrics collector set; every scheduler this Context
// creates afterward reports into it.
func (c *Context) SetMetrics(m *metrics.Metrics) { c.metrics = m }

// InitializePrimary brings up the driver as owner of a fresh buffer pool
// and NIC queues on core, the first step of the start sequence.
func (c *Context) InitializePrimary(name string, core int, poolSize, cacheSize, metadataSlots int) error {
	return c.driver.InitializePrimary(name, core, poolSize, cacheSize, metadataSlots)
}

// AttachSecondary attaches to a primary process's already-initialized
// buffer pool and queues by name instead of creating them. A secondary
// Context never calls InitializePrimary.
func (c *Context) AttachSecondary(name string, core int) error {
	if err := c.driver.InitializeSecondary(name, core); err != nil {
		return err
	}
	c.secondary = true
	return nil
}

// IsSecondary reports whether this Context attached rather than
// initialized.
func (c *Context) IsSecondary() bool { return c.secondary }

func (c *Context) schedulerFor(core int) *scheduler.Scheduler {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.cores[core]
	if !ok {
		s = scheduler.New(fmt.Sprintf("core-%d", core), c.log)
		if c.metrics != nil {
			s.SetMetrics(c.metrics)
		}
		c.cores[core] = s
	}
	return s
}

// Start runs the rest of the start sequence: create a
// scheduler per distinct core named in assignments, Add each assignment's
// task to its scheduler, then send Execute and spawn one goroutine per
// core pinned via SetCPUAffinity to drive that scheduler's HandleRequests
// loop. Returns once every task has been added and every core's Execute
// has been sent; the per-core goroutines keep running until Shutdown.
func (c *Context) Start(assignments []Assignment, factory TaskFactory) error {
	for _, a := range assignments {
		q, err := c.driver.Queue(a.Queue)
		if err != nil {
			return fmt.Errorf("netctx: queue %d: %w", a.Queue, err)
		}
		task := factory(q)
		name := scheduler.TaskName(fmt.Sprintf("%s.%d", a.Port, a.Queue))
		c.schedulerFor(a.Core).Add(name, task)
	}

	c.mu.Lock()
	cores := make(map[int]*scheduler.Scheduler, len(c.cores))
	for core, s := range c.cores {
		cores[core] = s
	}
	c.mu.Unlock()

	for core, s := range cores {
		core, s := core, s
		go func() {
			if err := SetCPUAffinity(core); err != nil {
				c.log.Warn("cpu affinity failed, continuing unpinned",
					zap.Int("core", core), zap.Error(err))
			}
			s.HandleRequests()
		}()
		s.Execute()
	}
	return nil
}

// Shutdown broadcasts Shutdown to every core's scheduler. Safe to call
// more than once; idempotent beyond the first call
// because each scheduler ignores further commands once its HandleRequests
// loop has returned (the command channel is simply never drained again).
func (c *Context) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.cores {
		s.Shutdown()
	}
}

// Close releases the underlying driver's queues and buffer pool. Callers
// should Shutdown first so no scheduler is still polling a queue Close
// tears down.
func (c *Context) Close() error {
	return c.driver.Close()
}
