// Package scheduler implements a cooperative, single-threaded round-robin
// scheduler: one goroutine pinned to a core drains a run queue of
// pipeline.Task instances to completion, forever, until told to stop.
// Grounded on NetBricks' standalone_scheduler.rs: a run_q of
// Runnable{task, cycles, last_run}, a next_task cursor, and an inbound
// command channel checked once per full sweep of the queue rather than
// after every task (that would turn a lock-free tight loop into a
// channel-select on every packet batch).
package scheduler

import (
	"time"

	"go.uber.org/zap"

	"github.com/flowcore/flowcore/pkg/metrics"
	"github.com/flowcore/flowcore/pkg/pipeline"
)

// runnable pairs a scheduled task with the running stats the original kept
// per Runnable (cycles spent, wall-clock of the last run). Go has no rdtsc
// intrinsic, so elapsed time is measured with time.Now/time.Since instead of
// a cycle counter.
type runnable struct {
	task    pipeline.Task
	id      TaskName
	elapsed time.Duration
	runs    uint64
	lastRun time.Time
}

// TaskName labels a run-queue entry for logging; distinct from
// pipeline.TaskID, which is the GroupBy producer/consumer dependency key.
type TaskName string

// command is a message sent over a Scheduler's inbound channel.
type command interface{ apply(*Scheduler) }

type addCmd struct {
	name TaskName
	task pipeline.Task
}

func (c addCmd) apply(s *Scheduler) {
	s.runQ = append(s.runQ, &runnable{task: c.task, id: c.name, lastRun: time.Now()})
}

type runCmd struct{ fn func(*Scheduler) }

func (c runCmd) apply(s *Scheduler) { c.fn(s) }

type executeCmd struct{}

func (executeCmd) apply(s *Scheduler) { s.executeLoop() }

type shutdownCmd struct{}

func (shutdownCmd) apply(s *Scheduler) {
	s.looping = false
	s.shutdown = true
}

type handshakeCmd struct{ reply chan<- struct{} }

func (c handshakeCmd) apply(s *Scheduler) { close(c.reply) }

// Scheduler is a single run-to-completion round-robin scheduler. It is not
// safe for concurrent use from multiple goroutines; all control happens
// through its channel from Add/Run/Shutdown/Handshake, which a Context calls
// from whichever goroutine owns the corresponding core.
type Scheduler struct {
	name     string
	log      *zap.Logger
	runQ     []*runnable
	nextTask int
	cmdCh    chan command
	looping  bool
	shutdown bool
	metrics  *metrics.Metrics
}

// SetMetrics attaches a Metrics collector set the scheduler reports its
// per-task cycle counts and run counts into. Optional; intended to be
// called via Run before Execute so it applies inside the scheduler's own
// goroutine.
func (s *Scheduler) SetMetrics(m *metrics.Metrics) { s.metrics = m }

const defaultQueueSize = 256
const defaultCommandBuffer = 16

// New constructs a Scheduler identified by name, used only for log context.
// A nil logger is replaced with zap.NewNop().
func New(name string, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		name:     name,
		log:      log,
		runQ:     make([]*runnable, 0, defaultQueueSize),
		cmdCh:    make(chan command, defaultCommandBuffer),
		shutdown: true,
	}
}

// Add enqueues task under id, asynchronously: the request is delivered the
// next time the scheduler's loop checks its command channel. Safe to call
// from any goroutine.
func (s *Scheduler) Add(id TaskName, task pipeline.Task) {
	s.cmdCh <- addCmd{name: id, task: task}
}

// Run schedules fn to execute against the scheduler from inside its own
// goroutine, the channel-borne escape hatch for operations (inspecting or
// mutating the run queue) that aren't otherwise exposed as commands.
func (s *Scheduler) Run(fn func(*Scheduler)) {
	s.cmdCh <- runCmd{fn: fn}
}

// Execute tells the scheduler to enter its tight execute loop.
func (s *Scheduler) Execute() {
	s.cmdCh <- executeCmd{}
}

// Shutdown tells the scheduler to stop executing and return from
// HandleRequests.
func (s *Scheduler) Shutdown() {
	s.cmdCh <- shutdownCmd{}
}

// Handshake blocks until the scheduler has processed every command sent
// before this call, the barrier a Context uses to confirm a core has caught
// up before proceeding.
func (s *Scheduler) Handshake() {
	reply := make(chan struct{})
	s.cmdCh <- handshakeCmd{reply: reply}
	<-reply
}

// HandleRequests runs the scheduler's main loop on the calling goroutine
// until Shutdown is received. Intended to be the entire body of the
// goroutine pinned to a dataplane core.
func (s *Scheduler) HandleRequests() {
	s.shutdown = false
	for !s.shutdown {
		cmd, ok := <-s.cmdCh
		if !ok {
			return
		}
		cmd.apply(s)
	}
	s.log.Info("scheduler exiting", zap.String("scheduler", s.name))
}

func (s *Scheduler) executeOnce(task *runnable) {
	begin := time.Now()
	if err := task.task.Execute(); err != nil {
		s.log.Error("task execute failed",
			zap.String("scheduler", s.name),
			zap.String("task", string(task.id)),
			zap.Error(err))
	}
	end := time.Now()
	elapsed := end.Sub(begin)
	task.elapsed += elapsed
	task.runs++
	task.lastRun = end

	if s.metrics != nil {
		s.metrics.TaskCycles.WithLabelValues(s.name, string(task.id)).Add(elapsed.Seconds())
		s.metrics.TaskRuns.WithLabelValues(s.name, string(task.id)).Inc()
	}
}

// executeLoop runs the round-robin sweep until a Shutdown command arrives.
// Every full wrap of the run queue drains at most one pending command
// non-blockingly, mirroring the original's try_recv on next_task wraparound:
// enough responsiveness to pick up Add/Shutdown without paying a channel
// operation per task.
func (s *Scheduler) executeLoop() {
	s.looping = true
	if len(s.runQ) == 0 {
		return
	}
	for s.looping {
		s.executeOnce(s.runQ[s.nextTask])

		next := s.nextTask + 1
		if next == len(s.runQ) {
			s.nextTask = 0
			select {
			case cmd := <-s.cmdCh:
				cmd.apply(s)
			default:
			}
		} else {
			s.nextTask = next
		}
	}
}

// Stats reports the accumulated run count and time spent for every task
// currently on the run queue, keyed by the name it was Added under. Intended
// to be called via Run from inside the scheduler's own goroutine.
func (s *Scheduler) Stats() map[TaskName]TaskStats {
	out := make(map[TaskName]TaskStats, len(s.runQ))
	for _, r := range s.runQ {
		out[r.id] = TaskStats{Runs: r.runs, Elapsed: r.elapsed, LastRun: r.lastRun}
	}
	return out
}

// TaskStats is a point-in-time snapshot of one run queue entry's stats.
type TaskStats struct {
	Runs    uint64
	Elapsed time.Duration
	LastRun time.Time
}
