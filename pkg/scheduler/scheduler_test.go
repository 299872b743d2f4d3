package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/flowcore/pkg/pipeline"
)

type funcTask struct {
	fn func() error
}

func (f funcTask) Execute() error                  { return f.fn() }
func (f funcTask) Dependencies() []pipeline.TaskID { return nil }

type countingTask struct {
	mu sync.Mutex
	n  int
}

func (c *countingTask) Execute() error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return nil
}

func (c *countingTask) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func (c *countingTask) Dependencies() []pipeline.TaskID { return nil }

func TestRoundRobinVisitsEveryTaskInOrder(t *testing.T) {
	s := New("rr", nil)

	var mu sync.Mutex
	var order []string
	rounds := 0

	s.runQ = append(s.runQ,
		&runnable{id: "a", task: funcTask{fn: func() error {
			mu.Lock()
			order = append(order, "a")
			mu.Unlock()
			return nil
		}}},
		&runnable{id: "b", task: funcTask{fn: func() error {
			mu.Lock()
			order = append(order, "b")
			mu.Unlock()
			return nil
		}}},
		&runnable{id: "c", task: funcTask{fn: func() error {
			mu.Lock()
			order = append(order, "c")
			rounds++
			if rounds == 2 {
				s.looping = false
			}
			mu.Unlock()
			return nil
		}}},
	)

	s.executeLoop()

	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, order)
}

func TestExecuteLoopNoopOnEmptyQueue(t *testing.T) {
	s := New("empty", nil)
	s.executeLoop() // must return immediately, not hang
}

func TestExecuteOnceAccumulatesStats(t *testing.T) {
	s := New("stats", nil)
	ct := &countingTask{}
	r := &runnable{id: "t", task: ct}
	s.executeOnce(r)
	s.executeOnce(r)

	assert.Equal(t, uint64(2), r.runs)
	assert.Equal(t, 2, ct.count())
	assert.False(t, r.lastRun.IsZero())
}

func TestExecuteOnceLogsTaskError(t *testing.T) {
	s := New("errs", nil)
	failing := funcTask{fn: func() error { return errors.New("boom") }}
	r := &runnable{id: "failing", task: failing}
	assert.NotPanics(t, func() { s.executeOnce(r) })
	assert.Equal(t, uint64(1), r.runs)
}

func TestChannelDrivenLifecycle(t *testing.T) {
	s := New("lifecycle", nil)
	ct := &countingTask{}

	done := make(chan struct{})
	go func() {
		s.HandleRequests()
		close(done)
	}()

	s.Add("counter", ct)
	s.Handshake()
	s.Execute()

	require.Eventually(t, func() bool { return ct.count() > 0 }, time.Second, time.Millisecond)

	statsCh := make(chan map[TaskName]TaskStats, 1)
	s.Run(func(sc *Scheduler) { statsCh <- sc.Stats() })
	stats := <-statsCh
	assert.Greater(t, stats["counter"].Runs, uint64(0))

	s.Shutdown()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not shut down")
	}
}
