package pipeline

import (
	"github.com/flowcore/flowcore/pkg/headers"
	"github.com/flowcore/flowcore/pkg/packet"
)

// TransformBatch is Map's counterpart for side effects that need to mutate
// the Packet value itself (e.g. RemoveFromPayloadHead, which takes a
// pointer receiver), not just the header bytes it points at.
type TransformBatch[H headers.Header, M any] struct {
	parent  Batch[H, M]
	fn      func(*packet.Packet[H, M])
	applied bool
	cache   []packet.Packet[H, M]
}

// NewTransform wraps parent, calling fn once per packet per batch with a
// pointer to each packet.
func NewTransform[H headers.Header, M any](parent Batch[H, M], fn func(*packet.Packet[H, M])) *TransformBatch[H, M] {
	return &TransformBatch[H, M]{parent: parent, fn: fn}
}

func (t *TransformBatch[H, M]) Act() error {
	if err := t.parent.Act(); err != nil {
		return err
	}
	t.applied = false
	t.cache = nil
	return nil
}

func (t *TransformBatch[H, M]) apply() {
	if t.applied {
		return
	}
	n := t.parent.Start()
	t.cache = make([]packet.Packet[H, M], 0, n)
	for i := 0; i < n; i++ {
		p, ok := t.parent.NextPayload(i)
		if !ok {
			continue
		}
		t.fn(&p)
		t.cache = append(t.cache, p)
	}
	t.applied = true
}

func (t *TransformBatch[H, M]) Start() int {
	t.apply()
	return len(t.cache)
}

func (t *TransformBatch[H, M]) NextPayload(idx int) (packet.Packet[H, M], bool) {
	t.apply()
	if idx < 0 || idx >= len(t.cache) {
		var zero packet.Packet[H, M]
		return zero, false
	}
	return t.cache[idx], true
}

func (t *TransformBatch[H, M]) Done()                  { t.parent.Done() }
func (t *TransformBatch[H, M]) Capacity() int32        { return t.parent.Capacity() }
func (t *TransformBatch[H, M]) ClearPackets()          { t.parent.ClearPackets() }
func (t *TransformBatch[H, M]) Dependencies() []TaskID { return t.parent.Dependencies() }

// DropPackets drops from the parent and from the transformed cache; since
// the cache mirrors the parent's live indices 1:1 (transform never
// filters), it applies the same swap-remove to the cache.
func (t *TransformBatch[H, M]) DropPackets(idxs []int) int {
	n := t.parent.DropPackets(idxs)
	for i := len(idxs) - 1; i >= 0; i-- {
		idx := idxs[i]
		if idx < 0 || idx >= len(t.cache) {
			continue
		}
		last := len(t.cache) - 1
		t.cache[idx] = t.cache[last]
		t.cache = t.cache[:last]
	}
	return n
}
