package pipeline

import (
	"github.com/flowcore/flowcore/pkg/headers"
	"github.com/flowcore/flowcore/pkg/packet"
)

// ParseBatch lazily re-types each packet from H to H2 on NextPayload.
type ParseBatch[H headers.Header, H2 headers.Lineage, M any] struct {
	parent Batch[H, M]
	wrap   func([]byte) H2
	record bool
}

// NewParse wraps parent, typing each yielded packet as H2.
func NewParse[H headers.Header, H2 headers.Lineage, M any](parent Batch[H, M], wrap func([]byte) H2) *ParseBatch[H, H2, M] {
	return &ParseBatch[H, H2, M]{parent: parent, wrap: wrap}
}

// NewParseAndRecord is Parse plus pushing the consumed header's payload
// offset onto the runtime header-offset stack, so a later DeparseStack can
// unwind back to H.
func NewParseAndRecord[H headers.Header, H2 headers.Lineage, M any](parent Batch[H, M], wrap func([]byte) H2) *ParseBatch[H, H2, M] {
	return &ParseBatch[H, H2, M]{parent: parent, wrap: wrap, record: true}
}

func (p *ParseBatch[H, H2, M]) Act() error { return p.parent.Act() }
func (p *ParseBatch[H, H2, M]) Start() int { return p.parent.Start() }

func (p *ParseBatch[H, H2, M]) NextPayload(idx int) (packet.Packet[H2, M], bool) {
	parentPkt, ok := p.parent.NextPayload(idx)
	if !ok {
		var zero packet.Packet[H2, M]
		return zero, false
	}
	if p.record {
		return packet.ParseAndRecord(parentPkt, p.wrap), true
	}
	return packet.Parse(parentPkt, p.wrap), true
}

func (p *ParseBatch[H, H2, M]) Done()                    { p.parent.Done() }
func (p *ParseBatch[H, H2, M]) Capacity() int32          { return p.parent.Capacity() }
func (p *ParseBatch[H, H2, M]) DropPackets(idxs []int) int { return p.parent.DropPackets(idxs) }
func (p *ParseBatch[H, H2, M]) ClearPackets()            { p.parent.ClearPackets() }
func (p *ParseBatch[H, H2, M]) Dependencies() []TaskID   { return p.parent.Dependencies() }
