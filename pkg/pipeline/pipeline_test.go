package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/flowcore/pkg/buffer"
	"github.com/flowcore/flowcore/pkg/headers"
	"github.com/flowcore/flowcore/pkg/packet"
)

// fakeReceiver hands out a fixed pool of pre-built buffers, one burst at a
// time, then reports empty.
type fakeReceiver struct {
	bufs []*buffer.Buffer
}

func (f *fakeReceiver) Receive(burst []*buffer.Buffer) int {
	n := copy(burst, f.bufs)
	f.bufs = f.bufs[n:]
	return n
}

type fakeSender struct {
	sent []*buffer.Buffer
}

func (f *fakeSender) Send(bufs []*buffer.Buffer) int {
	f.sent = append(f.sent, bufs...)
	return len(bufs)
}

func buildUDPBuffer(srcPort, dstPort uint16, proto uint8) *buffer.Buffer {
	backing := make([]byte, 128)
	buf := buffer.New(backing, nil)
	buf.AddDataEnd(headers.MacSize + headers.IPv4Size + headers.UDPSize + 4)

	data := buf.Bytes()
	mac := headers.NewMac(data)
	mac.SetEtherType(headers.EtherTypeIPv4)

	ip := headers.NewIPv4(data[headers.MacSize:])
	ip.SetVersion(4)
	ip.SetIHL(5)
	ip.SetLength(uint16(headers.IPv4Size + headers.UDPSize + 4))
	ip.SetProtocol(proto)
	ip.SetSrc(0x0a000001)
	ip.SetDst(0x0a000002)

	udp := headers.NewUDP(data[headers.MacSize+headers.IPv4Size:])
	udp.SetSrcPort(srcPort)
	udp.SetDstPort(dstPort)
	udp.SetLength(uint16(headers.UDPSize + 4))

	return buf
}

func TestReceiveParseFilterMapSend(t *testing.T) {
	recv := &fakeReceiver{bufs: []*buffer.Buffer{
		buildUDPBuffer(1000, 2000, 17),
		buildUDPBuffer(1001, 2001, 17),
	}}

	root := NewReceive(recv, 8)
	macBatch := NewParse[headers.Null, headers.Mac, packet.Empty](root, headers.NewMac)
	ipBatch := NewParse[headers.Mac, headers.IPv4, packet.Empty](macBatch, headers.NewIPv4)
	filtered := NewFilter[headers.IPv4, packet.Empty](ipBatch, func(p packet.Packet[headers.IPv4, packet.Empty]) bool {
		return p.Header().Protocol() == 17
	})
	touched := 0
	mapped := NewMap[headers.IPv4, packet.Empty](filtered, func(p packet.Packet[headers.IPv4, packet.Empty]) {
		p.Header().SetTTL(1)
		touched++
	})

	sink := &fakeSender{}
	task := NewSend[headers.IPv4, packet.Empty](mapped, sink)

	require.NoError(t, task.Execute())
	assert.Equal(t, 2, touched)
	assert.Len(t, sink.sent, 2)
	assert.Equal(t, uint8(1), headers.NewIPv4(sink.sent[0].Bytes()[headers.MacSize:]).TTL())
}

func TestFilterDropsNonMatching(t *testing.T) {
	recv := &fakeReceiver{bufs: []*buffer.Buffer{
		buildUDPBuffer(1000, 2000, 17),
		buildUDPBuffer(1000, 2000, 6),
	}}
	root := NewReceive(recv, 8)
	macBatch := NewParse[headers.Null, headers.Mac, packet.Empty](root, headers.NewMac)
	ipBatch := NewParse[headers.Mac, headers.IPv4, packet.Empty](macBatch, headers.NewIPv4)
	filtered := NewFilter[headers.IPv4, packet.Empty](ipBatch, func(p packet.Packet[headers.IPv4, packet.Empty]) bool {
		return p.Header().Protocol() == 17
	})

	require.NoError(t, filtered.Act())
	assert.Equal(t, 1, filtered.Start())
	filtered.Done()
}

func TestGroupByAndRestoreHeaderRoundTrip(t *testing.T) {
	recv := &fakeReceiver{bufs: []*buffer.Buffer{
		buildUDPBuffer(1000, 2000, 17),
		buildUDPBuffer(1001, 2000, 6),
	}}
	root := NewReceive(recv, 8)
	macBatch := NewParse[headers.Null, headers.Mac, packet.Empty](root, headers.NewMac)
	ipBatch := NewParse[headers.Mac, headers.IPv4, packet.Empty](macBatch, headers.NewIPv4)

	producer, groups := NewGroupBy[headers.IPv4, packet.Empty](ipBatch, 2, func(p packet.Packet[headers.IPv4, packet.Empty]) int {
		if p.Header().Protocol() == 17 {
			return 0
		}
		return 1
	}, 8, TaskID(1))

	require.NoError(t, producer.Execute())

	udpGroup := NewRestoreHeader[headers.IPv4, packet.Empty](groups[0], headers.NewIPv4, producer.ID())
	require.NoError(t, udpGroup.Act())
	require.Equal(t, 1, udpGroup.Start())
	p, ok := udpGroup.NextPayload(0)
	require.True(t, ok)
	assert.Equal(t, uint8(17), p.Header().Protocol())
	assert.Equal(t, []TaskID{TaskID(1)}, udpGroup.Dependencies())

	tcpGroup := NewRestoreHeader[headers.IPv4, packet.Empty](groups[1], headers.NewIPv4, producer.ID())
	require.NoError(t, tcpGroup.Act())
	require.Equal(t, 1, tcpGroup.Start())
	p2, ok := tcpGroup.NextPayload(0)
	require.True(t, ok)
	assert.Equal(t, uint8(6), p2.Header().Protocol())
}

func TestMergeRoundRobinsParents(t *testing.T) {
	r1 := &fakeReceiver{bufs: []*buffer.Buffer{buildUDPBuffer(1, 2, 17)}}
	r2 := &fakeReceiver{bufs: []*buffer.Buffer{buildUDPBuffer(3, 4, 17)}}
	b1 := NewReceive(r1, 4)
	b2 := NewReceive(r2, 4)

	merged := NewMerge[headers.Null, packet.Empty]([]Batch[headers.Null, packet.Empty]{b1, b2})

	require.NoError(t, merged.Act())
	assert.Equal(t, 1, merged.Start())
	merged.Done() // advances to b2

	require.NoError(t, merged.Act())
	assert.Equal(t, 1, merged.Start())
}

func TestCompositionResetsTypeAndStack(t *testing.T) {
	recv := &fakeReceiver{bufs: []*buffer.Buffer{buildUDPBuffer(1, 2, 17)}}
	root := NewReceive(recv, 4)
	macBatch := NewParse[headers.Null, headers.Mac, packet.Empty](root, headers.NewMac)
	ipBatch := NewParseAndRecord[headers.Mac, headers.IPv4, packet.Empty](macBatch, headers.NewIPv4)

	composed := NewComposition[headers.IPv4, packet.Empty](ipBatch)
	require.NoError(t, composed.Act())
	p, ok := composed.NextPayload(0)
	require.True(t, ok)
	assert.Equal(t, 0, p.HeaderOffset())
	assert.Equal(t, 0, p.Buffer().StackDepth())
}
