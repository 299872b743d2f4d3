package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/flowcore/pkg/buffer"
	"github.com/flowcore/flowcore/pkg/headers"
)

type testMeta struct {
	A uint32
	B uint16
}

func newTestBuffer(t *testing.T, capacity int) *buffer.Buffer {
	t.Helper()
	backing := make([]byte, capacity)
	return buffer.New(backing, nil)
}

func buildEthIPv4UDP(t *testing.T) *buffer.Buffer {
	t.Helper()
	buf := newTestBuffer(t, 128)
	buf.AddDataEnd(headers.MacSize + headers.IPv4Size + headers.UDPSize + 10)

	data := buf.Bytes()
	mac := headers.NewMac(data)
	mac.SetEtherType(headers.EtherTypeIPv4)

	ip := headers.NewIPv4(data[headers.MacSize:])
	ip.SetVersion(4)
	ip.SetIHL(5)
	ip.SetLength(uint16(headers.IPv4Size + headers.UDPSize + 10))
	ip.SetProtocol(17)
	ip.SetSrc(0x0a000001)
	ip.SetDst(0x0a000002)

	udp := headers.NewUDP(data[headers.MacSize+headers.IPv4Size:])
	udp.SetSrcPort(1000)
	udp.SetDstPort(2000)
	udp.SetLength(uint16(headers.UDPSize + 10))

	return buf
}

func TestParseChainMacToIPv4ToUDP(t *testing.T) {
	buf := buildEthIPv4UDP(t)
	macPkt := FromBuffer[headers.Mac, Empty](buf, 0, headers.NewMac)

	ipPkt := Parse[headers.Mac, headers.IPv4, Empty](macPkt, headers.NewIPv4)
	assert.Equal(t, headers.MacSize, ipPkt.HeaderOffset())
	assert.Equal(t, uint32(0x0a000001), ipPkt.Header().Src())

	udpPkt := Parse[headers.IPv4, headers.UDP, Empty](ipPkt, headers.NewUDP)
	assert.Equal(t, headers.MacSize+headers.IPv4Size, udpPkt.HeaderOffset())
	assert.Equal(t, uint16(1000), udpPkt.Header().SrcPort())
	assert.Equal(t, 10, udpPkt.PayloadSize())
}

func TestParsePanicsOnLineageMismatch(t *testing.T) {
	buf := buildEthIPv4UDP(t)
	macPkt := FromBuffer[headers.Mac, Empty](buf, 0, headers.NewMac)

	assert.Panics(t, func() {
		Parse[headers.Mac, headers.UDP, Empty](macPkt, headers.NewUDP)
	})
}

func TestParseAndRecordThenDeparseStack(t *testing.T) {
	buf := buildEthIPv4UDP(t)
	macPkt := FromBuffer[headers.Mac, Empty](buf, 0, headers.NewMac)

	ipPkt := ParseAndRecord[headers.Mac, headers.IPv4, Empty](macPkt, headers.NewIPv4)
	assert.Equal(t, 1, buf.StackDepth())

	backToMac, ok := DeparseStack[headers.IPv4, headers.Mac, Empty](ipPkt, headers.NewMac)
	require.True(t, ok)
	assert.Equal(t, 0, backToMac.HeaderOffset())
	assert.Equal(t, 0, buf.StackDepth())
}

func TestDeparseStackEmptyReportsFalse(t *testing.T) {
	buf := buildEthIPv4UDP(t)
	ipPkt := FromBuffer[headers.IPv4, Empty](buf, headers.MacSize, headers.NewIPv4)

	_, ok := DeparseStack[headers.IPv4, headers.Mac, Empty](ipPkt, headers.NewMac)
	assert.False(t, ok)
}

func TestPushHeaderShiftsPayloadRight(t *testing.T) {
	buf := newTestBuffer(t, 64)
	buf.AddDataEnd(20)
	payload := buf.Bytes()
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	nullPkt := FromBuffer[headers.Null, Empty](buf, 0, headers.NewNull)

	macBytes := make([]byte, headers.MacSize)
	macBytes[13] = 0xAB

	macPkt, err := PushHeader[headers.Null, headers.Mac, Empty](nullPkt, macBytes, headers.NewMac)
	require.NoError(t, err)
	assert.Equal(t, 0, macPkt.HeaderOffset())
	assert.Equal(t, byte(0xAB), buf.Bytes()[13])
	// original payload now starts after the inserted header, unchanged.
	assert.Equal(t, byte(1), macPkt.Payload()[0])
	assert.Equal(t, 20, macPkt.PayloadSize())
}

func TestPushHeaderFailsWhenBufferFull(t *testing.T) {
	buf := newTestBuffer(t, headers.MacSize)
	buf.AddDataEnd(headers.MacSize)
	nullPkt := FromBuffer[headers.Null, Empty](buf, 0, headers.NewNull)

	_, err := PushHeader[headers.Null, headers.Mac, Empty](nullPkt, make([]byte, headers.MacSize), headers.NewMac)
	assert.Error(t, err)
}

func TestWriteMetadataAndReadBack(t *testing.T) {
	buf := buildEthIPv4UDP(t)
	pkt := FromBuffer[headers.Mac, testMeta](buf, 0, headers.NewMac)

	err := WriteMetadata(pkt, testMeta{A: 42, B: 7})
	require.NoError(t, err)

	got, err := ReadMetadata(pkt)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), got.A)
	assert.Equal(t, uint16(7), got.B)
}

func TestReinterpretMetadataIsNoOp(t *testing.T) {
	buf := buildEthIPv4UDP(t)
	pkt := FromBuffer[headers.Mac, Empty](buf, 0, headers.NewMac)
	retyped := ReinterpretMetadata[headers.Mac, Empty, testMeta](pkt)
	assert.Equal(t, pkt.HeaderOffset(), retyped.HeaderOffset())
}

func TestResetReturnsNullAtBufferStart(t *testing.T) {
	buf := buildEthIPv4UDP(t)
	ipPkt := ParseAndRecord[headers.Mac, headers.IPv4, Empty](
		FromBuffer[headers.Mac, Empty](buf, 0, headers.NewMac), headers.NewIPv4)

	reset := Reset(ipPkt)
	assert.Equal(t, 0, reset.HeaderOffset())
	assert.Equal(t, 1, buf.StackDepth(), "Reset must not touch the header stack")

	composed := ComposeReset(ipPkt)
	assert.Equal(t, 0, composed.HeaderOffset())
	assert.Equal(t, 0, buf.StackDepth(), "ComposeReset clears the header stack")
}

func TestSaveAndRestoreSavedHeader(t *testing.T) {
	buf := buildEthIPv4UDP(t)
	ipPkt := Parse[headers.Mac, headers.IPv4, Empty](
		FromBuffer[headers.Mac, Empty](buf, 0, headers.NewMac), headers.NewIPv4)

	ipPkt.SaveHeaderAndOffset()

	restored := RestoreSavedHeader[headers.IPv4, Empty](buf, headers.NewIPv4)
	assert.Equal(t, ipPkt.HeaderOffset(), restored.HeaderOffset())
	assert.Equal(t, ipPkt.Header().Src(), restored.Header().Src())
}

func TestCopyPayloadGrowsTail(t *testing.T) {
	buf := newTestBuffer(t, 64)
	buf.AddDataEnd(4)
	pkt := FromBuffer[headers.Null, Empty](buf, 0, headers.NewNull)

	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	n := pkt.CopyPayload(src)
	assert.Equal(t, 8, n)
	assert.Equal(t, src, pkt.Payload()[:8])
}

func TestRefcountOps(t *testing.T) {
	buf := newTestBuffer(t, 16)
	pkt := FromBuffer[headers.Null, Empty](buf, 0, headers.NewNull)

	assert.Equal(t, int32(1), pkt.Refcnt())
	pkt.Reference()
	assert.Equal(t, int32(2), pkt.Refcnt())
	pkt.Free()
	assert.Equal(t, int32(1), pkt.Refcnt())
}
