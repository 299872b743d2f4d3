package headers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildMacIPv4UDP builds a 64-byte MAC+IPv4+UDP packet with
// src=10.0.0.1:1000, dst=10.0.0.2:2000.
func buildMacIPv4UDP() []byte {
	buf := make([]byte, 64)
	mac := NewMac(buf)
	mac.SetEtherType(EtherTypeIPv4)

	ip := NewIPv4(buf[MacSize:])
	ip.SetVersion(4)
	ip.SetIHL(5)
	ip.SetLength(uint16(64 - MacSize))
	ip.SetProtocol(17)
	ip.SetSrc(0x0a000001)
	ip.SetDst(0x0a000002)

	udp := NewUDP(buf[MacSize+IPv4Size:])
	udp.SetSrcPort(1000)
	udp.SetDstPort(2000)
	udp.SetLength(uint16(64 - MacSize - IPv4Size))

	return buf
}

func TestMacIPv4UDPFlowExtraction(t *testing.T) {
	buf := buildMacIPv4UDP()
	ip := NewIPv4(buf[MacSize:])

	f, ok := ip.Flow(buf[MacSize+IPv4Size:])
	require.True(t, ok)
	assert.Equal(t, uint32(0x0a000001), f.SrcIP)
	assert.Equal(t, uint32(0x0a000002), f.DstIP)
	assert.Equal(t, uint16(1000), f.SrcPort)
	assert.Equal(t, uint16(2000), f.DstPort)
	assert.Equal(t, uint8(17), f.Protocol)
}

func TestIPv4FlowRequiresTCPOrUDP(t *testing.T) {
	buf := make([]byte, IPv4Size+4)
	ip := NewIPv4(buf)
	ip.SetProtocol(1) // ICMP
	binaryPutPorts(buf[IPv4Size:], 0x1234, 0x5678)

	_, ok := ip.Flow(buf[IPv4Size:])
	assert.False(t, ok)

	ip.SetProtocol(6) // TCP
	_, ok = ip.Flow(buf[IPv4Size:])
	assert.True(t, ok)
}

func binaryPutPorts(b []byte, src, dst uint16) {
	b[0] = byte(src >> 8)
	b[1] = byte(src)
	b[2] = byte(dst >> 8)
	b[3] = byte(dst)
}

func TestIPv4HeaderLenAndPayloadSize(t *testing.T) {
	buf := make([]byte, 40)
	ip := NewIPv4(buf)
	ip.SetIHL(5)
	ip.SetLength(40)
	assert.Equal(t, 20, ip.HeaderLen())
	assert.Equal(t, 20, ip.PayloadSize())
}

func TestIPv4ChecksumRoundTrip(t *testing.T) {
	buf := make([]byte, IPv4Size)
	ip := NewIPv4(buf)
	ip.SetVersion(4)
	ip.SetIHL(5)
	ip.SetLength(IPv4Size)
	ip.SetTTL(64)
	ip.SetProtocol(6)
	ip.SetSrc(0x0a000001)
	ip.SetDst(0x0a000002)

	sum := ip.ComputeChecksum()
	ip.SetChecksum(sum)

	// recomputing with the checksum field already populated must still
	// exclude the checksum bytes, leaving the result zero only if the
	// original field was zero; verify the stored value matches a redo
	// from scratch instead.
	buf2 := make([]byte, IPv4Size)
	ip2 := NewIPv4(buf2)
	ip2.SetVersion(4)
	ip2.SetIHL(5)
	ip2.SetLength(IPv4Size)
	ip2.SetTTL(64)
	ip2.SetProtocol(6)
	ip2.SetSrc(0x0a000001)
	ip2.SetDst(0x0a000002)
	assert.Equal(t, ip2.ComputeChecksum(), sum)
}

func TestMacSwapAddresses(t *testing.T) {
	buf := make([]byte, MacSize)
	mac := NewMac(buf)
	src := [6]byte{1, 2, 3, 4, 5, 6}
	dst := [6]byte{6, 5, 4, 3, 2, 1}
	mac.SetSrc(src)
	mac.SetDst(dst)

	mac.SwapAddresses()
	assert.Equal(t, dst, mac.Src())
	assert.Equal(t, src, mac.Dst())
}

func TestTCPFlags(t *testing.T) {
	buf := make([]byte, TCPMinSize)
	tcp := NewTCP(buf)
	tcp.SetSynFlag(true)
	tcp.SetAckFlag(true)

	assert.True(t, tcp.SynFlag())
	assert.True(t, tcp.AckFlag())
	assert.False(t, tcp.RstFlag())

	tcp.SetRstFlag(true)
	assert.True(t, tcp.RstFlag())
	assert.True(t, tcp.SynFlag(), "setting RST must not clear SYN")
}

func TestTCPPortsAndSeq(t *testing.T) {
	buf := make([]byte, TCPMinSize)
	tcp := NewTCP(buf)
	tcp.SetSrcPort(0x1234)
	tcp.SetDstPort(0x5678)
	tcp.SetSeqNum(0xdeadbeef)

	assert.Equal(t, uint16(0x1234), tcp.SrcPort())
	assert.Equal(t, uint16(0x5678), tcp.DstPort())
	assert.Equal(t, uint32(0xdeadbeef), tcp.SeqNum())
}

func TestTCPDataOffset(t *testing.T) {
	buf := make([]byte, TCPMinSize)
	tcp := NewTCP(buf)
	tcp.SetDataOffset(5)
	assert.Equal(t, uint8(5), tcp.DataOffset())
	assert.Equal(t, 20, tcp.HeaderLen())
}

func TestUDPFields(t *testing.T) {
	buf := make([]byte, UDPSize)
	udp := NewUDP(buf)
	udp.SetSrcPort(1000)
	udp.SetDstPort(2000)
	udp.SetLength(UDPSize + 100)

	assert.Equal(t, uint16(1000), udp.SrcPort())
	assert.Equal(t, uint16(2000), udp.DstPort())
	assert.Equal(t, 100, udp.PayloadSize())
}

func TestLineageChain(t *testing.T) {
	assert.Equal(t, KindNull, Mac{}.PreviousKind())
	assert.Equal(t, KindMac, IPv4{}.PreviousKind())
	assert.Equal(t, KindIPv4, TCP{}.PreviousKind())
	assert.Equal(t, KindIPv4, UDP{}.PreviousKind())
}
