package headers

import "encoding/binary"

// TCPMinSize is the fixed size of a TCP header with no options.
const TCPMinSize = 20

const (
	tcpFlagFIN = 1 << 0
	tcpFlagSYN = 1 << 1
	tcpFlagRST = 1 << 2
	tcpFlagPSH = 1 << 3
	tcpFlagACK = 1 << 4
	tcpFlagURG = 1 << 5
)

// TCP is a view over an RFC 793 TCP header (options tail excluded from the
// fixed 20-byte struct view, addressable via HeaderLen()).
type TCP struct {
	raw []byte
}

// NewTCP wraps raw (at least TCPMinSize bytes) as a TCP header view.
func NewTCP(raw []byte) TCP { return TCP{raw: raw[:TCPMinSize:len(raw)]} }

func (TCP) Kind() Kind         { return KindTCP }
func (TCP) PreviousKind() Kind { return KindIPv4 }
func (TCP) Size() int          { return TCPMinSize }

// DataOffset returns the header length in 32-bit words (includes options).
func (h TCP) DataOffset() uint8 { return h.raw[12] >> 4 }

// SetDataOffset writes the data offset nibble.
func (h TCP) SetDataOffset(words uint8) {
	h.raw[12] = (h.raw[12] & 0x0f) | (words << 4)
}

// HeaderLen returns DataOffset*4.
func (h TCP) HeaderLen() int { return int(h.DataOffset()) * 4 }

// SrcPort returns the source port.
func (h TCP) SrcPort() uint16 { return binary.BigEndian.Uint16(h.raw[0:2]) }

// SetSrcPort writes the source port.
func (h TCP) SetSrcPort(v uint16) { binary.BigEndian.PutUint16(h.raw[0:2], v) }

// DstPort returns the destination port.
func (h TCP) DstPort() uint16 { return binary.BigEndian.Uint16(h.raw[2:4]) }

// SetDstPort writes the destination port.
func (h TCP) SetDstPort(v uint16) { binary.BigEndian.PutUint16(h.raw[2:4], v) }

// SeqNum returns the sequence number.
func (h TCP) SeqNum() uint32 { return binary.BigEndian.Uint32(h.raw[4:8]) }

// SetSeqNum writes the sequence number.
func (h TCP) SetSeqNum(v uint32) { binary.BigEndian.PutUint32(h.raw[4:8], v) }

// AckNum returns the acknowledgment number.
func (h TCP) AckNum() uint32 { return binary.BigEndian.Uint32(h.raw[8:12]) }

// SetAckNum writes the acknowledgment number.
func (h TCP) SetAckNum(v uint32) { binary.BigEndian.PutUint32(h.raw[8:12], v) }

// Flags returns the raw 6-bit control flag byte.
func (h TCP) Flags() uint8 { return h.raw[13] & 0x3f }

// SetFlags writes the raw 6-bit control flag byte.
func (h TCP) SetFlags(v uint8) {
	h.raw[13] = (h.raw[13] & 0xc0) | (v & 0x3f)
}

func (h TCP) flag(mask uint8) bool { return h.Flags()&mask != 0 }

func (h TCP) setFlag(mask uint8, set bool) {
	if set {
		h.SetFlags(h.Flags() | mask)
	} else {
		h.SetFlags(h.Flags() &^ mask)
	}
}

func (h TCP) FinFlag() bool        { return h.flag(tcpFlagFIN) }
func (h TCP) SetFinFlag(v bool)    { h.setFlag(tcpFlagFIN, v) }
func (h TCP) SynFlag() bool        { return h.flag(tcpFlagSYN) }
func (h TCP) SetSynFlag(v bool)    { h.setFlag(tcpFlagSYN, v) }
func (h TCP) RstFlag() bool        { return h.flag(tcpFlagRST) }
func (h TCP) SetRstFlag(v bool)    { h.setFlag(tcpFlagRST, v) }
func (h TCP) PshFlag() bool        { return h.flag(tcpFlagPSH) }
func (h TCP) SetPshFlag(v bool)    { h.setFlag(tcpFlagPSH, v) }
func (h TCP) AckFlag() bool        { return h.flag(tcpFlagACK) }
func (h TCP) SetAckFlag(v bool)    { h.setFlag(tcpFlagACK, v) }
func (h TCP) UrgFlag() bool        { return h.flag(tcpFlagURG) }
func (h TCP) SetUrgFlag(v bool)    { h.setFlag(tcpFlagURG, v) }

// Window returns the receive window size.
func (h TCP) Window() uint16 { return binary.BigEndian.Uint16(h.raw[14:16]) }

// SetWindow writes the receive window size.
func (h TCP) SetWindow(v uint16) { binary.BigEndian.PutUint16(h.raw[14:16], v) }

// Checksum returns the TCP checksum field.
func (h TCP) Checksum() uint16 { return binary.BigEndian.Uint16(h.raw[16:18]) }

// SetChecksum writes the TCP checksum field.
func (h TCP) SetChecksum(v uint16) { binary.BigEndian.PutUint16(h.raw[16:18], v) }

// UrgentPtr returns the urgent pointer field.
func (h TCP) UrgentPtr() uint16 { return binary.BigEndian.Uint16(h.raw[18:20]) }

// SetUrgentPtr writes the urgent pointer field.
func (h TCP) SetUrgentPtr(v uint16) { binary.BigEndian.PutUint16(h.raw[18:20], v) }
