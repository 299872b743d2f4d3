package headers

import "encoding/binary"

// UDPSize is the fixed 8-byte size of a UDP header.
const UDPSize = 8

// UDP is a view over an RFC 768 UDP header.
type UDP struct {
	raw []byte
}

// NewUDP wraps raw (at least UDPSize bytes) as a UDP header view.
func NewUDP(raw []byte) UDP { return UDP{raw: raw[:UDPSize:len(raw)]} }

func (UDP) Kind() Kind         { return KindUDP }
func (UDP) PreviousKind() Kind { return KindIPv4 }
func (UDP) Size() int          { return UDPSize }
func (UDP) HeaderLen() int     { return UDPSize }

// SrcPort returns the source port.
func (h UDP) SrcPort() uint16 { return binary.BigEndian.Uint16(h.raw[0:2]) }

// SetSrcPort writes the source port.
func (h UDP) SetSrcPort(v uint16) { binary.BigEndian.PutUint16(h.raw[0:2], v) }

// DstPort returns the destination port.
func (h UDP) DstPort() uint16 { return binary.BigEndian.Uint16(h.raw[2:4]) }

// SetDstPort writes the destination port.
func (h UDP) SetDstPort(v uint16) { binary.BigEndian.PutUint16(h.raw[2:4], v) }

// Length returns the UDP length field (header plus payload).
func (h UDP) Length() uint16 { return binary.BigEndian.Uint16(h.raw[4:6]) }

// SetLength writes the UDP length field.
func (h UDP) SetLength(v uint16) { binary.BigEndian.PutUint16(h.raw[4:6], v) }

// PayloadSize returns the payload length per the Length field.
func (h UDP) PayloadSize() int { return int(h.Length()) - UDPSize }

// Checksum returns the UDP checksum field.
func (h UDP) Checksum() uint16 { return binary.BigEndian.Uint16(h.raw[6:8]) }

// SetChecksum writes the UDP checksum field.
func (h UDP) SetChecksum(v uint16) { binary.BigEndian.PutUint16(h.raw[6:8], v) }
