package headers

import (
	"encoding/binary"

	"github.com/flowcore/flowcore/pkg/flow"
)

// IPv4Size is the fixed size of the struct-level IPv4 header (options, if
// any, live in the variable tail up to HeaderLen()).
const IPv4Size = 20

// IPv4 is a view over an RFC 791 IPv4 header. Fields are decoded and
// encoded with explicit mask-and-shift over the wire bytes, mirroring
// NetBricks' headers/ip.rs's packed-word layout without
// relying on Go struct overlay (which has no alignment/endianness
// guarantee across platforms).
type IPv4 struct {
	raw []byte
}

// NewIPv4 wraps raw (at least IPv4Size bytes) as an IPv4 header view.
func NewIPv4(raw []byte) IPv4 { return IPv4{raw: raw[:IPv4Size:len(raw)]} }

func (IPv4) Kind() Kind         { return KindIPv4 }
func (IPv4) PreviousKind() Kind { return KindMac }
func (IPv4) Size() int          { return IPv4Size }

// HeaderLen returns IHL*4, the variable byte length of this header
// including options.
func (h IPv4) HeaderLen() int { return int(h.IHL()) * 4 }

// PayloadSize returns the number of payload bytes per the header's own
// Total Length field, independent of how much of the buffer is actually
// live.
func (h IPv4) PayloadSize() int {
	return int(h.Length()) - h.HeaderLen()
}

// Version returns the IP version (expected to be 4).
func (h IPv4) Version() uint8 { return h.raw[0] >> 4 }

// SetVersion writes the version nibble.
func (h IPv4) SetVersion(v uint8) {
	h.raw[0] = (h.raw[0] & 0x0f) | (v << 4)
}

// IHL returns the Internet Header Length in 32-bit words.
func (h IPv4) IHL() uint8 { return h.raw[0] & 0x0f }

// SetIHL writes the IHL nibble.
func (h IPv4) SetIHL(words uint8) {
	h.raw[0] = (h.raw[0] & 0xf0) | (words & 0x0f)
}

// DSCP returns the Differentiated Services Code Point.
func (h IPv4) DSCP() uint8 { return h.raw[1] >> 2 }

// SetDSCP writes the DSCP field.
func (h IPv4) SetDSCP(v uint8) {
	h.raw[1] = (h.raw[1] & 0x03) | (v << 2)
}

// ECN returns the Explicit Congestion Notification bits.
func (h IPv4) ECN() uint8 { return h.raw[1] & 0x03 }

// SetECN writes the ECN bits.
func (h IPv4) SetECN(v uint8) {
	h.raw[1] = (h.raw[1] & 0xfc) | (v & 0x03)
}

// Length returns the Total Length field.
func (h IPv4) Length() uint16 { return binary.BigEndian.Uint16(h.raw[2:4]) }

// SetLength writes the Total Length field.
func (h IPv4) SetLength(v uint16) { binary.BigEndian.PutUint16(h.raw[2:4], v) }

// ID returns the Identification field.
func (h IPv4) ID() uint16 { return binary.BigEndian.Uint16(h.raw[4:6]) }

// SetID writes the Identification field.
func (h IPv4) SetID(v uint16) { binary.BigEndian.PutUint16(h.raw[4:6], v) }

// Flags returns the 3 flag bits (bit 0 reserved, DF, MF).
func (h IPv4) Flags() uint8 {
	return uint8(h.raw[6] >> 5)
}

// SetFlags writes the 3 flag bits, leaving the fragment offset untouched.
func (h IPv4) SetFlags(flags uint8) {
	h.raw[6] = (h.raw[6] & 0x1f) | ((flags & 0x07) << 5)
}

// FragmentOffset returns the 13-bit fragment offset, in 8-byte units.
func (h IPv4) FragmentOffset() uint16 {
	return binary.BigEndian.Uint16(h.raw[6:8]) & 0x1fff
}

// SetFragmentOffset writes the 13-bit fragment offset, leaving flags
// untouched.
func (h IPv4) SetFragmentOffset(off uint16) {
	existing := binary.BigEndian.Uint16(h.raw[6:8]) & 0xe000
	binary.BigEndian.PutUint16(h.raw[6:8], existing|(off&0x1fff))
}

// TTL returns the Time To Live field.
func (h IPv4) TTL() uint8 { return h.raw[8] }

// SetTTL writes the Time To Live field.
func (h IPv4) SetTTL(v uint8) { h.raw[8] = v }

// Protocol returns the upper-layer Protocol field.
func (h IPv4) Protocol() uint8 { return h.raw[9] }

// SetProtocol writes the upper-layer Protocol field.
func (h IPv4) SetProtocol(v uint8) { h.raw[9] = v }

// Checksum returns the header Checksum field.
func (h IPv4) Checksum() uint16 { return binary.BigEndian.Uint16(h.raw[10:12]) }

// SetChecksum writes the header Checksum field.
func (h IPv4) SetChecksum(v uint16) { binary.BigEndian.PutUint16(h.raw[10:12], v) }

// Src returns the source address as a big-endian uint32.
func (h IPv4) Src() uint32 { return binary.BigEndian.Uint32(h.raw[12:16]) }

// SetSrc writes the source address.
func (h IPv4) SetSrc(v uint32) { binary.BigEndian.PutUint32(h.raw[12:16], v) }

// Dst returns the destination address as a big-endian uint32.
func (h IPv4) Dst() uint32 { return binary.BigEndian.Uint32(h.raw[16:20]) }

// SetDst writes the destination address.
func (h IPv4) SetDst(v uint32) { binary.BigEndian.PutUint32(h.raw[16:20], v) }

// ComputeChecksum returns the RFC 791 one's-complement checksum of the
// header as it currently stands (with the checksum field itself treated as
// zero), ready to be written back via SetChecksum.
func (h IPv4) ComputeChecksum() uint16 {
	hdr := h.raw[:h.HeaderLen()]
	var sum uint32
	for i := 0; i+1 < len(hdr); i += 2 {
		if i == 10 {
			continue // skip the checksum field itself
		}
		sum += uint32(hdr[i])<<8 | uint32(hdr[i+1])
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

// Flow derives the five-tuple, only when Protocol is TCP (6) or UDP (17)
// and at least 4 payload bytes follow the header (the source/destination
// port fields, which both protocols place first).
func (h IPv4) Flow(payload []byte) (flow.Flow, bool) {
	proto := h.Protocol()
	if proto != 6 && proto != 17 {
		return flow.Flow{}, false
	}
	if len(payload) < 4 {
		return flow.Flow{}, false
	}
	return flow.Flow{
		SrcIP:    h.Src(),
		DstIP:    h.Dst(),
		SrcPort:  binary.BigEndian.Uint16(payload[0:2]),
		DstPort:  binary.BigEndian.Uint16(payload[2:4]),
		Protocol: proto,
	}, true
}
