// Package flow implements the five-tuple Flow type identifying a packet's
// conversation, plus prefix and hash utilities ported from NetBricks'
// utils/flow.rs for routing-style classifiers.
package flow

import "hash/fnv"

// Flow is the five-tuple identifying a TCP or UDP conversation.
type Flow struct {
	SrcIP    uint32
	DstIP    uint32
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

// Reverse swaps source and destination, giving the flow key for the
// opposite direction of the same conversation.
func (f Flow) Reverse() Flow {
	return Flow{
		SrcIP:    f.DstIP,
		DstIP:    f.SrcIP,
		SrcPort:  f.DstPort,
		DstPort:  f.SrcPort,
		Protocol: f.Protocol,
	}
}

// Hash returns an FNV-1a hash of the flow's fields, suitable for a GroupBy
// classifier bucketing by flow (NetBricks' flow_hash).
func Hash(f Flow) uint64 {
	h := fnv.New64a()
	var buf [13]byte
	buf[0] = byte(f.SrcIP >> 24)
	buf[1] = byte(f.SrcIP >> 16)
	buf[2] = byte(f.SrcIP >> 8)
	buf[3] = byte(f.SrcIP)
	buf[4] = byte(f.DstIP >> 24)
	buf[5] = byte(f.DstIP >> 16)
	buf[6] = byte(f.DstIP >> 8)
	buf[7] = byte(f.DstIP)
	buf[8] = byte(f.SrcPort >> 8)
	buf[9] = byte(f.SrcPort)
	buf[10] = byte(f.DstPort >> 8)
	buf[11] = byte(f.DstPort)
	buf[12] = f.Protocol
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

// CRCHash computes a CRC32 (IEEE) hash of an arbitrary byte slice, used as
// the software fallback for a NIC driver's crc-hash symbol when no
// driver-accelerated implementation is wired.
func CRCHash(data []byte, iv uint32) uint32 {
	return crc32IEEE(data, iv)
}

// Prefix is an IPv4 CIDR prefix, grounded on NetBricks' Ipv4Prefix.
type Prefix struct {
	Address uint32
	Length  uint8
	mask    uint32
}

// NewPrefix constructs a Prefix, normalizing Address to the prefix's
// network address.
func NewPrefix(address uint32, length uint8) Prefix {
	var mask uint32
	if length > 0 {
		mask = ^uint32(0) << (32 - length)
	}
	return Prefix{Address: address & mask, Length: length, mask: mask}
}

// Contains reports whether address falls within the prefix.
func (p Prefix) Contains(address uint32) bool {
	return address&p.mask == p.Address
}
