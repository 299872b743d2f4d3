package headers

// MacSize is the fixed wire size of an 802.3 Ethernet header.
const MacSize = 14

// EtherTypeIPv4 is the Ethernet payload type for IPv4.
const EtherTypeIPv4 = 0x0800

// Mac is a view over a 14-byte Ethernet header: 6 bytes destination MAC,
// 6 bytes source MAC, 2 bytes EtherType.
type Mac struct {
	raw []byte
}

// NewMac wraps raw (which must be at least MacSize bytes) as a Mac header
// view.
func NewMac(raw []byte) Mac { return Mac{raw: raw[:MacSize]} }

func (Mac) Kind() Kind         { return KindMac }
func (Mac) PreviousKind() Kind { return KindNull }
func (Mac) Size() int          { return MacSize }
func (Mac) HeaderLen() int     { return MacSize }

// Dst returns the destination MAC address.
func (h Mac) Dst() [6]byte {
	var addr [6]byte
	copy(addr[:], h.raw[0:6])
	return addr
}

// SetDst writes the destination MAC address.
func (h Mac) SetDst(addr [6]byte) { copy(h.raw[0:6], addr[:]) }

// Src returns the source MAC address.
func (h Mac) Src() [6]byte {
	var addr [6]byte
	copy(addr[:], h.raw[6:12])
	return addr
}

// SetSrc writes the source MAC address.
func (h Mac) SetSrc(addr [6]byte) { copy(h.raw[6:12], addr[:]) }

// EtherType returns the EtherType field.
func (h Mac) EtherType() uint16 {
	return uint16(h.raw[12])<<8 | uint16(h.raw[13])
}

// SetEtherType writes the EtherType field.
func (h Mac) SetEtherType(et uint16) {
	h.raw[12] = byte(et >> 8)
	h.raw[13] = byte(et)
}

// SwapAddresses exchanges the source and destination MAC addresses, the
// common operation when reflecting a packet back out the ingress port.
func (h Mac) SwapAddresses() {
	src, dst := h.Src(), h.Dst()
	h.SetSrc(dst)
	h.SetDst(src)
}
