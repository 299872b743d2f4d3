// Package headers defines the bit-exact wire layouts for Null, Mac, IPv4,
// TCP and UDP. Each type is a thin view over a byte slice taken from a
// packet's buffer; getters/setters decode and encode fields with explicit
// mask-and-shift so the wire layout is correct regardless of host
// endianness, matching NetBricks' headers/ip.rs and udp.rs translated into
// Go's byte-slice-view idiom (as opposed to NetBricks' #[repr(C, packed)]
// struct overlay, which Go has no safe equivalent for).
package headers

// Kind tags a header's wire type. flowcore uses a runtime kind tag rather
// than a type-level PreviousHeader relation, a dynamically typed
// fallback, because Go generics cannot express a dependent
// "H2::PreviousHeader == H1" constraint between two independent type
// parameters.
type Kind uint8

const (
	KindNull Kind = iota
	KindMac
	KindIPv4
	KindTCP
	KindUDP
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindMac:
		return "Mac"
	case KindIPv4:
		return "IPv4"
	case KindTCP:
		return "TCP"
	case KindUDP:
		return "UDP"
	default:
		return "Unknown"
	}
}

// Header is implemented by every wire header type.
type Header interface {
	// Kind reports this header's own wire type.
	Kind() Kind
	// Size is the minimum wire size of this header in bytes.
	Size() int
	// HeaderLen is the number of bytes from the start of this header to
	// the start of its payload, constant for fixed headers, read from
	// the wire for variable-length ones such as IPv4.
	HeaderLen() int
}

// Lineage is implemented by every header type that may follow another
// (i.e. every header except Null). PreviousKind is checked at Parse/Deparse
// time against the kind of the header actually being transitioned from.
type Lineage interface {
	Header
	PreviousKind() Kind
}

// Null models "no header yet": the state of a freshly allocated or reset
// packet.
type Null struct{}

func (Null) Kind() Kind      { return KindNull }
func (Null) Size() int       { return 0 }
func (Null) HeaderLen() int  { return 0 }
func NewNull(_ []byte) Null  { return Null{} }
