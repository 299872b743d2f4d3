package packet

import (
	"bytes"
	"encoding/binary"

	"github.com/flowcore/flowcore/pkg/buffer"
	"github.com/flowcore/flowcore/pkg/errs"
	"github.com/flowcore/flowcore/pkg/headers"
)

// ReadMetadata decodes the packet's freeform metadata region as M. M must be
// a fixed-size value (no slices, strings or maps), the same "Sized" bound
// NetBricks places on its metadata type parameter.
func ReadMetadata[H headers.Header, M any](p Packet[H, M]) (M, error) {
	var m M
	size := binary.Size(m)
	if size < 0 {
		return m, errs.FailedAllocation
	}
	r := bytes.NewReader(p.buf.ReadFreeform(size))
	if err := binary.Read(r, binary.BigEndian, &m); err != nil {
		return m, err
	}
	return m, nil
}

// WriteMetadata encodes m into the packet's freeform metadata region,
// failing with MetadataTooLarge if the encoded form does not fit.
func WriteMetadata[H headers.Header, M any](p Packet[H, M], m M) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, m); err != nil {
		return err
	}
	if buf.Len() > buffer.FreeformSize {
		return &errs.MetadataTooLarge{Want: buf.Len(), Have: buffer.FreeformSize}
	}
	return p.buf.WriteFreeform(buf.Bytes())
}

// ReinterpretMetadata retypes a packet's metadata parameter without
// touching the buffer; a no-op at runtime, it exists purely so the Go type
// checker tracks the new M from this point on.
func ReinterpretMetadata[H headers.Header, M, M2 any](p Packet[H, M]) Packet[H, M2] {
	return Packet[H, M2]{buf: p.buf, headerOffset: p.headerOffset, wrap: p.wrap}
}
