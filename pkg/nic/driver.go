// Package nic defines the external NIC driver interface: the boundary
// between the typed dataplane core and whatever poll-mode driver actually
// owns NIC queues and a buffer pool. pkg/nic/xdpdriver is the one concrete
// implementation in this repository, built on AF_XDP; other drivers (DPDK
// via cgo, a raw AF_PACKET socket, a pcap file reader for tests) implement
// the same interface.
package nic

import "github.com/flowcore/flowcore/pkg/buffer"

// Driver is the set of named symbols consumed from the NIC layer,
// translated to a Go interface. A Driver owns its buffer pool and NIC
// queues; the dataplane core never allocates network buffers itself.
type Driver interface {
	// InitializePrimary brings up the driver as the owner of a fresh buffer
	// pool and NIC queues: poolSize buffers of cacheSize batch granularity,
	// metadataSlots word-sized slots reserved per buffer, pinned to core.
	InitializePrimary(name string, core int, poolSize, cacheSize, metadataSlots int) error

	// InitializeSecondary attaches to a buffer pool and queues a primary
	// process already created, identified by name, without creating them.
	InitializeSecondary(name string, core int) error

	// ThreadInit reports the NUMA node backing the given thread/core pair,
	// so a Context can place per-core state on the right node.
	ThreadInit(threadID, core int) (numaNode int, err error)

	// BufferAlloc returns one buffer from the pool, or ok=false if the pool
	// is exhausted.
	BufferAlloc() (buf *buffer.Buffer, ok bool)

	// BufferAllocBulk fills out[start:start+n] with freshly allocated
	// buffers, returning the number actually filled.
	BufferAllocBulk(out []*buffer.Buffer, start, n int) int

	// Queue returns the RX/TX queue pair for the given NIC queue index.
	Queue(queueID int) (Queue, error)

	// CRCHash computes a hardware or software CRC32 over data seeded with
	// iv. It is the driver-side counterpart of pkg/flow's CRCHash; pkg/flow
	// itself never calls a driver.
	CRCHash(data []byte, iv uint32) uint32

	// IPv4Checksum computes the RFC791 ones'-complement checksum over an
	// IPv4 header.
	IPv4Checksum(header []byte) uint16

	// Close releases the driver's queues and buffer pool.
	Close() error
}

// Queue is one NIC queue's RX and TX sides, each satisfying
// pipeline.Receiver/pipeline.Sender directly.
type Queue interface {
	Receive(burst []*buffer.Buffer) int
	Send(bufs []*buffer.Buffer) int
}
