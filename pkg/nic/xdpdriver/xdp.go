// Package xdpdriver implements nic.Driver on top of an AF_XDP kernel-bypass
// socket: an eBPF program load/attach step and a UMEM frame pool with
// RX/Fill/TX/Completion ring handling. Frames flow straight from the UMEM
// into typed pkg/packet values; there is no gVisor netstack/PTY bridge
// here, since that belongs to an L7 application built on top of the
// poll-mode driver, not the driver itself.
package xdpdriver

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"golang.org/x/sys/unix"
	"gvisor.dev/gvisor/pkg/xdp"

	"github.com/flowcore/flowcore/pkg/buffer"
	"github.com/flowcore/flowcore/pkg/nic"
)

// Config configures Driver.InitializePrimary. ProgramPath points at a
// compiled XDP object file, typically produced by bpf2go-style tooling
// from C sources at image build time. flowcore loads it from disk rather
// than go:embed so the same binary works against whatever redirect
// program an operator's build pipeline produces.
type Config struct {
	ProgramPath  string
	ProgramName  string // e.g. "xdp_redirect_port"
	XsksMapName  string
	StatsMapName string
	NFrames      int
	FrameSize    int
	NDescriptors int
}

// DefaultConfig returns reasonable AF_XDP socket options for a single
// queue on a modern NIC.
func DefaultConfig(programPath string) Config {
	return Config{
		ProgramPath:  programPath,
		ProgramName:  "xdp_redirect_port",
		XsksMapName:  "xsks_map",
		StatsMapName: "stats_map",
		NFrames:      4096,
		FrameSize:    2048,
		NDescriptors: 2048,
	}
}

// Driver is a nic.Driver backed by one AF_XDP socket per queue, all sharing
// the interface-wide eBPF collection the constructor attaches once.
type Driver struct {
	cfg      Config
	coll     *ebpf.Collection
	link     link.Link
	statsMap *ebpf.Map
	ifIndex  uint32
	srcMAC   []byte
	queues   map[int]*queueHandle
	mu       sync.Mutex
}

var _ nic.Driver = (*Driver)(nil)

// New constructs a Driver from cfg; nothing is loaded or attached until
// InitializePrimary is called.
func New(cfg Config) *Driver {
	return &Driver{cfg: cfg, queues: make(map[int]*queueHandle)}
}

// InitializePrimary loads and attaches the XDP program to ifaceName. core
// and poolSize/cacheSize/metadataSlots are accepted for nic.Driver
// conformance; AF_XDP's pool sizing is controlled by cfg's
// NFrames/FrameSize/NDescriptors instead, since UMEM layout is fixed at
// socket creation rather than adjustable per call.
func (d *Driver) InitializePrimary(ifaceName string, core int, poolSize, cacheSize, metadataSlots int) error {
	ifi, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return fmt.Errorf("xdpdriver: interface %s: %w", ifaceName, err)
	}

	obj, err := os.ReadFile(d.cfg.ProgramPath)
	if err != nil {
		return fmt.Errorf("xdpdriver: read program %s: %w", d.cfg.ProgramPath, err)
	}
	spec, err := ebpf.LoadCollectionSpecFromReader(bytes.NewReader(obj))
	if err != nil {
		return fmt.Errorf("xdpdriver: load collection spec: %w", err)
	}
	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return fmt.Errorf("xdpdriver: new collection: %w", err)
	}

	prog := coll.Programs[d.cfg.ProgramName]
	if prog == nil {
		coll.Close()
		return fmt.Errorf("xdpdriver: program %s not found", d.cfg.ProgramName)
	}

	l, err := link.AttachXDP(link.XDPOptions{Program: prog, Interface: ifi.Index, Flags: link.XDPDriverMode})
	if err != nil {
		l, err = link.AttachXDP(link.XDPOptions{Program: prog, Interface: ifi.Index, Flags: link.XDPGenericMode})
		if err != nil {
			coll.Close()
			return fmt.Errorf("xdpdriver: attach xdp: %w", err)
		}
	}

	srcMAC := make([]byte, 6)
	if len(ifi.HardwareAddr) == 6 {
		copy(srcMAC, ifi.HardwareAddr)
	}

	d.mu.Lock()
	d.coll = coll
	d.link = l
	d.statsMap = coll.Maps[d.cfg.StatsMapName]
	d.ifIndex = uint32(ifi.Index)
	d.srcMAC = srcMAC
	d.mu.Unlock()
	return nil
}

// Stats reads n PERCPU_ARRAY counters from the attached program's stats
// map, summing each key's per-CPU values. What the n slots mean is up to
// the loaded XDP program (a common redirect program layout uses four:
// total, tcp-matched, udp-matched, redirected); a program with a
// different counter layout just gets a differently-sized result here.
func (d *Driver) Stats(n int) ([]uint64, error) {
	d.mu.Lock()
	statsMap := d.statsMap
	d.mu.Unlock()
	if statsMap == nil {
		return nil, fmt.Errorf("xdpdriver: stats map %s not found", d.cfg.StatsMapName)
	}

	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		key := uint32(i)
		var perCPU []uint64
		if err := statsMap.Lookup(&key, &perCPU); err != nil {
			return nil, fmt.Errorf("xdpdriver: lookup stats[%d]: %w", i, err)
		}
		var total uint64
		for _, v := range perCPU {
			total += v
		}
		out[i] = total
	}
	return out, nil
}

// InitializeSecondary is not supported by the AF_XDP driver: a secondary
// process would need to share the primary's UMEM memory region, which
// gvisor.dev/gvisor/pkg/xdp does not expose a cross-process attach path
// for. netctx.Context.AttachSecondary is the layer where secondary-process
// support lives; this driver always initializes as primary.
func (d *Driver) InitializeSecondary(name string, core int) error {
	return fmt.Errorf("xdpdriver: secondary attach not supported")
}

func (d *Driver) ThreadInit(threadID, core int) (int, error) {
	return 0, nil
}

// OpenQueue creates the AF_XDP socket for one NIC queue and inserts its
// socket fd into the xsks_map so the eBPF program redirects matching
// traffic to it. Must be called once per queue after InitializePrimary.
func (d *Driver) OpenQueue(queueID uint32) error {
	d.mu.Lock()
	coll := d.coll
	d.mu.Unlock()
	if coll == nil {
		return fmt.Errorf("xdpdriver: InitializePrimary not called")
	}

	xsksMap := coll.Maps[d.cfg.XsksMapName]
	if xsksMap == nil {
		return fmt.Errorf("xdpdriver: map %s not found", d.cfg.XsksMapName)
	}

	opts := xdp.DefaultOpts()
	opts.NFrames = uint32(d.cfg.NFrames)
	opts.FrameSize = uint32(d.cfg.FrameSize)
	opts.NDescriptors = uint32(d.cfg.NDescriptors)
	opts.Bind = true
	opts.UseNeedWakeup = true

	cb, err := xdp.New(d.ifIndex, queueID, opts)
	if err != nil {
		return fmt.Errorf("xdpdriver: new AF_XDP socket: %w", err)
	}
	if err := xsksMap.Update(queueID, cb.UMEM.SockFD(), ebpf.UpdateAny); err != nil {
		return fmt.Errorf("xdpdriver: insert into xsks_map: %w", err)
	}

	cb.UMEM.Lock()
	cb.Fill.FillAll(&cb.UMEM)
	cb.UMEM.Unlock()

	d.mu.Lock()
	d.queues[int(queueID)] = &queueHandle{cb: cb, srcMAC: d.srcMAC, frameSize: d.cfg.FrameSize}
	d.mu.Unlock()
	return nil
}

func (d *Driver) Queue(queueID int) (nic.Queue, error) {
	d.mu.Lock()
	q, ok := d.queues[queueID]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("xdpdriver: queue %d not opened", queueID)
	}
	return q, nil
}

// BufferAlloc allocates a single UMEM frame and wraps it as a *buffer.Buffer
// whose release callback returns the frame to the UMEM free list.
func (d *Driver) BufferAlloc() (*buffer.Buffer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, q := range d.queues {
		if b, ok := q.allocBuffer(); ok {
			return b, true
		}
	}
	return nil, false
}

func (d *Driver) BufferAllocBulk(out []*buffer.Buffer, start, n int) int {
	filled := 0
	for filled < n {
		b, ok := d.BufferAlloc()
		if !ok {
			break
		}
		out[start+filled] = b
		filled++
	}
	return filled
}

func (d *Driver) CRCHash(data []byte, iv uint32) uint32 {
	return softwareCRC32(data, iv)
}

func (d *Driver) IPv4Checksum(header []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(header); i += 2 {
		if i == 10 {
			continue // checksum field itself reads as zero
		}
		sum += uint32(header[i])<<8 | uint32(header[i+1])
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, q := range d.queues {
		q.cb.Close()
	}
	if d.link != nil {
		d.link.Close()
	}
	if d.coll != nil {
		d.coll.Close()
	}
	return nil
}

// queueHandle implements nic.Queue over one AF_XDP socket's RX/Fill/TX/
// Completion rings: RX yields *buffer.Buffer directly to the pipeline, TX
// expects buffers the pipeline has already built into complete Ethernet
// frames.
type queueHandle struct {
	cb        *xdp.ControlBlock
	srcMAC    []byte
	frameSize int
}

// SourceMAC returns the bound interface's hardware address, for a pipeline
// stage building a reply frame's Ethernet header.
func (q *queueHandle) SourceMAC() []byte { return q.srcMAC }

func (q *queueHandle) allocBuffer() (*buffer.Buffer, bool) {
	q.cb.UMEM.Lock()
	defer q.cb.UMEM.Unlock()
	frameAddr := q.cb.UMEM.AllocFrame()
	if frameAddr == 0 {
		return nil, false
	}
	frame := q.cb.UMEM.Get(unix.XDPDesc{Addr: frameAddr, Len: uint32(q.frameSize)})
	return buffer.New(frame, q.releaseFrame(frameAddr)), true
}

func (q *queueHandle) releaseFrame(frameAddr uint64) func(*buffer.Buffer) {
	return func(*buffer.Buffer) {
		q.cb.UMEM.Lock()
		q.cb.UMEM.FreeFrame(frameAddr)
		q.cb.UMEM.Unlock()
	}
}

// Receive drains up to len(burst) ready RX descriptors, wrapping each
// frame's live region as a *buffer.Buffer. Callers (a pipeline.ReceiveBatch)
// own the returned buffers and must Free them to return frames to the pool.
func (q *queueHandle) Receive(burst []*buffer.Buffer) int {
	q.cb.UMEM.Lock()
	defer q.cb.UMEM.Unlock()

	nReceived, index := q.cb.RX.Peek()
	if nReceived == 0 {
		return 0
	}
	if uint32(len(burst)) < nReceived {
		nReceived = uint32(len(burst))
	}

	for i := uint32(0); i < nReceived; i++ {
		desc := q.cb.RX.Get(index + i)
		frame := q.cb.UMEM.Get(desc)
		frameAddr := desc.Addr
		b := buffer.New(frame[:0], q.releaseFrame(frameAddr))
		b.AddDataEnd(len(frame))
		burst[i] = b
	}
	q.cb.RX.Release(nReceived)
	q.cb.Fill.FillAll(&q.cb.UMEM)
	return int(nReceived)
}

// Send transmits bufs, each already a complete Ethernet frame, returning
// the number actually enqueued to the TX ring. Send takes ownership of
// every buffer it accepts: once a buffer's bytes are copied into a TX
// frame and the descriptor is set, the original buffer is freed back to
// its pool immediately rather than held until TX completion, since the
// copy (not the original frame) is now what the NIC drains. Buffers not
// accepted (ring full, UMEM exhausted) are left untouched for the caller
// to free.
func (q *queueHandle) Send(bufs []*buffer.Buffer) int {
	q.cb.UMEM.Lock()

	sent := 0
	sentBufs := make([]*buffer.Buffer, 0, len(bufs))
	for _, buf := range bufs {
		data := buf.Bytes()
		if len(data) == 0 || len(data) > q.frameSize {
			break
		}
		nReserved, index := q.cb.TX.Reserve(&q.cb.UMEM, 1)
		if nReserved == 0 {
			break
		}
		frameAddr := q.cb.UMEM.AllocFrame()
		if frameAddr == 0 {
			break
		}
		frame := q.cb.UMEM.Get(unix.XDPDesc{Addr: frameAddr, Len: uint32(len(data))})
		copy(frame, data)
		q.cb.TX.Set(index, unix.XDPDesc{Addr: frameAddr, Len: uint32(len(data))})
		sent++
		sentBufs = append(sentBufs, buf)
	}
	if sent > 0 {
		q.cb.TX.Notify()
	}

	nCompleted, completionIndex := q.cb.Completion.Peek()
	if nCompleted > 0 {
		for i := uint32(0); i < nCompleted; i++ {
			q.cb.UMEM.FreeFrame(q.cb.Completion.Get(completionIndex + i))
		}
		q.cb.Completion.Release(nCompleted)
	}
	q.cb.UMEM.Unlock()

	// buf.Free() invokes releaseFrame, which re-locks UMEM; it must run
	// after Unlock above, not inside the locked section.
	for _, buf := range sentBufs {
		buf.Free()
	}
	return sent
}

func softwareCRC32(data []byte, iv uint32) uint32 {
	crc := iv ^ 0xffffffff
	for _, b := range data {
		crc ^= uint32(b)
		for i := 0; i < 8; i++ {
			mask := -(crc & 1)
			crc = (crc >> 1) ^ (0xedb88320 & uint32(mask))
		}
	}
	return crc ^ 0xffffffff
}
