// Package ioready implements an I/O readiness polling control plane: an
// edge-triggered, one-shot epoll wrapper and the TCP control server built
// on top of it. Grounded on NetBricks's
// control/linux/epoll.rs and control/tcp.rs, translated from libc epoll via
// nix to golang.org/x/sys/unix, the same syscall package the driver layer
// already uses for AF_XDP.
package ioready

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/flowcore/flowcore/pkg/errs"
)

// Token identifies a registered file descriptor across readiness events.
type Token uint64

// Available is a bitset of the readiness conditions a poll reported.
type Available uint32

const (
	None  Available = 0
	Read  Available = 1 << 0
	Write Available = 1 << 1
	HUP   Available = 1 << 2
)

func (a Available) Has(flag Available) bool { return a&flag != 0 }

// Handle schedules read/write interest against a Poller's epoll instance. It
// is cheap to copy and safe to hand out to every registered connection.
type Handle struct {
	epollFD int
}

// ScheduleRead arms fd for one edge-triggered read notification under token.
// Oneshot semantics mean it must be rearmed after every event it produces.
func (h Handle) ScheduleRead(fd int, token Token) error {
	return h.modify(fd, unix.EPOLLIN|unix.EPOLLET|unix.EPOLLONESHOT, token)
}

// ScheduleWrite arms fd for one edge-triggered write notification under token.
func (h Handle) ScheduleWrite(fd int, token Token) error {
	return h.modify(fd, unix.EPOLLOUT|unix.EPOLLET|unix.EPOLLONESHOT, token)
}

func (h Handle) modify(fd int, events uint32, token Token) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	putToken(&ev, token)
	if err := unix.EpollCtl(h.epollFD, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("%w: epoll_ctl mod fd %d: %v", errs.ControlIoFailed, fd, err)
	}
	return nil
}

// NewIOFd registers fd with the poller for the first time, armed with no
// interest bits yet; callers must follow with ScheduleRead/ScheduleWrite.
// fd must already be non-blocking.
func (h Handle) NewIOFd(fd int, token Token) error {
	ev := unix.EpollEvent{Events: unix.EPOLLET | unix.EPOLLONESHOT, Fd: int32(fd)}
	putToken(&ev, token)
	if err := unix.EpollCtl(h.epollFD, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("%w: epoll_ctl add fd %d: %v", errs.ControlIoFailed, fd, err)
	}
	return nil
}

// Remove deregisters fd from the poller.
func (h Handle) Remove(fd int) error {
	if err := unix.EpollCtl(h.epollFD, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("%w: epoll_ctl del fd %d: %v", errs.ControlIoFailed, fd, err)
	}
	return nil
}

// The kernel's epoll_data is an 8-byte union the caller fills with whatever
// it wants back verbatim; x/sys/unix exposes it split across Fd and Pad,
// two int32s occupying the same 8 bytes. Packing/unpacking a 64-bit token
// across both fields round-trips it exactly, without needing the kernel's
// copy of the real fd back (epoll_ctl already took fd as an argument).
func putToken(ev *unix.EpollEvent, token Token) {
	ev.Fd = int32(uint32(token))
	ev.Pad = int32(uint32(token >> 32))
}

func readToken(ev *unix.EpollEvent) Token {
	return Token(uint32(ev.Fd)) | Token(uint32(ev.Pad))<<32
}

// Poller is a single epoll instance plus the small ready-event buffer
// get_token_noblock drains one entry at a time from, avoiding a fresh
// epoll_wait syscall while buffered events remain.
type Poller struct {
	epollFD int
	ready   []unix.EpollEvent
	events  int
}

// New creates a Poller backed by a fresh epoll instance.
func New() (*Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("%w: epoll_create1: %v", errs.ControlIoFailed, err)
	}
	return &Poller{epollFD: fd, ready: make([]unix.EpollEvent, 32)}, nil
}

// Handle returns a Handle sharing this Poller's epoll instance.
func (p *Poller) Handle() Handle { return Handle{epollFD: p.epollFD} }

// Close releases the underlying epoll file descriptor.
func (p *Poller) Close() error { return unix.Close(p.epollFD) }

func eventToAvailable(events uint32) Available {
	var a Available
	if events&unix.EPOLLIN != 0 {
		a |= Read
	}
	if events&unix.EPOLLOUT != 0 {
		a |= Write
	}
	if events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		a |= HUP
	}
	return a
}

// GetTokenNoblock returns the next ready (token, availability) pair without
// blocking, issuing a zero-timeout epoll_wait only once its local buffer of
// previously retrieved events is exhausted.
func (p *Poller) GetTokenNoblock() (Token, Available, bool) {
	if p.events == 0 {
		n, err := unix.EpollWait(p.epollFD, p.ready[:cap(p.ready)], 0)
		if err != nil {
			if err == unix.EINTR {
				return 0, None, false
			}
			return 0, None, false
		}
		p.ready = p.ready[:n]
		p.events = n
	}
	if p.events == 0 {
		return 0, None, false
	}
	p.events--
	ev := p.ready[p.events]
	return readToken(&ev), eventToAvailable(ev.Events), true
}
