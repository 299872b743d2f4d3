package ioready

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/flowcore/flowcore/pkg/errs"
	"github.com/flowcore/flowcore/pkg/pipeline"
)

// Agent is one accepted connection's handler. Implementations decide what
// a readable, writable, or hung-up socket means for their protocol; the
// return value tells the server whether to keep the connection registered.
type Agent interface {
	HandleReadReady() bool
	HandleWriteReady() bool
	HandleHUP() bool
}

// AgentFactory constructs an Agent for a freshly accepted connection. fd is
// already non-blocking and registered with scheduler.
type AgentFactory[A Agent] func(peer net.Addr, fd int, scheduler *IOScheduler) A

// TCPControlServer is a single-threaded control-plane listener: a
// pipeline.Task that, each tick, drains one ready event from its epoll
// instance and dispatches it either to accept a new connection or to an
// existing Agent. It operates on raw non-blocking sockets rather than
// net.Listener/net.Conn so its readiness bookkeeping is not duplicated by
// the Go runtime's own network poller.
type TCPControlServer[A Agent] struct {
	listenFD    int
	poller      *Poller
	handle      Handle
	nextToken   Token
	listenToken Token
	connections map[Token]A
	newAgent    AgentFactory[A]
}

const listenBacklog = 1024

// NewTCPControlServer binds and listens on addr (host:port, IPv4), arming
// the listening socket for read readiness (incoming connections).
func NewTCPControlServer[A Agent](addr string, newAgent AgentFactory[A]) (*TCPControlServer[A], error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %v", errs.ControlIoFailed, addr, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: socket: %v", errs.ControlIoFailed, err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: setsockopt SO_REUSEADDR: %v", errs.ControlIoFailed, err)
	}

	var ip4 [4]byte
	if ip := tcpAddr.IP.To4(); ip != nil {
		copy(ip4[:], ip)
	}
	sa := &unix.SockaddrInet4{Port: tcpAddr.Port, Addr: ip4}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: bind %s: %v", errs.ControlIoFailed, addr, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: listen: %v", errs.ControlIoFailed, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: set nonblocking: %v", errs.ControlIoFailed, err)
	}

	poller, err := New()
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	const listenToken Token = 0
	handle := poller.Handle()
	if err := handle.NewIOFd(fd, listenToken); err != nil {
		poller.Close()
		unix.Close(fd)
		return nil, err
	}
	if err := handle.ScheduleRead(fd, listenToken); err != nil {
		poller.Close()
		unix.Close(fd)
		return nil, err
	}

	return &TCPControlServer[A]{
		listenFD:    fd,
		poller:      poller,
		handle:      handle,
		nextToken:   listenToken + 1,
		listenToken: listenToken,
		connections: make(map[Token]A, 32),
		newAgent:    newAgent,
	}, nil
}

// Execute implements pipeline.Task: one non-blocking pass over the epoll
// ready set, dispatching at most one event.
func (s *TCPControlServer[A]) Execute() error {
	token, avail, ok := s.poller.GetTokenNoblock()
	if !ok {
		return nil
	}
	if token == s.listenToken {
		s.acceptConnection(avail)
		return nil
	}
	s.handleData(token, avail)
	return nil
}

func (s *TCPControlServer[A]) Dependencies() []pipeline.TaskID { return nil }

func (s *TCPControlServer[A]) acceptConnection(avail Available) {
	if avail.Has(Read) {
		connFD, sa, err := unix.Accept(s.listenFD)
		if err == nil {
			_ = unix.SetNonblock(connFD, true)
			token := s.nextToken
			s.nextToken++

			sched, err := NewIOScheduler(s.handle, connFD, token)
			if err != nil {
				unix.Close(connFD)
			} else {
				s.connections[token] = s.newAgent(sockaddrToAddr(sa), connFD, sched)
			}
		}
	}
	// A transient accept error (EAGAIN, a client that disconnected before
	// accept completed) is not fatal: just rearm and wait for the next one.
	_ = s.handle.ScheduleRead(s.listenFD, s.listenToken)
}

func (s *TCPControlServer[A]) handleData(token Token, avail Available) {
	agent, ok := s.connections[token]
	if !ok {
		return
	}

	var preserve bool
	switch {
	case avail.Has(Read):
		preserve = agent.HandleReadReady()
	case avail.Has(Write):
		preserve = agent.HandleWriteReady()
	case avail.Has(HUP):
		preserve = agent.HandleHUP()
	default:
		preserve = true
	}

	if !preserve {
		delete(s.connections, token)
	}
}

// Close shuts down the listening socket and the underlying poller.
func (s *TCPControlServer[A]) Close() error {
	s.poller.Close()
	return unix.Close(s.listenFD)
}

func sockaddrToAddr(sa unix.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]), Port: a.Port}
	default:
		return nil
	}
}
