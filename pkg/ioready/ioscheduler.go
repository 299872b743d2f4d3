package ioready

// IOScheduler binds one file descriptor's readiness interest to a shared
// Poller, so callers can rearm reads or writes without repeating the fd and
// token on every call.
type IOScheduler struct {
	fd     int
	token  Token
	handle Handle
}

// NewIOScheduler registers fd with handle's poller under token.
func NewIOScheduler(handle Handle, fd int, token Token) (*IOScheduler, error) {
	if err := handle.NewIOFd(fd, token); err != nil {
		return nil, err
	}
	return &IOScheduler{fd: fd, token: token, handle: handle}, nil
}

// ScheduleRead arms this fd for one more edge-triggered read notification.
func (s *IOScheduler) ScheduleRead() error { return s.handle.ScheduleRead(s.fd, s.token) }

// ScheduleWrite arms this fd for one more edge-triggered write notification.
func (s *IOScheduler) ScheduleWrite() error { return s.handle.ScheduleWrite(s.fd, s.token) }

// Close deregisters the fd from the poller.
func (s *IOScheduler) Close() error { return s.handle.Remove(s.fd) }
