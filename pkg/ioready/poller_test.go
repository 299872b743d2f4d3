package ioready

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPollerReportsReadReadiness(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])
	require.NoError(t, unix.SetNonblock(fds[0], true))

	p, err := New()
	require.NoError(t, err)
	defer p.Close()

	h := p.Handle()
	require.NoError(t, h.NewIOFd(fds[0], 42))
	require.NoError(t, h.ScheduleRead(fds[0], 42))

	_, err = unix.Write(fds[1], []byte("hi"))
	require.NoError(t, err)

	var (
		token Token
		avail Available
		ok    bool
	)
	require.Eventually(t, func() bool {
		token, avail, ok = p.GetTokenNoblock()
		return ok
	}, time.Second, time.Millisecond)

	assert.Equal(t, Token(42), token)
	assert.True(t, avail.Has(Read))
}

func TestPollerNoEventsReturnsFalse(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	defer p.Close()

	_, _, ok := p.GetTokenNoblock()
	assert.False(t, ok)
}

func TestPollerOneshotRequiresRearm(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])
	require.NoError(t, unix.SetNonblock(fds[0], true))

	p, err := New()
	require.NoError(t, err)
	defer p.Close()

	h := p.Handle()
	require.NoError(t, h.NewIOFd(fds[0], 1))
	require.NoError(t, h.ScheduleRead(fds[0], 1))

	_, err = unix.Write(fds[1], []byte("x"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, _, ok := p.GetTokenNoblock()
		return ok
	}, time.Second, time.Millisecond)

	// Oneshot: without rearming, a second write produces no further event.
	_, err = unix.Write(fds[1], []byte("y"))
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, _, ok := p.GetTokenNoblock()
	assert.False(t, ok)
}

func TestTokenRoundTripsFullRange(t *testing.T) {
	var ev unix.EpollEvent
	const tok Token = 0xDEADBEEFCAFE
	putToken(&ev, tok)
	assert.Equal(t, tok, readToken(&ev))
}
