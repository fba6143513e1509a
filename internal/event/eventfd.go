//go:build linux

package event

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// EventFd wraps a non-blocking kernel eventfd. Writes accumulate into the
// counter; a read drains it and returns the accumulated value.
type EventFd struct {
	fd int
}

func NewEventFd() (*EventFd, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("event: create eventfd: %w", err)
	}
	return &EventFd{fd: fd}, nil
}

// FD returns the raw file descriptor. Registrations in the event manager are
// keyed by this value.
func (e *EventFd) FD() int {
	return e.fd
}

// Read drains the counter. With no pending edge the descriptor is
// non-blocking and the read fails with EAGAIN.
func (e *EventFd) Read() (uint64, error) {
	var buf [8]byte
	for {
		n, err := unix.Read(e.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		if n != 8 {
			return 0, fmt.Errorf("event: short eventfd read (%d bytes)", n)
		}
		return binary.LittleEndian.Uint64(buf[:]), nil
	}
}

// Write adds val to the counter, waking any poller.
func (e *EventFd) Write(val uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], val)
	for {
		_, err := unix.Write(e.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		return err
	}
}

func (e *EventFd) Close() error {
	return unix.Close(e.fd)
}
