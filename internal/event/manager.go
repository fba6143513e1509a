//go:build linux

// Package event is the VMM's cooperative I/O reactor: an epoll instance plus
// a registry of subscribers keyed by file descriptor.
//
// The manager is single-threaded by design. All callbacks run on the thread
// calling Run, one at a time, so subscribers never observe concurrent
// dispatch and the registry needs no locking.
package event

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Readable is the readiness flag devices care about for eventfd-backed
// interests.
const Readable uint32 = unix.EPOLLIN

var (
	ErrFDAlreadyRegistered = errors.New("event: fd already registered")
	ErrFDNotRegistered     = errors.New("event: fd not registered")
)

// Interest names one file descriptor a subscriber wants monitored and the
// readiness flags it cares about.
type Interest struct {
	FD     int
	Events uint32
}

// Subscriber reacts to readiness on descriptors registered under it.
type Subscriber interface {
	// Process is called once per ready descriptor per dispatch round.
	Process(ev unix.EpollEvent, m *Manager)
}

// Manager owns the epoll instance and the fd-to-subscriber registry.
type Manager struct {
	epollFd     int
	subscribers map[int]Subscriber
}

func NewManager() (*Manager, error) {
	epollFd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("event: create epoll instance: %w", err)
	}

	return &Manager{
		epollFd:     epollFd,
		subscribers: make(map[int]Subscriber),
	}, nil
}

// AddSubscriber installs the subscriber's initial interest list.
// Registrations are handles, not ownership: the subscriber keeps owning its
// descriptors.
func (m *Manager) AddSubscriber(s Subscriber, interests []Interest) error {
	for _, interest := range interests {
		if err := m.Register(interest.FD, interest.Events, s); err != nil {
			return err
		}
	}
	return nil
}

// Subscriber returns the subscriber registered under fd.
func (m *Manager) Subscriber(fd int) (Subscriber, error) {
	s, ok := m.subscribers[fd]
	if !ok {
		return nil, ErrFDNotRegistered
	}
	return s, nil
}

// Register adds fd to the poll set and routes its readiness to s.
func (m *Manager) Register(fd int, events uint32, s Subscriber) error {
	if _, ok := m.subscribers[fd]; ok {
		return ErrFDAlreadyRegistered
	}

	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(m.epollFd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("event: register fd %d: %w", fd, err)
	}

	m.subscribers[fd] = s
	return nil
}

// Unregister removes fd from the poll set and drops its registration.
func (m *Manager) Unregister(fd int) error {
	if _, ok := m.subscribers[fd]; !ok {
		return ErrFDNotRegistered
	}

	if err := unix.EpollCtl(m.epollFd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("event: unregister fd %d: %w", fd, err)
	}

	delete(m.subscribers, fd)
	return nil
}

// Run performs one dispatch round: wait up to timeoutMs (-1 blocks) and
// invoke Process on the subscriber of every ready descriptor. It returns the
// number of events dispatched.
func (m *Manager) Run(timeoutMs int) (int, error) {
	events := make([]unix.EpollEvent, 32)

	var n int
	for {
		var err error
		n, err = unix.EpollWait(m.epollFd, events, timeoutMs)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("event: epoll wait: %w", err)
		}
		break
	}

	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		// The subscriber may have been unregistered by an earlier callback
		// in this same round.
		if s, ok := m.subscribers[fd]; ok {
			s.Process(events[i], m)
		}
	}

	return n, nil
}

func (m *Manager) Close() error {
	return unix.Close(m.epollFd)
}
