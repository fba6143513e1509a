//go:build linux

package event

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

type recordingSubscriber struct {
	processed []int
}

func (r *recordingSubscriber) Process(ev unix.EpollEvent, m *Manager) {
	r.processed = append(r.processed, int(ev.Fd))
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func newTestEventFd(t *testing.T) *EventFd {
	t.Helper()
	evt, err := NewEventFd()
	if err != nil {
		t.Fatalf("NewEventFd: %v", err)
	}
	t.Cleanup(func() { evt.Close() })
	return evt
}

func TestEventFdRoundtrip(t *testing.T) {
	evt := newTestEventFd(t)

	if err := evt.Write(2); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := evt.Write(3); err != nil {
		t.Fatalf("Write: %v", err)
	}

	val, err := evt.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if val != 5 {
		t.Fatalf("Read = %d, want 5", val)
	}

	// The counter is drained; a second read must not block.
	if _, err := evt.Read(); err == nil {
		t.Fatalf("Read on drained eventfd returned nil error")
	}
}

func TestRegisterDispatchUnregister(t *testing.T) {
	m := newTestManager(t)
	evt := newTestEventFd(t)
	sub := &recordingSubscriber{}

	if err := m.Register(evt.FD(), Readable, sub); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Register(evt.FD(), Readable, sub); !errors.Is(err, ErrFDAlreadyRegistered) {
		t.Fatalf("duplicate Register err = %v, want ErrFDAlreadyRegistered", err)
	}

	got, err := m.Subscriber(evt.FD())
	if err != nil {
		t.Fatalf("Subscriber: %v", err)
	}
	if got != Subscriber(sub) {
		t.Fatalf("Subscriber returned a different handle")
	}

	if err := evt.Write(1); err != nil {
		t.Fatalf("Write: %v", err)
	}
	n, err := m.Run(0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 1 {
		t.Fatalf("Run dispatched %d events, want 1", n)
	}
	if len(sub.processed) != 1 || sub.processed[0] != evt.FD() {
		t.Fatalf("processed = %v, want [%d]", sub.processed, evt.FD())
	}

	if err := m.Unregister(evt.FD()); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if err := m.Unregister(evt.FD()); !errors.Is(err, ErrFDNotRegistered) {
		t.Fatalf("second Unregister err = %v, want ErrFDNotRegistered", err)
	}
	if _, err := m.Subscriber(evt.FD()); !errors.Is(err, ErrFDNotRegistered) {
		t.Fatalf("Subscriber after Unregister err = %v, want ErrFDNotRegistered", err)
	}

	if err := evt.Write(1); err != nil {
		t.Fatalf("Write: %v", err)
	}
	n, err = m.Run(0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 0 {
		t.Fatalf("Run dispatched %d events after Unregister, want 0", n)
	}
}

func TestAddSubscriberInstallsInterestList(t *testing.T) {
	m := newTestManager(t)
	a := newTestEventFd(t)
	b := newTestEventFd(t)
	sub := &recordingSubscriber{}

	interests := []Interest{
		{FD: a.FD(), Events: Readable},
		{FD: b.FD(), Events: Readable},
	}
	if err := m.AddSubscriber(sub, interests); err != nil {
		t.Fatalf("AddSubscriber: %v", err)
	}

	for _, evt := range []*EventFd{a, b} {
		if _, err := m.Subscriber(evt.FD()); err != nil {
			t.Fatalf("fd %d not registered: %v", evt.FD(), err)
		}
		if err := evt.Write(1); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	n, err := m.Run(0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 2 {
		t.Fatalf("Run dispatched %d events, want 2", n)
	}
}

func TestRunTimeoutWithNothingReady(t *testing.T) {
	m := newTestManager(t)

	n, err := m.Run(0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 0 {
		t.Fatalf("Run dispatched %d events, want 0", n)
	}
}
