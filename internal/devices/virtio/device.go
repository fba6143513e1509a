//go:build linux

// Package virtio holds the transport-independent device lifecycle contracts
// of the VMM's para-virtualized devices.
package virtio

import (
	"fmt"

	"github.com/tinyrange/microvm/internal/event"
)

// Device is the slice of a virtio device the activation transition needs.
//
// A device starts inactive: only its activation signal is registered with
// the reactor. Once the guest starts it, HandleActivation wires the device's
// steady-state interest list in and retires the activation registration.
type Device interface {
	// DeviceID returns the virtio device type identifier.
	// Common values:
	//   1 = network card
	//   2 = block device
	//   3 = console
	//   4 = entropy source
	DeviceID() uint16

	// ActivateEvent returns the device-owned activation signal. It is
	// readable exactly once per guest-triggered activation.
	ActivateEvent() *event.EventFd

	// InterestList returns the event sources the device wants monitored
	// once active. It may depend on configuration negotiated before
	// activation and is only consulted during the activation transition.
	InterestList() []event.Interest
}

// Activation owns a device's activation signal. Device implementations embed
// it and the guest-facing transport calls Signal when the driver starts the
// device.
type Activation struct {
	evt *event.EventFd
}

func NewActivation() (*Activation, error) {
	evt, err := event.NewEventFd()
	if err != nil {
		return nil, fmt.Errorf("virtio: create activate event: %w", err)
	}
	return &Activation{evt: evt}, nil
}

// ActivateEvent implements part of Device.
func (a *Activation) ActivateEvent() *event.EventFd {
	return a.evt
}

// Signal marks the device as started by the guest, waking the reactor.
func (a *Activation) Signal() error {
	return a.evt.Write(1)
}

// InactiveInterestList is the registration set for a freshly constructed
// device: readiness on the activation signal only.
func (a *Activation) InactiveInterestList() []event.Interest {
	return []event.Interest{{FD: a.evt.FD(), Events: event.Readable}}
}

func (a *Activation) Close() error {
	return a.evt.Close()
}
