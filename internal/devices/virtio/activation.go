//go:build linux

package virtio

import (
	"log/slog"

	"github.com/tinyrange/microvm/internal/event"
)

// Registry is the view of the reactor's subscriber registry the activation
// transition mutates. *event.Manager satisfies it.
type Registry interface {
	Subscriber(fd int) (event.Subscriber, error)
	Register(fd int, events uint32, s event.Subscriber) error
	Unregister(fd int) error
}

// HandleActivation runs the one-shot transition from inactive to active when
// the reactor reports readiness on the device's activation signal:
//
//  1. drain the activation signal,
//  2. look up the device's own subscriber handle under the signal's fd,
//  3. register the steady-state interest list under that handle,
//  4. retire the activation registration.
//
// New interests are registered before the old registration is dropped so
// there is no window with no valid registration. None of the failures here
// abort the VM: a failed drain is ignored, a failed lookup leaves the device
// inactive forever, and failed interest registrations degrade the device.
// A spurious second dispatch after a completed transition finds no
// subscriber under the old key and returns without touching the registry.
func HandleActivation(d Device, reg Registry) {
	slog.Debug("virtio: activate event", "device", d.DeviceID())

	if _, err := d.ActivateEvent().Read(); err != nil {
		slog.Error("virtio: consume activate event", "device", d.DeviceID(), "err", err)
	}

	activateFd := d.ActivateEvent().FD()

	// The handle must exist: the device registered its activation signal
	// under this key at construction time.
	self, err := reg.Subscriber(activateFd)
	if err != nil {
		slog.Error("virtio: activate subscriber lookup", "device", d.DeviceID(), "fd", activateFd, "err", err)
		return
	}

	for _, interest := range d.InterestList() {
		if err := reg.Register(interest.FD, interest.Events, self); err != nil {
			slog.Error("virtio: register device event", "device", d.DeviceID(), "fd", interest.FD, "err", err)
		}
	}

	if err := reg.Unregister(activateFd); err != nil {
		slog.Error("virtio: unregister activate event", "device", d.DeviceID(), "fd", activateFd, "err", err)
	}
}
