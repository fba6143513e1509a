package hv

import (
	"errors"
	"io"
	"unsafe"
)

var (
	ErrHypervisorUnsupported = errors.New("hypervisor unsupported on this platform")
	ErrDeviceUnsupported     = errors.New("auxiliary device unsupported by this hypervisor")
)

type CpuArchitecture string

const (
	ArchitectureInvalid CpuArchitecture = "invalid"
	ArchitectureX86_64  CpuArchitecture = "x86_64"
	ArchitectureARM64   CpuArchitecture = "arm64"
)

// DeviceAttr mirrors the kernel's device-attribute call. The kernel
// interprets Data per (Group, Attr): either as a pointer to a payload it
// reads or writes, or not at all (Data may be nil for control attributes).
// The channel never interprets it.
type DeviceAttr struct {
	Group uint32
	Attr  uint64
	Data  unsafe.Pointer
	Flags uint32
}

// Device is an auxiliary kernel device created for a virtual machine.
// Attribute calls are synchronous and never retried: a rejected attribute
// means an architectural or version mismatch, not a transient fault.
type Device interface {
	io.Closer

	SetAttr(attr DeviceAttr) error
	GetAttr(attr DeviceAttr) error
}

// DeviceVM is the slice of a virtual machine handle needed to host
// auxiliary kernel devices.
type DeviceVM interface {
	// CreateDevice asks the hypervisor for a kernel device of the given
	// type. The returned Device is exclusively owned by the caller.
	CreateDevice(devType uint32) (Device, error)
}

// Arm64Interrupt describes a single FDT "interrupts" triple.
type Arm64Interrupt struct {
	Type  uint32
	Num   uint32
	Flags uint32
}
