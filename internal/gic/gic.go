// Package gic manages the in-kernel interrupt controller of an ARM64 VM.
//
// New negotiates the controller model with the hypervisor: it runs the full
// GICv3 construction protocol and, if any step of it fails, discards the
// partial device and retries with GICv2. A Device is only ever returned
// fully finalized; there is no observable half-configured state. Exactly one
// Device exists per VM, enforced by ownership at the call site.
package gic

import (
	"fmt"
	"unsafe"

	"github.com/tinyrange/microvm/internal/debug"
	"github.com/tinyrange/microvm/internal/fdt"
	hvpkg "github.com/tinyrange/microvm/internal/hv"
)

// Version identifies the architectural revision of the controller.
type Version uint32

const (
	VersionUnknown Version = 0
	Version2       Version = 2
	Version3       Version = 3
)

func (v Version) String() string {
	switch v {
	case Version2:
		return "GICv2"
	case Version3:
		return "GICv3"
	default:
		return fmt.Sprintf("GICv?(%d)", uint32(v))
	}
}

// CreateError reports that the hypervisor refused to create the kernel
// device itself. It is terminal for the attempted revision.
type CreateError struct {
	Err error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("gic: create device: %v", e.Err)
}

func (e *CreateError) Unwrap() error { return e.Err }

// AttrError reports a failed configuration, finalization, or register
// attribute call, annotated with the attribute group and direction.
type AttrError struct {
	Group uint32
	Set   bool
	Err   error
}

func (e *AttrError) Error() string {
	op := "get"
	if e.Set {
		op = "set"
	}
	return fmt.Sprintf("gic: %s device attribute (group %d): %v", op, e.Group, e.Err)
}

func (e *AttrError) Unwrap() error { return e.Err }

// variant is the construction contract one architectural revision supplies.
// Exactly two implementations exist; callers never choose one directly.
type variant interface {
	version() Version
	kernelDeviceType() uint32
	deviceProperties() []uint64
	configure(dev hvpkg.Device) error
	fdtCompatibility() string
	maintenanceInterrupt() hvpkg.Arm64Interrupt
	registerGroup(f regFamily) (uint32, error)
	validateRegisterOffset(f regFamily, offset uint64) error
}

// Device is a finalized in-kernel interrupt controller.
type Device struct {
	dev       hvpkg.Device
	v         variant
	vcpuCount uint64
	props     []uint64
}

// New builds the interrupt controller for vm, preferring GICv3 and falling
// back to GICv2 when any GICv3 construction step fails. If both revisions
// fail, the error from the GICv2 attempt is returned.
func New(vm hvpkg.DeviceVM, vcpuCount uint64) (*Device, error) {
	d, err := newWithVariant(vm, vcpuCount, gicv3{})
	if err != nil {
		debug.Writef("gic", "GICv3 setup failed, falling back to GICv2: %v", err)
		return newWithVariant(vm, vcpuCount, gicv2{})
	}

	debug.Writef("gic", "GICv3 setup complete, vcpus=%d", vcpuCount)

	return d, nil
}

// NewWithVersion builds a specific revision without fallback. VersionUnknown
// selects the negotiated default.
func NewWithVersion(vm hvpkg.DeviceVM, vcpuCount uint64, ver Version) (*Device, error) {
	switch ver {
	case Version3:
		return newWithVariant(vm, vcpuCount, gicv3{})
	case Version2:
		return newWithVariant(vm, vcpuCount, gicv2{})
	case VersionUnknown:
		return New(vm, vcpuCount)
	default:
		return nil, fmt.Errorf("gic: unknown version %d", uint32(ver))
	}
}

func newWithVariant(vm hvpkg.DeviceVM, vcpuCount uint64, v variant) (*Device, error) {
	if vcpuCount < 1 {
		return nil, fmt.Errorf("gic: vcpu count must be at least 1")
	}

	kdev, err := vm.CreateDevice(v.kernelDeviceType())
	if err != nil {
		debug.Writef("gic", "%s create device failed: %v", v.version(), err)
		return nil, &CreateError{Err: err}
	}

	d := &Device{
		dev:       kdev,
		v:         v,
		vcpuCount: vcpuCount,
		props:     v.deviceProperties(),
	}

	if err := v.configure(kdev); err != nil {
		debug.Writef("gic", "%s configure failed: %v", v.version(), err)
		kdev.Close()
		return nil, err
	}

	if err := d.finalize(); err != nil {
		debug.Writef("gic", "%s finalize failed: %v", v.version(), err)
		kdev.Close()
		return nil, err
	}

	return d, nil
}

// finalize advertises the usable interrupt line count and then locks the
// device configuration in the kernel. The order is fixed: after the control
// init call the kernel accepts no further region attributes.
func (d *Device) finalize() error {
	if err := setAttrU32(d.dev, kvmDevArmVgicGrpNrIrqs, 0, numUsableIRQs); err != nil {
		return err
	}

	return setAttr(d.dev, kvmDevArmVgicGrpCtrl, kvmDevArmVgicCtrlInit, nil)
}

// Version returns the negotiated architectural revision.
func (d *Device) Version() Version { return d.v.version() }

// VcpuCount returns the number of vCPUs this controller serves.
func (d *Device) VcpuCount() uint64 { return d.vcpuCount }

// DeviceProperties returns the guest-physical region list of the controller
// (base/size pairs, revision specific). Callers must not modify it.
func (d *Device) DeviceProperties() []uint64 { return d.props }

// FDTCompatibility returns the "compatible" string for the guest tree.
func (d *Device) FDTCompatibility() string { return d.v.fdtCompatibility() }

// FDTMaintenanceIRQ returns the fixed maintenance interrupt line.
func (d *Device) FDTMaintenanceIRQ() uint32 { return d.v.maintenanceInterrupt().Num }

// DeviceTreeNode produces the interrupt-controller node consumed by the
// guest description builder.
func (d *Device) DeviceTreeNode() fdt.Node {
	maint := d.v.maintenanceInterrupt()
	return fdt.Node{
		Name: fmt.Sprintf("intc@%x", d.props[0]),
		Properties: map[string]fdt.Property{
			"compatible":           {Strings: []string{d.v.fdtCompatibility()}},
			"reg":                  {U64: d.props},
			"interrupt-controller": {Flag: true},
			"#interrupt-cells":     {U32: []uint32{3}},
			"interrupts":           {U32: []uint32{maint.Type, maint.Num, maint.Flags}},
		},
	}
}

// Close releases the kernel device handle.
func (d *Device) Close() error {
	return d.dev.Close()
}

func setAttr(dev hvpkg.Device, group uint32, attr uint64, data unsafe.Pointer) error {
	err := dev.SetAttr(hvpkg.DeviceAttr{Group: group, Attr: attr, Data: data})
	if err != nil {
		return &AttrError{Group: group, Set: true, Err: err}
	}
	return nil
}

func getAttr(dev hvpkg.Device, group uint32, attr uint64, data unsafe.Pointer) error {
	err := dev.GetAttr(hvpkg.DeviceAttr{Group: group, Attr: attr, Data: data})
	if err != nil {
		return &AttrError{Group: group, Set: false, Err: err}
	}
	return nil
}

func setAttrU32(dev hvpkg.Device, group uint32, attr uint64, value uint32) error {
	val := value
	return setAttr(dev, group, attr, unsafe.Pointer(&val))
}

func setAttrU64(dev hvpkg.Device, group uint32, attr uint64, value uint64) error {
	val := value
	return setAttr(dev, group, attr, unsafe.Pointer(&val))
}
