package gic

import (
	"fmt"
	"unsafe"
)

// regFamily names one of the three vCPU register families exposed for
// interrupt-state save and restore.
type regFamily int

const (
	regDistributor regFamily = iota
	regRedistributor
	regCPUInterface
)

func (f regFamily) String() string {
	switch f {
	case regDistributor:
		return "distributor"
	case regRedistributor:
		return "redistributor"
	case regCPUInterface:
		return "cpu-interface"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

func validateMMIOOffset(offset, window uint64) error {
	if offset%4 != 0 {
		return fmt.Errorf("gic: register offset %#x is not 4-byte aligned", offset)
	}
	if offset >= window {
		return fmt.Errorf("gic: register offset %#x outside window %#x", offset, window)
	}
	return nil
}

// sysreg packs an AArch64 system-register instruction encoding the way the
// kernel expects it in a device-attribute id.
func sysreg(op0, op1, crn, crm, op2 uint64) uint64 {
	return op0<<14 | op1<<11 | crn<<7 | crm<<3 | op2
}

// CPU-interface system registers the kernel exposes for save/restore.
var (
	ICCPMREl1     = sysreg(3, 0, 4, 6, 0)
	ICCBPR0El1    = sysreg(3, 0, 12, 8, 3)
	ICCAP0R0El1   = sysreg(3, 0, 12, 8, 4)
	ICCAP0R1El1   = sysreg(3, 0, 12, 8, 5)
	ICCAP0R2El1   = sysreg(3, 0, 12, 8, 6)
	ICCAP0R3El1   = sysreg(3, 0, 12, 8, 7)
	ICCAP1R0El1   = sysreg(3, 0, 12, 9, 0)
	ICCAP1R1El1   = sysreg(3, 0, 12, 9, 1)
	ICCAP1R2El1   = sysreg(3, 0, 12, 9, 2)
	ICCAP1R3El1   = sysreg(3, 0, 12, 9, 3)
	ICCBPR1El1    = sysreg(3, 0, 12, 12, 3)
	ICCCTLREl1    = sysreg(3, 0, 12, 12, 4)
	ICCSREEl1     = sysreg(3, 0, 12, 12, 5)
	ICCIGRPEN0El1 = sysreg(3, 0, 12, 12, 6)
	ICCIGRPEN1El1 = sysreg(3, 0, 12, 12, 7)
)

var iccRegisters = map[uint64]struct{}{
	ICCPMREl1:     {},
	ICCBPR0El1:    {},
	ICCAP0R0El1:   {},
	ICCAP0R1El1:   {},
	ICCAP0R2El1:   {},
	ICCAP0R3El1:   {},
	ICCAP1R0El1:   {},
	ICCAP1R1El1:   {},
	ICCAP1R2El1:   {},
	ICCAP1R3El1:   {},
	ICCBPR1El1:    {},
	ICCCTLREl1:    {},
	ICCSREEl1:     {},
	ICCIGRPEN0El1: {},
	ICCIGRPEN1El1: {},
}

// registerAccess validates a request and delegates it to the attribute
// channel. Rejections happen before any kernel call; kernel failures are
// surfaced verbatim and never retried.
func (d *Device) registerAccess(f regFamily, vcpu, offset uint64, data unsafe.Pointer, set bool) error {
	if vcpu >= d.vcpuCount {
		return fmt.Errorf("gic: vcpu index %d out of range (device serves %d)", vcpu, d.vcpuCount)
	}

	group, err := d.v.registerGroup(f)
	if err != nil {
		return err
	}
	if err := d.v.validateRegisterOffset(f, offset); err != nil {
		return err
	}

	attr := vcpu<<vgicCpuidShift | offset&vgicOffsetMask

	if set {
		return setAttr(d.dev, group, attr, data)
	}
	return getAttr(d.dev, group, attr, data)
}

// GetDistributorRegister reads one 32-bit distributor register for a vCPU.
func (d *Device) GetDistributorRegister(vcpu, offset uint64) (uint32, error) {
	var val uint32
	if err := d.registerAccess(regDistributor, vcpu, offset, unsafe.Pointer(&val), false); err != nil {
		return 0, err
	}
	return val, nil
}

// SetDistributorRegister writes one 32-bit distributor register for a vCPU.
func (d *Device) SetDistributorRegister(vcpu, offset uint64, value uint32) error {
	val := value
	return d.registerAccess(regDistributor, vcpu, offset, unsafe.Pointer(&val), true)
}

// GetRedistributorRegister reads one 32-bit redistributor register for a
// vCPU. Only the distributor/redistributor model has these.
func (d *Device) GetRedistributorRegister(vcpu, offset uint64) (uint32, error) {
	var val uint32
	if err := d.registerAccess(regRedistributor, vcpu, offset, unsafe.Pointer(&val), false); err != nil {
		return 0, err
	}
	return val, nil
}

// SetRedistributorRegister writes one 32-bit redistributor register for a
// vCPU.
func (d *Device) SetRedistributorRegister(vcpu, offset uint64, value uint32) error {
	val := value
	return d.registerAccess(regRedistributor, vcpu, offset, unsafe.Pointer(&val), true)
}

// GetCPUInterfaceRegister reads one CPU-interface register for a vCPU. On
// GICv3 the register is a 64-bit system register named by its instruction
// encoding; on GICv2 it is a 32-bit banked MMIO register named by offset.
func (d *Device) GetCPUInterfaceRegister(vcpu, reg uint64) (uint64, error) {
	if d.v.version() == Version2 {
		var val uint32
		if err := d.registerAccess(regCPUInterface, vcpu, reg, unsafe.Pointer(&val), false); err != nil {
			return 0, err
		}
		return uint64(val), nil
	}

	var val uint64
	if err := d.registerAccess(regCPUInterface, vcpu, reg, unsafe.Pointer(&val), false); err != nil {
		return 0, err
	}
	return val, nil
}

// SetCPUInterfaceRegister writes one CPU-interface register for a vCPU.
func (d *Device) SetCPUInterfaceRegister(vcpu, reg, value uint64) error {
	if d.v.version() == Version2 {
		val := uint32(value)
		return d.registerAccess(regCPUInterface, vcpu, reg, unsafe.Pointer(&val), true)
	}

	val := value
	return d.registerAccess(regCPUInterface, vcpu, reg, unsafe.Pointer(&val), true)
}
