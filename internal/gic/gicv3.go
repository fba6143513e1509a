package gic

import (
	"fmt"

	hvpkg "github.com/tinyrange/microvm/internal/hv"
)

// gicv3 is the distributor/redistributor model: the per-vCPU state lives in
// redistributor frames stacked after the redistributor base.
type gicv3 struct{}

func (gicv3) version() Version { return Version3 }

func (gicv3) kernelDeviceType() uint32 { return kvmDevTypeArmVgicV3 }

func (gicv3) deviceProperties() []uint64 {
	return []uint64{
		distributorBase, distributorSizeV3,
		redistributorBase, redistributorSize,
	}
}

// configure sets the distributor geometry before the redistributor region:
// the kernel derives the redistributor stride from the distributor setup.
func (gicv3) configure(dev hvpkg.Device) error {
	if err := setAttrU64(dev, kvmDevArmVgicGrpAddr, kvmVgicV3AddrTypeDist, distributorBase); err != nil {
		return err
	}

	return setAttrU64(dev, kvmDevArmVgicGrpAddr, kvmVgicV3AddrTypeRedist, redistributorBase)
}

func (gicv3) fdtCompatibility() string { return "arm,gic-v3" }

func (gicv3) maintenanceInterrupt() hvpkg.Arm64Interrupt {
	return hvpkg.Arm64Interrupt{Type: 1, Num: 9, Flags: 0xF04}
}

func (gicv3) registerGroup(f regFamily) (uint32, error) {
	switch f {
	case regDistributor:
		return kvmDevArmVgicGrpDistRegs, nil
	case regRedistributor:
		return kvmDevArmVgicGrpRedistRegs, nil
	case regCPUInterface:
		return kvmDevArmVgicGrpCpuSysRegs, nil
	default:
		return 0, fmt.Errorf("gic: unknown register family %d", f)
	}
}

func (gicv3) validateRegisterOffset(f regFamily, offset uint64) error {
	switch f {
	case regDistributor:
		return validateMMIOOffset(offset, distributorSizeV3)
	case regRedistributor:
		return validateMMIOOffset(offset, redistributorSize)
	case regCPUInterface:
		// CPU-interface state is accessed by system-register encoding, not
		// by MMIO offset.
		if _, ok := iccRegisters[offset&vgicSysregInstrMask]; !ok {
			return fmt.Errorf("gic: unknown CPU interface system register %#x", offset)
		}
		return nil
	default:
		return fmt.Errorf("gic: unknown register family %d", f)
	}
}
