package gic

import (
	"fmt"

	hvpkg "github.com/tinyrange/microvm/internal/hv"
)

// gicv2 is the older single-region model: per-vCPU state is banked behind a
// shared CPU-interface window instead of per-vCPU redistributor frames.
type gicv2 struct{}

func (gicv2) version() Version { return Version2 }

func (gicv2) kernelDeviceType() uint32 { return kvmDevTypeArmVgicV2 }

func (gicv2) deviceProperties() []uint64 {
	return []uint64{
		distributorBase, distributorSizeV2,
		cpuInterfaceBase, cpuInterfaceSize,
	}
}

func (gicv2) configure(dev hvpkg.Device) error {
	if err := setAttrU64(dev, kvmDevArmVgicGrpAddr, kvmVgicV2AddrTypeDist, distributorBase); err != nil {
		return err
	}

	return setAttrU64(dev, kvmDevArmVgicGrpAddr, kvmVgicV2AddrTypeCpu, cpuInterfaceBase)
}

func (gicv2) fdtCompatibility() string { return "arm,gic-400" }

func (gicv2) maintenanceInterrupt() hvpkg.Arm64Interrupt {
	return hvpkg.Arm64Interrupt{Type: 1, Num: 8, Flags: 0xF04}
}

func (gicv2) registerGroup(f regFamily) (uint32, error) {
	switch f {
	case regDistributor:
		return kvmDevArmVgicGrpDistRegs, nil
	case regCPUInterface:
		return kvmDevArmVgicGrpCpuRegs, nil
	case regRedistributor:
		return 0, fmt.Errorf("gic: GICv2 has no redistributor registers")
	default:
		return 0, fmt.Errorf("gic: unknown register family %d", f)
	}
}

func (gicv2) validateRegisterOffset(f regFamily, offset uint64) error {
	switch f {
	case regDistributor:
		return validateMMIOOffset(offset, distributorSizeV2)
	case regCPUInterface:
		return validateMMIOOffset(offset, cpuInterfaceSize)
	case regRedistributor:
		return fmt.Errorf("gic: GICv2 has no redistributor registers")
	default:
		return fmt.Errorf("gic: unknown register family %d", f)
	}
}
