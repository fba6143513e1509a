package gic

// Kernel ABI identifiers for the in-kernel VGIC device. These values are
// stable kernel ABI, shared by every hypervisor backend that speaks the
// device-attribute protocol.

const (
	kvmDevTypeArmVgicV2 = 5
	kvmDevTypeArmVgicV3 = 7
)

const (
	kvmDevArmVgicGrpAddr       = 0
	kvmDevArmVgicGrpDistRegs   = 1
	kvmDevArmVgicGrpCpuRegs    = 2
	kvmDevArmVgicGrpNrIrqs     = 3
	kvmDevArmVgicGrpCtrl       = 4
	kvmDevArmVgicGrpRedistRegs = 5
	kvmDevArmVgicGrpCpuSysRegs = 6
)

const kvmDevArmVgicCtrlInit = 0

const (
	kvmVgicV2AddrTypeDist = 0
	kvmVgicV2AddrTypeCpu  = 1

	kvmVgicV3AddrTypeDist   = 2
	kvmVgicV3AddrTypeRedist = 3
)

// Per-vCPU register attribute packing: the vCPU index lives in bits 63:32,
// the register identifier in bits 31:0. MMIO register families identify
// registers by byte offset; the system-register family identifies them by
// instruction encoding masked to 16 bits.
const (
	vgicCpuidShift      = 32
	vgicOffsetMask      = 0xffffffff
	vgicSysregInstrMask = 0xffff
)

// Guest-physical layout of the interrupt controller regions.
const (
	distributorBase   = 0x08000000
	distributorSizeV3 = 0x00010000
	distributorSizeV2 = 0x00001000

	cpuInterfaceBase = 0x08010000
	cpuInterfaceSize = 0x00002000

	redistributorBase = 0x080a0000
	redistributorSize = 0x00020000
)

// Interrupt lines 0-31 are SGIs and PPIs, reserved by the architecture.
// Only the SPI lines above them are advertised to the kernel as usable.
const (
	irqCeiling    = 1024
	irqBase       = 32
	numUsableIRQs = irqCeiling - irqBase
)
