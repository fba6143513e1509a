//go:build linux

package kvm

const (
	kvmApiVersion = 12

	kvmGetApiVersion      = 0xae00
	kvmCreateVm           = 0xae01
	kvmCheckExtension     = 0xae03
	kvmGetVcpuMmapSize    = 0xae04
	kvmCreateVcpu         = 0xae41
	kvmCreateDevice       = 0xc00caee0
	kvmSetDeviceAttr      = 0x4018aee1
	kvmGetDeviceAttr      = 0x4018aee2
	kvmHasDeviceAttr      = 0x4018aee3
	kvmArmVcpuInitIoctl   = 0x4020aeae
	kvmArmPreferredTarget = 0x8020aeaf
)
