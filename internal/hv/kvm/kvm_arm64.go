//go:build linux && arm64

package kvm

import (
	"fmt"
	"unsafe"
)

// kvmVcpuInit mirrors struct kvm_vcpu_init.
type kvmVcpuInit struct {
	target   uint32
	features [7]uint32
}

func armPreferredTarget(vmFd int) (kvmVcpuInit, error) {
	var init kvmVcpuInit

	if _, err := ioctlWithRetry(uintptr(vmFd), uint64(kvmArmPreferredTarget), uintptr(unsafe.Pointer(&init))); err != nil {
		return kvmVcpuInit{}, err
	}

	return init, nil
}

func armVcpuInit(vcpuFd int, init *kvmVcpuInit) error {
	_, err := ioctlWithRetry(uintptr(vcpuFd), uint64(kvmArmVcpuInitIoctl), uintptr(unsafe.Pointer(init)))
	return err
}

// initVCPU brings a fresh vCPU to the kernel's preferred target so the vGIC
// can later be finalized against it.
func (vm *VirtualMachine) initVCPU(vcpuFd int) error {
	init, err := armPreferredTarget(vm.vmFd)
	if err != nil {
		return fmt.Errorf("kvm: preferred target: %w", err)
	}
	if err := armVcpuInit(vcpuFd, &init); err != nil {
		return fmt.Errorf("kvm: vCPU init: %w", err)
	}
	return nil
}
