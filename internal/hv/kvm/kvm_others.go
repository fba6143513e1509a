//go:build linux && !arm64

package kvm

// initVCPU has no arch-specific setup outside arm64.
func (vm *VirtualMachine) initVCPU(vcpuFd int) error {
	return nil
}
