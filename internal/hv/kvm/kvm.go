//go:build linux

// Package kvm implements the hypervisor device ABI on Linux KVM.
package kvm

import (
	"fmt"
	"runtime"

	"github.com/tinyrange/microvm/internal/debug"
	hvpkg "github.com/tinyrange/microvm/internal/hv"
	"golang.org/x/sys/unix"
)

// Hypervisor wraps an open /dev/kvm handle.
type Hypervisor struct {
	fd int
}

// Open opens /dev/kvm and checks the stable API version.
func Open() (*Hypervisor, error) {
	fd, err := unix.Open("/dev/kvm", unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("kvm: open /dev/kvm: %w", err)
	}

	version, err := getApiVersion(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("kvm: get API version: %w", err)
	}
	if version != kvmApiVersion {
		unix.Close(fd)
		return nil, fmt.Errorf("kvm: unexpected API version %d, want %d", version, kvmApiVersion)
	}

	return &Hypervisor{fd: fd}, nil
}

func (hv *Hypervisor) Architecture() hvpkg.CpuArchitecture {
	switch runtime.GOARCH {
	case "arm64":
		return hvpkg.ArchitectureARM64
	case "amd64":
		return hvpkg.ArchitectureX86_64
	default:
		return hvpkg.ArchitectureInvalid
	}
}

func (hv *Hypervisor) Close() error {
	return unix.Close(hv.fd)
}

// NewVirtualMachine creates a bare VM handle. Memory and run-loop setup are
// the caller's concern; this handle only hosts vCPUs and auxiliary devices.
func (hv *Hypervisor) NewVirtualMachine() (*VirtualMachine, error) {
	vmFd, err := createVm(hv.fd)
	if err != nil {
		return nil, fmt.Errorf("kvm: create VM: %w", err)
	}

	debug.Writef("kvm hypervisor", "created VM fd=%d", vmFd)

	return &VirtualMachine{hv: hv, vmFd: vmFd}, nil
}

// VirtualMachine owns a VM file descriptor and the vCPU fds created for it.
type VirtualMachine struct {
	hv      *Hypervisor
	vmFd    int
	vcpuFds []int
}

// CreateVCPUs creates and initializes count vCPUs. On arm64 the in-kernel
// interrupt controller cannot be finalized until the vCPUs exist, so this
// must run before gic.New.
func (vm *VirtualMachine) CreateVCPUs(count int) error {
	for id := 0; id < count; id++ {
		fd, err := createVCPU(vm.vmFd, id)
		if err != nil {
			return fmt.Errorf("kvm: create vCPU %d: %w", id, err)
		}
		vm.vcpuFds = append(vm.vcpuFds, fd)

		if err := vm.initVCPU(fd); err != nil {
			return fmt.Errorf("kvm: init vCPU %d: %w", id, err)
		}
	}
	return nil
}

// CreateDevice implements hv.DeviceVM.
func (vm *VirtualMachine) CreateDevice(devType uint32) (hvpkg.Device, error) {
	args := kvmCreateDeviceArgs{Type: devType}

	if err := createDevice(vm.vmFd, &args); err != nil {
		debug.Writef("kvm vm", "create device type=%d failed: %v", devType, err)
		return nil, err
	}

	debug.Writef("kvm vm", "created device type=%d fd=%d", devType, args.Fd)

	return &device{fd: int(args.Fd)}, nil
}

func (vm *VirtualMachine) Close() error {
	var firstErr error
	for _, fd := range vm.vcpuFds {
		if err := unix.Close(fd); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	vm.vcpuFds = nil
	if err := unix.Close(vm.vmFd); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// device adapts a kernel device fd to hv.Device.
type device struct {
	fd int
}

func (d *device) SetAttr(attr hvpkg.DeviceAttr) error {
	devAttr := kvmDeviceAttr{
		Flags: attr.Flags,
		Group: attr.Group,
		Attr:  attr.Attr,
		Addr:  uint64(uintptr(attr.Data)),
	}
	return setDeviceAttr(d.fd, &devAttr)
}

func (d *device) GetAttr(attr hvpkg.DeviceAttr) error {
	devAttr := kvmDeviceAttr{
		Flags: attr.Flags,
		Group: attr.Group,
		Attr:  attr.Attr,
		Addr:  uint64(uintptr(attr.Data)),
	}
	return getDeviceAttr(d.fd, &devAttr)
}

func (d *device) Close() error {
	return unix.Close(d.fd)
}

var (
	_ hvpkg.DeviceVM = &VirtualMachine{}
	_ hvpkg.Device   = &device{}
)
