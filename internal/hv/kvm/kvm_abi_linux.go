//go:build linux

package kvm

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func ioctl(fd uintptr, request uint64, arg uintptr) (uintptr, error) {
	v1, _, err := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(request), arg)
	if err != 0 {
		return 0, err
	}
	return v1, nil
}

func ioctlWithRetry(fd uintptr, request uint64, arg uintptr) (uintptr, error) {
	for {
		v1, err := ioctl(fd, request, arg)
		if err == unix.EINTR {
			continue
		}
		return v1, err
	}
}

func ioctlInt(ioctl int) func(fd int) (int, error) {
	return func(fd int) (int, error) {
		v, err := ioctlWithRetry(uintptr(fd), uint64(ioctl), 0)
		if err != nil {
			return 0, err
		}
		return int(v), nil
	}
}

var (
	getApiVersion = ioctlInt(kvmGetApiVersion)
	createVm      = ioctlInt(kvmCreateVm)
)

func createVCPU(fd int, id int) (int, error) {
	v1, err := ioctlWithRetry(uintptr(fd), uint64(kvmCreateVcpu), uintptr(id))
	if err != nil {
		return 0, err
	}

	return int(v1), nil
}

// kvmCreateDeviceArgs mirrors struct kvm_create_device. The kernel fills Fd
// with the new device's file descriptor on success.
type kvmCreateDeviceArgs struct {
	Type  uint32
	Fd    uint32
	Flags uint32
}

func createDevice(vmFd int, args *kvmCreateDeviceArgs) error {
	_, err := ioctlWithRetry(uintptr(vmFd), uint64(kvmCreateDevice), uintptr(unsafe.Pointer(args)))
	return err
}

// kvmDeviceAttr mirrors struct kvm_device_attr. Field order matters.
type kvmDeviceAttr struct {
	Flags uint32
	Group uint32
	Attr  uint64
	Addr  uint64
}

func setDeviceAttr(fd int, attr *kvmDeviceAttr) error {
	_, err := ioctlWithRetry(uintptr(fd), uint64(kvmSetDeviceAttr), uintptr(unsafe.Pointer(attr)))
	return err
}

func getDeviceAttr(fd int, attr *kvmDeviceAttr) error {
	_, err := ioctlWithRetry(uintptr(fd), uint64(kvmGetDeviceAttr), uintptr(unsafe.Pointer(attr)))
	return err
}
