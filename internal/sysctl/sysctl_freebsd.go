//go:build freebsd

package sysctl

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Name-to-OID lookup goes through the sysctl(3) meta node {0, 3}, the same
// way sysctlnametomib(3) does it.
const (
	ctlSysctl         = 0
	ctlSysctlName2OID = 3
	ctlMaxName        = 24
)

// Resolve looks up the MIB for a dotted sysctl name.
func Resolve(name string) (MIB, error) {
	if name == "" {
		return nil, errors.New("sysctl: empty name")
	}
	buf := make([]int32, ctlMaxName)
	n := uintptr(len(buf) * 4)
	p := []byte(name)
	query := []int32{ctlSysctl, ctlSysctlName2OID}
	if err := sysctl(query, (*byte)(unsafe.Pointer(&buf[0])), &n, &p[0], uintptr(len(p))); err != nil {
		return nil, err
	}
	return MIB(buf[:n/4]), nil
}

// ReadInt reads a C int valued node.
func ReadInt(mib MIB) (int, error) {
	var v int32
	n := uintptr(unsafe.Sizeof(v))
	if err := sysctl(mib, (*byte)(unsafe.Pointer(&v)), &n, nil, 0); err != nil {
		return 0, err
	}
	if n != unsafe.Sizeof(v) {
		return 0, errors.Errorf("sysctl %v: unexpected value size %d", mib, n)
	}
	return int(v), nil
}

// WriteInt sets a C int valued node.
func WriteInt(mib MIB, v int) error {
	x := int32(v)
	return sysctl(mib, nil, nil, (*byte)(unsafe.Pointer(&x)), unsafe.Sizeof(x))
}

// Count reads an unsigned counter by name, e.g. kern.smp.cpus.
func Count(name string) (int, error) {
	n, err := unix.SysctlUint32(name)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func sysctl(mib []int32, old *byte, oldlen *uintptr, new *byte, newlen uintptr) error {
	if len(mib) == 0 {
		return errors.New("sysctl: empty mib")
	}
	_, _, e := unix.Syscall6(
		unix.SYS___SYSCTL,
		uintptr(unsafe.Pointer(&mib[0])),
		uintptr(len(mib)),
		uintptr(unsafe.Pointer(old)),
		uintptr(unsafe.Pointer(oldlen)),
		uintptr(unsafe.Pointer(new)),
		newlen,
	)
	if e != 0 {
		return e
	}
	return nil
}
