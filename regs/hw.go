package regs

import "unsafe"

// HW accesses registers through the physical address space directly. It is
// only meaningful on bare metal where the peripheral bus is identity-mapped
// and the region is configured as device memory; the platform startup code is
// responsible for any barriers stronger than the compiler ordering implied by
// the pointer accesses below.
type HW struct{}

func (HW) Read32(addr uint32) uint32 {
	return *(*uint32)(unsafe.Pointer(uintptr(addr)))
}

func (HW) Write32(addr uint32, val uint32) {
	*(*uint32)(unsafe.Pointer(uintptr(addr))) = val
}
