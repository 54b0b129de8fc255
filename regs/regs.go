// Package regs provides volatile 32-bit register access over a base-plus-offset
// physical address space. All hardware access in this module goes through the
// Backend interface so that drivers can be exercised against an in-memory
// backend instead of real registers.
package regs

// Backend reads and writes 32-bit registers at physical bus addresses.
// Accesses are side-effecting and must not be cached or reordered.
type Backend interface {
	Read32(addr uint32) uint32
	Write32(addr uint32, val uint32)
}

// BCM2710 peripheral blocks (Raspberry Pi Zero 2 W). Porting to different
// hardware means changing these constants, not the drivers.
const (
	MMIOBase = 0x3F000000

	GPIOBase    = MMIOBase + 0x200000
	MailboxBase = MMIOBase + 0xB880
	EMMCBase    = MMIOBase + 0x300000
)

// Region is a view of a Backend anchored at a base address.
type Region struct {
	backend Backend
	base    uint32
}

func NewRegion(b Backend, base uint32) Region {
	return Region{backend: b, base: base}
}

// At returns the absolute address of the register at off.
func (r Region) At(off uint32) uint32 {
	return r.base + off
}

func (r Region) Read32(off uint32) uint32 {
	return r.backend.Read32(r.base + off)
}

func (r Region) Write32(off uint32, val uint32) {
	r.backend.Write32(r.base+off, val)
}

// Backend returns the underlying backend, for handing sub-regions to other
// drivers sharing the same bus.
func (r Region) Backend() Backend {
	return r.backend
}

// Mem is a map-backed Backend for tests. Unwritten registers read as zero.
type Mem struct {
	Regs map[uint32]uint32
}

func NewMem() *Mem {
	return &Mem{Regs: make(map[uint32]uint32)}
}

func (m *Mem) Read32(addr uint32) uint32 {
	return m.Regs[addr]
}

func (m *Mem) Write32(addr uint32, val uint32) {
	m.Regs[addr] = val
}
