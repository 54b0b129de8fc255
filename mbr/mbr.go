// Package mbr provides a minimal reader for the partition table in a Master
// Boot Record, just enough for the chainloader to locate the FAT32 boot
// partition on sector 0 of the card.
package mbr

import (
	"encoding/binary"
	"errors"
)

const (
	tableOffset = 446 // partition table entries start after the boot code
	entryLen    = 16
	numEntries  = 4
)

// Partition types this module cares about.
const (
	TypeFAT32LBA = 0x0C
	TypeLinux    = 0x83
)

// ErrNotFound means no table entry carries the requested type byte. This is
// a normal, expected outcome the caller must handle, not an anomaly.
var ErrNotFound = errors.New("mbr: no partition with requested type")

// BlockReader reads single 512-byte sectors by logical block address.
type BlockReader interface {
	ReadBlock(lba uint32, buf *[512]byte) error
}

// Entry is one of the four fixed-layout partition table entries.
type Entry struct {
	data [entryLen]byte
}

// Type returns the partition type byte (e.g. 0x0C for FAT32 LBA).
func (e Entry) Type() byte {
	return e.data[4]
}

// StartLBA returns the first sector of the partition, relative to the start
// of the medium.
func (e Entry) StartLBA() uint32 {
	return binary.LittleEndian.Uint32(e.data[8:12])
}

// Sectors returns the partition length in sectors.
func (e Entry) Sectors() uint32 {
	return binary.LittleEndian.Uint32(e.data[12:16])
}

// Table is the 4-entry partition table of sector 0, in on-disk order.
type Table [numEntries]Entry

// ParseTable extracts the partition table from a copy of sector 0. The boot
// signature word is deliberately not validated.
func ParseTable(sector *[512]byte) Table {
	var t Table
	for i := range t {
		copy(t[i].data[:], sector[tableOffset+i*entryLen:tableOffset+(i+1)*entryLen])
	}
	return t
}

// Find returns the first entry whose type byte equals typ. Entries after the
// first match are never considered.
func (t Table) Find(typ byte) (Entry, error) {
	for _, e := range t {
		if e.Type() == typ {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}

// FindPartition reads sector 0 from r and returns the starting LBA of the
// first partition of the given type.
func FindPartition(r BlockReader, typ byte) (uint32, error) {
	var sector [512]byte
	if err := r.ReadBlock(0, &sector); err != nil {
		return 0, err
	}
	e, err := ParseTable(&sector).Find(typ)
	if err != nil {
		return 0, err
	}
	return e.StartLBA(), nil
}
