// Package fat32 implements a minimal read-only FAT32 driver for the boot
// partition: boot parameter block parsing, root-directory lookup by 8.3
// short name and cluster-chain file loading. It operates on single 512-byte
// sector reads and allocates nothing on the load path beyond small
// fixed-size scratch sectors.
package fat32

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	sectorSize     = 512
	dirEntrySize   = 32
	entriesPerSec  = sectorSize / dirEntrySize
	fatEntriesPSec = sectorSize / 4

	// endOfChain is the smallest masked FAT entry value that terminates a
	// cluster chain.
	endOfChain = 0x0FFFFFF8

	// entryMask keeps the low 28 bits of a FAT32 entry; the top nibble
	// carries unrelated flags.
	entryMask = 0x0FFFFFFF

	// rootDirClusters bounds the root-directory scan. The original layout
	// guarantees the kernel entry within the first clusters of the root
	// directory; this is a documented limit of the driver, not a FAT32
	// property, and changing it changes boot behavior on edge-case
	// filesystems.
	rootDirClusters = 8
)

var (
	// ErrUnsupportedSectorSize rejects filesystems not formatted with
	// 512-byte sectors.
	ErrUnsupportedSectorSize = errors.New("fat32: unsupported sector size")

	// ErrNotFound means the directory scan ended without a name match.
	ErrNotFound = errors.New("fat32: file not found")

	// ErrCorruptChain means the cluster chain ended while bytes of the
	// recorded file size were still outstanding.
	ErrCorruptChain = errors.New("fat32: cluster chain shorter than file size")

	// ErrIO wraps block-read failures at any layer of the driver.
	ErrIO = errors.New("fat32: block read failed")
)

// BlockReader reads single 512-byte sectors by logical block address.
// It mainly exists to be able to mock the card in tests.
// Generated mock using mockgen:
//
//	mockgen -source=fat32.go -destination=blockreader_mock.go -package fat32
type BlockReader interface {
	ReadBlock(lba uint32, buf *[512]byte) error
}

// bpb is the fixed-layout FAT32 boot parameter block prefix.
type bpb struct {
	JumpBoot            [3]byte
	OEMName             [8]byte
	BytesPerSector      uint16
	SectorsPerCluster   uint8
	ReservedSectorCount uint16
	NumFATs             uint8
	RootEntryCount      uint16
	TotalSectors16      uint16
	Media               uint8
	FATSize16           uint16
	SectorsPerTrack     uint16
	NumberOfHeads       uint16
	HiddenSectors       uint32
	TotalSectors32      uint32
	FATSize32           uint32
}

// dirEntry is the fixed-size on-disk directory record.
type dirEntry struct {
	Name            [11]byte
	Attr            uint8
	NTReserved      uint8
	CreateTimeTenth uint8
	CreateTime      uint16
	CreateDate      uint16
	LastAccessDate  uint16
	FirstClusterHi  uint16
	WriteTime       uint16
	WriteDate       uint16
	FirstClusterLo  uint16
	FileSize        uint32
}

// FS carries the FAT geometry derived at mount time. It is read-only after
// Mount and threaded explicitly instead of living in package state.
type FS struct {
	r BlockReader

	partLBA           uint32
	sectorsPerCluster uint32
	fatStart          uint32 // first sector of the first FAT copy
	dataStart         uint32 // first sector of the data region (cluster 2)
}

// Mount reads the boot parameter block of the partition starting at partLBA
// and derives the FAT geometry. Sector sizes other than 512 are rejected
// before any further read.
func Mount(r BlockReader, partLBA uint32) (*FS, error) {
	var sector [512]byte
	if err := r.ReadBlock(partLBA, &sector); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	var b bpb
	if err := binary.Read(bytes.NewReader(sector[:]), binary.LittleEndian, &b); err != nil {
		return nil, err
	}

	if b.BytesPerSector != sectorSize {
		return nil, fmt.Errorf("%w: %d bytes per sector", ErrUnsupportedSectorSize, b.BytesPerSector)
	}
	if b.SectorsPerCluster == 0 {
		return nil, errors.New("fat32: zero sectors per cluster")
	}

	fatSize := uint32(b.FATSize16)
	if fatSize == 0 {
		fatSize = b.FATSize32
	}

	fs := &FS{
		r:                 r,
		partLBA:           partLBA,
		sectorsPerCluster: uint32(b.SectorsPerCluster),
		fatStart:          partLBA + uint32(b.ReservedSectorCount),
		dataStart:         partLBA + uint32(b.ReservedSectorCount) + uint32(b.NumFATs)*fatSize,
	}
	return fs, nil
}

// SectorsPerCluster returns the cluster size in sectors.
func (fs *FS) SectorsPerCluster() uint32 {
	return fs.sectorsPerCluster
}

// DataStart returns the first sector of the data region.
func (fs *FS) DataStart() uint32 {
	return fs.dataStart
}

// ClusterLBA returns the first sector of the given cluster. Cluster 2 is the
// first data cluster by FAT32 definition.
func (fs *FS) ClusterLBA(cluster uint32) uint32 {
	return fs.dataStart + (cluster-2)*fs.sectorsPerCluster
}

// FindFile scans the root directory for the given padded 11-byte short name
// (8 name + 3 extension, uppercase, space-padded, no dot) and returns the
// starting cluster and file size. The scan covers at most rootDirClusters
// clusters read contiguously from cluster 2; a first name byte of 0x00 ends
// the directory, 0xE5 marks a deleted entry to be skipped.
func (fs *FS) FindFile(name11 string) (cluster uint32, size uint32, err error) {
	if len(name11) != 11 {
		return 0, 0, fmt.Errorf("fat32: short name %q is not 11 bytes", name11)
	}

	var sector [512]byte
	for clusterOff := uint32(0); clusterOff < rootDirClusters; clusterOff++ {
		for s := uint32(0); s < fs.sectorsPerCluster; s++ {
			lba := fs.dataStart + clusterOff*fs.sectorsPerCluster + s
			if err := fs.r.ReadBlock(lba, &sector); err != nil {
				return 0, 0, fmt.Errorf("%w: %v", ErrIO, err)
			}

			for i := 0; i < entriesPerSec; i++ {
				raw := sector[i*dirEntrySize : (i+1)*dirEntrySize]
				switch raw[0] {
				case 0x00:
					return 0, 0, ErrNotFound
				case 0xE5:
					continue
				}
				if !bytes.Equal(raw[:11], []byte(name11)) {
					continue
				}

				var e dirEntry
				if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &e); err != nil {
					return 0, 0, err
				}
				cluster = uint32(e.FirstClusterHi)<<16 | uint32(e.FirstClusterLo)
				return cluster, e.FileSize, nil
			}
		}
	}
	return 0, 0, ErrNotFound
}

// LoadFile walks the cluster chain starting at cluster and assembles size
// bytes contiguously into dst. The walk stops as soon as the remaining byte
// count is satisfied; a chain that ends first is reported as ErrCorruptChain.
// Because every iteration consumes a full cluster of the remaining count, a
// crafted cyclic chain cannot extend the walk beyond ceil(size/clusterSize)
// clusters.
func (fs *FS) LoadFile(cluster uint32, size uint32, dst []byte) error {
	if uint32(len(dst)) < size {
		return fmt.Errorf("fat32: destination holds %d bytes, file has %d", len(dst), size)
	}

	clusterBytes := fs.sectorsPerCluster * sectorSize
	remaining := size
	offset := uint32(0)

	for remaining > 0 {
		lba := fs.ClusterLBA(cluster)

		toRead := remaining
		if toRead > clusterBytes {
			toRead = clusterBytes
		}
		if err := fs.readSectors(lba, dst[offset:], toRead); err != nil {
			return err
		}
		remaining -= toRead
		offset += toRead
		if remaining == 0 {
			break
		}

		next, err := fs.nextCluster(cluster)
		if err != nil {
			return err
		}
		if next >= endOfChain {
			return ErrCorruptChain
		}
		cluster = next
	}
	return nil
}

// readSectors reads n bytes starting at lba into dst, sector by sector. The
// final sector of a file may be partial; it is staged through a scratch
// buffer so only the requested bytes land in dst.
func (fs *FS) readSectors(lba uint32, dst []byte, n uint32) error {
	full := n / sectorSize
	for i := uint32(0); i < full; i++ {
		buf := (*[512]byte)(dst[i*sectorSize : i*sectorSize+sectorSize])
		if err := fs.r.ReadBlock(lba+i, buf); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
	}
	if tail := n % sectorSize; tail != 0 {
		var scratch [512]byte
		if err := fs.r.ReadBlock(lba+full, &scratch); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		copy(dst[full*sectorSize:n], scratch[:tail])
	}
	return nil
}

// nextCluster reads the FAT entry for cluster and returns the masked
// successor value. Entries are 4 bytes, packed 128 per sector.
func (fs *FS) nextCluster(cluster uint32) (uint32, error) {
	entryOff := cluster * 4
	var sector [512]byte
	if err := fs.r.ReadBlock(fs.fatStart+entryOff/sectorSize, &sector); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIO, err)
	}
	raw := binary.LittleEndian.Uint32(sector[entryOff%sectorSize:])
	return raw & entryMask, nil
}

// ShortName converts a dotted 8.3 name like "KERNEL7L.IMG" to the padded
// 11-byte on-disk form "KERNEL7LIMG". It reports false for names that do not
// fit the 8.3 format.
func ShortName(name string) (string, bool) {
	base := name
	ext := ""
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		base, ext = name[:idx], name[idx+1:]
	}
	if base == "" || len(base) > 8 || len(ext) > 3 {
		return "", false
	}
	padded := strings.ToUpper(base) + strings.Repeat(" ", 8-len(base)) +
		strings.ToUpper(ext) + strings.Repeat(" ", 3-len(ext))
	return padded, true
}
