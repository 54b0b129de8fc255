package mbr

import (
	"encoding/binary"
	"errors"
	"testing"
)

// sectorZero builds an MBR sector with the given (type, startLBA) entries in
// table order.
func sectorZero(entries ...[2]uint32) *[512]byte {
	var sector [512]byte
	for i, e := range entries {
		off := tableOffset + i*entryLen
		sector[off+4] = byte(e[0])
		binary.LittleEndian.PutUint32(sector[off+8:], e[1])
		binary.LittleEndian.PutUint32(sector[off+12:], 1024)
	}
	// Boot signature present but, per contract, never checked.
	sector[510] = 0x55
	sector[511] = 0xAA
	return &sector
}

type oneSector struct {
	sector *[512]byte
	err    error
}

func (r oneSector) ReadBlock(lba uint32, buf *[512]byte) error {
	if r.err != nil {
		return r.err
	}
	*buf = *r.sector
	return nil
}

func TestFindPartition(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name    string
		entries [][2]uint32
		typ     byte
		want    uint32
		wantErr error
	}{
		{
			name:    "fat32 at index 0",
			entries: [][2]uint32{{TypeFAT32LBA, 8192}, {TypeLinux, 1056768}},
			typ:     TypeFAT32LBA,
			want:    8192,
		},
		{
			name:    "fat32 at index 2",
			entries: [][2]uint32{{TypeLinux, 2048}, {0x00, 0}, {TypeFAT32LBA, 532480}},
			typ:     TypeFAT32LBA,
			want:    532480,
		},
		{
			name:    "fat32 at index 3",
			entries: [][2]uint32{{TypeLinux, 2048}, {0x07, 4096}, {0x00, 0}, {TypeFAT32LBA, 99}},
			typ:     TypeFAT32LBA,
			want:    99,
		},
		{
			// bootfs/rootfs/Musik layout: the first 0x0C entry wins, the
			// later FAT32 data partition is never considered.
			name: "first match is authoritative",
			entries: [][2]uint32{
				{TypeFAT32LBA, 8192},
				{TypeLinux, 1056768},
				{TypeFAT32LBA, 17827840},
			},
			typ:  TypeFAT32LBA,
			want: 8192,
		},
		{
			name:    "no matching type",
			entries: [][2]uint32{{TypeLinux, 2048}, {0x07, 4096}},
			typ:     TypeFAT32LBA,
			wantErr: ErrNotFound,
		},
		{
			name:    "empty table",
			entries: nil,
			typ:     TypeFAT32LBA,
			wantErr: ErrNotFound,
		},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			lba, err := FindPartition(oneSector{sector: sectorZero(tt.entries...)}, tt.typ)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("FindPartition error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && lba != tt.want {
				t.Fatalf("FindPartition = %d, want %d", lba, tt.want)
			}
		})
	}
}

func TestFindPartitionReadError(t *testing.T) {
	t.Parallel()

	readErr := errors.New("read failed")
	if _, err := FindPartition(oneSector{err: readErr}, TypeFAT32LBA); !errors.Is(err, readErr) {
		t.Fatalf("got %v, want read error to propagate", err)
	}
}

func TestEntryFields(t *testing.T) {
	t.Parallel()

	table := ParseTable(sectorZero([2]uint32{TypeFAT32LBA, 8192}))
	e := table[0]
	if got, want := e.Type(), byte(TypeFAT32LBA); got != want {
		t.Errorf("Type = %#x, want %#x", got, want)
	}
	if got, want := e.StartLBA(), uint32(8192); got != want {
		t.Errorf("StartLBA = %d, want %d", got, want)
	}
	if got, want := e.Sectors(), uint32(1024); got != want {
		t.Errorf("Sectors = %d, want %d", got, want)
	}
}
