// Package diskimg adapts a raw SD-card image file to the single-sector block
// reader the mbr and fat32 packages consume, so the same parsing stack that
// runs on hardware can be pointed at images on a host.
package diskimg

import (
	"fmt"
	"io"

	"github.com/spf13/afero"
)

const sectorSize = 512

// Image is a read-only block device backed by a file.
type Image struct {
	f    afero.File
	size int64
}

// Open opens the image at path on the given filesystem.
func Open(fs afero.Fs, path string) (*Image, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Image{f: f, size: fi.Size()}, nil
}

// ReadBlock reads the 512-byte sector at lba.
func (img *Image) ReadBlock(lba uint32, buf *[512]byte) error {
	if _, err := img.f.ReadAt(buf[:], int64(lba)*sectorSize); err != nil {
		if err == io.EOF {
			return fmt.Errorf("diskimg: sector %d beyond end of image", lba)
		}
		return err
	}
	return nil
}

// Size returns the image size in bytes.
func (img *Image) Size() int64 {
	return img.size
}

// Close closes the underlying file.
func (img *Image) Close() error {
	return img.f.Close()
}
