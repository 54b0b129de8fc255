// bootfs inspects an SD card image (or the card device itself) with the same
// parsing stack the chainloader runs on hardware: it prints the partition
// table, mounts the first FAT32 partition and can extract a file from its
// root directory.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/bootmedia/chainload/boot"
	"github.com/bootmedia/chainload/diskimg"
	"github.com/bootmedia/chainload/fat32"
	"github.com/bootmedia/chainload/humanize"
	"github.com/bootmedia/chainload/mbr"
)

func main() {
	var (
		extract = pflag.String("extract",
			"",
			"8.3 name of a root-directory file to extract (e.g. kernel7l.img)")
		out = pflag.String("out",
			"",
			"destination path for --extract (defaults to the file name)")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <image-or-device>\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}

	if err := inspect(pflag.Arg(0), *extract, *out); err != nil {
		log.Fatal(err)
	}
}

func inspect(path, extract, out string) error {
	img, err := diskimg.Open(afero.NewOsFs(), path)
	if err != nil {
		return err
	}
	defer img.Close()

	size := img.Size()
	if size == 0 {
		// Block devices report a zero Stat size.
		if devSize, ok := deviceSize(path); ok {
			size = devSize
		}
	}
	fmt.Printf("%s: %s\n", path, humanize.Bytes(uint64(size)))

	var sector [512]byte
	if err := img.ReadBlock(0, &sector); err != nil {
		return err
	}
	table := mbr.ParseTable(&sector)
	for i, e := range table {
		if e.Type() == 0 {
			fmt.Printf("  part %d: (empty)\n", i+1)
			continue
		}
		fmt.Printf("  part %d: type 0x%02x, start sector %d, %s\n",
			i+1, e.Type(), e.StartLBA(), humanize.Sectors(uint64(e.Sectors())))
	}

	entry, err := table.Find(mbr.TypeFAT32LBA)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fs, err := fat32.Mount(img, entry.StartLBA())
	if err != nil {
		return err
	}
	fmt.Printf("FAT32 partition at sector %d: %d sectors per cluster, data region at sector %d\n",
		entry.StartLBA(), fs.SectorsPerCluster(), fs.DataStart())

	if extract == "" {
		cluster, size, err := fs.FindFile(boot.KernelName)
		if err != nil {
			return fmt.Errorf("kernel image: %w", err)
		}
		fmt.Printf("kernel image: cluster %d, %s\n", cluster, humanize.Bytes(uint64(size)))
		return nil
	}

	name11, ok := fat32.ShortName(extract)
	if !ok {
		return fmt.Errorf("%q does not fit the 8.3 short name format", extract)
	}
	cluster, fileSize, err := fs.FindFile(name11)
	if err != nil {
		return fmt.Errorf("%s: %w", extract, err)
	}
	buf := make([]byte, fileSize)
	if err := fs.LoadFile(cluster, fileSize, buf); err != nil {
		return fmt.Errorf("%s: %w", extract, err)
	}

	if out == "" {
		out = strings.ToLower(filepath.Base(extract))
	}
	if err := os.WriteFile(out, buf, 0644); err != nil {
		return err
	}
	fmt.Printf("extracted %s (%s) to %s\n", extract, humanize.Bytes(uint64(fileSize)), out)
	return nil
}
