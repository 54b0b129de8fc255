// Package boot sequences the whole chainload: controller bring-up, MBR scan,
// FAT32 mount, kernel lookup, load and the final jump. Stages run strictly in
// order; the first failure emits its blink code and aborts the boot attempt
// with no retry and no fallback image.
package boot

import (
	"fmt"
	"time"

	"github.com/bootmedia/chainload/fat32"
	"github.com/bootmedia/chainload/mbr"
	"github.com/bootmedia/chainload/signal"
)

// KernelName is the padded 8.3 short name of the image to load
// (KERNEL7L.IMG on disk).
const KernelName = "KERNEL7LIMG"

// LoadAddr is the physical address the kernel image is loaded to and jumped
// to. The standard Linux load address; this loader itself must be linked
// elsewhere (e.g. 0x4000) to stay out of the way.
const LoadAddr = 0x8000

// Card is the storage device: one-time bring-up plus single-sector reads.
// *emmc.Controller satisfies it.
type Card interface {
	Init() error
	ReadBlock(lba uint32, buf *[512]byte) error
}

// Config wires the chainloader to its platform.
type Config struct {
	Card   Card
	Signal *signal.Signaler

	// Dest is the memory window mapped at LoadAddr the kernel image is
	// assembled into. Its length bounds the loadable image size.
	Dest []byte

	// Exec transfers control to the loaded image. It must not return.
	Exec func()

	// Delay paces the inter-stage settle waits. Defaults to time.Sleep.
	Delay func(time.Duration)
}

// Boot runs the full load-and-jump sequence. It returns only on failure,
// after emitting the stage's blink code; on success it never returns.
func (cfg Config) Boot() error {
	delay := cfg.Delay
	if delay == nil {
		delay = time.Sleep
	}
	settle := func() {
		delay(1 * time.Second)
		cfg.Signal.BlinkFast(2)
	}

	settle()
	if err := cfg.Card.Init(); err != nil {
		cfg.Signal.Fail(signal.StageSDInit)
		return fmt.Errorf("storage bring-up: %w", err)
	}

	settle()
	partLBA, err := mbr.FindPartition(cfg.Card, mbr.TypeFAT32LBA)
	if err != nil {
		cfg.Signal.Fail(signal.StagePartition)
		return fmt.Errorf("locating boot partition: %w", err)
	}

	settle()
	fs, err := fat32.Mount(cfg.Card, partLBA)
	if err != nil {
		cfg.Signal.Fail(signal.StageMount)
		return fmt.Errorf("mounting boot partition: %w", err)
	}

	settle()
	cluster, size, err := fs.FindFile(KernelName)
	if err != nil {
		cfg.Signal.Fail(signal.StageFindFile)
		return fmt.Errorf("locating kernel image: %w", err)
	}

	settle()
	if err := fs.LoadFile(cluster, size, cfg.Dest); err != nil {
		cfg.Signal.Fail(signal.StageLoad)
		return fmt.Errorf("loading kernel image: %w", err)
	}

	cfg.Signal.Success()
	delay(500 * time.Millisecond)
	cfg.Exec()
	panic("boot: Exec returned")
}
