// Package emmc drives the SD/eMMC host controller of the BCM2710 family just
// far enough to read single 512-byte blocks: power sequencing through the
// firmware mailbox, pin function setup, controller reset, identification
// clock bring-up and the SD card initialization handshake. Everything is
// polled; no interrupts are serviced and exactly one command is in flight at
// a time.
package emmc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/bootmedia/chainload/mailbox"
	"github.com/bootmedia/chainload/regs"
	"github.com/bootmedia/chainload/signal"
)

// Register offsets from the EMMC base.
const (
	regArg2       = 0x00
	regBlkSizeCnt = 0x04
	regArg1       = 0x08
	regCmdTM      = 0x0C
	regResp0      = 0x10
	regData       = 0x20
	regStatus     = 0x24
	regControl0   = 0x28
	regControl1   = 0x2C
	regInterrupt  = 0x30
	regIrptMask   = 0x34
	regIrptEn     = 0x38
	regControl2   = 0x3C
)

// CONTROL1 bits.
const (
	ctrl1ClockIntEn  = 1 << 2
	ctrl1ClockStable = 1 << 1
	ctrl1ClockEn     = 1 << 5
	ctrl1ResetHost   = 1 << 24

	// Divider 128 on the identification clock: slow but safe across cards.
	clockDividerIdent = 0x80 << 8
)

// INTERRUPT bits. Writing a bit clears it.
const (
	intCmdDone   = 1 << 0
	intReadReady = 1 << 5
)

// CMDTM is composed of the 6-bit command index and a response-type flag.
const cmdResponse48 = 2 << 16

// SD command indices.
const (
	cmdGoIdleState     = 0
	cmdSendIfCond      = 8
	cmdSetBlocklen     = 16
	cmdReadSingleBlock = 17
	cmdAppSendOpCond   = 41
	cmdAppCmd          = 55
)

// GPIO registers used for the six SD data/clock/command lines (GPIO48..53).
const (
	gpfsel4   = 0x10
	gpfsel5   = 0x14
	gppud     = 0x94
	gppudclk1 = 0x9C
)

// Poll budgets, expressed in elapsed-millisecond terms rather than
// instruction counts so they stay adjustable across silicon revisions.
const (
	resetPolls       = 100  // x 1ms
	clockStablePolls = 100  // x 1ms
	commandPolls     = 1000 // x 1ms
	dataReadyPolls   = 1000 // x 1ms
	acmd41Attempts   = 1000
)

var (
	// ErrResetTimeout means the controller never cleared its soft-reset bit.
	ErrResetTimeout = errors.New("emmc: controller reset did not complete")

	// ErrClockStabilization means the internal clock never reported stable.
	ErrClockStabilization = errors.New("emmc: clock failed to stabilize")

	// ErrVoltageMismatch means the card did not echo the SEND_IF_COND check
	// pattern, i.e. it does not support the required interface voltage.
	ErrVoltageMismatch = errors.New("emmc: card voltage check failed")

	// ErrCardInitTimeout means the card stayed busy through the whole
	// ACMD41 polling budget.
	ErrCardInitTimeout = errors.New("emmc: card initialization timed out")

	// ErrCommandTimeout means the command-complete interrupt bit was never
	// observed for an issued command.
	ErrCommandTimeout = errors.New("emmc: command did not complete")

	// ErrDataTimeout means the data-ready interrupt bit was never observed
	// for a block read.
	ErrDataTimeout = errors.New("emmc: block read data never became ready")
)

// Config carries the hardware seams of the driver. Regs is required; Delay
// defaults to time.Sleep and exists so tests can run the timeout budgets
// instantly. Signal, when set, receives the per-step blink codes of the
// bring-up sequence. Buf is the mailbox property buffer; the platform fills
// in its bus address.
type Config struct {
	Regs   regs.Backend
	Delay  func(time.Duration)
	Signal *signal.Signaler
	Buf    *mailbox.Buffer
}

// Controller is the SD/eMMC host controller. It holds no software state
// beyond the latched addressing mode of the card; everything else lives in
// hardware register bits.
type Controller struct {
	emmc  regs.Region
	gpio  regs.Region
	mb    *mailbox.Mailbox
	buf   *mailbox.Buffer
	delay func(time.Duration)
	sig   *signal.Signaler

	highCapacity bool
}

func New(cfg Config) *Controller {
	if cfg.Delay == nil {
		cfg.Delay = time.Sleep
	}
	if cfg.Buf == nil {
		cfg.Buf = &mailbox.Buffer{}
	}
	return &Controller{
		emmc:  regs.NewRegion(cfg.Regs, regs.EMMCBase),
		gpio:  regs.NewRegion(cfg.Regs, regs.GPIOBase),
		mb:    mailbox.New(cfg.Regs),
		buf:   cfg.Buf,
		delay: cfg.Delay,
		sig:   cfg.Signal,
	}
}

// HighCapacity reports whether the attached card is block-addressed (SDHC or
// larger) rather than byte-addressed. Latched during Init.
func (c *Controller) HighCapacity() bool {
	return c.highCapacity
}

func (c *Controller) step(code int) {
	if c.sig != nil {
		c.sig.Blink(code)
	}
}

func (c *Controller) fault(code int) {
	if c.sig != nil {
		c.sig.BlinkFast(code)
	}
}

// Init walks the card from powered-off to ready for block reads. Every
// failure is terminal for the boot attempt; the bounded polling loops inside
// are part of the normal protocol, not error retries.
func (c *Controller) Init() error {
	if err := mailbox.PowerOnSD(c.mb, c.buf); err != nil {
		c.fault(1)
		return fmt.Errorf("power on SD domain: %w", err)
	}

	c.gpioInit()
	c.step(4)

	// Full controller reset: everything masked, nothing enabled.
	c.emmc.Write32(regControl1, ctrl1ResetHost)
	c.emmc.Write32(regControl2, 0)
	c.emmc.Write32(regInterrupt, 0xFFFFFFFF)
	c.emmc.Write32(regIrptEn, 0)
	c.emmc.Write32(regIrptMask, 0xFFFFFFFF)
	c.delay(10 * time.Millisecond)

	if !c.pollClear(regControl1, ctrl1ResetHost, resetPolls) {
		c.fault(2)
		return ErrResetTimeout
	}
	c.step(5)

	// Identification clock: program the divider, enable the internal clock,
	// then wait for the stable bit.
	c1 := c.emmc.Read32(regControl1)
	c1 &^= 0xFF00
	c1 |= clockDividerIdent | ctrl1ClockIntEn
	c.emmc.Write32(regControl1, c1)

	if !c.pollSet(regControl1, ctrl1ClockStable, clockStablePolls) {
		c.fault(5)
		return ErrClockStabilization
	}
	c.step(6)

	c1 |= ctrl1ClockEn
	c.emmc.Write32(regControl1, c1)
	c.delay(10 * time.Millisecond)
	c.step(7)

	if err := c.command(cmdGoIdleState, 0, false); err != nil {
		return err
	}
	c.step(8)

	// Voltage check: the card must echo the 0xAA pattern byte.
	if err := c.command(cmdSendIfCond, 0x1AA, true); err != nil {
		return err
	}
	if c.emmc.Read32(regResp0)&0xFF != 0xAA {
		c.fault(3)
		return ErrVoltageMismatch
	}
	c.step(9)

	// ACMD41: poll the operating-condition register until the card leaves
	// busy, requesting high-capacity support.
	var resp uint32
	ready := false
	for attempt := 0; attempt < acmd41Attempts; attempt++ {
		if err := c.command(cmdAppCmd, 0, true); err != nil {
			return err
		}
		if err := c.command(cmdAppSendOpCond, 0x40000000, true); err != nil {
			return err
		}
		resp = c.emmc.Read32(regResp0)
		if resp&(1<<31) != 0 {
			ready = true
			break
		}
		c.delay(1 * time.Millisecond)
	}
	if !ready {
		c.fault(4)
		return ErrCardInitTimeout
	}
	c.step(10)

	c.highCapacity = resp&(1<<30) != 0

	if err := c.command(cmdSetBlocklen, 512, true); err != nil {
		return err
	}
	c.step(11)

	return nil
}

// gpioInit selects ALT3 on GPIO48..53 and runs the pull-up latch sequence:
// program the pull control, pulse the pin clock, clear it again.
func (c *Controller) gpioInit() {
	sel4 := c.gpio.Read32(gpfsel4)
	sel5 := c.gpio.Read32(gpfsel5)

	sel4 &^= (7 << 24) | (7 << 27)
	sel5 &^= (7 << 0) | (7 << 3) | (7 << 6) | (7 << 9)

	sel4 |= (7 << 24) | (7 << 27)
	sel5 |= (7 << 0) | (7 << 3) | (7 << 6) | (7 << 9)

	c.gpio.Write32(gpfsel4, sel4)
	c.gpio.Write32(gpfsel5, sel5)

	c.gpio.Write32(gppud, 2) // enable pull-up
	c.delay(1 * time.Millisecond)
	c.gpio.Write32(gppudclk1, 0x3F<<16) // latch GPIO48..53
	c.delay(1 * time.Millisecond)
	c.gpio.Write32(gppudclk1, 0)
}

func (c *Controller) pollSet(off, mask uint32, budget int) bool {
	for i := 0; i < budget; i++ {
		if c.emmc.Read32(off)&mask != 0 {
			return true
		}
		c.delay(1 * time.Millisecond)
	}
	return false
}

func (c *Controller) pollClear(off, mask uint32, budget int) bool {
	for i := 0; i < budget; i++ {
		if c.emmc.Read32(off)&mask == 0 {
			return true
		}
		c.delay(1 * time.Millisecond)
	}
	return false
}

// command issues a single command and waits for its completion interrupt.
// Pending interrupt flags are cleared first; the completion bit is cleared
// before returning.
func (c *Controller) command(idx uint32, arg uint32, resp48 bool) error {
	c.emmc.Write32(regInterrupt, 0xFFFFFFFF)
	c.emmc.Write32(regArg1, arg)

	val := idx & 0x3F
	if resp48 {
		val |= cmdResponse48
	}
	c.emmc.Write32(regCmdTM, val)

	if !c.pollSet(regInterrupt, intCmdDone, commandPolls) {
		return fmt.Errorf("CMD%d: %w", idx, ErrCommandTimeout)
	}
	c.emmc.Write32(regInterrupt, intCmdDone)
	return nil
}

// ReadBlock reads the single 512-byte sector at lba into buf. The controller
// is programmed for exactly one 512-byte transfer and the data FIFO is
// drained as 128 32-bit words; there are no partial or multi-block reads.
func (c *Controller) ReadBlock(lba uint32, buf *[512]byte) error {
	c.emmc.Write32(regInterrupt, 0xFFFFFFFF)
	c.emmc.Write32(regBlkSizeCnt, 1<<16|512)

	if err := c.command(cmdReadSingleBlock, lba, true); err != nil {
		return err
	}

	if !c.pollSet(regInterrupt, intReadReady, dataReadyPolls) {
		return fmt.Errorf("read block %d: %w", lba, ErrDataTimeout)
	}

	for i := 0; i < 128; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], c.emmc.Read32(regData))
	}

	c.emmc.Write32(regInterrupt, 0xffff0001)
	return nil
}
