// Package mailbox implements the synchronous property-channel RPC to the
// VideoCore firmware. It is used for exactly the out-of-band actions that
// cannot be done by direct register poke: powering the SD domain and setting
// the EMMC clock rate.
package mailbox

import (
	"errors"

	"github.com/bootmedia/chainload/regs"
)

// Register offsets from the mailbox base.
const (
	regRead   = 0x00
	regStatus = 0x18
	regWrite  = 0x20
)

const (
	statusFull  = 0x80000000
	statusEmpty = 0x40000000
)

// ChannelProperty is the property tags channel (ARM -> VC).
const ChannelProperty = 8

const (
	requestMarker  = 0x00000000
	responseMarker = 0x80000000

	tagSetPower     = 0x00028001
	tagSetClockRate = 0x00038002
	tagLast         = 0x00000000

	deviceSD  = 0 // power domain id for the SD/eMMC slot
	clockEMMC = 1 // clock id for the EMMC controller

	initialClockHz = 400000
)

// spinBudget bounds the status polls so a wedged firmware shows up as an
// error instead of a hang. The real exchange completes within a handful of
// iterations.
const spinBudget = 1 << 20

var (
	// ErrNoResponse means the firmware never acknowledged the request or the
	// response marker was absent. Permanent for this boot attempt.
	ErrNoResponse = errors.New("mailbox: no response from firmware")

	// ErrPowerDomain means the firmware answered but the SD power domain did
	// not report powered. Permanent for this boot attempt.
	ErrPowerDomain = errors.New("mailbox: SD power domain did not power up")
)

// Buffer is a 16-word property message. The caller owns it exclusively for
// the duration of one Call. Addr is the bus address the firmware reads the
// words from; on hardware the platform derives it from the buffer location,
// in tests the fake backend captures it. It must be 16-byte aligned.
type Buffer struct {
	Words [16]uint32
	Addr  uint32
}

// Reset clears the message so the buffer can be refilled.
func (b *Buffer) Reset() {
	b.Words = [16]uint32{}
}

// Responded reports whether the firmware set the response marker.
func (b *Buffer) Responded() bool {
	return b.Words[1]&responseMarker != 0
}

// Mailbox drives the hardware mailbox registers.
type Mailbox struct {
	r regs.Region
}

func New(b regs.Backend) *Mailbox {
	return &Mailbox{r: regs.NewRegion(b, regs.MailboxBase)}
}

// Call submits buf on the given channel and waits for the matching response.
// Precondition: buf.Words[0] holds the total byte length and buf.Words[1] the
// request marker. On success the firmware has rewritten the words in place
// and set the response marker.
func (m *Mailbox) Call(channel uint32, buf *Buffer) error {
	// Wait until the mailbox accepts another message.
	for i := 0; ; i++ {
		if m.r.Read32(regStatus)&statusFull == 0 {
			break
		}
		if i >= spinBudget {
			return ErrNoResponse
		}
	}
	m.r.Write32(regWrite, (buf.Addr&^0xF)|(channel&0xF))

	// Read until a response tagged with our channel arrives.
	for i := 0; ; i++ {
		if i >= spinBudget {
			return ErrNoResponse
		}
		if m.r.Read32(regStatus)&statusEmpty != 0 {
			continue
		}
		if m.r.Read32(regRead)&0xF == channel&0xF {
			break
		}
	}

	if !buf.Responded() {
		return ErrNoResponse
	}
	return nil
}

// FillPowerOnSD fills buf with a single request carrying both bring-up tags:
// set-power-state for the SD domain (on, wait for stable) and set-clock-rate
// for the EMMC clock (400 kHz identification clock).
func FillPowerOnSD(buf *Buffer) {
	buf.Reset()

	buf.Words[0] = 15 * 4 // total size in bytes
	buf.Words[1] = requestMarker

	buf.Words[2] = tagSetPower
	buf.Words[3] = 8 // value buffer size
	buf.Words[4] = 8 // request/response size
	buf.Words[5] = deviceSD
	buf.Words[6] = 3 // bit0 = on, bit1 = wait for stable

	buf.Words[7] = tagSetClockRate
	buf.Words[8] = 12
	buf.Words[9] = 8
	buf.Words[10] = clockEMMC
	buf.Words[11] = initialClockHz
	buf.Words[12] = 0 // skip setting turbo

	buf.Words[13] = tagLast
}

// PowerOnSD powers the SD domain and programs the identification clock in one
// exchange. The powered bit in the set-power response word must come back
// set; a cleared bit is reported as ErrPowerDomain and is not retried.
func PowerOnSD(m *Mailbox, buf *Buffer) error {
	FillPowerOnSD(buf)
	if err := m.Call(ChannelProperty, buf); err != nil {
		return err
	}
	if buf.Words[6]&1 == 0 {
		return ErrPowerDomain
	}
	return nil
}
