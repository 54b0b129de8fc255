// Package signal encodes boot progress and failure stages as blink patterns
// on a status LED. The LED pin driver itself lives outside this module; only
// the mapping from stage to pattern is defined here, since it is the single
// user-observable status channel of the boot path.
package signal

import "time"

// LED is the status pin. Implementations are expected to be plain register
// pokes with no failure mode.
type LED interface {
	On()
	Off()
}

// Stage identifies the boot stage a failure occurred in.
type Stage int

const (
	StageSDInit Stage = iota
	StagePartition
	StageMount
	StageFindFile
	StageLoad
)

// Blink counts per failed stage, one slow pattern per stage.
var stageCodes = map[Stage]int{
	StageSDInit:    3,
	StagePartition: 4,
	StageMount:     5,
	StageFindFile:  6,
	StageLoad:      7,
}

// StageCode returns the slow-blink count signalled when stage fails.
func StageCode(stage Stage) int {
	return stageCodes[stage]
}

const (
	slowPulse = 700 * time.Millisecond
	fastPulse = 200 * time.Millisecond
	longPulse = 1000 * time.Millisecond
	gapPulse  = 300 * time.Millisecond
)

// Signaler emits blink patterns with an injectable delay so tests do not
// spend wall-clock time.
type Signaler struct {
	led   LED
	delay func(time.Duration)
}

func New(led LED, delay func(time.Duration)) *Signaler {
	if delay == nil {
		delay = time.Sleep
	}
	return &Signaler{led: led, delay: delay}
}

func (s *Signaler) pulse(n int, width time.Duration) {
	for i := 0; i < n; i++ {
		s.led.On()
		s.delay(width)
		s.led.Off()
		s.delay(width)
	}
}

// Blink emits n slow pulses.
func (s *Signaler) Blink(n int) {
	s.pulse(n, slowPulse)
}

// BlinkFast emits n fast pulses.
func (s *Signaler) BlinkFast(n int) {
	s.pulse(n, fastPulse)
}

// Fail emits the slow-blink code for the given stage.
func (s *Signaler) Fail(stage Stage) {
	s.Blink(StageCode(stage))
}

// Success emits the long-short-long pattern reserved for a completed load.
func (s *Signaler) Success() {
	s.led.On()
	s.delay(longPulse)
	s.led.Off()
	s.delay(gapPulse)

	s.led.On()
	s.delay(gapPulse)
	s.led.Off()
	s.delay(gapPulse)

	s.led.On()
	s.delay(longPulse)
	s.led.Off()
}
