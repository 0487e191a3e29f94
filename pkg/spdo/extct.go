package spdo

import (
	"github.com/samsamfire/goopensafety/pkg/frame"
)

const (
	ctMask16 = uint64(0xFFFF)
	ctMask40 = uint64(1)<<40 - 1
)

// ctClock produces the consecutive time put in sent frames.
// The 40 bit value extends the uint32 tick with a wrap counter.
type ctClock struct {
	extended bool
	started  bool
	lastTick uint32
	wraps    uint64
}

func (c *ctClock) reset(now uint32) {
	c.started = true
	c.lastTick = now
	c.wraps = 0
}

func (c *ctClock) value(now uint32) uint64 {
	if !c.started {
		c.reset(now)
	}
	if now < c.lastTick {
		c.wraps++
	}
	c.lastTick = now
	return ((c.wraps << 32) | uint64(now)) & ctMask40
}

// stamp sets the CT fields of a frame to be sent
func (c *ctClock) stamp(f *frame.Frame, now uint32) {
	ct := c.value(now)
	if c.extended {
		f.SetCT40(ct)
		return
	}
	f.CT = uint16(ct)
}

// Extended CT mode of a producer, as seen by the consumer.
// The mode is learnt from the first data only frame.
type extCtState struct {
	unknown bool
	used    bool
}

func (e *extCtState) reset() {
	e.unknown = true
	e.used = false
}

func (e *extCtState) mask() uint64 {
	if e.used {
		return ctMask40
	}
	return ctMask16
}

// ctOf returns the consecutive time carried by a received frame
func ctOf(f *frame.Frame, extended bool) uint64 {
	if extended && f.ExtCtPresent() && f.ExtCtValid() {
		return f.CT40()
	}
	return uint64(f.CT)
}

// ctIncreasing returns true if ct is strictly after last,
// i.e. less than half of the counter range ahead.
func ctIncreasing(ct uint64, last uint64, mask uint64) bool {
	diff := (ct - last) & mask
	return diff != 0 && diff <= mask>>1
}
