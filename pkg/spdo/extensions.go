package spdo

import (
	"github.com/samsamfire/goopensafety/pkg/sod"
)

// Rejects writes to the SPDO communication and mapping parameters while
// the subsystem is active, they are only read on activation.
type parameterGuard struct {
	spdo *SPDO
}

func (guard *parameterGuard) BeforeWrite(entry *sod.Entry, subIndex uint8, data []byte) error {
	if guard.spdo.Active() {
		return sod.ErrDataDevState
	}
	return nil
}

func (s *SPDO) protect(entry *sod.Entry) {
	if entry == nil || s.protected[entry.Index] {
		return
	}
	entry.AddExtension(&parameterGuard{spdo: s})
	s.protected[entry.Index] = true
}
