package spdo

import (
	"github.com/samsamfire/goopensafety/pkg/frame"
	"github.com/samsamfire/goopensafety/pkg/serr"
	log "github.com/sirupsen/logrus"
)

// ProcessRxFrame decodes a raw frame received from the network and
// processes it. Frames failing the structural checks are counted and dropped.
func (s *SPDO) ProcessRxFrame(now uint32, data []byte) bool {
	f, err := frame.Decode(data)
	if err != nil {
		s.logger.Debugf("dropping frame : %v", err)
		s.count(serr.StatDecodeFailure)
		return false
	}
	return s.ProcessFrame(now, f)
}

// ProcessFrame routes a received SPDO frame to the state machines of the
// objects it is addressed to. Returns true if any of them accepted it.
func (s *SPDO) ProcessFrame(now uint32, f *frame.Frame) bool {
	s.lock()
	defer s.unlock()
	if !s.active.Load() {
		return false
	}
	s.count(serr.StatRxFrames)
	if f.Domain != s.domain {
		s.count(serr.StatDomainMismatch)
		return false
	}
	s.logger.WithField("frame", f.Header).Debug("received")

	switch f.Type() {
	case frame.IDTimeRequest:
		mapped := false
		accepted := false
		txIdx := s.addresses.LookupTxIndexForTargetAddress(f.Target)
		if txIdx != NotFound && s.tx[txIdx].active {
			mapped = true
			accepted = s.timeSyncProducerRequest(s.tx[txIdx], f)
		}
		// The requester also sends its own process data
		if rx := s.rxForSource(f.Source); rx != nil {
			mapped = true
			if ct, ok := s.checkCt(rx, f, false); ok {
				accepted = s.consume(rx, now, f, ct) || accepted
			}
		}
		if !mapped {
			s.count(serr.StatUnmappedAddress)
		}
		return accepted

	case frame.IDTimeResponse:
		rx := s.rxForSource(f.Source)
		if rx == nil {
			s.count(serr.StatUnmappedAddress)
			return false
		}
		ct, ok := s.checkCt(rx, f, false)
		if !ok {
			return false
		}
		s.timeSyncConsumerResponse(rx, now, f, ct)
		return s.consume(rx, now, f, ct)

	case frame.IDDataOnly:
		rx := s.rxForSource(f.Source)
		if rx == nil {
			s.count(serr.StatUnmappedAddress)
			return false
		}
		ct, ok := s.checkCt(rx, f, true)
		if !ok {
			return false
		}
		return s.consume(rx, now, f, ct)

	default:
		s.logger.WithField("id", f.ID).Error("unknown frame type")
		s.report(serr.ClassFatal, serr.CodeUnknownFrameType, uint32(f.ID))
		return false
	}
}

func (s *SPDO) rxForSource(address uint16) *RxSpdo {
	rxIdx := s.addresses.LookupRxIndexForSourceAddress(address)
	if rxIdx == NotFound || !s.rx[rxIdx].active {
		return nil
	}
	return s.rx[rxIdx]
}

// checkCt handles the extended CT mode of the producer then checks that
// the CT of the frame is after the last accepted one
func (s *SPDO) checkCt(rx *RxSpdo, f *frame.Frame, dataOnly bool) (uint64, bool) {
	if s.config.ExtendedCT {
		ext := &rx.consumer.ext
		if dataOnly && ext.unknown {
			ext.unknown = false
			ext.used = f.ExtCtPresent()
			rx.logger.Debugf("producer extended CT : %v", ext.used)
		}
		if !ext.unknown {
			switch {
			case f.ExtCtPresent() != ext.used:
				s.count(serr.StatExtCt)
				s.report(serr.ClassMinor, serr.CodeExtCtMismatch, uint32(rx.index))
				return 0, false
			case ext.used && !f.ExtCtValid():
				s.count(serr.StatExtCt)
				s.report(serr.ClassMinor, serr.CodeExtCtInvalid, uint32(rx.index))
				return 0, false
			}
		}
	}
	ct := ctOf(f, s.config.ExtendedCT)
	if !rx.ctValid(ct) {
		rx.logger.WithFields(log.Fields{"ct": ct, "last": rx.consumer.lastCT}).Debug("CT not increasing")
		s.count(serr.StatCtInvalid)
		return 0, false
	}
	return ct, true
}

// BuildTxFrames runs the sending state machines, time responses first,
// then time requests, then data. At most freeFrames frames are sent.
// Returns the number of free frames left.
func (s *SPDO) BuildTxFrames(now uint32, freeFrames uint8) uint8 {
	s.lock()
	defer s.unlock()
	if !s.active.Load() {
		return freeFrames
	}
	for _, tx := range s.tx {
		if tx.active {
			s.timeSyncProducerTick(tx, now, &freeFrames)
		}
	}
	for _, rx := range s.rx {
		if rx.active {
			s.timeSyncConsumerTick(rx, now, &freeFrames)
		}
	}
	for _, tx := range s.tx {
		if tx.active {
			s.producerTick(tx, now, &freeFrames)
		}
	}
	return freeFrames
}

// CheckRxTimeout runs the safety control timer of every RxSPDO
func (s *SPDO) CheckRxTimeout(now uint32) {
	s.lock()
	defer s.unlock()
	if !s.active.Load() {
		return
	}
	for _, rx := range s.rx {
		if rx.active {
			s.checkTimeout(rx, now)
		}
	}
}
