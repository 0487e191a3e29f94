package spdo

import (
	"github.com/samsamfire/goopensafety/pkg/frame"
	"github.com/samsamfire/goopensafety/pkg/serr"
	log "github.com/sirupsen/logrus"
)

// TimeSyncState of the time synchronization consumer of an RxSPDO
type TimeSyncState uint8

const (
	TimeSyncSendRequest TimeSyncState = iota
	TimeSyncAwaitResponse
	TimeSyncWaitNextSync
	TimeSyncWaitNextBlock
)

var timeSyncStateNames = map[TimeSyncState]string{
	TimeSyncSendRequest:   "SEND_REQUEST",
	TimeSyncAwaitResponse: "AWAIT_RESPONSE",
	TimeSyncWaitNextSync:  "WAIT_FOR_NEXT_TIME_SYNC",
	TimeSyncWaitNextBlock: "WAIT_FOR_NEXT_REQUEST_BLOCK",
}

func (state TimeSyncState) String() string {
	name, ok := timeSyncStateNames[state]
	if !ok {
		return "UNKNOWN"
	}
	return name
}

type tsyncConsumer struct {
	state         TimeSyncState
	seq           uint8 // next sequence number to send
	firstSeq      uint8 // first sequence number of the current block
	consecSent    uint8
	notAnswered   uint16
	sendTicks     [frame.TRModulo]uint32
	cycleDeadline uint32
	blockDeadline uint32
	syncDeadline  uint32
	propDeadline  uint32
}

func (t *tsyncConsumer) reset() {
	*t = tsyncConsumer{}
}

// restart goes back to sending requests, keeping the sequence number
// so that late responses of a previous block are never accepted
func (t *tsyncConsumer) restart() {
	t.state = TimeSyncSendRequest
	t.consecSent = 0
	t.notAnswered = 0
	t.firstSeq = t.seq
}

// inWindow returns true if seq was sent in the current block,
// i.e. lies in [firstSeq, seq) modulo the sequence number range
func (t *tsyncConsumer) inWindow(seq uint8) bool {
	width := (t.seq - t.firstSeq) % frame.TRModulo
	offset := (seq - t.firstSeq) % frame.TRModulo
	return offset < width
}

func (s *SPDO) setTimeSyncState(rx *RxSpdo, state TimeSyncState) {
	if rx.tsync.state != state {
		rx.logger.Debugf("time sync %v => %v", rx.tsync.state, state)
	}
	rx.tsync.state = state
}

// timeSyncFailed signals the consumer and restarts requesting
func (s *SPDO) timeSyncFailed(rx *RxSpdo, code serr.Code) {
	rx.logger.Warnf("time synchronization failed : %v", code)
	s.count(serr.StatTimeSyncFailed)
	s.report(serr.ClassMinor, code, uint32(rx.index))
	s.invalidate(rx)
}

// sendTimeRequest sends a time request through the paired TxSPDO.
// Returns false if the TxSPDO already sent this tick, no budget is left
// or sending failed.
func (s *SPDO) sendTimeRequest(rx *RxSpdo, now uint32, free *uint8) bool {
	if *free == 0 || rx.txIdx == NotFound {
		return false
	}
	tx := s.tx[rx.txIdx]
	if !tx.active || tx.sentThisTick(now) {
		return false
	}
	t := &rx.tsync
	f := frame.New(frame.IDTimeRequest, s.domain, tx.sadr, rx.params.sadr, tx.mapping.BuildPayload())
	if s.connectionValid(tx) {
		f.ID |= frame.IDConnectionValid
	}
	f.TR = t.seq % frame.TRModulo
	if !s.send(tx, now, f, false) {
		s.report(serr.ClassMinor, serr.CodeTReqSendFailed, uint32(rx.index))
		return false
	}
	*free--
	s.count(serr.StatTReqSent)
	t.sendTicks[f.TR] = now
	t.propDeadline = now + uint32(rx.params.maxTSyncPropDelay)
	t.seq = (t.seq + 1) % frame.TRModulo
	t.consecSent++
	t.notAnswered++
	rx.logger.WithFields(log.Fields{"tr": f.TR, "tx": rx.txIdx}).Debug("time request sent")
	return true
}

// startCycle starts a new synchronization cycle with its first block
func (s *SPDO) startCycle(rx *RxSpdo, now uint32) {
	t := &rx.tsync
	t.cycleDeadline = now + rx.params.tReqCycle
	t.firstSeq = t.seq
	t.consecSent = 0
	t.notAnswered = 0
}

// Time synchronization consumer state machine, on every tick
func (s *SPDO) timeSyncConsumerTick(rx *RxSpdo, now uint32, free *uint8) {
	t := &rx.tsync
	switch t.state {

	case TimeSyncSendRequest:
		seq := t.seq
		cycleDeadline := t.cycleDeadline
		s.startCycle(rx, now)
		if s.sendTimeRequest(rx, now, free) {
			s.setTimeSyncState(rx, TimeSyncAwaitResponse)
			return
		}
		t.cycleDeadline = cycleDeadline
		t.firstSeq = seq

	case TimeSyncAwaitResponse:
		if elapsed(now, t.cycleDeadline) {
			s.timeSyncFailed(rx, serr.CodeTReqExpired)
			return
		}
		if t.notAnswered >= s.config.MaxNotAnsweredTReq {
			s.timeSyncFailed(rx, serr.CodeTReqNotAnswered)
			return
		}
		if t.consecSent >= rx.params.nbConsecTReq {
			if elapsed(now, t.propDeadline) {
				t.blockDeadline = now + rx.params.timeDelayTReq
				s.setTimeSyncState(rx, TimeSyncWaitNextBlock)
			}
			return
		}
		s.sendTimeRequest(rx, now, free)

	case TimeSyncWaitNextBlock:
		if elapsed(now, t.cycleDeadline) {
			s.timeSyncFailed(rx, serr.CodeTReqExpired)
			return
		}
		if !elapsed(now, t.blockDeadline) {
			return
		}
		seq := t.seq
		t.firstSeq = t.seq
		t.consecSent = 0
		if s.sendTimeRequest(rx, now, free) {
			s.setTimeSyncState(rx, TimeSyncAwaitResponse)
			return
		}
		t.firstSeq = seq

	case TimeSyncWaitNextSync:
		if !elapsed(now, t.syncDeadline) {
			return
		}
		s.startCycle(rx, now)
		if s.sendTimeRequest(rx, now, free) {
			s.setTimeSyncState(rx, TimeSyncAwaitResponse)
		} else {
			s.setTimeSyncState(rx, TimeSyncSendRequest)
		}
	}
}

// Time synchronization consumer state machine, on reception of a time
// response from the producer of this RxSPDO.
func (s *SPDO) timeSyncConsumerResponse(rx *RxSpdo, now uint32, f *frame.Frame, ct uint64) {
	t := &rx.tsync
	s.count(serr.StatTResReceived)

	if rx.txIdx == NotFound || f.Target != s.tx[rx.txIdx].sadr {
		// Response to another consumer of the same producer
		s.count(serr.StatTResWrongTarget)
		return
	}

	switch t.state {
	case TimeSyncWaitNextSync:
		// Further responses of an already successful block
		return
	case TimeSyncSendRequest, TimeSyncWaitNextBlock:
		s.count(serr.StatTResUnexpected)
		s.report(serr.ClassMinor, serr.CodeTResUnexpected, uint32(rx.index))
		return
	}

	seq := f.Sequence()
	if !t.inWindow(seq) {
		rx.logger.WithFields(log.Fields{"tr": seq, "first": t.firstSeq, "next": t.seq}).Warn("time response out of window")
		s.count(serr.StatTResSequence)
		s.report(serr.ClassMinor, serr.CodeTResSequence, uint32(rx.index))
		return
	}

	sendTick := t.sendTicks[seq]
	roundTrip := since(now, sendTick)
	switch {
	case roundTrip < uint32(rx.params.minTSyncPropDelay):
		s.count(serr.StatTResTooShort)
		s.timeSyncFailed(rx, serr.CodeTResTooShort)

	case roundTrip <= rx.params.safeReactionTime()+uint32(rx.params.bestCaseTResDelay):
		s.count(serr.StatTimeSyncOk)
		rx.timeSynchronized(sendTick+uint32(rx.params.bestCaseTResDelay), ct, roundTrip)
		t.consecSent = 0
		t.notAnswered = 0
		t.syncDeadline = now + rx.params.timeDelaySync
		s.setTimeSyncState(rx, TimeSyncWaitNextSync)

	default:
		rx.logger.WithField("delay", roundTrip).Warn("time response too late")
		s.count(serr.StatTResTooLate)
		s.report(serr.ClassMinor, serr.CodeTResTooLate, uint32(rx.index))
	}
}
