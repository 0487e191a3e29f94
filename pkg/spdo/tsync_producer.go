package spdo

import (
	"github.com/samsamfire/goopensafety/pkg/frame"
	"github.com/samsamfire/goopensafety/pkg/serr"
)

// TimeResponseState of the time synchronization producer of a TxSPDO
type TimeResponseState uint8

const (
	TimeResponseWaitRequest TimeResponseState = iota
	TimeResponseSending
)

type tsyncProducer struct {
	state        TimeResponseState
	seq          uint8
	requester    uint16
	remaining    uint8
	startOfBlock bool
}

func (t *tsyncProducer) reset(nbTRes uint8) {
	*t = tsyncProducer{remaining: nbTRes}
}

// Time synchronization producer state machine, on reception of a time
// request addressed to this TxSPDO.
func (s *SPDO) timeSyncProducerRequest(tx *TxSpdo, f *frame.Frame) bool {
	t := &tx.tsync
	s.count(serr.StatTReqReceived)
	if tx.nbTRes == 0 {
		s.report(serr.ClassMinor, serr.CodeTxResponseCountZero, uint32(tx.index))
		return false
	}
	if t.state != TimeResponseWaitRequest {
		// Still answering the previous request
		return false
	}
	t.seq = f.Sequence()
	t.requester = f.Source
	t.remaining = tx.nbTRes
	t.startOfBlock = true
	t.state = TimeResponseSending
	tx.logger.Debugf("time request from x%x tr %v", f.Source, t.seq)
	return true
}

// Time synchronization producer state machine, on every tick
func (s *SPDO) timeSyncProducerTick(tx *TxSpdo, now uint32, free *uint8) {
	t := &tx.tsync
	if t.state != TimeResponseSending || *free == 0 || tx.sentThisTick(now) {
		return
	}
	f := frame.New(frame.IDTimeResponse, s.domain, tx.sadr, t.requester, tx.mapping.BuildPayload())
	if s.connectionValid(tx) {
		f.ID |= frame.IDConnectionValid
	}
	f.TR = t.seq
	if !s.send(tx, now, f, t.startOfBlock) {
		return
	}
	*free--
	s.count(serr.StatTResSent)
	t.startOfBlock = false
	t.remaining--
	if t.remaining == 0 {
		t.remaining = tx.nbTRes
		t.state = TimeResponseWaitRequest
	}
}
