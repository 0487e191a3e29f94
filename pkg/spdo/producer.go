package spdo

import (
	"github.com/samsamfire/goopensafety/pkg/frame"
	"github.com/samsamfire/goopensafety/pkg/serr"
	log "github.com/sirupsen/logrus"
)

type producer struct {
	newData         bool
	refreshDeadline uint32
	lastSent        uint32
	lastSentValid   bool
}

// TxSpdo is a producing SPDO together with its time response side
type TxSpdo struct {
	logger          *log.Entry
	index           uint16
	active          bool
	sadr            uint16
	refreshPrescale uint16
	nbTRes          uint8
	mapping         *Mapping
	consumers       []uint16 // RxSPDOs sending their time requests through this object
	producer        producer
	tsync           tsyncProducer
}

func newTxSpdo(index uint16, maxLength uint8, logger *log.Entry) *TxSpdo {
	tx := &TxSpdo{
		index:  index,
		logger: logger.WithField("tx", index),
	}
	tx.mapping = NewMapping(false, maxLength, tx.logger)
	return tx
}

func (tx *TxSpdo) reset(now uint32) {
	tx.producer = producer{refreshDeadline: now}
	tx.tsync.reset(tx.nbTRes)
}

func (tx *TxSpdo) status(connValid bool) TxStatus {
	return TxStatus{
		Active:          tx.active,
		Address:         tx.sadr,
		ConnectionValid: connValid,
		Responding:      tx.tsync.state == TimeResponseSending,
		LastSent:        tx.producer.lastSent,
		Length:          tx.mapping.Length(),
	}
}

// A TxSPDO sends at most one frame per tick
func (tx *TxSpdo) sentThisTick(now uint32) bool {
	return tx.producer.lastSentValid && tx.producer.lastSent == now
}

// connectionValid is true if every consumer synchronizing through tx
// receives valid data
func (s *SPDO) connectionValid(tx *TxSpdo) bool {
	if len(tx.consumers) == 0 {
		return false
	}
	for _, rxIdx := range tx.consumers {
		rx := s.rx[rxIdx]
		if !rx.active || !rx.consumer.connValid {
			return false
		}
	}
	return true
}

// send stamps, encodes and hands a frame to the network layer
func (s *SPDO) send(tx *TxSpdo, now uint32, f *frame.Frame, immediate bool) bool {
	s.ct.stamp(f, now)
	raw, err := frame.Encode(f)
	if err == nil {
		err = s.sender.Send(raw, immediate)
	}
	if err != nil {
		tx.logger.Warnf("send failed : %v", err)
		s.count(serr.StatTxFailed)
		s.report(serr.ClassMinor, serr.CodeTxSendFailed, uint32(tx.index))
		return false
	}
	tx.producer.lastSent = now
	tx.producer.lastSentValid = true
	s.count(serr.StatTxFrames)
	tx.logger.WithField("frame", f.Header).Debug("sent")
	return true
}

// Producer state machine, on every tick
func (s *SPDO) producerTick(tx *TxSpdo, now uint32, free *uint8) {
	p := &tx.producer
	refresh := elapsed(now, p.refreshDeadline)
	if !refresh && !p.newData {
		return
	}
	if *free == 0 || tx.sentThisTick(now) {
		return
	}
	f := frame.New(frame.IDDataOnly, s.domain, tx.sadr, 0, tx.mapping.BuildPayload())
	if s.connectionValid(tx) {
		f.ID |= frame.IDConnectionValid
	}
	if !s.send(tx, now, f, false) {
		return
	}
	*free--
	p.newData = false
	if refresh {
		p.refreshDeadline = now + uint32(tx.refreshPrescale)
	}
}
