package spdo

import (
	"github.com/samsamfire/goopensafety/pkg/frame"
	"github.com/samsamfire/goopensafety/pkg/serr"
	log "github.com/sirupsen/logrus"
)

// ConsumerState of an RxSPDO
type ConsumerState uint8

const (
	// Safe, time synchronization has not succeeded
	ConsumerUnsynced ConsumerState = iota
	// Safe, synchronized. The next accepted frame only sets the CT baseline
	ConsumerSynced
	// Safe, synchronized and CT baseline known
	ConsumerBaseline
	// Valid data received within the safety control time
	ConsumerActive
)

var consumerStateNames = map[ConsumerState]string{
	ConsumerUnsynced: "UNSYNCED",
	ConsumerSynced:   "SYNCED",
	ConsumerBaseline: "BASELINE",
	ConsumerActive:   "ACTIVE",
}

func (state ConsumerState) String() string {
	name, ok := consumerStateNames[state]
	if !ok {
		return "UNKNOWN"
	}
	return name
}

// Safe is true in every state but [ConsumerActive]
func (state ConsumerState) Safe() bool {
	return state != ConsumerActive
}

// Communication parameters of an RxSPDO, read on activation
type rxParameters struct {
	sadr              uint16
	sct               uint32
	nbConsecTReq      uint8
	timeDelayTReq     uint32
	timeDelaySync     uint32
	minTSyncPropDelay uint16
	maxTSyncPropDelay uint16
	minSpdoPropDelay  uint16
	bestCaseTResDelay uint16
	tReqCycle         uint32
	txSpdoNo          uint16
}

// The safe reaction time bounds the age of accepted data. It is the SCT
// alone: the delay is measured against the last time synchronization, so
// the maximum synchronization propagation delay is already contained in it.
func (p *rxParameters) safeReactionTime() uint32 {
	return p.sct
}

type consumer struct {
	state       ConsumerState
	lastCT      uint64
	tRefCons    uint32
	tRefProd    uint64
	propTime    uint32
	lastDelay   uint32
	sctDeadline uint32
	lastRx      uint32
	connValid   bool
	ext         extCtState
}

// RxSpdo is a consuming SPDO together with its time synchronization
type RxSpdo struct {
	logger   *log.Entry
	index    uint16
	active   bool
	params   rxParameters
	txIdx    uint16
	mapping  *Mapping
	consumer consumer
	tsync    tsyncConsumer
}

func newRxSpdo(index uint16, maxLength uint8, logger *log.Entry) *RxSpdo {
	rx := &RxSpdo{
		index:  index,
		txIdx:  NotFound,
		logger: logger.WithField("rx", index),
	}
	rx.mapping = NewMapping(true, maxLength, rx.logger)
	return rx
}

func (rx *RxSpdo) status() RxStatus {
	return RxStatus{
		Active:          rx.active,
		Address:         rx.params.sadr,
		State:           rx.consumer.state,
		TimeSync:        rx.tsync.state,
		ConnectionValid: rx.consumer.connValid,
		LastCT:          rx.consumer.lastCT,
		LastDelay:       rx.consumer.lastDelay,
		PropagationTime: rx.consumer.propTime,
		SctDeadline:     rx.consumer.sctDeadline,
		LastReceived:    rx.consumer.lastRx,
	}
}

// Reset to the safe, unsynchronized state with default data
func (rx *RxSpdo) reset() {
	rx.consumer = consumer{}
	rx.consumer.ext.reset()
	rx.mapping.ToSafeState()
	rx.tsync.reset()
}

// toSafeState restores default data and drops the connection
func (rx *RxSpdo) toSafeState() {
	rx.mapping.ToSafeState()
	rx.consumer.connValid = false
}

// invalidate forces the safe state and a new time synchronization
func (s *SPDO) invalidate(rx *RxSpdo) {
	if rx.consumer.state != ConsumerUnsynced {
		rx.logger.Infof("consumer %v => %v", rx.consumer.state, ConsumerUnsynced)
	}
	rx.consumer.state = ConsumerUnsynced
	rx.toSafeState()
	rx.tsync.restart()
}

// timeSynchronized is called by the time synchronization consumer
// on a valid time response
func (rx *RxSpdo) timeSynchronized(tRefCons uint32, tRefProd uint64, propTime uint32) {
	c := &rx.consumer
	c.tRefCons = tRefCons
	c.tRefProd = tRefProd
	c.propTime = propTime
	if c.state != ConsumerActive {
		c.state = ConsumerSynced
	}
	rx.logger.Debugf("time synchronized, propagation %v, consumer %v", propTime, c.state)
}

// ctValid checks the CT against the last accepted one.
// Without a baseline every CT is accepted.
func (rx *RxSpdo) ctValid(ct uint64) bool {
	c := &rx.consumer
	if c.state != ConsumerBaseline && c.state != ConsumerActive {
		return true
	}
	return ctIncreasing(ct, c.lastCT, c.ext.mask())
}

// delay computes the propagation delay of a frame with the given CT.
// Both elapsed times are compared modulo the CT range, a difference in the
// upper half of the range means the producer elapsed time exceeds the
// consumer one and tooShort is set.
func (rx *RxSpdo) delay(now uint32, ct uint64) (delay uint32, tooShort bool) {
	c := &rx.consumer
	mask := c.ext.mask()
	prodDelta := (ct - c.tRefProd) & mask
	consDelta := uint64(since(now, c.tRefCons)) & mask
	d := (consDelta - prodDelta) & mask
	if d > mask>>1 {
		return 0, true
	}
	if d > uint64(^uint32(0)) {
		d = uint64(^uint32(0))
	}
	return uint32(d), false
}

// Consumer state machine, on reception of any frame type of an RxSPDO.
// Returns true if the frame was accepted.
func (s *SPDO) consume(rx *RxSpdo, now uint32, f *frame.Frame, ct uint64) bool {
	c := &rx.consumer
	if c.state == ConsumerUnsynced {
		// Data is ignored until synchronized
		s.count(serr.StatNotSynchronized)
		return false
	}

	delay, tooShort := rx.delay(now, ct)
	if tooShort || delay < uint32(rx.params.minSpdoPropDelay) {
		rx.logger.WithFields(log.Fields{"delay": delay, "ct": ct}).Warn("propagation delay too short")
		s.count(serr.StatDelayTooShort)
		s.report(serr.ClassMinor, serr.CodeDelayTooShort, uint32(rx.index))
		s.invalidate(rx)
		return false
	}
	if delay > rx.params.safeReactionTime() {
		rx.logger.WithFields(log.Fields{"delay": delay, "ct": ct}).Debug("propagation delay too long")
		s.count(serr.StatDelayTooLong)
		s.report(serr.ClassMinor, serr.CodeDelayTooLong, uint32(rx.index))
		return false
	}
	if int(f.Length) != int(rx.mapping.Length()) || len(f.Payload) != int(rx.mapping.Length()) {
		s.count(serr.StatPayloadLength)
		s.report(serr.ClassMinor, serr.CodeRxPayloadLength, uint32(rx.index))
		return false
	}

	c.lastDelay = delay
	if c.state == ConsumerSynced {
		// First frame after synchronization, may be older than the sync
		c.lastCT = ct
		c.state = ConsumerBaseline
		s.count(serr.StatBaseline)
		return true
	}
	if !rx.mapping.ProcessReceivedPayload(f.Payload) {
		s.count(serr.StatPayloadLength)
		s.report(serr.ClassMinor, serr.CodeRxPayloadLength, uint32(rx.index))
		return false
	}
	c.lastCT = ct
	c.sctDeadline = now + (rx.params.safeReactionTime() - delay)
	c.lastRx = now
	c.connValid = true
	if c.state != ConsumerActive {
		rx.logger.Infof("consumer %v => %v", c.state, ConsumerActive)
		c.state = ConsumerActive
	}
	return true
}

// Consumer state machine, timeout check without frame
func (s *SPDO) checkTimeout(rx *RxSpdo, now uint32) {
	c := &rx.consumer
	if c.state != ConsumerActive || !elapsed(now, c.sctDeadline) {
		return
	}
	rx.logger.WithField("deadline", c.sctDeadline).Warn("safety control time elapsed")
	s.count(serr.StatSctTimeout)
	s.report(serr.ClassMinor, serr.CodeSctTimeout, uint32(rx.index))
	s.invalidate(rx)
}
