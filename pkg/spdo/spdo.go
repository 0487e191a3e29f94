// Package spdo implements the cyclic Safety Process Data Object
// exchange of an openSAFETY safety node.
//
// It contains the consumer and producer state machines, the time
// synchronization request and response state machines, the mapping
// engines copying process data between the SOD and SPDO payloads and
// the router dispatching received frames and building frames to send.
//
// The subsystem is driven by three entry points, all taking the current
// tick of a free running uint32 counter :
//   - [SPDO.ProcessFrame] (or [SPDO.ProcessRxFrame]) for every received frame
//   - [SPDO.BuildTxFrames] once per cycle, with a free frame budget
//   - [SPDO.CheckRxTimeout] once per cycle
package spdo

import (
	"sync"
	"sync/atomic"

	"github.com/samsamfire/goopensafety/pkg/frame"
	"github.com/samsamfire/goopensafety/pkg/serr"
	"github.com/samsamfire/goopensafety/pkg/sod"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultMaxRxSpdo          = 16
	DefaultMaxTxSpdo          = 16
	DefaultMaxNotAnsweredTReq = 100
	// A time request block may not span more than the sequence number window
	MaxConsecutiveTReq = frame.TRModulo - 1
)

// Sender hands an encoded frame to the network layer.
// immediate is set for frames that should bypass any transmit queueing,
// i.e. the first time response of a block.
type Sender interface {
	Send(data []byte, immediate bool) error
}

// Reporter is the error sink used by the state machines.
type Reporter interface {
	Report(class serr.Class, code serr.Code, info uint32)
	Count(stat serr.Stat)
}

// Config holds the limits of one SPDO instance.
type Config struct {
	// Maximum number of RxSPDOs, more configured objects is a fatal error
	MaxRxSpdo uint16
	// Maximum number of TxSPDOs, more configured objects is a fatal error
	MaxTxSpdo uint16
	// Maximum mapped payload length
	MaxPayloadLength uint8
	// Use and accept 40 bit consecutive times
	ExtendedCT bool
	// Number of unanswered time requests after which synchronization fails
	MaxNotAnsweredTReq uint16
}

func DefaultConfig() Config {
	return Config{
		MaxRxSpdo:          DefaultMaxRxSpdo,
		MaxTxSpdo:          DefaultMaxTxSpdo,
		MaxPayloadLength:   frame.MaxPayloadLength,
		ExtendedCT:         false,
		MaxNotAnsweredTReq: DefaultMaxNotAnsweredTReq,
	}
}

func (config *Config) normalize() {
	if config.MaxRxSpdo == 0 {
		config.MaxRxSpdo = DefaultMaxRxSpdo
	}
	if config.MaxTxSpdo == 0 {
		config.MaxTxSpdo = DefaultMaxTxSpdo
	}
	if config.MaxPayloadLength == 0 || config.MaxPayloadLength > frame.MaxPayloadLength {
		config.MaxPayloadLength = frame.MaxPayloadLength
	}
	if config.MaxNotAnsweredTReq == 0 {
		config.MaxNotAnsweredTReq = DefaultMaxNotAnsweredTReq
	}
}

// SPDO is one instance of the SPDO subsystem.
// All the per object state is owned by this struct, public methods
// are serialized with an internal mutex.
type SPDO struct {
	mu        sync.Mutex
	logger    *log.Entry
	od        *sod.ObjectDictionary
	errors    Reporter
	sender    Sender
	config    Config
	active    atomic.Bool
	domain    uint16
	sadr      uint16
	addresses *AddressTable
	rx        []*RxSpdo
	tx        []*TxSpdo
	ct        ctClock
	pending   []serr.Error
	protected map[uint16]bool
}

// New creates an SPDO instance working on the given SOD.
// The instance is inactive until [SPDO.Activate] is called.
func New(odict *sod.ObjectDictionary, errors Reporter, sender Sender, config Config, logger *log.Logger) *SPDO {
	if logger == nil {
		logger = log.StandardLogger()
	}
	config.normalize()
	return &SPDO{
		logger:    logger.WithField("service", "[SPDO]"),
		od:        odict,
		errors:    errors,
		sender:    sender,
		config:    config,
		addresses: NewAddressTable(config.MaxRxSpdo, config.MaxTxSpdo),
		protected: map[uint16]bool{},
	}
}

func (s *SPDO) lock() {
	s.mu.Lock()
}

// Releases the lock then flushes reports queued while locked.
// Fatal reports may call back into this instance (e.g. to deactivate it).
func (s *SPDO) unlock() {
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, report := range pending {
		s.errors.Report(report.Class, report.Code, report.Info)
	}
}

func (s *SPDO) report(class serr.Class, code serr.Code, info uint32) {
	s.pending = append(s.pending, serr.Error{Class: class, Code: code, Info: info})
}

func (s *SPDO) count(stat serr.Stat) {
	s.errors.Count(stat)
}

// Active returns true between a successful [SPDO.Activate] and [SPDO.Deactivate]
func (s *SPDO) Active() bool {
	return s.active.Load()
}

// Domain returns the safety domain number read on activation
func (s *SPDO) Domain() uint16 {
	s.lock()
	defer s.unlock()
	return s.domain
}

// Address returns the own safety address of the node read on activation
func (s *SPDO) Address() uint16 {
	s.lock()
	defer s.unlock()
	return s.sadr
}

// NbRx returns the number of configured RxSPDOs, active or not
func (s *SPDO) NbRx() int {
	s.lock()
	defer s.unlock()
	return len(s.rx)
}

// NbTx returns the number of configured TxSPDOs, active or not
func (s *SPDO) NbTx() int {
	s.lock()
	defer s.unlock()
	return len(s.tx)
}

// Rx returns a snapshot of the state of an RxSPDO
func (s *SPDO) Rx(rxIdx uint16) (RxStatus, bool) {
	s.lock()
	defer s.unlock()
	if int(rxIdx) >= len(s.rx) {
		return RxStatus{}, false
	}
	return s.rx[rxIdx].status(), true
}

// Tx returns a snapshot of the state of a TxSPDO
func (s *SPDO) Tx(txIdx uint16) (TxStatus, bool) {
	s.lock()
	defer s.unlock()
	if int(txIdx) >= len(s.tx) {
		return TxStatus{}, false
	}
	return s.tx[txIdx].status(s.connectionValid(s.tx[txIdx])), true
}

// Safe returns true if the RxSPDO delivers safe (default) values.
// Unknown or inactive objects are always safe.
func (s *SPDO) Safe(rxIdx uint16) bool {
	status, ok := s.Rx(rxIdx)
	if !ok {
		return true
	}
	return status.State.Safe()
}

// SignalNewData tells the producer of the given TxSPDO that the application
// updated its mapped data, so that it is sent without waiting for the
// refresh prescale.
func (s *SPDO) SignalNewData(txIdx uint16) bool {
	s.lock()
	defer s.unlock()
	if int(txIdx) >= len(s.tx) || !s.tx[txIdx].active {
		return false
	}
	s.tx[txIdx].producer.newData = true
	return true
}

// Statuses exposed to the application

type RxStatus struct {
	Active          bool
	Address         uint16
	State           ConsumerState
	TimeSync        TimeSyncState
	ConnectionValid bool
	LastCT          uint64
	LastDelay       uint32
	PropagationTime uint32
	SctDeadline     uint32
	LastReceived    uint32
}

type TxStatus struct {
	Active          bool
	Address         uint16
	ConnectionValid bool
	Responding      bool
	LastSent        uint32
	Length          uint8
}
