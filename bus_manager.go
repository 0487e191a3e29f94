package opensafety

import (
	"sync"

	"github.com/samsamfire/goopensafety/internal/fifo"
	log "github.com/sirupsen/logrus"
)

const DefaultRxQueueSize = 4096

// Bus manager is a wrapper around the [Bus] interface.
// Frames received asynchronously by the bus are queued until
// the cyclic stack processing drains them with [BusManager.Drain].
type BusManager struct {
	mu       sync.Mutex
	bus      Bus
	rxQueue  *fifo.Fifo
	txCount  uint32
	txErrors uint32
	txUrgent uint32
}

// Implements the FrameListener interface
// This queues all received frames from Bus
func (bm *BusManager) Handle(frame []byte) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if !bm.rxQueue.WriteFrame(frame) {
		log.Warnf("[BUS] %v, dropping frame of length %v", ErrRxOverflow, len(frame))
	}
}

// Drain passes every queued frame to handler, in reception order
func (bm *BusManager) Drain(handler func(frame []byte)) int {
	count := 0
	for {
		bm.mu.Lock()
		frame := bm.rxQueue.ReadFrame()
		bm.mu.Unlock()
		if frame == nil {
			return count
		}
		handler(frame)
		count++
	}
}

// Set bus
func (bm *BusManager) SetBus(bus Bus) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.bus = bus
}

func (bm *BusManager) Bus() Bus {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.bus
}

// Send a raw frame, immediate frames are the first of a time response block.
// Limited error handling
func (bm *BusManager) Send(frame []byte, immediate bool) error {
	bm.mu.Lock()
	bus := bm.bus
	bm.txCount++
	if immediate {
		bm.txUrgent++
	}
	bm.mu.Unlock()
	if bus == nil {
		return ErrNoBus
	}
	err := bus.Send(frame)
	if err != nil {
		bm.mu.Lock()
		bm.txErrors++
		bm.mu.Unlock()
		log.Warnf("[BUS] %v", err)
	}
	return err
}

// Counters returns number of sent frames, of which immediate, and send errors
func (bm *BusManager) Counters() (sent uint32, immediate uint32, errors uint32) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.txCount, bm.txUrgent, bm.txErrors
}

// Number of received frames dropped because the queue was full
func (bm *BusManager) Dropped() uint32 {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.rxQueue.Dropped()
}

func NewBusManager(bus Bus) *BusManager {
	bm := &BusManager{
		bus:     bus,
		rxQueue: fifo.NewFifo(DefaultRxQueueSize),
	}
	return bm
}
