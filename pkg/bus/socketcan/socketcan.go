package socketcan

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	sockcan "github.com/brutella/can"
	opensafety "github.com/samsamfire/goopensafety"
	"github.com/samsamfire/goopensafety/pkg/bus"
	log "github.com/sirupsen/logrus"
)

// Basic wrapper for socketcan it uses the implementation
// that can be found here : https://github.com/brutella/can
// Safety frames are segmented over classic CAN frames, all sent with
// the CAN id of this node. Received segments are reassembled per CAN id.

func init() {
	bus.RegisterInterface("socketcan", NewSocketCanBus)
}

const DefaultCanId = 0x100

// publisher is the part of the brutella bus used for sending,
// it is replaced in tests.
type publisher interface {
	Publish(frame sockcan.Frame) error
}

type SocketcanBus struct {
	logger      *log.Entry
	mu          sync.Mutex
	bus         *sockcan.Bus
	publisher   publisher
	canId       uint32
	rxCallback  opensafety.FrameListener
	reassembler map[uint32]*reassembler
}

// Parse a channel of the form "can0" or "can0@0x101"
func parseChannel(channel string) (name string, canId uint32, err error) {
	name, id, found := strings.Cut(channel, "@")
	if !found {
		return name, DefaultCanId, nil
	}
	value, err := strconv.ParseUint(id, 0, 32)
	if err != nil || value > 0x7FF {
		return "", 0, fmt.Errorf("invalid CAN id in channel %v", channel)
	}
	return name, uint32(value), nil
}

// "Connect" implementation of Bus interface
func (socketcan *SocketcanBus) Connect(...any) error {
	go func() {
		err := socketcan.bus.ConnectAndPublish()
		if err != nil {
			socketcan.logger.Errorf("connection closed : %v", err)
		}
	}()
	return nil
}

// "Disconnect" implementation of Bus interface
func (socketcan *SocketcanBus) Disconnect() error {
	return socketcan.bus.Disconnect()
}

// "Send" implementation of Bus interface
func (socketcan *SocketcanBus) Send(frame []byte) error {
	segments, err := split(frame)
	if err != nil {
		return err
	}
	for _, s := range segments {
		err := socketcan.publisher.Publish(
			sockcan.Frame{
				ID:     socketcan.canId,
				Length: s.length,
				Flags:  0,
				Res0:   0,
				Res1:   0,
				Data:   s.data,
			})
		if err != nil {
			return err
		}
	}
	return nil
}

// "Subscribe" implementation of Bus interface
func (socketcan *SocketcanBus) Subscribe(rxCallback opensafety.FrameListener) error {
	socketcan.mu.Lock()
	socketcan.rxCallback = rxCallback
	socketcan.mu.Unlock()
	// brutella/can defines a "Handle" interface for handling received CAN frames
	socketcan.bus.Subscribe(socketcan)
	return nil
}

// brutella/can specific "Handle" implementation
func (socketcan *SocketcanBus) Handle(frame sockcan.Frame) {
	socketcan.mu.Lock()
	r, ok := socketcan.reassembler[frame.ID]
	if !ok {
		r = &reassembler{}
		socketcan.reassembler[frame.ID] = r
	}
	length := min(int(frame.Length), len(frame.Data))
	complete, err := r.push(frame.Data[:length])
	callback := socketcan.rxCallback
	socketcan.mu.Unlock()
	if err != nil {
		socketcan.logger.Debugf("dropping segment from x%x : %v", frame.ID, err)
		return
	}
	if complete != nil && callback != nil {
		callback.Handle(complete)
	}
}

func newSocketcanBus(publisher publisher, canId uint32) *SocketcanBus {
	return &SocketcanBus{
		logger:      log.WithFields(log.Fields{"service": "[SOCKETCAN]", "id": canId}),
		publisher:   publisher,
		canId:       canId,
		reassembler: map[uint32]*reassembler{},
	}
}

func NewSocketCanBus(channel string) (opensafety.Bus, error) {
	name, canId, err := parseChannel(channel)
	if err != nil {
		return nil, err
	}
	bus, err := sockcan.NewBusForInterfaceWithName(name)
	if err != nil {
		return nil, err
	}
	socketcan := newSocketcanBus(bus, canId)
	socketcan.bus = bus
	return socketcan, nil
}
