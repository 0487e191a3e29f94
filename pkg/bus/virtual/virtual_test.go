package virtual

import (
	"sync"
	"testing"
	"time"

	"github.com/samsamfire/goopensafety/internal/network"
	"github.com/samsamfire/goopensafety/pkg/bus"
	"github.com/stretchr/testify/assert"
)

func newBroker(t *testing.T) *network.Broker {
	broker, err := network.NewBroker("127.0.0.1:0")
	assert.Nil(t, err)
	t.Cleanup(func() { broker.Close() })
	return broker
}

type frameReceiver struct {
	mu     sync.Mutex
	frames [][]byte
}

func (r *frameReceiver) Handle(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *frameReceiver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func newVirtual(t *testing.T, channel string) *VirtualBus {
	b, err := bus.NewBus("virtual", channel)
	assert.Nil(t, err)
	virtual, ok := b.(*VirtualBus)
	assert.True(t, ok)
	return virtual
}

func TestSerialize(t *testing.T) {
	data, err := serializeFrame([]byte{1, 2, 3})
	assert.Nil(t, err)
	assert.Equal(t, []byte{0, 0, 0, 3, 1, 2, 3}, data)
	_, err = serializeFrame(make([]byte, MaxFrameSize+1))
	assert.NotNil(t, err)
}

func TestSendNotConnected(t *testing.T) {
	virtual := newVirtual(t, "127.0.0.1:1")
	assert.Equal(t, ErrNotConnected, virtual.Send([]byte{1}))
	assert.Nil(t, virtual.Disconnect())
}

func TestReceiveOwn(t *testing.T) {
	virtual := newVirtual(t, "127.0.0.1:1")
	receiver := &frameReceiver{}
	assert.Nil(t, virtual.Subscribe(receiver))
	virtual.SetReceiveOwn(true)
	assert.Nil(t, virtual.Send([]byte{1, 2}))
	assert.Equal(t, 1, receiver.count())
}

func TestSendAndSubscribe(t *testing.T) {
	b := newBroker(t)
	channel := b.Address()
	virtual1 := newVirtual(t, channel)
	virtual2 := newVirtual(t, channel)
	assert.Nil(t, virtual1.Connect())
	assert.Nil(t, virtual2.Connect())
	defer virtual1.Disconnect()
	defer virtual2.Disconnect()

	receiver := &frameReceiver{}
	assert.Nil(t, virtual2.Subscribe(receiver))
	// Wait for the broker to accept both clients
	assert.Eventually(t, func() bool { return b.Clients() == 2 }, time.Second, 10*time.Millisecond)

	for i := 0; i < 10; i++ {
		assert.Nil(t, virtual1.Send([]byte{uint8(i), 0xAA, 0xBB}))
	}
	assert.Eventually(t, func() bool { return receiver.count() == 10 }, 2*time.Second, 10*time.Millisecond)
	receiver.mu.Lock()
	defer receiver.mu.Unlock()
	for i, frame := range receiver.frames {
		assert.Equal(t, []byte{uint8(i), 0xAA, 0xBB}, frame)
	}
}
