package opensafety

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type busMock struct {
	sent    [][]byte
	sendErr error
}

func (b *busMock) Connect(...any) error                   { return nil }
func (b *busMock) Disconnect() error                      { return nil }
func (b *busMock) Subscribe(callback FrameListener) error { return nil }

func (b *busMock) Send(frame []byte) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, frame)
	return nil
}

func TestBusManagerSend(t *testing.T) {
	bm := NewBusManager(nil)
	assert.Equal(t, ErrNoBus, bm.Send([]byte{1}, false))

	bus := &busMock{}
	bm.SetBus(bus)
	assert.Equal(t, bus, bm.Bus())
	assert.Nil(t, bm.Send([]byte{1, 2}, true))
	assert.Nil(t, bm.Send([]byte{3}, false))
	bus.sendErr = errors.New("bus off")
	assert.NotNil(t, bm.Send([]byte{4}, false))

	sent, immediate, sendErrors := bm.Counters()
	assert.EqualValues(t, 4, sent)
	assert.EqualValues(t, 1, immediate)
	assert.EqualValues(t, 1, sendErrors)
	assert.Equal(t, [][]byte{{1, 2}, {3}}, bus.sent)
}

func TestBusManagerDrain(t *testing.T) {
	bm := NewBusManager(nil)
	bm.Handle([]byte{1, 2, 3})
	bm.Handle([]byte{4})
	var frames [][]byte
	count := bm.Drain(func(frame []byte) {
		frames = append(frames, append([]byte(nil), frame...))
	})
	assert.Equal(t, 2, count)
	assert.Equal(t, [][]byte{{1, 2, 3}, {4}}, frames)
	assert.Equal(t, 0, bm.Drain(func(frame []byte) {}))
}

func TestBusManagerOverflow(t *testing.T) {
	bm := NewBusManager(nil)
	frame := make([]byte, 1000)
	handled := 0
	for bm.Dropped() == 0 {
		bm.Handle(frame)
		handled++
	}
	received := bm.Drain(func(frame []byte) {})
	assert.Equal(t, handled-1, received)
	assert.EqualValues(t, 1, bm.Dropped())
}
