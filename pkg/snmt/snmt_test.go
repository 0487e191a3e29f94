package snmt

import (
	"errors"
	"testing"

	opensafety "github.com/samsamfire/goopensafety"
	"github.com/samsamfire/goopensafety/pkg/frame"
	"github.com/samsamfire/goopensafety/pkg/serr"
	"github.com/samsamfire/goopensafety/pkg/sod"
	"github.com/samsamfire/goopensafety/pkg/spdo"
	"github.com/stretchr/testify/assert"
)

type controllerMock struct {
	activateErr error
	activated   int
	deactivated int
	active      bool
}

func (c *controllerMock) Activate(now uint32) error {
	c.activated++
	if c.activateErr != nil {
		return c.activateErr
	}
	c.active = true
	return nil
}

func (c *controllerMock) Deactivate() {
	c.deactivated++
	c.active = false
}

type nopSender struct{}

func (nopSender) Send(data []byte, immediate bool) error {
	return nil
}

func TestNewSNMT(t *testing.T) {
	_, err := NewSNMT(nil, nil, false, nil)
	assert.Equal(t, opensafety.ErrIllegalArgument, err)
}

func TestStartup(t *testing.T) {
	t.Run("to pre-operational", func(t *testing.T) {
		controller := &controllerMock{}
		snmt, err := NewSNMT(controller, nil, false, nil)
		assert.Nil(t, err)
		assert.Equal(t, StateInitialization, snmt.GetInternalState())
		assert.Equal(t, StatePreOperational, snmt.Process(0))
		assert.Equal(t, 0, controller.activated)
	})

	t.Run("to operational", func(t *testing.T) {
		controller := &controllerMock{}
		snmt, _ := NewSNMT(controller, nil, true, nil)
		assert.Equal(t, StateOperational, snmt.Process(0))
		assert.True(t, controller.active)
	})
}

func TestCommands(t *testing.T) {
	controller := &controllerMock{}
	snmt, _ := NewSNMT(controller, nil, false, nil)
	var states []State
	snmt.OnStateChange(func(state State) {
		states = append(states, state)
	})
	snmt.Process(0)
	snmt.EnterOperational()
	assert.Equal(t, StateOperational, snmt.Process(1))
	assert.Equal(t, 1, controller.activated)
	// Same state, no new activation
	snmt.EnterOperational()
	assert.Equal(t, StateOperational, snmt.Process(2))
	assert.Equal(t, 1, controller.activated)

	snmt.EnterPreOperational()
	assert.Equal(t, StatePreOperational, snmt.Process(3))
	assert.False(t, controller.active)
	assert.Equal(t, []State{StatePreOperational, StateOperational, StatePreOperational}, states)
}

func TestFailSafe(t *testing.T) {
	t.Run("activation failure", func(t *testing.T) {
		controller := &controllerMock{activateErr: errors.New("bad parameters")}
		snmt, _ := NewSNMT(controller, nil, true, nil)
		assert.Equal(t, StateFailSafe, snmt.Process(0))
		snmt.EnterOperational()
		assert.Equal(t, StateFailSafe, snmt.Process(1))
		assert.Equal(t, 1, controller.activated)
	})

	t.Run("fatal report", func(t *testing.T) {
		controller := &controllerMock{}
		errs := serr.New(nil, 8)
		snmt, _ := NewSNMT(controller, errs, true, nil)
		snmt.Process(0)
		errs.Report(serr.ClassMinor, serr.CodeSctTimeout, 0)
		assert.Equal(t, StateOperational, snmt.Process(1))
		errs.Report(serr.ClassFatal, serr.CodeUnknownFrameType, 0)
		// Stopped before the next process
		assert.False(t, controller.active)
		assert.Equal(t, StateFailSafe, snmt.Process(2))
	})

	t.Run("reset", func(t *testing.T) {
		controller := &controllerMock{}
		snmt, _ := NewSNMT(controller, nil, true, nil)
		snmt.Process(0)
		snmt.FailSafe()
		assert.Equal(t, StateFailSafe, snmt.Process(1))
		snmt.SendInternalCommand(CommandReset)
		assert.Equal(t, StateInitialization, snmt.Process(2))
		assert.Equal(t, StateOperational, snmt.Process(3))
		assert.True(t, controller.active)
	})
}

func TestWithSpdo(t *testing.T) {
	errs := serr.New(nil, 8)
	instance := spdo.New(sod.Default(), errs, nopSender{}, spdo.DefaultConfig(), nil)
	snmt, _ := NewSNMT(instance, errs, false, nil)
	snmt.Process(0)
	assert.False(t, instance.Active())
	snmt.EnterOperational()
	assert.Equal(t, StateOperational, snmt.Process(1))
	assert.True(t, instance.Active())

	// Fatal error raised by the SPDO itself
	unknown := frame.New(0x20, instance.Domain(), 2, 0, nil)
	assert.False(t, instance.ProcessFrame(2, unknown))
	assert.False(t, instance.Active())
	assert.Equal(t, StateFailSafe, snmt.Process(3))
	assert.False(t, instance.Active())
}
