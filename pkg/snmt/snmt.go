// Package snmt holds the state of a safety node and starts or stops the
// cyclic SPDO exchange accordingly. Only the local state machine is
// implemented, acyclic SNMT services on the network are not.
package snmt

import (
	"sync"
	"sync/atomic"

	opensafety "github.com/samsamfire/goopensafety"
	"github.com/samsamfire/goopensafety/pkg/serr"
	log "github.com/sirupsen/logrus"
)

// Possible SN states
type State uint8

const (
	StateInitialization State = 0
	StatePreOperational State = 1
	StateOperational    State = 2
	StateFailSafe       State = 3
)

var stateMap = map[State]string{
	StateInitialization: "INITIALIZATION",
	StatePreOperational: "PRE-OPERATIONAL",
	StateOperational:    "OPERATIONAL",
	StateFailSafe:       "FAIL-SAFE",
}

func (state State) String() string {
	name, ok := stateMap[state]
	if !ok {
		return "UNKNOWN"
	}
	return name
}

// Commands applied on the next call to [SNMT.Process]
type Command uint8

const (
	CommandEmpty               Command = 0
	CommandEnterOperational    Command = 1
	CommandEnterPreOperational Command = 2
	CommandReset               Command = 3
)

var CommandDescription = map[Command]string{
	CommandEnterOperational:    "ENTER-OPERATIONAL",
	CommandEnterPreOperational: "ENTER-PREOPERATIONAL",
	CommandReset:               "RESET",
}

// Controller is the process data exchange started in operational state
type Controller interface {
	Activate(now uint32) error
	Deactivate()
}

// SNMT object for processing the safety node state
type SNMT struct {
	mu                   sync.Mutex
	logger               *log.Entry
	controller           Controller
	state                State
	internalCommand      Command
	startupToOperational bool
	failSafeRequest      atomic.Bool
	callbacks            []func(state State)
}

// Handles fatal error reports, the node goes to fail safe on the next
// Process. The controller is stopped right away.
func (snmt *SNMT) onFatal(report serr.Error) {
	snmt.failSafeRequest.Store(true)
	snmt.controller.Deactivate()
}

// Process SNMT related tasks and apply pending commands.
// Returns the current state.
func (snmt *SNMT) Process(now uint32) State {
	snmt.mu.Lock()
	current := snmt.state
	next := current
	command := snmt.internalCommand
	snmt.internalCommand = CommandEmpty

	if current == StateInitialization {
		if snmt.startupToOperational {
			next = StateOperational
		} else {
			next = StatePreOperational
		}
	}
	if command != CommandEmpty {
		snmt.logger.Debugf("processing command %v", CommandDescription[command])
	}
	switch {
	case command == CommandReset:
		next = StateInitialization
		snmt.failSafeRequest.Store(false)
	case current == StateFailSafe:
		// Only left through a reset
	case command == CommandEnterOperational:
		next = StateOperational
	case command == CommandEnterPreOperational:
		next = StatePreOperational
	}
	if snmt.failSafeRequest.Swap(false) && command != CommandReset {
		next = StateFailSafe
	}
	snmt.mu.Unlock()

	if next != current {
		next = snmt.transition(now, current, next)
	}
	return next
}

// Applies a state change. Must not be called with the lock held, the
// controller may report fatal errors which call back into onFatal.
func (snmt *SNMT) transition(now uint32, current State, next State) State {
	if current == StateOperational {
		snmt.controller.Deactivate()
	}
	if next == StateOperational {
		err := snmt.controller.Activate(now)
		if err != nil || snmt.failSafeRequest.Swap(false) {
			snmt.logger.Errorf("failed to enter operational : %v", err)
			next = StateFailSafe
		}
	}
	snmt.logger.Infof("state changed | %v ==> %v", current, next)

	snmt.mu.Lock()
	snmt.state = next
	callbacks := snmt.callbacks
	snmt.mu.Unlock()
	for _, callback := range callbacks {
		callback(next)
	}
	return next
}

// Get the current state
func (snmt *SNMT) GetInternalState() State {
	snmt.mu.Lock()
	defer snmt.mu.Unlock()
	return snmt.state
}

// Send an SNMT command to self, applied on the next Process
func (snmt *SNMT) SendInternalCommand(command Command) {
	snmt.mu.Lock()
	defer snmt.mu.Unlock()
	snmt.internalCommand = command
}

// Enter operational state on the next Process
func (snmt *SNMT) EnterOperational() {
	snmt.SendInternalCommand(CommandEnterOperational)
}

// Enter pre-operational state on the next Process
func (snmt *SNMT) EnterPreOperational() {
	snmt.SendInternalCommand(CommandEnterPreOperational)
}

// FailSafe stops the controller immediately and enters fail safe state
// on the next Process.
func (snmt *SNMT) FailSafe() {
	snmt.onFatal(serr.Error{Class: serr.ClassFatal})
}

// Add a callback called on every state change
func (snmt *SNMT) OnStateChange(callback func(state State)) {
	snmt.mu.Lock()
	defer snmt.mu.Unlock()
	snmt.callbacks = append(snmt.callbacks, callback)
}

// Create a new SNMT. Fatal errors reported to errors put the node in
// fail safe state.
func NewSNMT(controller Controller, errors *serr.SERR, startupToOperational bool, logger *log.Logger) (*SNMT, error) {
	if controller == nil {
		return nil, opensafety.ErrIllegalArgument
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	snmt := &SNMT{
		logger:               logger.WithField("service", "[SNMT]"),
		controller:           controller,
		state:                StateInitialization,
		startupToOperational: startupToOperational,
	}
	if errors != nil {
		errors.OnFatal(snmt.onFatal)
	}
	return snmt, nil
}
