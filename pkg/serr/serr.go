package serr

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Error classes
type Class uint8

const (
	ClassInfo  Class = 0
	ClassMinor Class = 1
	ClassFatal Class = 2
)

func (c Class) String() string {
	switch c {
	case ClassInfo:
		return "INFO"
	case ClassMinor:
		return "MINOR"
	case ClassFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Error is a single error report, kept in the history
type Error struct {
	Class Class
	Code  Code
	Info  uint32
}

func (e Error) String() string {
	return fmt.Sprintf("%v x%04x (%v) info x%x", e.Class, uint16(e.Code), e.Code, e.Info)
}

// FatalListener is called on every fatal error report.
type FatalListener func(report Error)

const DefaultHistorySize = 16

// SERR is the error sink of a safety node instance.
// It logs, counts statistics and keeps a bounded history of reports.
type SERR struct {
	logger    *log.Entry
	mu        sync.Mutex
	stats     [statCount]uint32
	classes   [3]uint32
	history   []Error
	histWrPtr int
	histCount int
	overflow  bool
	listeners []FatalListener
}

// New creates an error sink. A nil logger uses the standard logger.
func New(logger *log.Logger, historySize int) *SERR {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &SERR{
		logger:  logger.WithField("service", "[SERR]"),
		history: make([]Error, historySize),
	}
}

// Report an error of the given class. Fatal errors notify listeners
// after the internal lock is released.
func (serr *SERR) Report(class Class, code Code, info uint32) {
	report := Error{Class: class, Code: code, Info: info}
	fields := log.Fields{"code": fmt.Sprintf("x%04x", uint16(code)), "info": info}
	switch class {
	case ClassFatal:
		serr.logger.WithFields(fields).Errorf("fatal error : %v", code)
	case ClassMinor:
		serr.logger.WithFields(fields).Warnf("minor error : %v", code)
	default:
		serr.logger.WithFields(fields).Debugf("info : %v", code)
	}

	serr.mu.Lock()
	if int(class) < len(serr.classes) {
		serr.classes[class]++
	}
	if serr.histCount == len(serr.history) {
		serr.overflow = true
	} else {
		serr.histCount++
	}
	serr.history[serr.histWrPtr] = report
	serr.histWrPtr = (serr.histWrPtr + 1) % len(serr.history)
	listeners := serr.listeners
	serr.mu.Unlock()

	if class != ClassFatal {
		return
	}
	for _, listener := range listeners {
		listener(report)
	}
}

// Count increments a statistic counter
func (serr *SERR) Count(stat Stat) {
	if stat >= statCount {
		return
	}
	serr.mu.Lock()
	serr.stats[stat]++
	serr.mu.Unlock()
}

// Statistic returns the value of a statistic counter
func (serr *SERR) Statistic(stat Stat) uint32 {
	if stat >= statCount {
		return 0
	}
	serr.mu.Lock()
	defer serr.mu.Unlock()
	return serr.stats[stat]
}

// Reported returns the number of errors reported for a class
func (serr *SERR) Reported(class Class) uint32 {
	serr.mu.Lock()
	defer serr.mu.Unlock()
	if int(class) >= len(serr.classes) {
		return 0
	}
	return serr.classes[class]
}

// History returns the latest reports, oldest first.
// overflow is true if older reports were overwritten.
func (serr *SERR) History() (reports []Error, overflow bool) {
	serr.mu.Lock()
	defer serr.mu.Unlock()
	reports = make([]Error, 0, serr.histCount)
	start := (serr.histWrPtr - serr.histCount + len(serr.history)) % len(serr.history)
	for i := 0; i < serr.histCount; i++ {
		reports = append(reports, serr.history[(start+i)%len(serr.history)])
	}
	return reports, serr.overflow
}

// Last returns the most recent report, ok is false if none
func (serr *SERR) Last() (report Error, ok bool) {
	serr.mu.Lock()
	defer serr.mu.Unlock()
	if serr.histCount == 0 {
		return Error{}, false
	}
	return serr.history[(serr.histWrPtr-1+len(serr.history))%len(serr.history)], true
}

// OnFatal registers a listener called for every fatal error
func (serr *SERR) OnFatal(listener FatalListener) {
	serr.mu.Lock()
	defer serr.mu.Unlock()
	serr.listeners = append(serr.listeners, listener)
}

// Reset clears statistics and history, listeners are kept
func (serr *SERR) Reset() {
	serr.mu.Lock()
	defer serr.mu.Unlock()
	serr.stats = [statCount]uint32{}
	serr.classes = [3]uint32{}
	serr.histWrPtr = 0
	serr.histCount = 0
	serr.overflow = false
}
