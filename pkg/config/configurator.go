package config

import (
	"github.com/samsamfire/goopensafety/pkg/sod"
	log "github.com/sirupsen/logrus"
)

// SODConfigurator provides helper methods for reading / updating
// the reserved communication objects of a local SOD, i.e. the common
// parameters and the SPDO communication and mapping parameters.
// Writes go through the SOD extensions, so the SPDO parameters are
// write protected while the SPDO is active.
type SODConfigurator struct {
	od     *sod.ObjectDictionary
	logger *log.Entry
}

// Create a new [SODConfigurator] for the given SOD
func NewSODConfigurator(od *sod.ObjectDictionary, logger *log.Logger) *SODConfigurator {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &SODConfigurator{od: od, logger: logger.WithField("service", "[CONFIG]")}
}

func (config *SODConfigurator) entry(index uint16) (*sod.Entry, error) {
	entry := config.od.Index(index)
	if entry == nil {
		return nil, sod.ErrIdxNotExist
	}
	return entry, nil
}
