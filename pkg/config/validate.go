package config

import (
	"errors"
	"fmt"

	"github.com/samsamfire/goopensafety/pkg/frame"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidConfig = errors.New("invalid configuration")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w : %v", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks the configuration without modifying it.
// Zero values are accepted where [Config.Normalize] sets a default.
func (cfg *Config) Validate() error {
	node := cfg.Node
	if node.Period < 0 || node.TimeBase < 0 {
		return invalid("negative period or time base")
	}
	if node.Period > 0 && node.TimeBase > node.Period {
		return invalid("time base %v longer than period %v", node.TimeBase, node.Period)
	}
	if node.Domain > frame.MaxDomain {
		return invalid("domain %v out of range", node.Domain)
	}
	if node.Address > frame.MaxAddress {
		return invalid("address %v out of range", node.Address)
	}
	if node.LogLevel != "" {
		if _, err := log.ParseLevel(node.LogLevel); err != nil {
			return invalid("%v", err)
		}
	}
	if cfg.Bus.Interface == "" && cfg.Bus.Channel != "" {
		return invalid("channel %v given without interface", cfg.Bus.Channel)
	}
	return cfg.Spdo.validate()
}

func validateMappings(mappings []MappingParameter) error {
	if len(mappings) > maxMappedObjects {
		return invalid("%v mapped objects, at most %v", len(mappings), maxMappedObjects)
	}
	for _, mapping := range mappings {
		if mapping.LengthBits == 0 || mapping.LengthBits%8 != 0 {
			return invalid("x%x|x%x mapped with %v bits", mapping.Index, mapping.Subindex, mapping.LengthBits)
		}
	}
	return nil
}

func (spdo *SpdoConfig) validate() error {
	if spdo.MaxRx != 0 && len(spdo.Rx) > int(spdo.MaxRx) {
		return invalid("%v rx configured, at most %v", len(spdo.Rx), spdo.MaxRx)
	}
	if spdo.MaxTx != 0 && len(spdo.Tx) > int(spdo.MaxTx) {
		return invalid("%v tx configured, at most %v", len(spdo.Tx), spdo.MaxTx)
	}
	producers := map[uint16]bool{}
	for i, rx := range spdo.Rx {
		if rx.Sadr > frame.MaxAddress {
			return invalid("rx %v : address %v out of range", i+1, rx.Sadr)
		}
		if rx.Sadr != 0 && producers[rx.Sadr] {
			return invalid("rx %v : producer %v already consumed", i+1, rx.Sadr)
		}
		producers[rx.Sadr] = true
		if rx.TxSpdoNo != 0 && int(rx.TxSpdoNo) > len(spdo.Tx) && len(spdo.Tx) > 0 {
			return invalid("rx %v : tx spdo %v not configured", i+1, rx.TxSpdoNo)
		}
		if err := validateMappings(rx.Mappings); err != nil {
			return fmt.Errorf("rx %v : %w", i+1, err)
		}
	}
	for i, tx := range spdo.Tx {
		if tx.Sadr > frame.MaxAddress {
			return invalid("tx %v : address %v out of range", i+1, tx.Sadr)
		}
		if err := validateMappings(tx.Mappings); err != nil {
			return fmt.Errorf("tx %v : %w", i+1, err)
		}
	}
	return nil
}

// Normalize sets the defaults of every zero value
func (cfg *Config) Normalize() {
	if cfg.Node.Period == 0 {
		cfg.Node.Period = DefaultPeriod
	}
	if cfg.Node.TimeBase == 0 {
		cfg.Node.TimeBase = min(DefaultTimeBase, cfg.Node.Period)
	}
	if cfg.Node.FreeFrames == 0 {
		cfg.Node.FreeFrames = DefaultFreeFrames
	}
	if cfg.Node.LogLevel == "" {
		cfg.Node.LogLevel = DefaultLogLevel
	}
	if cfg.Bus.Interface == "" {
		cfg.Bus.Interface = DefaultInterface
		cfg.Bus.Channel = DefaultChannel
	}
}

// Default returns a normalized configuration using the embedded SOD
func Default() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}
