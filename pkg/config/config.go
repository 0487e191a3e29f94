// Package config holds the runtime configuration of a safety node, read
// from a YAML file, and helpers reading or updating the SPDO configuration
// objects of a local SOD.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPeriod     = time.Millisecond
	DefaultTimeBase   = time.Millisecond
	DefaultFreeFrames = 4
	DefaultInterface  = "virtual"
	DefaultChannel    = "localhost:18888"
	DefaultLogLevel   = "info"
)

type Config struct {
	Node NodeConfig `yaml:"node"`
	Bus  BusConfig  `yaml:"bus"`
	Spdo SpdoConfig `yaml:"spdo"`
}

// ---- NODE ----

type NodeConfig struct {
	// SOD description file, the embedded default SOD is used if empty
	Sod string `yaml:"sod"`
	// Overrides of the common communication parameters, 0 keeps the SOD value
	Domain  uint16 `yaml:"domain"`
	Address uint16 `yaml:"address"`
	// Processing period and duration of one tick
	Period   time.Duration `yaml:"period"`
	TimeBase time.Duration `yaml:"time_base"`
	// Maximum number of frames sent per processing cycle
	FreeFrames         uint8  `yaml:"free_frames"`
	StartupOperational bool   `yaml:"startup_operational"`
	LogLevel           string `yaml:"log_level"`
}

// ---- BUS ----

type BusConfig struct {
	Interface string `yaml:"interface"`
	Channel   string `yaml:"channel"`
}

// ---- SPDO ----

type SpdoConfig struct {
	MaxRx              uint16 `yaml:"max_rx"`
	MaxTx              uint16 `yaml:"max_tx"`
	MaxPayloadLength   uint8  `yaml:"max_payload_length"`
	ExtendedCT         bool   `yaml:"extended_ct"`
	MaxNotAnsweredTReq uint16 `yaml:"max_not_answered_treq"`

	// SPDOs written to the SOD before activation, replacing the SOD ones
	Rx []RxSpdoParameter `yaml:"rx"`
	Tx []TxSpdoParameter `yaml:"tx"`
}

type MappingParameter struct {
	Index      uint16 `yaml:"index"`
	Subindex   uint8  `yaml:"subindex"`
	LengthBits uint8  `yaml:"length_bits"`
}

// Holds an RxSPDO configuration
type RxSpdoParameter struct {
	Sadr              uint16             `yaml:"sadr"`
	Sct               uint32             `yaml:"sct"`
	NbConsecutiveTReq uint8              `yaml:"nb_consecutive_treq"`
	TimeDelayTReq     uint32             `yaml:"time_delay_treq"`
	TimeDelaySync     uint32             `yaml:"time_delay_sync"`
	MinTSyncPropDelay uint16             `yaml:"min_tsync_prop_delay"`
	MaxTSyncPropDelay uint16             `yaml:"max_tsync_prop_delay"`
	MinSpdoPropDelay  uint16             `yaml:"min_spdo_prop_delay"`
	BestCaseTResDelay uint16             `yaml:"best_case_tres_delay"`
	TReqCycle         uint32             `yaml:"treq_cycle"`
	TxSpdoNo          uint16             `yaml:"tx_spdo_no"`
	Mappings          []MappingParameter `yaml:"mappings"`
}

// Holds a TxSPDO configuration
type TxSpdoParameter struct {
	Sadr            uint16             `yaml:"sadr"`
	RefreshPrescale uint16             `yaml:"refresh_prescale"`
	NbTRes          uint8              `yaml:"nb_tres"`
	Mappings        []MappingParameter `yaml:"mappings"`
}

// Parse decodes a YAML configuration, unknown keys are rejected
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration : %w", err)
	}
	return cfg, nil
}

// Load reads a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}
