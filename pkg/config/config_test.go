package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load("testdata/node.yaml")
	require.Nil(t, err)
	assert.EqualValues(t, 3, cfg.Node.Domain)
	assert.EqualValues(t, 5, cfg.Node.Address)
	assert.Equal(t, 2*time.Millisecond, cfg.Node.Period)
	assert.Equal(t, time.Millisecond, cfg.Node.TimeBase)
	assert.True(t, cfg.Node.StartupOperational)
	assert.Equal(t, "socketcan", cfg.Bus.Interface)
	assert.True(t, cfg.Spdo.ExtendedCT)
	require.Len(t, cfg.Spdo.Rx, 1)
	assert.EqualValues(t, 500, cfg.Spdo.Rx[0].Sct)
	assert.Equal(t, []MappingParameter{{Index: 0x6000, Subindex: 1, LengthBits: 16}}, cfg.Spdo.Rx[0].Mappings)
	require.Len(t, cfg.Spdo.Tx, 1)
	assert.EqualValues(t, 2, cfg.Spdo.Tx[0].RefreshPrescale)
	assert.Nil(t, cfg.Validate())

	_, err = Load("testdata/missing.yaml")
	assert.NotNil(t, err)
}

func TestParseUnknownField(t *testing.T) {
	_, err := Parse([]byte("node:\n  perod: 1ms\n"))
	assert.NotNil(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Spdo: SpdoConfig{
				Rx: []RxSpdoParameter{{Sadr: 2, TxSpdoNo: 1}},
				Tx: []TxSpdoParameter{{Sadr: 1}},
			},
		}
	}
	assert.Nil(t, valid().Validate())

	tests := map[string]func(cfg *Config){
		"time base longer than period": func(cfg *Config) {
			cfg.Node.Period = time.Millisecond
			cfg.Node.TimeBase = 2 * time.Millisecond
		},
		"address out of range":    func(cfg *Config) { cfg.Node.Address = 1024 },
		"domain out of range":     func(cfg *Config) { cfg.Node.Domain = 2000 },
		"bad log level":           func(cfg *Config) { cfg.Node.LogLevel = "loud" },
		"channel without bus":     func(cfg *Config) { cfg.Bus.Channel = "can0" },
		"duplicate producer":      func(cfg *Config) { cfg.Spdo.Rx = append(cfg.Spdo.Rx, RxSpdoParameter{Sadr: 2}) },
		"unknown tx spdo":         func(cfg *Config) { cfg.Spdo.Rx[0].TxSpdoNo = 2 },
		"too many rx":             func(cfg *Config) { cfg.Spdo.MaxRx = 1; cfg.Spdo.Rx = append(cfg.Spdo.Rx, RxSpdoParameter{Sadr: 3}) },
		"mapping not byte length": func(cfg *Config) { cfg.Spdo.Tx[0].Mappings = []MappingParameter{{Index: 0x6000, LengthBits: 4}} },
		"too many mappings": func(cfg *Config) {
			cfg.Spdo.Tx[0].Mappings = make([]MappingParameter, maxMappedObjects+1)
		},
	}
	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestNormalize(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultPeriod, cfg.Node.Period)
	assert.Equal(t, DefaultTimeBase, cfg.Node.TimeBase)
	assert.EqualValues(t, DefaultFreeFrames, cfg.Node.FreeFrames)
	assert.Equal(t, DefaultInterface, cfg.Bus.Interface)
	assert.Equal(t, DefaultChannel, cfg.Bus.Channel)

	cfg = &Config{Node: NodeConfig{Period: 500 * time.Microsecond}, Bus: BusConfig{Interface: "socketcan", Channel: "can1"}}
	cfg.Normalize()
	assert.Equal(t, 500*time.Microsecond, cfg.Node.TimeBase)
	assert.Equal(t, "can1", cfg.Bus.Channel)
	assert.Nil(t, cfg.Validate())
}
