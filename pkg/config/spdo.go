package config

import (
	"github.com/samsamfire/goopensafety/pkg/sod"
)

const maxMappedObjects = 16

func rxComIndex(rxNb uint16) uint16 { return sod.IndexRxSpdoComBase + rxNb - 1 }
func rxMapIndex(rxNb uint16) uint16 { return sod.IndexRxSpdoMappingBase + rxNb - 1 }
func txComIndex(txNb uint16) uint16 { return sod.IndexTxSpdoComBase + txNb - 1 }
func txMapIndex(txNb uint16) uint16 { return sod.IndexTxSpdoMappingBase + txNb - 1 }

func checkNumber(spdoNb uint16) error {
	if spdoNb == 0 || spdoNb > sod.MaxSpdoNumber {
		return sod.ErrIdxNotExist
	}
	return nil
}

// Read the mapping parameters stored at mappingIndex
func (config *SODConfigurator) ReadMappings(mappingIndex uint16) ([]MappingParameter, error) {
	entry, err := config.entry(mappingIndex)
	if err != nil {
		return nil, err
	}
	nbMappings, err := entry.Uint8(0)
	if err != nil {
		return nil, err
	}
	mappings := make([]MappingParameter, 0, nbMappings)
	for i := uint8(0); i < nbMappings; i++ {
		rawMap, err := entry.Uint32(i + 1)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, MappingParameter{
			Index:      uint16(rawMap >> 16),
			Subindex:   uint8(rawMap >> 8),
			LengthBits: uint8(rawMap),
		})
	}
	return mappings, nil
}

// Clear all the mappings of a mapping parameter object
func (config *SODConfigurator) ClearMappings(mappingIndex uint16) error {
	entry, err := config.entry(mappingIndex)
	if err != nil {
		return err
	}
	// First clear nb of mapped entries
	err = entry.PutUint8(0, 0, false)
	if err != nil {
		return err
	}
	for i, n := uint8(0), uint8(entry.SubCount()-1); i < n; i++ {
		err := entry.PutUint32(i+1, 0, false)
		if err != nil {
			return err
		}
	}
	return nil
}

// Write new SPDO mapping.
// Takes a list of objects to map and will fill them up in the given order.
// This will first clear the current mapping.
func (config *SODConfigurator) WriteMappings(mappingIndex uint16, mappings []MappingParameter) error {
	if len(mappings) > maxMappedObjects {
		return sod.ErrMapLen
	}
	err := config.ClearMappings(mappingIndex)
	if err != nil {
		return err
	}
	entry, _ := config.entry(mappingIndex)
	for i, mapping := range mappings {
		raw := sod.MappingValue(mapping.Index, mapping.Subindex, mapping.LengthBits)
		err := entry.PutUint32(uint8(i+1), raw, false)
		if err != nil {
			return err
		}
	}
	return entry.PutUint8(0, uint8(len(mappings)), false)
}

// Reads configuration of a single RxSPDO (1-based)
func (config *SODConfigurator) ReadConfigurationRx(rxNb uint16) (RxSpdoParameter, error) {
	conf := RxSpdoParameter{}
	if err := checkNumber(rxNb); err != nil {
		return conf, err
	}
	entry, err := config.entry(rxComIndex(rxNb))
	if err != nil {
		return conf, err
	}
	read16 := func(sub uint8, v *uint16) {
		if err == nil {
			*v, err = entry.Uint16(sub)
		}
	}
	read32 := func(sub uint8, v *uint32) {
		if err == nil {
			*v, err = entry.Uint32(sub)
		}
	}
	read16(sod.SubRxSadr, &conf.Sadr)
	read32(sod.SubRxSct, &conf.Sct)
	if err == nil {
		conf.NbConsecutiveTReq, err = entry.Uint8(sod.SubRxNbConsecTReq)
	}
	read32(sod.SubRxTimeDelayTReq, &conf.TimeDelayTReq)
	read32(sod.SubRxTimeDelaySync, &conf.TimeDelaySync)
	read16(sod.SubRxMinTSyncPropDelay, &conf.MinTSyncPropDelay)
	read16(sod.SubRxMaxTSyncPropDelay, &conf.MaxTSyncPropDelay)
	read16(sod.SubRxMinSpdoPropDelay, &conf.MinSpdoPropDelay)
	read16(sod.SubRxBestCaseTResDelay, &conf.BestCaseTResDelay)
	read32(sod.SubRxTReqCycle, &conf.TReqCycle)
	read16(sod.SubRxTxSpdoNo, &conf.TxSpdoNo)
	if err != nil {
		return conf, err
	}
	conf.Mappings, err = config.ReadMappings(rxMapIndex(rxNb))
	config.logger.Debugf("read configuration rx %v : %+v", rxNb, conf)
	return conf, err
}

// Reads configuration of a single TxSPDO (1-based)
func (config *SODConfigurator) ReadConfigurationTx(txNb uint16) (TxSpdoParameter, error) {
	conf := TxSpdoParameter{}
	if err := checkNumber(txNb); err != nil {
		return conf, err
	}
	entry, err := config.entry(txComIndex(txNb))
	if err != nil {
		return conf, err
	}
	conf.Sadr, err = entry.Uint16(sod.SubTxSadr)
	if err != nil {
		return conf, err
	}
	conf.RefreshPrescale, err = entry.Uint16(sod.SubTxRefreshPrescale)
	if err != nil {
		return conf, err
	}
	// Optional
	conf.NbTRes, _ = entry.Uint8(sod.SubTxNbTRes)
	conf.Mappings, err = config.ReadMappings(txMapIndex(txNb))
	config.logger.Debugf("read configuration tx %v : %+v", txNb, conf)
	return conf, err
}

// Reads complete SPDO configuration.
// Returns RxSPDOs and TxSPDOs configurations in two separate lists
func (config *SODConfigurator) ReadConfigurationAllSpdo() (
	rx []RxSpdoParameter, tx []TxSpdoParameter, err error,
) {
	for rxNb := uint16(1); rxNb <= sod.MaxSpdoNumber; rxNb++ {
		if config.od.Index(rxComIndex(rxNb)) == nil {
			break
		}
		conf, err := config.ReadConfigurationRx(rxNb)
		if err != nil {
			config.logger.Errorf("failed to read configuration rx %v : %v", rxNb, err)
			return rx, tx, err
		}
		rx = append(rx, conf)
	}
	for txNb := uint16(1); txNb <= sod.MaxSpdoNumber; txNb++ {
		if config.od.Index(txComIndex(txNb)) == nil {
			break
		}
		conf, err := config.ReadConfigurationTx(txNb)
		if err != nil {
			config.logger.Errorf("failed to read configuration tx %v : %v", txNb, err)
			return rx, tx, err
		}
		tx = append(tx, conf)
	}
	return rx, tx, nil
}

// Writes configuration of a single RxSPDO (1-based).
// The objects are created if they don't exist yet.
func (config *SODConfigurator) WriteConfigurationRx(rxNb uint16, conf RxSpdoParameter) error {
	if err := checkNumber(rxNb); err != nil {
		return err
	}
	if config.od.Index(rxComIndex(rxNb)) == nil {
		err := config.od.AddRxSpdo(rxNb, conf.Sadr, conf.Sct, conf.TxSpdoNo)
		if err != nil {
			return err
		}
	}
	entry, err := config.entry(rxComIndex(rxNb))
	if err != nil {
		return err
	}
	write16 := func(sub uint8, v uint16) {
		if err == nil {
			err = entry.PutUint16(sub, v, false)
		}
	}
	write32 := func(sub uint8, v uint32) {
		if err == nil {
			err = entry.PutUint32(sub, v, false)
		}
	}
	write16(sod.SubRxSadr, conf.Sadr)
	write32(sod.SubRxSct, conf.Sct)
	if err == nil {
		err = entry.PutUint8(sod.SubRxNbConsecTReq, conf.NbConsecutiveTReq, false)
	}
	write32(sod.SubRxTimeDelayTReq, conf.TimeDelayTReq)
	write32(sod.SubRxTimeDelaySync, conf.TimeDelaySync)
	write16(sod.SubRxMinTSyncPropDelay, conf.MinTSyncPropDelay)
	write16(sod.SubRxMaxTSyncPropDelay, conf.MaxTSyncPropDelay)
	write16(sod.SubRxMinSpdoPropDelay, conf.MinSpdoPropDelay)
	write16(sod.SubRxBestCaseTResDelay, conf.BestCaseTResDelay)
	write32(sod.SubRxTReqCycle, conf.TReqCycle)
	write16(sod.SubRxTxSpdoNo, conf.TxSpdoNo)
	if err != nil {
		return err
	}
	return config.WriteMappings(rxMapIndex(rxNb), conf.Mappings)
}

// Writes configuration of a single TxSPDO (1-based).
// The objects are created if they don't exist yet.
func (config *SODConfigurator) WriteConfigurationTx(txNb uint16, conf TxSpdoParameter) error {
	if err := checkNumber(txNb); err != nil {
		return err
	}
	if config.od.Index(txComIndex(txNb)) == nil {
		err := config.od.AddTxSpdo(txNb, conf.Sadr)
		if err != nil {
			return err
		}
	}
	entry, err := config.entry(txComIndex(txNb))
	if err != nil {
		return err
	}
	err = entry.PutUint16(sod.SubTxSadr, conf.Sadr, false)
	if err != nil {
		return err
	}
	err = entry.PutUint16(sod.SubTxRefreshPrescale, conf.RefreshPrescale, false)
	if err != nil {
		return err
	}
	err = entry.PutUint8(sod.SubTxNbTRes, conf.NbTRes, false)
	if err != nil {
		return err
	}
	return config.WriteMappings(txMapIndex(txNb), conf.Mappings)
}

// Disable an RxSPDO, an unused RxSPDO has no producer address
func (config *SODConfigurator) DisableRx(rxNb uint16) error {
	entry, err := config.entry(rxComIndex(rxNb))
	if err != nil {
		return err
	}
	return entry.PutUint16(sod.SubRxSadr, 0, false)
}

// Disable a TxSPDO, an unused TxSPDO has no own address
func (config *SODConfigurator) DisableTx(txNb uint16) error {
	entry, err := config.entry(txComIndex(txNb))
	if err != nil {
		return err
	}
	return entry.PutUint16(sod.SubTxSadr, 0, false)
}

// Apply writes the node overrides and the SPDO lists of the configuration
// into the SOD. When a list is given, SOD objects past its end are disabled.
func (config *SODConfigurator) Apply(cfg *Config) error {
	if cfg.Node.Domain != 0 {
		if err := config.WriteDomain(cfg.Node.Domain); err != nil {
			return err
		}
	}
	if cfg.Node.Address != 0 {
		if err := config.WriteAddress(cfg.Node.Address); err != nil {
			return err
		}
	}
	if len(cfg.Spdo.Rx) > 0 {
		for i, conf := range cfg.Spdo.Rx {
			if err := config.WriteConfigurationRx(uint16(i+1), conf); err != nil {
				return err
			}
		}
		for rxNb := uint16(len(cfg.Spdo.Rx) + 1); config.od.Index(rxComIndex(rxNb)) != nil; rxNb++ {
			if err := config.DisableRx(rxNb); err != nil {
				return err
			}
		}
	}
	if len(cfg.Spdo.Tx) > 0 {
		for i, conf := range cfg.Spdo.Tx {
			if err := config.WriteConfigurationTx(uint16(i+1), conf); err != nil {
				return err
			}
		}
		for txNb := uint16(len(cfg.Spdo.Tx) + 1); config.od.Index(txComIndex(txNb)) != nil; txNb++ {
			if err := config.DisableTx(txNb); err != nil {
				return err
			}
		}
	}
	config.logger.Infof("applied configuration, %v rx, %v tx", len(cfg.Spdo.Rx), len(cfg.Spdo.Tx))
	return nil
}
