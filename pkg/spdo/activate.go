package spdo

import (
	"errors"
	"fmt"

	opensafety "github.com/samsamfire/goopensafety"
	"github.com/samsamfire/goopensafety/pkg/frame"
	"github.com/samsamfire/goopensafety/pkg/serr"
	"github.com/samsamfire/goopensafety/pkg/sod"
)

// Activate reads the SPDO configuration from the SOD and starts every
// configured object in the safe state.
// Structural errors of the SOD are fatal and abort the whole activation.
// Inconsistent parameters of a single SPDO only leave that SPDO inactive.
func (s *SPDO) Activate(now uint32) error {
	s.lock()
	defer s.unlock()
	s.active.Store(false)
	err := s.activate(now)
	if err != nil {
		s.logger.Errorf("activation failed : %v", err)
		return err
	}
	s.active.Store(true)
	s.logger.Infof("activated, domain x%x, %v rx, %v tx", s.domain, len(s.rx), len(s.tx))
	return nil
}

// Deactivate stops all SPDOs, consumers return to the safe state
func (s *SPDO) Deactivate() {
	s.lock()
	defer s.unlock()
	wasActive := s.active.Swap(false)
	for _, rx := range s.rx {
		rx.consumer.state = ConsumerUnsynced
		rx.toSafeState()
	}
	if wasActive {
		s.logger.Info("deactivated")
	}
}

func (s *SPDO) fatal(code serr.Code, index uint16, err error) error {
	s.report(serr.ClassFatal, code, uint32(index))
	return fmt.Errorf("x%x: %v: %w", index, err, opensafety.ErrSodParameters)
}

func (s *SPDO) activate(now uint32) error {
	s.addresses.Reset()
	s.rx = nil
	s.tx = nil

	common := s.od.Index(sod.IndexCommonComParameters)
	if common == nil {
		return s.fatal(serr.CodeSodObjectMissing, sod.IndexCommonComParameters, sod.ErrIdxNotExist)
	}
	domain, err := common.Uint16(sod.SubCommonSdn)
	if err != nil {
		return s.fatal(serr.CodeSodObjectMissing, sod.IndexCommonComParameters, err)
	}
	sadr, err := common.Uint16(sod.SubCommonSadr)
	if err != nil {
		return s.fatal(serr.CodeSodObjectMissing, sod.IndexCommonComParameters, err)
	}
	if domain == 0 || domain > frame.MaxDomain || sadr == 0 || sadr > frame.MaxAddress {
		return s.fatal(serr.CodeCommonParameters, sod.IndexCommonComParameters, sod.ErrInvalidValue)
	}
	s.domain = domain
	s.sadr = sadr
	s.ct.extended = s.config.ExtendedCT
	s.ct.reset(now)

	nbRx, err := s.countSpdos(sod.IndexRxSpdoComBase, sod.IndexRxSpdoMappingBase, s.config.MaxRxSpdo)
	if err != nil {
		return err
	}
	nbTx, err := s.countSpdos(sod.IndexTxSpdoComBase, sod.IndexTxSpdoMappingBase, s.config.MaxTxSpdo)
	if err != nil {
		return err
	}

	for i := uint16(0); i < nbTx; i++ {
		tx := newTxSpdo(i, s.config.MaxPayloadLength, s.logger)
		s.tx = append(s.tx, tx)
		if err := s.configureTx(tx); err != nil {
			return err
		}
	}
	for i := uint16(0); i < nbRx; i++ {
		rx := newRxSpdo(i, s.config.MaxPayloadLength, s.logger)
		s.rx = append(s.rx, rx)
		if err := s.configureRx(rx); err != nil {
			return err
		}
	}
	s.pair()

	for _, tx := range s.tx {
		tx.reset(now)
	}
	for _, rx := range s.rx {
		rx.reset()
	}
	return nil
}

// countSpdos returns the number of consecutive communication parameter
// objects starting at comBase. Every one needs its mapping object.
func (s *SPDO) countSpdos(comBase uint16, mapBase uint16, max uint16) (uint16, error) {
	count := uint16(0)
	for _, entry := range s.od.Entries() {
		if entry.Index < comBase || entry.Index >= comBase+sod.MaxSpdoNumber {
			continue
		}
		if entry.Index != comBase+count {
			return 0, s.fatal(serr.CodeComIndexGap, entry.Index, sod.ErrIdxNotExist)
		}
		if s.od.Index(mapBase+count) == nil {
			return 0, s.fatal(serr.CodeSodObjectMissing, mapBase+count, sod.ErrIdxNotExist)
		}
		s.protect(entry)
		s.protect(s.od.Index(mapBase + count))
		count++
	}
	if count > max {
		return 0, s.fatal(serr.CodeSpdoCountExceeded, comBase+max, sod.ErrDevIncompat)
	}
	return count, nil
}

// readMapping reads the mapping parameters of an SPDO
func readMapping(entry *sod.Entry) ([]uint32, error) {
	count, err := entry.Uint8(0)
	if err != nil {
		return nil, err
	}
	mapParams := make([]uint32, 0, count)
	for sub := uint8(1); sub <= count; sub++ {
		mapParam, err := entry.Uint32(sub)
		if err != nil {
			return nil, err
		}
		mapParams = append(mapParams, mapParam)
	}
	return mapParams, nil
}

// configureMapping reads and applies a mapping. Returns true if the
// SPDO can be used, false on a length error. Any other error is fatal.
func (s *SPDO) configureMapping(m *Mapping, mapIndex uint16, lengthCode serr.Code, invalidCode serr.Code, spdoIndex uint16) (bool, error) {
	mapParams, err := readMapping(s.od.Index(mapIndex))
	if err != nil {
		return false, s.fatal(serr.CodeSodObjectMissing, mapIndex, err)
	}
	position, err := m.Configure(s.od, mapParams)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sod.ErrMapLen):
		s.report(serr.ClassMinor, lengthCode, uint32(spdoIndex))
		return false, nil
	default:
		s.report(serr.ClassFatal, invalidCode, uint32(mapIndex)<<16|uint32(position+1))
		return false, fmt.Errorf("x%x entry %v: %v: %w", mapIndex, position+1, err, opensafety.ErrSodParameters)
	}
}

func (s *SPDO) configureRx(rx *RxSpdo) error {
	index := sod.IndexRxSpdoComBase + rx.index
	entry := s.od.Index(index)
	p := &rx.params
	var err error
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
	read16(sod.SubRxSadr, &p.sadr)
	read32(sod.SubRxSct, &p.sct)
	if err == nil {
		p.nbConsecTReq, err = entry.Uint8(sod.SubRxNbConsecTReq)
	}
	read32(sod.SubRxTimeDelayTReq, &p.timeDelayTReq)
	read32(sod.SubRxTimeDelaySync, &p.timeDelaySync)
	read16(sod.SubRxMinTSyncPropDelay, &p.minTSyncPropDelay)
	read16(sod.SubRxMaxTSyncPropDelay, &p.maxTSyncPropDelay)
	read16(sod.SubRxMinSpdoPropDelay, &p.minSpdoPropDelay)
	read16(sod.SubRxBestCaseTResDelay, &p.bestCaseTResDelay)
	read32(sod.SubRxTReqCycle, &p.tReqCycle)
	read16(sod.SubRxTxSpdoNo, &p.txSpdoNo)
	if err != nil {
		return s.fatal(serr.CodeSodObjectMissing, index, err)
	}

	if !s.addresses.AddSourceAddress(rx.index, p.sadr) {
		return s.fatal(serr.CodeRxAddressInvalid, index, sod.ErrInvalidValue)
	}
	if p.sadr == 0 {
		rx.logger.Debug("unused")
		return nil
	}
	ok, err := s.configureMapping(rx.mapping, sod.IndexRxSpdoMappingBase+rx.index,
		serr.CodeRxMappingLength, serr.CodeRxMappingInvalid, rx.index)
	if err != nil || !ok {
		return err
	}
	if err := p.validate(); err != nil {
		rx.logger.Warnf("inconsistent parameters : %v", err)
		s.report(serr.ClassMinor, serr.CodeRxParameters, uint32(rx.index))
		return nil
	}
	rx.active = true
	return nil
}

func (p *rxParameters) validate() error {
	switch {
	case p.sct == 0:
		return fmt.Errorf("SCT is 0")
	case p.nbConsecTReq == 0 || p.nbConsecTReq > MaxConsecutiveTReq:
		return fmt.Errorf("%v consecutive time requests", p.nbConsecTReq)
	case p.bestCaseTResDelay > p.minTSyncPropDelay:
		return fmt.Errorf("best case response delay %v above min propagation delay %v", p.bestCaseTResDelay, p.minTSyncPropDelay)
	case p.minTSyncPropDelay > p.maxTSyncPropDelay:
		return fmt.Errorf("min propagation delay %v above max %v", p.minTSyncPropDelay, p.maxTSyncPropDelay)
	case p.tReqCycle <= uint32(p.maxTSyncPropDelay):
		return fmt.Errorf("time request cycle %v not above max propagation delay %v", p.tReqCycle, p.maxTSyncPropDelay)
	case uint32(p.minSpdoPropDelay) > p.sct:
		return fmt.Errorf("min SPDO propagation delay %v above SCT %v", p.minSpdoPropDelay, p.sct)
	}
	return nil
}

func (s *SPDO) configureTx(tx *TxSpdo) error {
	index := sod.IndexTxSpdoComBase + tx.index
	entry := s.od.Index(index)
	var err error
	tx.sadr, err = entry.Uint16(sod.SubTxSadr)
	if err == nil {
		tx.refreshPrescale, err = entry.Uint16(sod.SubTxRefreshPrescale)
	}
	if err == nil {
		tx.nbTRes, err = entry.Uint8(sod.SubTxNbTRes)
	}
	if err != nil {
		return s.fatal(serr.CodeSodObjectMissing, index, err)
	}
	if !s.addresses.AddTargetAddress(tx.index, tx.sadr) {
		return s.fatal(serr.CodeTxAddressInvalid, index, sod.ErrInvalidValue)
	}
	if tx.sadr == 0 {
		tx.logger.Debug("unused")
		return nil
	}
	ok, err := s.configureMapping(tx.mapping, sod.IndexTxSpdoMappingBase+tx.index,
		serr.CodeTxMappingLength, serr.CodeTxMappingInvalid, tx.index)
	if err != nil || !ok {
		return err
	}
	if tx.refreshPrescale == 0 {
		tx.logger.Warn("inconsistent parameters : refresh prescale is 0")
		s.report(serr.ClassMinor, serr.CodeTxParameters, uint32(tx.index))
		return nil
	}
	tx.active = true
	return nil
}

// pair links every RxSPDO to the TxSPDO carrying its time requests
func (s *SPDO) pair() {
	for _, rx := range s.rx {
		if !rx.active {
			continue
		}
		txNo := rx.params.txSpdoNo
		if txNo == 0 || int(txNo) > len(s.tx) || !s.tx[txNo-1].active {
			rx.logger.Warnf("invalid TxSPDO number %v for time requests", txNo)
			s.report(serr.ClassMinor, serr.CodeTxSpdoNoInvalid, uint32(rx.index))
			rx.active = false
			continue
		}
		rx.txIdx = txNo - 1
		tx := s.tx[rx.txIdx]
		tx.consumers = append(tx.consumers, rx.index)
	}
}
