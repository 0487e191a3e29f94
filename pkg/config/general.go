package config

import "github.com/samsamfire/goopensafety/pkg/sod"

// Read safety domain number (0x1200 sub1)
func (config *SODConfigurator) ReadDomain() (uint16, error) {
	entry, err := config.entry(sod.IndexCommonComParameters)
	if err != nil {
		return 0, err
	}
	return entry.Uint16(sod.SubCommonSdn)
}

// Read own safety address (0x1200 sub2)
func (config *SODConfigurator) ReadAddress() (uint16, error) {
	entry, err := config.entry(sod.IndexCommonComParameters)
	if err != nil {
		return 0, err
	}
	return entry.Uint16(sod.SubCommonSadr)
}

func (config *SODConfigurator) WriteDomain(domain uint16) error {
	entry, err := config.entry(sod.IndexCommonComParameters)
	if err != nil {
		return err
	}
	return entry.PutUint16(sod.SubCommonSdn, domain, false)
}

func (config *SODConfigurator) WriteAddress(address uint16) error {
	entry, err := config.entry(sod.IndexCommonComParameters)
	if err != nil {
		return err
	}
	return entry.PutUint16(sod.SubCommonSadr, address, false)
}
