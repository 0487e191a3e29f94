package spdo

import "github.com/samsamfire/goopensafety/pkg/frame"

// NotFound is returned by lookups of an unassigned address
const NotFound = uint16(0xFFFF)

// AddressTable assigns wire addresses to dense SPDO indexes.
// RxSPDOs are looked up by their source address, TxSPDOs by their own
// address, which is the target address of received time requests.
// Both directions use a direct table covering the whole address space.
type AddressTable struct {
	rx    [frame.MaxAddress + 1]uint16
	tx    [frame.MaxAddress + 1]uint16
	maxRx uint16
	maxTx uint16
}

func NewAddressTable(maxRx uint16, maxTx uint16) *AddressTable {
	table := &AddressTable{maxRx: maxRx, maxTx: maxTx}
	table.Reset()
	return table
}

// Reset clears all assignments
func (table *AddressTable) Reset() {
	for i := range table.rx {
		table.rx[i] = NotFound
		table.tx[i] = NotFound
	}
}

func assign(entries []uint16, index uint16, max uint16, address uint16) bool {
	if address == 0 {
		return true
	}
	if address > frame.MaxAddress || index >= max {
		return false
	}
	current := entries[address]
	if current != NotFound && current != index {
		return false
	}
	entries[address] = index
	return true
}

func lookup(entries []uint16, address uint16) uint16 {
	if address == 0 || address > frame.MaxAddress {
		return NotFound
	}
	return entries[address]
}

// AddSourceAddress assigns address to RxSPDO rxIdx. Returns false if the
// address is out of range or already assigned to another RxSPDO.
// Address 0 marks an unused object and is always accepted.
func (table *AddressTable) AddSourceAddress(rxIdx uint16, address uint16) bool {
	return assign(table.rx[:], rxIdx, table.maxRx, address)
}

// AddTargetAddress assigns address to TxSPDO txIdx. Returns false if the
// address is out of range or already assigned to another TxSPDO.
// Address 0 marks an unused object and is always accepted.
func (table *AddressTable) AddTargetAddress(txIdx uint16, address uint16) bool {
	return assign(table.tx[:], txIdx, table.maxTx, address)
}

// LookupRxIndexForSourceAddress returns the RxSPDO consuming from address or [NotFound]
func (table *AddressTable) LookupRxIndexForSourceAddress(address uint16) uint16 {
	return lookup(table.rx[:], address)
}

// LookupTxIndexForTargetAddress returns the TxSPDO with address or [NotFound]
func (table *AddressTable) LookupTxIndexForTargetAddress(address uint16) uint16 {
	return lookup(table.tx[:], address)
}
