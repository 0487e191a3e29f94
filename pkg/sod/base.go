package sod

import (
	_ "embed"
)

//go:embed base.ini
var rawDefaultSod []byte

// Default returns the embedded default SOD. It has one RxSPDO consuming
// from address 0x002 and one TxSPDO producing on address 0x001.
func Default() *ObjectDictionary {
	od, err := Parse(rawDefaultSod)
	if err != nil {
		panic(err)
	}
	return od
}
