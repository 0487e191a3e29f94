package sod

import (
	"fmt"
	"strconv"
)

// SOD result codes, also used as errors
type ODR int8

const (
	ErrPartial      ODR = -1
	ErrNo           ODR = 0
	ErrOutOfMem     ODR = 1
	ErrUnsuppAccess ODR = 2
	ErrWriteOnly    ODR = 3
	ErrReadonly     ODR = 4
	ErrIdxNotExist  ODR = 5
	ErrNoMap        ODR = 6
	ErrMapLen       ODR = 7
	ErrParIncompat  ODR = 8
	ErrDevIncompat  ODR = 9
	ErrHw           ODR = 10
	ErrTypeMismatch ODR = 11
	ErrDataLong     ODR = 12
	ErrDataShort    ODR = 13
	ErrSubNotExist  ODR = 14
	ErrInvalidValue ODR = 15
	ErrValueHigh    ODR = 16
	ErrValueLow     ODR = 17
	ErrMaxLessMin   ODR = 18
	ErrGeneral      ODR = 20
	ErrDataDevState ODR = 23
	ErrUnsorted     ODR = 24
)

var odrDescriptionMap = map[ODR]string{
	ErrPartial:      "partial access",
	ErrNo:           "no error",
	ErrOutOfMem:     "out of memory",
	ErrUnsuppAccess: "unsupported access to an object",
	ErrWriteOnly:    "attempt to read a write only object",
	ErrReadonly:     "attempt to write a read only object",
	ErrIdxNotExist:  "object does not exist in the dictionary",
	ErrNoMap:        "object cannot be mapped to the SPDO",
	ErrMapLen:       "number and length of object to be mapped exceeds SPDO length",
	ErrParIncompat:  "general parameter incompatibility",
	ErrDevIncompat:  "general internal incompatibility in device",
	ErrHw:           "access failed due to hardware error",
	ErrTypeMismatch: "data type does not match, length does not match",
	ErrDataLong:     "data type does not match, length too high",
	ErrDataShort:    "data type does not match, length too short",
	ErrSubNotExist:  "sub index does not exist",
	ErrInvalidValue: "invalid value for parameter (download only)",
	ErrValueHigh:    "value range of parameter written too high",
	ErrValueLow:     "value range of parameter written too low",
	ErrMaxLessMin:   "maximum value is less than minimum value",
	ErrGeneral:      "general error",
	ErrDataDevState: "data cannot be transferred because of present device state",
	ErrUnsorted:     "object table is not sorted by index and sub index",
}

func (odr ODR) Error() string {
	description, ok := odrDescriptionMap[odr]
	if ok {
		return description
	}
	return fmt.Sprintf("SOD error %v", strconv.Itoa(int(odr)))
}

// Data types
const (
	BOOLEAN        uint8 = 0x01
	INTEGER8       uint8 = 0x02
	INTEGER16      uint8 = 0x03
	INTEGER32      uint8 = 0x04
	UNSIGNED8      uint8 = 0x05
	UNSIGNED16     uint8 = 0x06
	UNSIGNED32     uint8 = 0x07
	REAL32         uint8 = 0x08
	VISIBLE_STRING uint8 = 0x09
	OCTET_STRING   uint8 = 0x0A
	DOMAIN         uint8 = 0x0F
	REAL64         uint8 = 0x11
	INTEGER64      uint8 = 0x15
	UNSIGNED64     uint8 = 0x1B
)

// Object types
const (
	ObjectTypeDOMAIN uint8 = 2
	ObjectTypeVAR    uint8 = 7
	ObjectTypeARRAY  uint8 = 8
	ObjectTypeRECORD uint8 = 9
)

// Object attributes
const (
	AttributeR      uint8 = 0x01 // Object may be read by acyclic services
	AttributeW      uint8 = 0x02 // Object may be written by acyclic services
	AttributeRw     uint8 = 0x03 // Object may be read or written
	AttributeTxSpdo uint8 = 0x04 // Object is mappable into a TxSPDO (can be read)
	AttributeRxSpdo uint8 = 0x08 // Object is mappable into a RxSPDO (can be written)
	AttributeSpdo   uint8 = 0x0C // Object is mappable into any SPDO
	AttributeStr    uint8 = 0x80 // Shorter value may be written
)

// Well known SOD indexes
const (
	IndexCommonComParameters = uint16(0x1200)
	IndexRxSpdoComBase       = uint16(0x1400)
	IndexRxSpdoMappingBase   = uint16(0x1800)
	IndexTxSpdoComBase       = uint16(0xC000)
	IndexTxSpdoMappingBase   = uint16(0xC400)
	MaxSpdoNumber            = uint16(1023)
)

// Sub indexes of common communication parameters
const (
	SubCommonSdn  uint8 = 1
	SubCommonSadr uint8 = 2
)

// Sub indexes of RxSPDO communication parameters
const (
	SubRxSadr              uint8 = 1
	SubRxSct               uint8 = 2
	SubRxNbConsecTReq      uint8 = 3
	SubRxTimeDelayTReq     uint8 = 4
	SubRxTimeDelaySync     uint8 = 5
	SubRxMinTSyncPropDelay uint8 = 6
	SubRxMaxTSyncPropDelay uint8 = 7
	SubRxMinSpdoPropDelay  uint8 = 8
	SubRxBestCaseTResDelay uint8 = 9
	SubRxTReqCycle         uint8 = 10
	SubRxTxSpdoNo          uint8 = 11
)

// Sub indexes of TxSPDO communication parameters
const (
	SubTxSadr            uint8 = 1
	SubTxRefreshPrescale uint8 = 2
	SubTxNbTRes          uint8 = 3
)
