package serr

// Error codes
type Code uint16

const (
	// Activation, structural
	CodeSodObjectMissing    Code = 0x0101
	CodeComIndexGap         Code = 0x0102
	CodeRxAddressInvalid    Code = 0x0103
	CodeTxAddressInvalid    Code = 0x0104
	CodeRxMappingInvalid    Code = 0x0105
	CodeTxMappingInvalid    Code = 0x0106
	CodeSodTableCorrupt     Code = 0x0107
	CodeUnknownFrameType    Code = 0x0108
	CodeCommonParameters    Code = 0x0109
	CodeSpdoCountExceeded   Code = 0x010A
	CodeRxParameters        Code = 0x0201
	CodeRxMappingLength     Code = 0x0202
	CodeTxMappingLength     Code = 0x0203
	CodeTxSpdoNoInvalid     Code = 0x0204
	CodeTxResponseCountZero Code = 0x0205
	CodeTxParameters        Code = 0x0206

	// Consumer
	CodeSctTimeout      Code = 0x0301
	CodeDelayTooShort   Code = 0x0302
	CodeDelayTooLong    Code = 0x0303
	CodeRxPayloadLength Code = 0x0304
	CodeExtCtMismatch   Code = 0x0305
	CodeExtCtInvalid    Code = 0x0306
	CodeTimeSyncLost    Code = 0x0307

	// Time synchronization
	CodeTReqExpired     Code = 0x0401
	CodeTReqNotAnswered Code = 0x0402
	CodeTResSequence    Code = 0x0403
	CodeTResTooShort    Code = 0x0404
	CodeTResTooLate     Code = 0x0405
	CodeTResUnexpected  Code = 0x0406
	CodeTReqUnexpected  Code = 0x0407
	CodeTReqSendFailed  Code = 0x0408

	// Producer
	CodeTxSendFailed Code = 0x0501
)

var codeDescriptionMap = map[Code]string{
	CodeSodObjectMissing:    "mandatory SOD object missing",
	CodeComIndexGap:         "gap in SPDO communication parameter indexes",
	CodeRxAddressInvalid:    "RxSPDO source address duplicated or out of range",
	CodeTxAddressInvalid:    "TxSPDO address duplicated or out of range",
	CodeRxMappingInvalid:    "RxSPDO mapping references an unmappable object",
	CodeTxMappingInvalid:    "TxSPDO mapping references an unmappable object",
	CodeSodTableCorrupt:     "SOD table corrupt",
	CodeUnknownFrameType:    "unknown SPDO frame type",
	CodeCommonParameters:    "common communication parameters invalid",
	CodeSpdoCountExceeded:   "more SPDOs configured than supported",
	CodeRxParameters:        "RxSPDO timing parameters inconsistent",
	CodeRxMappingLength:     "RxSPDO mapping too long",
	CodeTxMappingLength:     "TxSPDO mapping too long",
	CodeTxSpdoNoInvalid:     "TxSPDO number for time requests invalid",
	CodeTxResponseCountZero: "time request received but TxSPDO answers no requests",
	CodeTxParameters:        "TxSPDO parameters inconsistent",
	CodeSctTimeout:          "safety control time elapsed",
	CodeDelayTooShort:       "propagation delay too short",
	CodeDelayTooLong:        "propagation delay too long",
	CodeRxPayloadLength:     "received payload length does not match mapping",
	CodeExtCtMismatch:       "extended CT mode does not match producer",
	CodeExtCtInvalid:        "extended CT flagged invalid",
	CodeTimeSyncLost:        "time synchronization lost",
	CodeTReqExpired:         "time request cycle expired",
	CodeTReqNotAnswered:     "too many time requests not answered",
	CodeTResSequence:        "time response sequence number out of window",
	CodeTResTooShort:        "time response round trip too short",
	CodeTResTooLate:         "time response round trip too long",
	CodeTResUnexpected:      "time response received in wrong state",
	CodeTReqUnexpected:      "time request received in wrong state",
	CodeTReqSendFailed:      "time request could not be sent",
	CodeTxSendFailed:        "SPDO could not be sent",
}

func (code Code) String() string {
	description, ok := codeDescriptionMap[code]
	if ok {
		return description
	}
	return "Invalid or not implemented error code"
}

// Statistic counters
type Stat uint8

const (
	StatRxFrames Stat = iota
	StatTxFrames
	StatDecodeFailure
	StatDomainMismatch
	StatUnmappedAddress
	StatCtInvalid
	StatNotSynchronized
	StatDelayTooShort
	StatDelayTooLong
	StatSctTimeout
	StatBaseline
	StatPayloadLength
	StatExtCt
	StatTReqSent
	StatTReqReceived
	StatTResSent
	StatTResReceived
	StatTResSequence
	StatTResTooShort
	StatTResTooLate
	StatTResWrongTarget
	StatTResUnexpected
	StatTimeSyncOk
	StatTimeSyncFailed
	StatTxFailed
	statCount
)

var statNames = [statCount]string{
	"rx frames",
	"tx frames",
	"decode failures",
	"domain mismatch",
	"unmapped address",
	"CT invalid",
	"not synchronized",
	"delay too short",
	"delay too long",
	"SCT timeout",
	"baseline frames",
	"payload length",
	"extended CT",
	"time requests sent",
	"time requests received",
	"time responses sent",
	"time responses received",
	"time response sequence",
	"time response too short",
	"time response too late",
	"time response wrong target",
	"time response unexpected",
	"time sync ok",
	"time sync failed",
	"tx failed",
}

func (stat Stat) String() string {
	if stat >= statCount {
		return "unknown"
	}
	return statNames[stat]
}
