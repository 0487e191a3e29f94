// Package frame implements the serialization of openSAFETY SPDO frames.
//
// A frame is made of two redundant sub-frames, each protected by its own CRC.
// Layout of sub-frame 1 :
//
//	SADR(2) | ID(1) | LE(1) | CT low(1) | payload(LE) | CRC(1 or 2)
//
// Layout of sub-frame 2 :
//
//	SADR^SDN(2) | TR(1) | LE(1) | CT high(1) | ExtCT(3) | TADR(2) | payload(LE) | CRC(1 or 2)
//
// CRC-8 is used when payload length is <= 8 bytes, CRC-16 otherwise.
// Multi-byte fields are little endian.
package frame

import "fmt"

const (
	MaxPayloadLength   = 254
	ShortPayloadLength = 8 // Up to this payload length, CRC-8 is used
	MaxAddress         = 1023
	MaxDomain          = 1023
)

// Frame identifiers
const (
	IDTimeRequest     uint8 = 0x28 // SPDO with time request
	IDDataOnly        uint8 = 0x30 // SPDO with data only
	IDTimeResponse    uint8 = 0x38 // SPDO with time response
	IDTypeMask        uint8 = 0x3F
	IDConnectionValid uint8 = 0x80
)

// TR (time request) byte content
const (
	TRMask         uint8 = 0x3F // 6 bit sequence number
	TRExtCtPresent uint8 = 0x40 // Producer sends a 40 bit CT
	TRExtCtValid   uint8 = 0x80 // Extension of the CT is initialized
	TRModulo             = 64
)

const (
	sub1HeaderSize = 5
	sub2HeaderSize = 10
	ExtCtMask      = 0xFFFFFF
)

var idNameMap = map[uint8]string{
	IDTimeRequest:  "TIME-REQUEST",
	IDDataOnly:     "DATA-ONLY",
	IDTimeResponse: "TIME-RESPONSE",
}

// Header holds every field carried by an SPDO frame
type Header struct {
	// Safety domain number
	Domain uint16
	// Source address of the producing SPDO
	Source uint16
	// Frame identifier, frame type + connection valid bit
	ID uint8
	// Time request sequence number and extended CT flags
	TR uint8
	// Consecutive time, lower 16 bits
	CT uint16
	// Upper 24 bits of a 40 bit consecutive time
	ExtCT uint32
	// Target address, only meaningful for time request/response
	Target uint16
	// Payload length
	Length uint8
}

type Frame struct {
	Header
	Payload []byte
}

// Type returns the frame type bits of the identifier
func (h *Header) Type() uint8 {
	return h.ID & IDTypeMask
}

// ConnectionValid returns the connection valid bit
func (h *Header) ConnectionValid() bool {
	return h.ID&IDConnectionValid != 0
}

// Sequence returns the 6 bit time request sequence number
func (h *Header) Sequence() uint8 {
	return h.TR & TRMask
}

// ExtCtPresent is true if the producer uses a 40 bit CT
func (h *Header) ExtCtPresent() bool {
	return h.TR&TRExtCtPresent != 0
}

// ExtCtValid is true if the CT extension is initialized
func (h *Header) ExtCtValid() bool {
	return h.TR&TRExtCtValid != 0
}

// CT40 returns the full 40 bit consecutive time
func (h *Header) CT40() uint64 {
	return uint64(h.ExtCT&ExtCtMask)<<16 | uint64(h.CT)
}

// IsSpdo returns true if the identifier belongs to the SPDO frame space.
// This does not guarantee that the exact frame type is known.
func IsSpdo(id uint8) bool {
	id &= IDTypeMask
	return id&0x20 != 0 && id&0x18 != 0
}

func (h Header) String() string {
	name, ok := idNameMap[h.Type()]
	if !ok {
		name = fmt.Sprintf("UNKNOWN(x%x)", h.Type())
	}
	return fmt.Sprintf("%s sdn:x%x sadr:x%x tadr:x%x tr:%d ct:x%x le:%d",
		name, h.Domain, h.Source, h.Target, h.Sequence(), h.CT, h.Length,
	)
}

// New creates a frame with the given header fields and payload, length is set from payload
func New(id uint8, domain uint16, source uint16, target uint16, payload []byte) *Frame {
	return &Frame{
		Header: Header{
			Domain: domain,
			Source: source,
			ID:     id,
			Target: target,
			Length: uint8(len(payload)),
		},
		Payload: payload,
	}
}

// SetCT40 splits a 40 bit CT into CT and ExtCT and sets the extension flags
func (f *Frame) SetCT40(ct uint64) {
	f.CT = uint16(ct)
	f.ExtCT = uint32(ct>>16) & ExtCtMask
	f.TR |= TRExtCtPresent | TRExtCtValid
}
