package frame

import (
	"encoding/binary"
	"errors"

	"github.com/sigurn/crc16"
	"github.com/sigurn/crc8"
)

var (
	ErrFrameShort    = errors.New("frame is too short")
	ErrFrameLength   = errors.New("frame length does not match payload length")
	ErrPayloadLength = errors.New("payload exceeds maximum SPDO length")
	ErrCrcSub1       = errors.New("crc mismatch in sub-frame 1")
	ErrCrcSub2       = errors.New("crc mismatch in sub-frame 2")
	ErrSubMismatch   = errors.New("sub-frame 1 and sub-frame 2 are inconsistent")
	ErrAddress       = errors.New("address out of range")
)

// openSAFETY polynomials
var (
	crc8Params = crc8.Params{
		Poly:   0x2F,
		Init:   0x00,
		RefIn:  false,
		RefOut: false,
		XorOut: 0x00,
		Check:  0x3E,
		Name:   "CRC-8/OPENSAFETY",
	}
	crc16Params = crc16.Params{
		Poly:   0x755B,
		Init:   0x0000,
		RefIn:  false,
		RefOut: false,
		XorOut: 0x0000,
		Check:  0x20FE,
		Name:   "CRC-16/OPENSAFETY-B",
	}
	crc8Table  = crc8.MakeTable(crc8Params)
	crc16Table = crc16.MakeTable(crc16Params)
)

func crcSize(length int) int {
	if length <= ShortPayloadLength {
		return 1
	}
	return 2
}

// Size returns the encoded size of a frame with the given payload length
func Size(length int) int {
	crc := crcSize(length)
	return sub1HeaderSize + length + crc + sub2HeaderSize + length + crc
}

func putCrc(buf []byte, length int) int {
	if crcSize(length) == 1 {
		buf[len(buf)-1] = crc8.Checksum(buf[:len(buf)-1], crc8Table)
		return 1
	}
	binary.LittleEndian.PutUint16(buf[len(buf)-2:], crc16.Checksum(buf[:len(buf)-2], crc16Table))
	return 2
}

func checkCrc(buf []byte, length int) bool {
	if crcSize(length) == 1 {
		return crc8.Checksum(buf[:len(buf)-1], crc8Table) == buf[len(buf)-1]
	}
	return crc16.Checksum(buf[:len(buf)-2], crc16Table) == binary.LittleEndian.Uint16(buf[len(buf)-2:])
}

// Encode serializes a frame into its wire representation
func Encode(f *Frame) ([]byte, error) {
	if f == nil {
		return nil, ErrFrameShort
	}
	length := len(f.Payload)
	if length > MaxPayloadLength {
		return nil, ErrPayloadLength
	}
	if int(f.Length) != length {
		return nil, ErrFrameLength
	}
	if f.Source > MaxAddress || f.Target > MaxAddress {
		return nil, ErrAddress
	}
	crc := crcSize(length)
	sub1Size := sub1HeaderSize + length + crc
	data := make([]byte, Size(length))

	// Sub-frame 1
	sub1 := data[:sub1Size]
	binary.LittleEndian.PutUint16(sub1[0:2], f.Source)
	sub1[2] = f.ID
	sub1[3] = f.Length
	sub1[4] = byte(f.CT)
	copy(sub1[sub1HeaderSize:], f.Payload)
	putCrc(sub1, length)

	// Sub-frame 2
	sub2 := data[sub1Size:]
	binary.LittleEndian.PutUint16(sub2[0:2], f.Source^f.Domain)
	sub2[2] = f.TR
	sub2[3] = f.Length
	sub2[4] = byte(f.CT >> 8)
	ext := f.ExtCT & ExtCtMask
	sub2[5] = byte(ext)
	sub2[6] = byte(ext >> 8)
	sub2[7] = byte(ext >> 16)
	binary.LittleEndian.PutUint16(sub2[8:10], f.Target)
	copy(sub2[sub2HeaderSize:], f.Payload)
	putCrc(sub2, length)
	return data, nil
}

// Decode deserializes a raw frame and checks its structural integrity.
// On any structural failure, a nil frame is returned along with the reason.
func Decode(data []byte) (*Frame, error) {
	if len(data) < Size(0) {
		return nil, ErrFrameShort
	}
	length := int(data[3])
	if length > MaxPayloadLength {
		return nil, ErrPayloadLength
	}
	if len(data) != Size(length) {
		return nil, ErrFrameLength
	}
	crc := crcSize(length)
	sub1Size := sub1HeaderSize + length + crc
	sub1 := data[:sub1Size]
	sub2 := data[sub1Size:]
	if !checkCrc(sub1, length) {
		return nil, ErrCrcSub1
	}
	if !checkCrc(sub2, length) {
		return nil, ErrCrcSub2
	}
	if int(sub2[3]) != length {
		return nil, ErrSubMismatch
	}
	payload1 := sub1[sub1HeaderSize : sub1HeaderSize+length]
	payload2 := sub2[sub2HeaderSize : sub2HeaderSize+length]
	for i := range payload1 {
		if payload1[i] != payload2[i] {
			return nil, ErrSubMismatch
		}
	}
	source := binary.LittleEndian.Uint16(sub1[0:2])
	target := binary.LittleEndian.Uint16(sub2[8:10])
	if source > MaxAddress || target > MaxAddress {
		return nil, ErrAddress
	}
	f := &Frame{
		Header: Header{
			Domain: binary.LittleEndian.Uint16(sub2[0:2]) ^ source,
			Source: source,
			ID:     sub1[2],
			TR:     sub2[2],
			CT:     uint16(sub1[4]) | uint16(sub2[4])<<8,
			ExtCT:  uint32(sub2[5]) | uint32(sub2[6])<<8 | uint32(sub2[7])<<16,
			Target: target,
			Length: uint8(length),
		},
		Payload: make([]byte, length),
	}
	copy(f.Payload, payload1)
	return f, nil
}
