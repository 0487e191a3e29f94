package socketcan

import (
	"errors"
	"fmt"
)

// Safety frames are longer than a classic CAN frame. They are split with
// a one byte protocol control information (PCI) in front of every CAN frame :
//   - single frame : 0x0L, L data bytes (L <= 7)
//   - first frame : 0x1H LL, 12 bit total length then 6 data bytes
//   - consecutive frame : 0x2S, 4 bit sequence number then up to 7 data bytes

const (
	pciSingle      = 0x0
	pciFirst       = 0x1
	pciConsecutive = 0x2

	canDataLength     = 8
	singleMaxLength   = canDataLength - 1
	firstDataLength   = canDataLength - 2
	consecutiveLength = canDataLength - 1
	MaxSegmentedSize  = 0xFFF
)

var (
	ErrSegmentTooLong = errors.New("frame too long to be segmented")
	ErrSegmentPci     = errors.New("unknown protocol control information")
	ErrSegmentLength  = errors.New("segment length invalid")
	ErrSegmentOrder   = errors.New("unexpected segment sequence number")
)

// A segment is the data part of one CAN frame
type segment struct {
	length uint8
	data   [canDataLength]byte
}

// split cuts a raw frame into CAN frame sized segments
func split(frame []byte) ([]segment, error) {
	if len(frame) > MaxSegmentedSize {
		return nil, ErrSegmentTooLong
	}
	if len(frame) <= singleMaxLength {
		s := segment{length: uint8(len(frame) + 1)}
		s.data[0] = pciSingle<<4 | uint8(len(frame))
		copy(s.data[1:], frame)
		return []segment{s}, nil
	}
	segments := make([]segment, 0, 1+(len(frame)-firstDataLength+consecutiveLength-1)/consecutiveLength)
	first := segment{length: canDataLength}
	first.data[0] = pciFirst<<4 | uint8(len(frame)>>8)
	first.data[1] = uint8(len(frame))
	copy(first.data[2:], frame[:firstDataLength])
	segments = append(segments, first)

	seq := uint8(1)
	for offset := firstDataLength; offset < len(frame); offset += consecutiveLength {
		end := min(offset+consecutiveLength, len(frame))
		s := segment{length: uint8(end - offset + 1)}
		s.data[0] = pciConsecutive<<4 | seq&0x0F
		copy(s.data[1:], frame[offset:end])
		segments = append(segments, s)
		seq++
	}
	return segments, nil
}

// reassembler rebuilds frames from the segments of a single CAN id
type reassembler struct {
	buffer   []byte
	expected int
	seq      uint8
	busy     bool
}

// push adds a segment. Returns the complete frame once all segments are
// received. On error, any partial frame is dropped.
func (r *reassembler) push(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrSegmentLength
	}
	switch data[0] >> 4 {
	case pciSingle:
		r.busy = false
		length := int(data[0] & 0x0F)
		if length == 0 || length > len(data)-1 {
			return nil, ErrSegmentLength
		}
		frame := make([]byte, length)
		copy(frame, data[1:1+length])
		return frame, nil

	case pciFirst:
		r.busy = false
		if len(data) != canDataLength {
			return nil, ErrSegmentLength
		}
		r.expected = int(data[0]&0x0F)<<8 | int(data[1])
		if r.expected <= singleMaxLength {
			return nil, ErrSegmentLength
		}
		r.buffer = append(r.buffer[:0], data[2:]...)
		r.seq = 1
		r.busy = true
		return nil, nil

	case pciConsecutive:
		if !r.busy {
			return nil, ErrSegmentOrder
		}
		if data[0]&0x0F != r.seq&0x0F {
			r.busy = false
			return nil, fmt.Errorf("%w : expected %v, got %v", ErrSegmentOrder, r.seq&0x0F, data[0]&0x0F)
		}
		remaining := r.expected - len(r.buffer)
		chunk := data[1:]
		if len(chunk) > remaining {
			chunk = chunk[:remaining]
		}
		r.buffer = append(r.buffer, chunk...)
		r.seq++
		if len(r.buffer) < r.expected {
			return nil, nil
		}
		r.busy = false
		frame := make([]byte, r.expected)
		copy(frame, r.buffer)
		return frame, nil

	default:
		r.busy = false
		return nil, ErrSegmentPci
	}
}
