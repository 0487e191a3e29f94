package fifo

import "encoding/binary"

// Size of the length prefix stored in front of every queued frame
const frameHeaderSize = 2

// Circular Fifo object used for queuing raw frames between the bus
// reception goroutine and the cyclic stack processing.
type Fifo struct {
	buffer   []byte
	writePos int
	readPos  int
	dropped  uint32
}

func NewFifo(size uint16) *Fifo {
	f := &Fifo{
		buffer:   make([]byte, size),
		writePos: 0,
		readPos:  0,
	}
	return f
}

func (f *Fifo) Reset() {
	f.readPos = 0
	f.writePos = 0
}

func (f *Fifo) GetSpace() int {
	sizeLeft := f.readPos - f.writePos - 1
	if sizeLeft < 0 {
		sizeLeft += len(f.buffer)
	}
	return sizeLeft
}

func (f *Fifo) GetOccupied() int {
	sizeOccupied := f.writePos - f.readPos
	if sizeOccupied < 0 {
		sizeOccupied += len(f.buffer)
	}
	return sizeOccupied
}

// Number of frames that could not be queued because fifo was full
func (f *Fifo) Dropped() uint32 {
	return f.dropped
}

// Write data to fifo and return number of bytes written
func (f *Fifo) Write(buffer []byte) int {
	if buffer == nil {
		return 0
	}
	writeCounter := 0
	for _, element := range buffer {
		writePosNext := f.writePos + 1
		if writePosNext == f.readPos || (writePosNext == len(f.buffer) && f.readPos == 0) {
			break
		}
		f.buffer[f.writePos] = element
		writeCounter += 1
		if writePosNext == len(f.buffer) {
			f.writePos = 0
		} else {
			f.writePos += 1
		}
	}
	return writeCounter
}

// Read data from fifo and return number of bytes read
func (f *Fifo) Read(buffer []byte) int {
	readCounter := 0
	if buffer == nil || f.readPos == f.writePos {
		return 0
	}
	for index := range buffer {
		if f.readPos == f.writePos {
			break
		}
		buffer[index] = f.buffer[f.readPos]
		readCounter++
		f.readPos++
		if f.readPos == len(f.buffer) {
			f.readPos = 0
		}
	}
	return readCounter
}

// WriteFrame queues a complete frame, prefixed by its length.
// Either the whole frame is written or nothing is.
func (f *Fifo) WriteFrame(frame []byte) bool {
	if len(frame) == 0 || len(frame) > 0xFFFF {
		return false
	}
	if f.GetSpace() < len(frame)+frameHeaderSize {
		f.dropped++
		return false
	}
	var header [frameHeaderSize]byte
	binary.LittleEndian.PutUint16(header[:], uint16(len(frame)))
	f.Write(header[:])
	f.Write(frame)
	return true
}

// ReadFrame dequeues the oldest frame, returns nil if fifo is empty
func (f *Fifo) ReadFrame() []byte {
	if f.GetOccupied() < frameHeaderSize {
		return nil
	}
	var header [frameHeaderSize]byte
	f.Read(header[:])
	length := int(binary.LittleEndian.Uint16(header[:]))
	frame := make([]byte, length)
	n := f.Read(frame)
	return frame[:n]
}
