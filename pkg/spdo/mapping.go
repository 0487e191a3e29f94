package spdo

import (
	"fmt"

	"github.com/samsamfire/goopensafety/pkg/sod"
	log "github.com/sirupsen/logrus"
)

// Mapping entries with an index below this value and sub index 0 are
// dummy entries, they reserve payload bytes without any SOD object.
const dummyIndexLimit = 0x20

type mappedObject struct {
	variable *sod.Variable // nil for dummy entries
	index    uint16
	subIndex uint8
	offset   uint8
	length   uint8
}

// Mapping translates between an SPDO payload and the mapped SOD objects.
// It is configured entry by entry, then activated, after which its
// length is fixed until the next configuration.
type Mapping struct {
	logger    *log.Entry
	rx        bool
	maxLength uint8
	objects   []mappedObject
	length    uint16
	active    bool
}

func NewMapping(rx bool, maxLength uint8, logger *log.Entry) *Mapping {
	if logger == nil {
		logger = log.WithField("service", "[SPDO]")
	}
	return &Mapping{rx: rx, maxLength: maxLength, logger: logger}
}

// Reset removes all mapped entries
func (m *Mapping) Reset() {
	m.objects = m.objects[:0]
	m.length = 0
	m.active = false
}

func (m *Mapping) attribute() uint8 {
	if m.rx {
		return sod.AttributeRxSpdo
	}
	return sod.AttributeTxSpdo
}

// Add maps the first lengthBits/8 bytes of the object at (index, subIndex)
// after the entries already mapped.
// Returns [sod.ErrMapLen] if the payload would exceed the maximum length,
// [sod.ErrNoMap] if the object is not mappable in this direction, or the
// SOD lookup error if the object does not exist.
func (m *Mapping) Add(odict *sod.ObjectDictionary, index uint16, subIndex uint8, lengthBits uint8) error {
	length := lengthBits >> 3
	object := mappedObject{index: index, subIndex: subIndex, offset: uint8(m.length), length: length}

	if lengthBits == 0 || lengthBits&0x07 != 0 {
		m.logger.Warnf("mapping failed : alignment error x%x|x%x", index, subIndex)
		return sod.ErrNoMap
	}
	if m.length+uint16(length) > uint16(m.maxLength) {
		m.logger.Warnf("mapping failed : x%x|x%x exceeds maximum length %v", index, subIndex, m.maxLength)
		return sod.ErrMapLen
	}
	if index >= dummyIndexLimit || subIndex != 0 {
		variable, err := odict.Variable(index, subIndex)
		if err != nil {
			m.logger.Warnf("mapping failed : x%x|x%x %v", index, subIndex, err)
			return err
		}
		switch {
		case variable.Attribute&m.attribute() == 0:
			m.logger.Warnf("mapping failed : attribute error x%x|x%x", index, subIndex)
			return sod.ErrNoMap
		case variable.DataLength() < uint32(length):
			m.logger.Warnf("mapping failed : length error x%x|x%x", index, subIndex)
			return sod.ErrNoMap
		}
		object.variable = variable
	}
	m.objects = append(m.objects, object)
	m.length += uint16(length)
	m.active = false
	return nil
}

// Configure resets the mapping and adds every entry of mapParams, encoded
// as index<<16|subIndex<<8|lengthBits. On error, the position of the
// failing entry is returned.
func (m *Mapping) Configure(odict *sod.ObjectDictionary, mapParams []uint32) (int, error) {
	m.Reset()
	for i, mapParam := range mapParams {
		err := m.Add(odict, uint16(mapParam>>16), uint8(mapParam>>8), uint8(mapParam))
		if err != nil {
			return i, err
		}
	}
	return len(mapParams), m.Activate()
}

// Activate finalizes the table, the payload length is then fixed
func (m *Mapping) Activate() error {
	total := uint16(0)
	for i, object := range m.objects {
		if uint16(object.offset) != total {
			return fmt.Errorf("entry %v offset %v, expected %v: %w", i, object.offset, total, sod.ErrMapLen)
		}
		total += uint16(object.length)
	}
	if total != m.length || total > uint16(m.maxLength) {
		return sod.ErrMapLen
	}
	m.active = true
	return nil
}

// Length is the mapped payload length in bytes
func (m *Mapping) Length() uint8 {
	return uint8(m.length)
}

// ProcessReceivedPayload copies data into the mapped objects.
// data must be exactly the mapped length.
func (m *Mapping) ProcessReceivedPayload(data []byte) bool {
	if !m.active || len(data) != int(m.length) {
		return false
	}
	for _, object := range m.objects {
		if object.variable == nil {
			continue
		}
		object.variable.WriteFrom(data[object.offset : object.offset+object.length])
	}
	return true
}

// BuildPayload returns a new payload filled from the mapped objects.
// An empty mapping gives an empty payload.
func (m *Mapping) BuildPayload() []byte {
	payload := make([]byte, m.length)
	for _, object := range m.objects {
		if object.variable == nil {
			continue
		}
		object.variable.ReadInto(payload[object.offset : object.offset+object.length])
	}
	return payload
}

// ToSafeState restores the default value of every mapped object
func (m *Mapping) ToSafeState() {
	for _, object := range m.objects {
		if object.variable != nil {
			object.variable.Restore()
		}
	}
}
