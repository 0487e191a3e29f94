package sod

import (
	"encoding/binary"

	log "github.com/sirupsen/logrus"
)

// An Entry object is the main building block of an [ObjectDictionary].
// It holds a SOD object at a specific index, either a VAR or DOMAIN
// ([Variable]) or an ARRAY or RECORD ([VariableList]).
type Entry struct {
	// The SOD index e.g. 0x1400
	Index uint16
	// The SOD name inside of the description file
	Name string
	// The SOD object type, as cited above.
	ObjectType        uint8
	object            any
	extensions        []any
	subEntriesNameMap map[string]uint8
	logger            *log.Entry
}

func NewEntry(index uint16, name string, object any, objectType uint8) *Entry {
	entry := &Entry{
		Index:             index,
		Name:              name,
		ObjectType:        objectType,
		object:            object,
		subEntriesNameMap: map[string]uint8{},
		logger:            log.WithFields(log.Fields{"service": "[SOD]", "index": index}),
	}
	if list, ok := object.(*VariableList); ok {
		for _, variable := range list.Variables {
			entry.subEntriesNameMap[variable.Name] = variable.SubIndex
		}
	}
	return entry
}

// Subindex returns the [Variable] at a given subindex.
// subindex can be a string, int, or uint8.
// When using a string it will try to find the subindex according to the SOD naming.
func (entry *Entry) SubIndex(subIndex any) (v *Variable, e error) {
	if entry == nil {
		return nil, ErrIdxNotExist
	}
	switch object := entry.object.(type) {
	case *Variable:
		if subIndex != 0 && subIndex != uint8(0) && subIndex != "" {
			return nil, ErrSubNotExist
		}
		return object, nil
	case *VariableList:
		var convertedSubIndex uint8
		var ok bool
		switch sub := subIndex.(type) {
		case string:
			convertedSubIndex, ok = entry.subEntriesNameMap[sub]
			if !ok {
				return nil, ErrSubNotExist
			}
		case int:
			if sub >= 256 || sub < 0 {
				return nil, ErrDevIncompat
			}
			convertedSubIndex = uint8(sub)
		case uint8:
			convertedSubIndex = sub
		default:
			return nil, ErrDevIncompat

		}
		return object.GetSubObject(convertedSubIndex)
	default:
		// This is not normal
		return nil, ErrDevIncompat
	}
}

// SubCount returns the number of sub entries, 1 for a VAR
func (entry *Entry) SubCount() int {
	switch object := entry.object.(type) {
	case *VariableList:
		return len(object.Variables)
	default:
		return 1
	}
}

// AddExtension attaches an object implementing one or more of
// [BeforeReader], [BeforeWriter] or [AfterWriter] to this entry.
func (entry *Entry) AddExtension(extension any) {
	entry.logger.Debugf("added extension %T", extension)
	entry.extensions = append(entry.extensions, extension)
}

// Read copies the value at subIndex into b, after running extensions.
// It returns the number of bytes written to b.
func (entry *Entry) Read(subIndex uint8, b []byte) (int, error) {
	variable, err := entry.SubIndex(subIndex)
	if err != nil {
		return 0, err
	}
	if variable.Attribute&AttributeR == 0 {
		return 0, ErrWriteOnly
	}
	for _, ext := range entry.extensions {
		if reader, ok := ext.(BeforeReader); ok {
			if err := reader.BeforeRead(entry, subIndex); err != nil {
				return 0, err
			}
		}
	}
	if len(b) < int(variable.DataLength()) {
		return 0, ErrDataShort
	}
	return variable.ReadInto(b), nil
}

// Write stores data at subIndex, after running extensions.
func (entry *Entry) Write(subIndex uint8, data []byte) error {
	variable, err := entry.SubIndex(subIndex)
	if err != nil {
		return err
	}
	if variable.Attribute&AttributeW == 0 {
		return ErrReadonly
	}
	for _, ext := range entry.extensions {
		if writer, ok := ext.(BeforeWriter); ok {
			if err := writer.BeforeWrite(entry, subIndex, data); err != nil {
				return err
			}
		}
	}
	if err := variable.setValue(data); err != nil {
		return err
	}
	for _, ext := range entry.extensions {
		if writer, ok := ext.(AfterWriter); ok {
			writer.AfterWrite(entry, subIndex)
		}
	}
	return nil
}

// Uint8 reads data inside of SOD as if it were and UNSIGNED8.
// It returns an error if length is incorrect.
func (entry *Entry) Uint8(subIndex uint8) (uint8, error) {
	b := make([]byte, 1)
	err := entry.readSubExactly(subIndex, b)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 reads data inside of SOD as if it were and UNSIGNED16.
// It returns an error if length is incorrect.
func (entry *Entry) Uint16(subIndex uint8) (uint16, error) {
	b := make([]byte, 2)
	err := entry.readSubExactly(subIndex, b)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Uint32 reads data inside of SOD as if it were and UNSIGNED32.
// It returns an error if length is incorrect.
func (entry *Entry) Uint32(subIndex uint8) (uint32, error) {
	b := make([]byte, 4)
	err := entry.readSubExactly(subIndex, b)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// PutUint8 writes an UNSIGNED8 to SOD entry.
// origin can be set to true in order to bypass any existing extension.
func (entry *Entry) PutUint8(subIndex uint8, value uint8, origin bool) error {
	return entry.writeSubExactly(subIndex, []byte{value}, origin)
}

// PutUint16 writes an UNSIGNED16 to SOD entry.
// origin can be set to true in order to bypass any existing extension.
func (entry *Entry) PutUint16(subIndex uint8, value uint16, origin bool) error {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, value)
	return entry.writeSubExactly(subIndex, b, origin)
}

// PutUint32 writes an UNSIGNED32 to SOD entry.
// origin can be set to true in order to bypass any existing extension.
func (entry *Entry) PutUint32(subIndex uint8, value uint32, origin bool) error {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, value)
	return entry.writeSubExactly(subIndex, b, origin)
}

// Read exactly len(b) bytes from SOD at (index,subIndex)
// Reads of configuration values never run extensions
func (entry *Entry) readSubExactly(subIndex uint8, b []byte) error {
	variable, err := entry.SubIndex(subIndex)
	if err != nil {
		return err
	}
	if int(variable.DataLength()) != len(b) {
		return ErrTypeMismatch
	}
	variable.ReadInto(b)
	return nil
}

// Write exactly len(b) bytes to SOD at (index,subIndex)
// Origin parameter controls extension usage if exists
func (entry *Entry) writeSubExactly(subIndex uint8, b []byte, origin bool) error {
	variable, err := entry.SubIndex(subIndex)
	if err != nil {
		return err
	}
	if int(variable.DataLength()) != len(b) {
		return ErrTypeMismatch
	}
	if origin {
		variable.WriteFrom(b)
		return nil
	}
	return entry.Write(subIndex, b)
}
