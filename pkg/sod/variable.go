package sod

import (
	"sync"
)

// Variable is the smallest element inside of the SOD.
// It holds the current value of a single (index, subindex) object
// together with its default (safe) value.
type Variable struct {
	mu           sync.RWMutex
	value        []byte
	valueDefault []byte
	// Name of the variable
	Name string
	// The data type, e.g. UNSIGNED8
	DataType uint8
	// Access and mapping attribute, e.g. AttributeRw|AttributeRxSpdo
	Attribute uint8
	// The sub index of the variable in its entry
	SubIndex uint8
}

// NewVariable creates a variable, value is the textual default value
// e.g. 0x22 or 15
func NewVariable(
	subIndex uint8,
	name string,
	datatype uint8,
	attribute uint8,
	value string,
) (*Variable, error) {
	encoded, err := EncodeFromString(value, datatype)
	if err != nil {
		return nil, err
	}
	variable := &Variable{
		Name:         name,
		DataType:     datatype,
		Attribute:    attribute,
		SubIndex:     subIndex,
		valueDefault: encoded,
		value:        make([]byte, len(encoded)),
	}
	copy(variable.value, encoded)
	return variable, nil
}

// Return number of bytes
func (variable *Variable) DataLength() uint32 {
	variable.mu.RLock()
	defer variable.mu.RUnlock()
	return uint32(len(variable.value))
}

// Return default value as byte slice
func (variable *Variable) DefaultValue() []byte {
	return variable.valueDefault
}

// Bytes returns a copy of the current value
func (variable *Variable) Bytes() []byte {
	variable.mu.RLock()
	defer variable.mu.RUnlock()
	b := make([]byte, len(variable.value))
	copy(b, variable.value)
	return b
}

// Mappable returns true if the variable may be mapped in the given direction.
func (variable *Variable) Mappable(rx bool) bool {
	if rx {
		return variable.Attribute&AttributeRxSpdo != 0
	}
	return variable.Attribute&AttributeTxSpdo != 0
}

// ReadInto copies the current value into dst, without running any extension.
// Returns the number of bytes copied.
func (variable *Variable) ReadInto(dst []byte) int {
	variable.mu.RLock()
	defer variable.mu.RUnlock()
	return copy(dst, variable.value)
}

// WriteFrom copies src into the current value, without running any extension.
// Returns the number of bytes copied.
func (variable *Variable) WriteFrom(src []byte) int {
	variable.mu.Lock()
	defer variable.mu.Unlock()
	return copy(variable.value, src)
}

// Restore sets the value back to its default value
func (variable *Variable) Restore() {
	variable.mu.Lock()
	defer variable.mu.Unlock()
	copy(variable.value, variable.valueDefault)
}

func (variable *Variable) setValue(data []byte) error {
	variable.mu.Lock()
	defer variable.mu.Unlock()
	if len(data) != len(variable.value) {
		if variable.Attribute&AttributeStr == 0 || len(data) > len(variable.value) {
			return ErrTypeMismatch
		}
	}
	n := copy(variable.value, data)
	// Shorter strings are zero padded
	for i := n; i < len(variable.value); i++ {
		variable.value[i] = 0
	}
	return nil
}
