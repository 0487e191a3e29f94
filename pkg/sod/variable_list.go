package sod

import "sort"

// VariableList is the data representation for
// storing a "RECORD" or "ARRAY" object type
type VariableList struct {
	objectType uint8
	Variables  []*Variable
}

// GetSubObject returns the [Variable] corresponding to
// a given subindex if not found, it errors with
// ErrSubNotExist
func (rec *VariableList) GetSubObject(subindex uint8) (*Variable, error) {
	i := sort.Search(len(rec.Variables), func(i int) bool {
		return rec.Variables[i].SubIndex >= subindex
	})
	if i < len(rec.Variables) && rec.Variables[i].SubIndex == subindex {
		return rec.Variables[i], nil
	}
	return nil, ErrSubNotExist
}

// AddSubObject adds a [Variable] to the list, keeping sub indexes ordered.
// An existing sub index is replaced.
func (rec *VariableList) AddSubObject(
	subindex uint8,
	name string,
	datatype uint8,
	attribute uint8,
	value string,
) (*Variable, error) {
	variable, err := NewVariable(subindex, name, datatype, attribute, value)
	if err != nil {
		return nil, err
	}
	rec.insert(variable)
	return variable, nil
}

func (rec *VariableList) insert(variable *Variable) {
	i := sort.Search(len(rec.Variables), func(i int) bool {
		return rec.Variables[i].SubIndex >= variable.SubIndex
	})
	if i < len(rec.Variables) && rec.Variables[i].SubIndex == variable.SubIndex {
		rec.Variables[i] = variable
		return
	}
	rec.Variables = append(rec.Variables, nil)
	copy(rec.Variables[i+1:], rec.Variables[i:])
	rec.Variables[i] = variable
}

func (rec *VariableList) sorted() bool {
	for i := 1; i < len(rec.Variables); i++ {
		if rec.Variables[i-1].SubIndex >= rec.Variables[i].SubIndex {
			return false
		}
	}
	return true
}

func NewRecord() *VariableList {
	return &VariableList{objectType: ObjectTypeRECORD}
}

func NewArray() *VariableList {
	return &VariableList{objectType: ObjectTypeARRAY}
}
