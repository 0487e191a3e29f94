package sod

import (
	"fmt"
	"regexp"
	"strconv"

	"gopkg.in/ini.v1"
)

var (
	matchIdxRegExp    = regexp.MustCompile(`^[0-9A-Fa-f]{4}$`)
	matchSubidxRegExp = regexp.MustCompile(`^([0-9A-Fa-f]{4})sub([0-9A-Fa-f]+)$`)
)

// Parse a SOD description file (ini format).
// file can be either a path or an *os.File or []byte.
// Sections may appear in any order, the resulting table is sorted.
func Parse(file any) (*ObjectDictionary, error) {
	od := NewSOD()
	sodFile, err := ini.Load(file)
	if err != nil {
		return nil, err
	}
	sections := sodFile.Sections()
	lists := map[uint16]*VariableList{}

	// Indexes first, this adds new entries to the dictionary
	for _, section := range sections {
		sectionName := section.Name()
		if !matchIdxRegExp.MatchString(sectionName) {
			continue
		}
		idx, err := strconv.ParseUint(sectionName, 16, 16)
		if err != nil {
			return nil, err
		}
		index := uint16(idx)
		name := section.Key("ParameterName").String()
		objType, err := strconv.ParseUint(section.Key("ObjectType").Value(), 0, 8)
		objectType := uint8(objType)
		if err != nil {
			objectType = ObjectTypeVAR
		}

		switch objectType {
		case ObjectTypeVAR, ObjectTypeDOMAIN:
			variable, err := newVariableFromSection(section, name, 0)
			if err != nil {
				return nil, fmt.Errorf("x%x: %w", index, err)
			}
			od.addEntry(NewEntry(index, name, variable, objectType))
		case ObjectTypeARRAY:
			lists[index] = NewArray()
		case ObjectTypeRECORD:
			lists[index] = NewRecord()
		default:
			return nil, fmt.Errorf("x%x: unknown object type %v", index, objectType)
		}
	}

	// Then sub indexes of the ARRAY and RECORD entries
	for _, section := range sections {
		match := matchSubidxRegExp.FindStringSubmatch(section.Name())
		if match == nil {
			continue
		}
		idx, err := strconv.ParseUint(match[1], 16, 16)
		if err != nil {
			return nil, err
		}
		sidx, err := strconv.ParseUint(match[2], 16, 8)
		if err != nil {
			return nil, err
		}
		list, ok := lists[uint16(idx)]
		if !ok {
			return nil, fmt.Errorf("x%x sub x%x: %w", idx, sidx, ErrIdxNotExist)
		}
		variable, err := newVariableFromSection(section, section.Key("ParameterName").String(), uint8(sidx))
		if err != nil {
			return nil, fmt.Errorf("x%x sub x%x: %w", idx, sidx, err)
		}
		list.insert(variable)
	}

	for _, section := range sections {
		if !matchIdxRegExp.MatchString(section.Name()) {
			continue
		}
		idx, _ := strconv.ParseUint(section.Name(), 16, 16)
		if list, ok := lists[uint16(idx)]; ok {
			od.AddVariableList(uint16(idx), section.Key("ParameterName").String(), list)
		}
	}
	return New(od.entries)
}

func newVariableFromSection(section *ini.Section, name string, subIndex uint8) (*Variable, error) {
	dataType := section.Key("DataType").Value()
	if dataType == "" {
		return nil, fmt.Errorf("need data type")
	}
	dataTypeUint, err := strconv.ParseUint(dataType, 0, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to parse data type %v", err)
	}
	dType := uint8(dataTypeUint)
	attribute := EncodeAttribute(
		section.Key("AccessType").Value(),
		section.Key("SpdoMapping").Value(),
		dType,
	)
	return NewVariable(subIndex, name, dType, attribute, section.Key("DefaultValue").Value())
}
