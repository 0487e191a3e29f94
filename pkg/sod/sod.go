package sod

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
)

// ObjectDictionary is the Safety Object Dictionary of a safety node.
// Entries are kept sorted by index so that lookups are a binary search.
type ObjectDictionary struct {
	logger  *log.Entry
	entries []*Entry
}

// New creates a dictionary from a table of entries.
// The table must be strictly ordered by index, and every ARRAY or
// RECORD strictly ordered by sub index. This is checked once here.
func New(entries []*Entry) (*ObjectDictionary, error) {
	for i, entry := range entries {
		if i > 0 && entries[i-1].Index >= entry.Index {
			return nil, fmt.Errorf("entry x%x after x%x: %w", entry.Index, entries[i-1].Index, ErrUnsorted)
		}
		if list, ok := entry.object.(*VariableList); ok && !list.sorted() {
			return nil, fmt.Errorf("entry x%x sub indexes: %w", entry.Index, ErrUnsorted)
		}
	}
	return &ObjectDictionary{
		logger:  log.WithField("service", "[SOD]"),
		entries: entries,
	}, nil
}

// NewSOD returns an empty dictionary
func NewSOD() *ObjectDictionary {
	od, _ := New(nil)
	return od
}

// Index returns the entry at the given index or nil if it does not exist.
func (od *ObjectDictionary) Index(index uint16) *Entry {
	i := sort.Search(len(od.entries), func(i int) bool {
		return od.entries[i].Index >= index
	})
	if i < len(od.entries) && od.entries[i].Index == index {
		return od.entries[i]
	}
	return nil
}

// Variable returns the variable at (index, subIndex)
func (od *ObjectDictionary) Variable(index uint16, subIndex uint8) (*Variable, error) {
	entry := od.Index(index)
	if entry == nil {
		return nil, ErrIdxNotExist
	}
	return entry.SubIndex(subIndex)
}

// Entries returns the ordered entry table
func (od *ObjectDictionary) Entries() []*Entry {
	return od.entries
}

// Add an entry to SOD keeping order, any existing entry will be replaced
func (od *ObjectDictionary) addEntry(entry *Entry) {
	i := sort.Search(len(od.entries), func(i int) bool {
		return od.entries[i].Index >= entry.Index
	})
	if i < len(od.entries) && od.entries[i].Index == entry.Index {
		od.logger.Warnf("overwritting entry x%x", entry.Index)
		od.entries[i] = entry
		return
	}
	od.entries = append(od.entries, nil)
	copy(od.entries[i+1:], od.entries[i:])
	od.entries[i] = entry
	od.logger.Debugf("adding entry x%x (%v)", entry.Index, entry.Name)
}

// AddVariableType adds an entry of type VAR to SOD
// the value should be given as a string e.g. 0x22 or 0x55555
// If the variable already exists, it will be overwritten
func (od *ObjectDictionary) AddVariableType(
	index uint16,
	name string,
	datatype uint8,
	attribute uint8,
	value string,
) (*Entry, error) {
	variable, err := NewVariable(0, name, datatype, attribute, value)
	if err != nil {
		return nil, err
	}
	entry := NewEntry(index, name, variable, ObjectTypeVAR)
	od.addEntry(entry)
	return entry, nil
}

// AddVariableList adds an ARRAY or RECORD entry to SOD
func (od *ObjectDictionary) AddVariableList(index uint16, name string, varList *VariableList) *Entry {
	entry := NewEntry(index, name, varList, varList.objectType)
	od.addEntry(entry)
	return entry
}

func (od *ObjectDictionary) addSpdo(index uint16, name string, subs []subSpec) error {
	record := NewRecord()
	for _, s := range subs {
		_, err := record.AddSubObject(s.sub, s.name, s.datatype, AttributeRw, s.value)
		if err != nil {
			return err
		}
	}
	od.AddVariableList(index, name, record)
	return nil
}

type subSpec struct {
	sub      uint8
	name     string
	datatype uint8
	value    string
}

// AddRxSpdo adds the communication and (empty) mapping parameters
// of RxSPDO number rxNb (1-based) with the given producer address.
func (od *ObjectDictionary) AddRxSpdo(rxNb uint16, sadr uint16, sct uint32, txSpdoNo uint16) error {
	if rxNb == 0 || rxNb > MaxSpdoNumber {
		return ErrIdxNotExist
	}
	comm := []subSpec{
		{0, "Highest sub-index supported", UNSIGNED8, "11"},
		{SubRxSadr, "SADR", UNSIGNED16, fmt.Sprint(sadr)},
		{SubRxSct, "SCT", UNSIGNED32, fmt.Sprint(sct)},
		{SubRxNbConsecTReq, "Number of consecutive TReq", UNSIGNED8, "1"},
		{SubRxTimeDelayTReq, "Time delay TReq", UNSIGNED32, "100"},
		{SubRxTimeDelaySync, "Time delay sync", UNSIGNED32, "1000"},
		{SubRxMinTSyncPropDelay, "Min TSync propagation delay", UNSIGNED16, "1"},
		{SubRxMaxTSyncPropDelay, "Max TSync propagation delay", UNSIGNED16, "20"},
		{SubRxMinSpdoPropDelay, "Min SPDO propagation delay", UNSIGNED16, "0"},
		{SubRxBestCaseTResDelay, "Best case TRes delay", UNSIGNED16, "0"},
		{SubRxTReqCycle, "Time request cycle", UNSIGNED32, "500"},
		{SubRxTxSpdoNo, "TxSPDO number", UNSIGNED16, fmt.Sprint(txSpdoNo)},
	}
	if err := od.addSpdo(IndexRxSpdoComBase+rxNb-1, fmt.Sprintf("RxSPDO communication parameter %d", rxNb), comm); err != nil {
		return err
	}
	return od.addSpdo(IndexRxSpdoMappingBase+rxNb-1, fmt.Sprintf("RxSPDO mapping parameter %d", rxNb), mappingSubs())
}

// AddTxSpdo adds the communication and (empty) mapping parameters
// of TxSPDO number txNb (1-based) with its own address.
func (od *ObjectDictionary) AddTxSpdo(txNb uint16, sadr uint16) error {
	if txNb == 0 || txNb > MaxSpdoNumber {
		return ErrIdxNotExist
	}
	comm := []subSpec{
		{0, "Highest sub-index supported", UNSIGNED8, "3"},
		{SubTxSadr, "SADR", UNSIGNED16, fmt.Sprint(sadr)},
		{SubTxRefreshPrescale, "Refresh prescale", UNSIGNED16, "1"},
		{SubTxNbTRes, "Number of TRes", UNSIGNED8, "1"},
	}
	if err := od.addSpdo(IndexTxSpdoComBase+txNb-1, fmt.Sprintf("TxSPDO communication parameter %d", txNb), comm); err != nil {
		return err
	}
	return od.addSpdo(IndexTxSpdoMappingBase+txNb-1, fmt.Sprintf("TxSPDO mapping parameter %d", txNb), mappingSubs())
}

const maxMappedObjects = 16

func mappingSubs() []subSpec {
	subs := []subSpec{{0, "Number of mapped objects", UNSIGNED8, "0"}}
	for i := uint8(1); i <= maxMappedObjects; i++ {
		subs = append(subs, subSpec{i, fmt.Sprintf("Mapping entry %d", i), UNSIGNED32, "0"})
	}
	return subs
}

// MappingValue encodes a mapping parameter value
func MappingValue(index uint16, subIndex uint8, lengthBits uint8) uint32 {
	return uint32(index)<<16 | uint32(subIndex)<<8 | uint32(lengthBits)
}

// SetMapping writes a full mapping list into the mapping entry
func (od *ObjectDictionary) SetMapping(mappingIndex uint16, mapping []uint32) error {
	entry := od.Index(mappingIndex)
	if entry == nil {
		return ErrIdxNotExist
	}
	if len(mapping) > maxMappedObjects {
		return ErrMapLen
	}
	for i, m := range mapping {
		if err := entry.PutUint32(uint8(i+1), m, false); err != nil {
			return err
		}
	}
	return entry.PutUint8(0, uint8(len(mapping)), false)
}
