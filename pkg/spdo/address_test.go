package spdo

import (
	"testing"

	"github.com/samsamfire/goopensafety/pkg/frame"
	"github.com/stretchr/testify/assert"
)

func TestAddressTableExclusive(t *testing.T) {
	table := NewAddressTable(4, 4)
	assert.True(t, table.AddSourceAddress(0, 0x10))
	assert.False(t, table.AddSourceAddress(1, 0x10))
	// Same index again is fine
	assert.True(t, table.AddSourceAddress(0, 0x10))
	// Directions are independent
	assert.True(t, table.AddTargetAddress(1, 0x10))
	assert.False(t, table.AddTargetAddress(2, 0x10))

	assert.Equal(t, uint16(0), table.LookupRxIndexForSourceAddress(0x10))
	assert.Equal(t, uint16(1), table.LookupTxIndexForTargetAddress(0x10))
	assert.Equal(t, NotFound, table.LookupRxIndexForSourceAddress(0x11))
}

func TestAddressTableZeroAndRange(t *testing.T) {
	table := NewAddressTable(4, 4)
	for i := uint16(0); i < 4; i++ {
		assert.True(t, table.AddSourceAddress(i, 0))
		assert.True(t, table.AddTargetAddress(i, 0))
	}
	assert.Equal(t, NotFound, table.LookupRxIndexForSourceAddress(0))
	assert.False(t, table.AddSourceAddress(0, frame.MaxAddress+1))
	assert.True(t, table.AddSourceAddress(0, frame.MaxAddress))
	assert.False(t, table.AddSourceAddress(4, 0x33))
	assert.Equal(t, NotFound, table.LookupRxIndexForSourceAddress(frame.MaxAddress+1))

	table.Reset()
	assert.Equal(t, NotFound, table.LookupRxIndexForSourceAddress(frame.MaxAddress))
	assert.True(t, table.AddSourceAddress(1, frame.MaxAddress))
}
