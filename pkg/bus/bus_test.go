package bus

import (
	"testing"

	opensafety "github.com/samsamfire/goopensafety"
	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	_, err := NewBus("unknown", "")
	assert.NotNil(t, err)

	RegisterInterface("test_b", func(channel string) (opensafety.Bus, error) { return nil, nil })
	RegisterInterface("test_a", func(channel string) (opensafety.Bus, error) {
		return nil, opensafety.ErrIllegalArgument
	})
	assert.Equal(t, []string{"test_a", "test_b"}, Interfaces())
	_, err = NewBus("test_a", "channel")
	assert.Equal(t, opensafety.ErrIllegalArgument, err)
	_, err = NewBus("test_b", "channel")
	assert.Nil(t, err)
}
