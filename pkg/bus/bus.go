// Package bus holds the registry of the transports able to carry raw
// safety frames. Transports register themselves in an init function.
package bus

import (
	"fmt"
	"sort"

	opensafety "github.com/samsamfire/goopensafety"
)

type NewInterfaceFunc func(channel string) (opensafety.Bus, error)

var AvailableInterfaces = make(map[string]NewInterfaceFunc)

// Register a new bus interface type
// This should be called inside an init() function of plugin
func RegisterInterface(interfaceType string, newInterface NewInterfaceFunc) {
	AvailableInterfaces[interfaceType] = newInterface
}

// Create a new bus with given interface and channel
func NewBus(busInterface string, channel string) (opensafety.Bus, error) {
	createInterface, ok := AvailableInterfaces[busInterface]
	if !ok {
		return nil, fmt.Errorf("unsupported interface : %v (available %v)", busInterface, Interfaces())
	}
	return createInterface(channel)
}

// Interfaces returns the registered interface names, sorted
func Interfaces() []string {
	names := make([]string, 0, len(AvailableInterfaces))
	for name := range AvailableInterfaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
