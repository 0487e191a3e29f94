package opensafety

// Interface for handling a received raw safety frame.
// The byte slice must not be retained after Handle returns.
type FrameListener interface {
	Handle(frame []byte)
}

// A Bus is the non-safe black channel used to carry safety frames.
// Any transport able to move opaque byte frames can be used.
type Bus interface {
	Connect(...any) error                   // Connect to the bus
	Disconnect() error                      // Disconnect from bus
	Send(frame []byte) error                // Send a raw frame on the bus
	Subscribe(callback FrameListener) error // Subscribe to all received frames
}
