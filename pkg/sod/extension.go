package sod

// Objects attached to an [Entry] with AddExtension may implement
// any of the following capabilities. They are run by Entry.Read and
// Entry.Write, never by the raw Variable accessors.

// BeforeReader is called before a value is read, an error aborts the read.
type BeforeReader interface {
	BeforeRead(entry *Entry, subIndex uint8) error
}

// BeforeWriter is called before a value is written, an error aborts the write.
type BeforeWriter interface {
	BeforeWrite(entry *Entry, subIndex uint8, data []byte) error
}

// AfterWriter is called once a value has been written.
type AfterWriter interface {
	AfterWrite(entry *Entry, subIndex uint8)
}
