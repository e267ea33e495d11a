package datastore

import (
	"io"
	"os"
)

// Options configures the file-indexed reader's scan.
type Options struct {
	// BufferSize is the sliding-window size used while indexing a file.
	// Defaults to index.DefaultBufferSize (64 KiB); values below 1 are
	// treated as the default.
	BufferSize int
}

// NewReadBuffer builds a read-only datastore over a whole archive already
// resident in memory.
func NewReadBuffer(data []byte) (*Datastore, error) {
	r, err := newBufferReader(data)
	if err != nil {
		return nil, err
	}
	return newDatastore(ModeReadBuffer, r, unsupportedWriter{}), nil
}

// NewReadFileComplete opens path, builds an index of it, and returns a
// datastore whose get/has are served by direct offset reads against the
// open file.
func NewReadFileComplete(path string, opts Options) (*Datastore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	bufferSize := opts.BufferSize
	r, err := newFileReader(f, bufferSize)
	if err != nil {
		f.Close()
		return nil, err
	}
	return newDatastore(ModeReadFileComplete, r, unsupportedWriter{}), nil
}

// NewReadStreamComplete drains stream fully and returns a datastore with
// the full get/has/query surface, as bufferReader provides.
func NewReadStreamComplete(stream io.Reader) (*Datastore, error) {
	r, err := newStreamCompleteReader(stream)
	if err != nil {
		return nil, err
	}
	return newDatastore(ModeReadStreamComplete, r, unsupportedWriter{}), nil
}

// NewReadStreaming returns a datastore that surfaces roots immediately
// and lets callers consume blocks exactly once via Query; get and has are
// unsupported.
func NewReadStreaming(stream io.Reader) (*Datastore, error) {
	r, err := newStreamIncrementalReader(stream)
	if err != nil {
		return nil, err
	}
	return newDatastore(ModeReadStreaming, r, unsupportedWriter{}), nil
}

// NewWriteStream returns a write-only datastore that streams a fresh
// archive to sink as blocks are put.
func NewWriteStream(sink io.Writer) *Datastore {
	w := newStreamWriter(sink)
	return newDatastore(ModeWriteStream, unsupportedReader{}, w)
}
