package datastore

import (
	"bufio"
	"io"
	"sync"

	"github.com/ipfs/go-cid"

	"github.com/ipld/go-car-datastore/header"
	"github.com/ipld/go-car-datastore/util"
)

type writerState int

const (
	statePreHeader writerState = iota
	statePostHeader
	stateClosed
)

// streamWriter is the append-only CAR encoder: header-latch state machine
// over a single sink. put and setRoots serialise through mu so that
// callers may enqueue a sequence of puts without awaiting each, provided
// they ultimately await close; the byte order on the sink always matches
// the order in which calls acquire mu. Calls made concurrently from
// several goroutines are not ordered by when they were entered.
type streamWriter struct {
	mu     sync.Mutex
	sink   io.Writer // the (possibly buffered) writer frames are encoded to
	closer io.Closer // the original sink, closed once flushed
	state  writerState
}

func newStreamWriter(sink io.Writer) *streamWriter {
	w := &streamWriter{state: statePreHeader}
	if c, ok := sink.(io.Closer); ok {
		w.closer = c
	}
	if _, ok := sink.(flusher); ok {
		w.sink = sink
	} else {
		w.sink = bufio.NewWriter(sink)
	}
	return w
}

func (w *streamWriter) setRoots(roots []cid.Cid) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case stateClosed:
		return ErrAlreadyClosed
	case statePostHeader:
		return ErrHeaderAlreadyWritten
	}

	for _, r := range roots {
		if !r.Defined() || util.CheckCidVersion(r) != nil {
			return ErrInvalidRoots
		}
	}

	if err := w.writeHeaderLocked(roots); err != nil {
		w.poisonLocked()
		return err
	}
	return nil
}

func (w *streamWriter) put(c cid.Cid, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == stateClosed {
		return ErrAlreadyClosed
	}
	if !c.Defined() {
		return ErrInvalidBlock
	}
	if err := util.CheckCidVersion(c); err != nil {
		return err
	}

	if w.state == statePreHeader {
		if err := w.writeHeaderLocked(nil); err != nil {
			w.poisonLocked()
			return err
		}
	}

	if err := util.WriteNode(w.sink, c, payload); err != nil {
		w.poisonLocked()
		return err
	}
	return nil
}

func (w *streamWriter) delete(cid.Cid) error {
	return ErrUnsupportedOperation
}

func (w *streamWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == stateClosed {
		return ErrAlreadyClosed
	}
	w.state = stateClosed

	if f, ok := w.sink.(flusher); ok {
		if err := f.Flush(); err != nil {
			return err
		}
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// writeHeaderLocked transitions pre-header to post-header; caller must
// hold w.mu.
func (w *streamWriter) writeHeaderLocked(roots []cid.Cid) error {
	h := &header.Header{Version: header.Version, Roots: roots}
	if err := header.Write(w.sink, h); err != nil {
		return err
	}
	w.state = statePostHeader
	return nil
}

// poisonLocked moves the writer to closed after a sink error, per the
// fatal-sink-error policy: every subsequent call fails with
// ErrAlreadyClosed. Caller must hold w.mu.
func (w *streamWriter) poisonLocked() {
	w.state = stateClosed
}

type flusher interface {
	Flush() error
}
