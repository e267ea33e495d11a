package datastore

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/ipfs/go-cid"

	"github.com/ipld/go-car-datastore/header"
	"github.com/ipld/go-car-datastore/util"
)

// streamCompleteReader drains a forward byte stream fully on construction
// and then behaves exactly like bufferReader, giving callers with a
// stream but bounded data the full get/has surface.
type streamCompleteReader struct {
	*bufferReader
}

func newStreamCompleteReader(r io.Reader) (*streamCompleteReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	br, err := newBufferReader(data)
	if err != nil {
		return nil, err
	}
	return &streamCompleteReader{bufferReader: br}, nil
}

// streamIncrementalReader reads only the header eagerly; query consumes
// the stream frame-by-frame as a single-pass lazy sequence. get and has
// are not supported: this variant never buffers a block it has not yet
// yielded.
type streamIncrementalReader struct {
	br     *bufio.Reader
	roots  []cid.Cid
	closed bool

	mu       sync.Mutex
	querying bool
}

func newStreamIncrementalReader(r io.Reader) (*streamIncrementalReader, error) {
	br := bufio.NewReader(r)
	h, _, err := header.Read(br)
	if err != nil {
		return nil, err
	}
	return &streamIncrementalReader{br: br, roots: h.Roots}, nil
}

func (r *streamIncrementalReader) getRoots() ([]cid.Cid, error) {
	if r.closed {
		return nil, ErrAlreadyClosed
	}
	return r.roots, nil
}

func (r *streamIncrementalReader) has(cid.Cid) (bool, error) {
	return false, ErrUnsupportedOperation
}

func (r *streamIncrementalReader) get(cid.Cid) ([]byte, error) {
	return nil, ErrUnsupportedOperation
}

func (r *streamIncrementalReader) query(ctx context.Context) (<-chan Entry, <-chan error) {
	out := make(chan Entry)
	errc := make(chan error, 1)

	if r.closed {
		close(out)
		errc <- ErrAlreadyClosed
		close(errc)
		return out, errc
	}

	r.mu.Lock()
	if r.querying {
		r.mu.Unlock()
		close(out)
		errc <- ErrConcurrentIteration
		close(errc)
		return out, errc
	}
	r.querying = true
	r.mu.Unlock()

	go func() {
		defer close(out)
		defer close(errc)
		defer func() {
			r.mu.Lock()
			r.querying = false
			r.mu.Unlock()
		}()

		for {
			c, payload, err := util.ReadNode(r.br, false)
			if err != nil {
				if err != io.EOF {
					errc <- err
				}
				return
			}
			select {
			case out <- Entry{Cid: c, Key: util.Key(c), Payload: payload}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errc
}

func (r *streamIncrementalReader) close() error {
	if r.closed {
		return ErrAlreadyClosed
	}
	r.closed = true
	return nil
}
