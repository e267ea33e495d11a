package datastore

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/ipfs/go-cid"

	"github.com/ipld/go-car-datastore/header"
	"github.com/ipld/go-car-datastore/index"
	"github.com/ipld/go-car-datastore/util"
)

// fileReader scans a seekable file once on construction to build a
// CID-to-offset index, then satisfies point lookups with a single direct
// read each, never holding the archive's blocks in memory.
type fileReader struct {
	f      *os.File
	roots  []cid.Cid
	idx    *index.Index
	closed bool
}

func newFileReader(f *os.File, bufferSize int) (*fileReader, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	h, _, err := header.Read(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	idx, err := index.Generate(f, bufferSize)
	if err != nil {
		return nil, err
	}

	return &fileReader{f: f, roots: h.Roots, idx: idx}, nil
}

func (r *fileReader) getRoots() ([]cid.Cid, error) {
	if r.closed {
		return nil, ErrAlreadyClosed
	}
	return r.roots, nil
}

func (r *fileReader) has(c cid.Cid) (bool, error) {
	if r.closed {
		return false, ErrAlreadyClosed
	}
	return r.idx.Has(util.Key(c)), nil
}

func (r *fileReader) get(c cid.Cid) ([]byte, error) {
	if r.closed {
		return nil, ErrAlreadyClosed
	}
	e, ok := r.idx.Get(util.Key(c))
	if !ok {
		return nil, ErrNotFound
	}
	return index.ReadRaw(r.f, e)
}

func (r *fileReader) query(ctx context.Context) (<-chan Entry, <-chan error) {
	out := make(chan Entry)
	errc := make(chan error, 1)

	if r.closed {
		close(out)
		errc <- ErrAlreadyClosed
		close(errc)
		return out, errc
	}

	go func() {
		defer close(out)
		defer close(errc)
		for _, e := range r.idx.Entries {
			payload, err := index.ReadRaw(r.f, e)
			if err != nil {
				errc <- err
				return
			}
			select {
			case out <- Entry{Cid: e.Cid, Key: e.Key, Payload: payload}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errc
}

func (r *fileReader) close() error {
	if r.closed {
		return ErrAlreadyClosed
	}
	r.closed = true
	return r.f.Close()
}
