package datastore

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/ipfs/go-cid"

	"github.com/ipld/go-car-datastore/header"
	"github.com/ipld/go-car-datastore/util"
)

// bufferReader decodes a whole archive already resident in memory into an
// ordered slice plus a key-to-payload map, satisfying every Reader
// operation without further I/O.
type bufferReader struct {
	roots   []cid.Cid
	entries []Entry
	byKey   map[string]int // last-seen index per key
	closed  bool
}

func newBufferReader(data []byte) (*bufferReader, error) {
	br := bufio.NewReader(bytes.NewReader(data))
	h, _, err := header.Read(br)
	if err != nil {
		return nil, err
	}

	br2 := &bufferReader{
		roots: h.Roots,
		byKey: make(map[string]int),
	}

	// decode frames in archive order
	for {
		c, payload, err := util.ReadNode(br, false)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		br2.byKey[util.Key(c)] = len(br2.entries)
		br2.entries = append(br2.entries, Entry{Cid: c, Key: util.Key(c), Payload: payload})
	}

	return br2, nil
}

func (r *bufferReader) getRoots() ([]cid.Cid, error) {
	if r.closed {
		return nil, ErrAlreadyClosed
	}
	return r.roots, nil
}

func (r *bufferReader) has(c cid.Cid) (bool, error) {
	if r.closed {
		return false, ErrAlreadyClosed
	}
	_, ok := r.byKey[util.Key(c)]
	return ok, nil
}

func (r *bufferReader) get(c cid.Cid) ([]byte, error) {
	if r.closed {
		return nil, ErrAlreadyClosed
	}
	i, ok := r.byKey[util.Key(c)]
	if !ok {
		return nil, ErrNotFound
	}
	return r.entries[i].Payload, nil
}

func (r *bufferReader) query(ctx context.Context) (<-chan Entry, <-chan error) {
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
		for _, e := range r.entries {
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errc
}

func (r *bufferReader) close() error {
	if r.closed {
		return ErrAlreadyClosed
	}
	r.closed = true
	return nil
}
