// Package datastore composes a CAR reader and a CAR writer into the
// uniform get/has/query/put/delete/getRoots/setRoots/close facade, and
// enforces which of those operations each access mode permits.
package datastore

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("car/datastore")

// Errors returned by the facade. Each names the capability-matrix
// violation or lifecycle fault it represents.
var (
	ErrUnsupportedOperation = errors.New("car: operation not supported in this mode")
	ErrAlreadyClosed        = errors.New("car: already closed")
	ErrConcurrentIteration  = errors.New("car: a query is already in progress")
	ErrNotFound             = errors.New("car: block not found")
	ErrHeaderAlreadyWritten = errors.New("car: header already written")
	ErrInvalidRoots         = errors.New("car: roots must be a sequence of CIDs")
	ErrInvalidBlock         = errors.New("car: block must be a CID and payload")
)

// Entry is one (CID, payload) pair yielded by Query.
type Entry struct {
	Cid     cid.Cid
	Key     string
	Payload []byte
}

// Mode names an access mode; it exists for diagnostics only, since the
// capability matrix is embodied by which reader/writer pair a mode wires
// up rather than by a lookup table.
type Mode int

const (
	ModeReadBuffer Mode = iota
	ModeReadFileComplete
	ModeReadStreamComplete
	ModeReadStreaming
	ModeWriteStream
)

func (m Mode) String() string {
	switch m {
	case ModeReadBuffer:
		return "readBuffer"
	case ModeReadFileComplete:
		return "readFileComplete"
	case ModeReadStreamComplete:
		return "readStreamComplete"
	case ModeReadStreaming:
		return "readStreaming"
	case ModeWriteStream:
		return "writeStream"
	default:
		return "unknown"
	}
}

// reader is the capability set a CAR reader variant may implement; a
// variant that cannot support an operation embeds unsupportedReader,
// which answers ErrUnsupportedOperation for all of them.
type reader interface {
	getRoots() ([]cid.Cid, error)
	has(c cid.Cid) (bool, error)
	get(c cid.Cid) ([]byte, error)
	query(ctx context.Context) (<-chan Entry, <-chan error)
	close() error
}

// writer is the capability set a CAR writer may implement; read-only
// modes pair their reader with unsupportedWriter.
type writer interface {
	setRoots(roots []cid.Cid) error
	put(c cid.Cid, payload []byte) error
	delete(c cid.Cid) error
	close() error
}

type unsupportedReader struct{}

func (unsupportedReader) getRoots() ([]cid.Cid, error) { return nil, ErrUnsupportedOperation }
func (unsupportedReader) has(cid.Cid) (bool, error)    { return false, ErrUnsupportedOperation }
func (unsupportedReader) get(cid.Cid) ([]byte, error)  { return nil, ErrUnsupportedOperation }
func (unsupportedReader) query(context.Context) (<-chan Entry, <-chan error) {
	out := make(chan Entry)
	errc := make(chan error, 1)
	close(out)
	errc <- ErrUnsupportedOperation
	close(errc)
	return out, errc
}
func (unsupportedReader) close() error { return nil }

type unsupportedWriter struct{}

func (unsupportedWriter) setRoots([]cid.Cid) error  { return ErrUnsupportedOperation }
func (unsupportedWriter) put(cid.Cid, []byte) error { return ErrUnsupportedOperation }
func (unsupportedWriter) delete(cid.Cid) error      { return ErrUnsupportedOperation }
func (unsupportedWriter) close() error              { return nil }

// Datastore is the uniform facade over exactly one reader and one writer.
// Which operations succeed is entirely a function of which concrete
// reader/writer the constructor that built it wired up.
type Datastore struct {
	mode Mode
	r    reader
	w    writer

	mu     sync.Mutex
	closed bool
}

func newDatastore(mode Mode, r reader, w writer) *Datastore {
	return &Datastore{mode: mode, r: r, w: w}
}

// Mode reports the access mode this datastore was constructed with.
func (d *Datastore) Mode() Mode {
	return d.mode
}

func (d *Datastore) checkOpen() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrAlreadyClosed
	}
	return nil
}

// GetRoots returns the archive's root CIDs.
func (d *Datastore) GetRoots() ([]cid.Cid, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	return d.r.getRoots()
}

// Has reports whether c is present.
func (d *Datastore) Has(c cid.Cid) (bool, error) {
	if err := d.checkOpen(); err != nil {
		return false, err
	}
	return d.r.has(c)
}

// Get returns the payload for c, or ErrNotFound.
func (d *Datastore) Get(c cid.Cid) ([]byte, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	return d.r.get(c)
}

// Query returns a lazy sequence of (key, payload) pairs. If prefix is
// non-empty, only keys with that prefix are yielded; filtering happens on
// the yielded stream, it is never pushed into an index.
func (d *Datastore) Query(ctx context.Context, prefix string) (<-chan Entry, <-chan error) {
	if err := d.checkOpen(); err != nil {
		out := make(chan Entry)
		errc := make(chan error, 1)
		close(out)
		errc <- err
		close(errc)
		return out, errc
	}
	entries, errs := d.r.query(ctx)
	if prefix == "" {
		return entries, errs
	}

	out := make(chan Entry)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		for e := range entries {
			if strings.HasPrefix(e.Key, prefix) {
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
		if err, ok := <-errs; ok && err != nil {
			errc <- err
		}
	}()
	return out, errc
}

// SetRoots fixes the archive's roots; legal only before the first Put.
func (d *Datastore) SetRoots(roots []cid.Cid) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	return d.w.setRoots(roots)
}

// Put appends one block. If no roots were set yet, an empty-roots header
// is written first.
func (d *Datastore) Put(c cid.Cid, payload []byte) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	return d.w.put(c, payload)
}

// Delete always fails: CAR archives are append-only.
func (d *Datastore) Delete(c cid.Cid) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	return d.w.delete(c)
}

// Close closes the underlying reader and writer exactly once.
func (d *Datastore) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrAlreadyClosed
	}
	d.closed = true
	d.mu.Unlock()

	rerr := d.r.close()
	werr := d.w.close()
	if rerr != nil {
		return rerr
	}
	return werr
}
