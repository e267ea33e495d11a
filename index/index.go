// Package index builds and serves the CID-to-offset index used by the
// file-indexed reader, and exposes the underlying scan as a lazy sequence
// for callers who only need to enumerate entries.
package index

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"

	"github.com/ipld/go-car-datastore/header"
	"github.com/ipld/go-car-datastore/util"
)

var log = logging.Logger("car/index")

// DefaultBufferSize is the sliding-window size used when scanning a file
// to build an index, absent an explicit override.
const DefaultBufferSize = 64 << 10

// Entry locates one block's payload within an archive. BlockOffset and
// BlockLength describe the payload only, not the outer varint or the CID.
type Entry struct {
	Key         string
	Cid         cid.Cid
	BlockOffset int64
	BlockLength int64
}

// Index is an ordered sequence of entries plus an O(1) key-to-entry
// lookup. Later entries for a duplicate key shadow earlier ones in the
// lookup, but both survive in Entries.
type Index struct {
	Entries []Entry
	byKey   map[string]int
}

// Get returns the last-seen entry for key, if any.
func (idx *Index) Get(key string) (Entry, bool) {
	i, ok := idx.byKey[key]
	if !ok {
		return Entry{}, false
	}
	return idx.Entries[i], true
}

// Has reports whether key has any entry in the index.
func (idx *Index) Has(key string) bool {
	_, ok := idx.byKey[key]
	return ok
}

func newIndex() *Index {
	return &Index{byKey: make(map[string]int)}
}

func (idx *Index) add(e Entry) {
	idx.byKey[e.Key] = len(idx.Entries)
	idx.Entries = append(idx.Entries, e)
}

// Generate scans a CARv1 stream and builds its index using a sliding
// read-ahead window of bufferSize bytes: as many complete frames as the
// buffer holds are parsed, the residual prefix is kept, and more is read.
func Generate(r io.Reader, bufferSize int) (*Index, error) {
	if bufferSize < 1 {
		bufferSize = DefaultBufferSize
	}
	br := bufio.NewReaderSize(r, bufferSize)

	_, headerSize, err := header.Read(br)
	if err != nil {
		return nil, fmt.Errorf("error reading car header: %w", err)
	}

	idx := newIndex()
	offset := int64(headerSize)

	for {
		frameStart := offset
		l, err := util.ReadVarint(br)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if l == 0 {
			return nil, util.ErrZeroLengthSection
		}
		lenSize := int64(util.VarintSize(l))

		buf := make([]byte, l)
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, util.ErrUnexpectedEnd
		}

		n, c, err := cid.CidFromBytes(buf)
		if err != nil {
			return nil, util.ErrMalformedFrame
		}
		if n <= 0 || n > len(buf) {
			return nil, util.ErrMalformedFrame
		}
		if err := util.CheckCidVersion(c); err != nil {
			return nil, err
		}

		payloadOffset := frameStart + lenSize + int64(n)
		payloadLength := int64(len(buf) - n)
		idx.add(Entry{
			Key:         util.Key(c),
			Cid:         c,
			BlockOffset: payloadOffset,
			BlockLength: payloadLength,
		})

		offset = frameStart + lenSize + int64(l)
	}

	log.Debugf("indexed %d entries", len(idx.Entries))
	return idx, nil
}

// GenerateFromFile opens path and generates its index.
func GenerateFromFile(path string, bufferSize int) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Generate(f, bufferSize)
}

// Indexer exposes the same scan as Generate as a lazy sequence, for
// callers who want to enumerate entries without materialising the
// key-to-offset map.
func Indexer(r io.Reader) (<-chan Entry, <-chan error) {
	out := make(chan Entry)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		br := bufio.NewReaderSize(r, DefaultBufferSize)
		_, headerSize, err := header.Read(br)
		if err != nil {
			errc <- fmt.Errorf("error reading car header: %w", err)
			return
		}

		offset := int64(headerSize)
		for {
			frameStart := offset
			l, err := util.ReadVarint(br)
			if err != nil {
				if err == io.EOF {
					return
				}
				errc <- err
				return
			}
			if l == 0 {
				errc <- util.ErrZeroLengthSection
				return
			}
			lenSize := int64(util.VarintSize(l))

			buf := make([]byte, l)
			if _, err := io.ReadFull(br, buf); err != nil {
				errc <- util.ErrUnexpectedEnd
				return
			}

			n, c, err := cid.CidFromBytes(buf)
			if err != nil {
				errc <- util.ErrMalformedFrame
				return
			}
			if n <= 0 || n > len(buf) {
				errc <- util.ErrMalformedFrame
				return
			}
			if err := util.CheckCidVersion(c); err != nil {
				errc <- err
				return
			}

			entry := Entry{
				Key:         util.Key(c),
				Cid:         c,
				BlockOffset: frameStart + lenSize + int64(n),
				BlockLength: int64(len(buf) - n),
			}
			offset = frameStart + lenSize + int64(l)

			out <- entry
		}
	}()

	return out, errc
}

// IndexerFile opens path and runs Indexer over it, closing the file once
// the scan completes.
func IndexerFile(path string) (<-chan Entry, <-chan error) {
	f, err := os.Open(path)
	if err != nil {
		errc := make(chan error, 1)
		errc <- err
		close(errc)
		out := make(chan Entry)
		close(out)
		return out, errc
	}
	out, errc := Indexer(f)
	wrapped := make(chan error, 1)
	go func() {
		err := <-errc
		f.Close()
		if err != nil {
			wrapped <- err
		}
		close(wrapped)
	}()
	return out, wrapped
}

// ReadRaw reads a single block's payload given a prior Entry, issuing one
// direct read of exactly e.BlockLength bytes at e.BlockOffset.
func ReadRaw(f *os.File, e Entry) ([]byte, error) {
	buf := make([]byte, e.BlockLength)
	if _, err := f.ReadAt(buf, e.BlockOffset); err != nil {
		return nil, err
	}
	return buf, nil
}
