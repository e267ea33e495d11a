// Package car implements a reader and writer for the Content ARchive
// (CAR) format: a self-describing header followed by a concatenation of
// length-prefixed (CID, bytes) pairs. See SPEC_FULL.md for the format and
// the access-mode layer this package exposes over it.
package car

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"

	"github.com/ipld/go-car-datastore/datastore"
	"github.com/ipld/go-car-datastore/header"
	"github.com/ipld/go-car-datastore/index"
	"github.com/ipld/go-car-datastore/walk"
)

var logger = logging.Logger("car")

// Header is the decoded {version, roots} pair at the start of an archive.
type Header = header.Header

// Datastore is the uniform get/has/query/put/delete/getRoots/setRoots/
// close facade produced by every constructor in this package. Which
// operations succeed depends on which constructor built it: the read
// modes reject SetRoots, Put and Delete, ReadStreaming also rejects Get
// and Has, and WriteStream rejects GetRoots, Has, Get, Query and Delete,
// each with ErrUnsupportedOperation.
type Datastore = datastore.Datastore

// Entry is one (CID, payload) pair yielded by Datastore.Query.
type Entry = datastore.Entry

// IndexEntry locates one block's payload within an archive.
type IndexEntry = index.Entry

// GetFunc fetches the payload for a CID, for use with CompleteGraph.
type GetFunc = walk.GetFunc

// LinkEnumerator yields the CIDs a block's payload links to.
type LinkEnumerator = walk.LinkEnumerator

// ReadHeader decodes a header frame from r.
func ReadHeader(r io.Reader) (*Header, uint64, error) {
	return header.Read(bufio.NewReader(r))
}

// WriteHeader encodes h and writes it to w.
func WriteHeader(w io.Writer, h *Header) error {
	return header.Write(w, h)
}

// HeaderSize reports the on-wire size of h without writing it.
func HeaderSize(h *Header) (uint64, error) {
	return header.Size(h)
}

// ReadBuffer decodes a whole archive already resident in memory. The
// returned datastore supports getRoots/get/has/query; setRoots/put/delete
// fail with ErrUnsupportedOperation.
func ReadBuffer(data []byte, opts ...Option) (*Datastore, error) {
	return datastore.NewReadBuffer(data)
}

// ReadFileComplete opens path, scans it once to build a CID-to-offset
// index, and returns a datastore that satisfies get/has with a single
// direct read each rather than holding the archive in memory.
func ReadFileComplete(path string, opts ...Option) (*Datastore, error) {
	o := applyOptions(opts...)
	logger.Debugf("indexing %s", path)
	return datastore.NewReadFileComplete(path, datastore.Options{BufferSize: o.BufferSize})
}

// ReadStreamComplete drains stream fully, then behaves like ReadBuffer.
// Useful for callers with a stream but bounded data who still want the
// full get/has surface.
func ReadStreamComplete(stream io.Reader, opts ...Option) (*Datastore, error) {
	return datastore.NewReadStreamComplete(stream)
}

// ReadStreaming returns a datastore whose getRoots is available
// immediately and whose blocks are surfaced lazily, once each, through
// Query; get and has are unsupported, and a second Query before the first
// is drained fails with ErrConcurrentIteration.
func ReadStreaming(stream io.Reader, opts ...Option) (*Datastore, error) {
	return datastore.NewReadStreaming(stream)
}

// WriteStream returns a write-only datastore that streams a fresh
// archive to sink: setRoots is legal once, before the first put; put
// writes one block frame per call, auto-writing an empty-roots header if
// setRoots was never called; delete always fails.
func WriteStream(sink io.Writer) (*Datastore, error) {
	return datastore.NewWriteStream(sink), nil
}

// Indexer exposes the file/stream scanner as a lazy sequence of
// IndexEntry, without building the full key-to-offset map a file-indexed
// datastore holds internally.
func Indexer(r io.Reader) (<-chan IndexEntry, <-chan error) {
	return index.Indexer(r)
}

// IndexerFile opens path and runs Indexer over it.
func IndexerFile(path string) (<-chan IndexEntry, <-chan error) {
	return index.IndexerFile(path)
}

// ReadRaw reads a single block's payload given a prior IndexEntry,
// issuing one direct read at the entry's recorded offset.
func ReadRaw(f *os.File, e IndexEntry) ([]byte, error) {
	return index.ReadRaw(f, e)
}

// CompleteGraph writes the full graph reachable from root to a fresh
// writer-mode datastore: it fetches root via get, puts it, then expands
// its outbound links in chunks of the configured concurrency (fetched in
// parallel, recursed into in link order), deduplicating by CID, and
// closes w once the subtree is fully written.
func CompleteGraph(ctx context.Context, root cid.Cid, get GetFunc, w *Datastore, opts ...walk.Option) error {
	return walk.CompleteGraph(ctx, root, get, w, opts...)
}
