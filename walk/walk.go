// Package walk implements the recursive graph walker that turns an
// arbitrary linked block graph into a CAR archive: completeGraph in the
// spec's terms.
package walk

import (
	"context"
	"sync"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"

	// Registering these brings dag-pb and dag-cbor decoding into
	// format.Decode's registry, so the default link enumerator can
	// recognise the two codecs the rest of the pack produces.
	_ "github.com/ipfs/go-ipld-cbor"
	_ "github.com/ipfs/go-merkledag"

	"github.com/ipld/go-car-datastore/datastore"
	"github.com/ipld/go-car-datastore/util"
)

var log = logging.Logger("car/walk")

// GetFunc fetches the payload for a CID from whatever graph source the
// caller is walking (a blockstore, a network fetcher, ...).
type GetFunc func(ctx context.Context, c cid.Cid) ([]byte, error)

// LinkEnumerator yields the CIDs a block's payload links to, given the
// block's own CID (which carries its codec tag). A raw-codec block has no
// links by construction and should never reach an implementation that
// needs to decode the payload.
type LinkEnumerator interface {
	Links(c cid.Cid, payload []byte) ([]cid.Cid, error)
}

// DefaultLinkEnumerator decodes the block with go-ipld-format's registered
// decoders and returns its links.
type DefaultLinkEnumerator struct{}

// Links implements LinkEnumerator.
func (DefaultLinkEnumerator) Links(c cid.Cid, payload []byte) ([]cid.Cid, error) {
	if c.Prefix().Codec == cid.Raw {
		return nil, nil
	}
	blk, err := blocks.NewBlockWithCid(payload, c)
	if err != nil {
		return nil, err
	}
	nd, err := format.Decode(blk)
	if err != nil {
		return nil, err
	}
	links := nd.Links()
	out := make([]cid.Cid, len(links))
	for i, l := range links {
		out[i] = l.Cid
	}
	return out, nil
}

type options struct {
	concurrency int
	enumerator  LinkEnumerator
}

// Option configures CompleteGraph.
type Option func(*options)

// Concurrency sets how many outbound links are fetched in parallel at
// each level of the walk. Values below 1 are treated as 1.
func Concurrency(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.concurrency = n
	}
}

// WithLinkEnumerator overrides the default go-ipld-format-based link
// enumerator, for callers with their own block codecs.
func WithLinkEnumerator(e LinkEnumerator) Option {
	return func(o *options) {
		o.enumerator = e
	}
}

func applyOptions(opts []Option) options {
	o := options{concurrency: 1, enumerator: DefaultLinkEnumerator{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// CompleteGraph writes the full reachable graph from root to a fresh
// writer-mode datastore: it sets root as the archive's sole root, then
// recursively fetches, writes and expands every reachable block exactly
// once, processing each block's outbound links in chunks of the
// configured concurrency (fetched in parallel, recursed into in link
// order) before closing car.
func CompleteGraph(ctx context.Context, root cid.Cid, get GetFunc, car *datastore.Datastore, opts ...Option) error {
	o := applyOptions(opts)

	if err := car.SetRoots([]cid.Cid{root}); err != nil {
		return err
	}

	payload, err := get(ctx, root)
	if err != nil {
		return err
	}
	if err := car.Put(root, payload); err != nil {
		return err
	}

	seen := make(map[string]bool)
	var mu sync.Mutex
	seen[util.Key(root)] = true

	if err := walkLinks(ctx, root, payload, get, car, o, seen, &mu); err != nil {
		return err
	}

	return car.Close()
}

func walkLinks(ctx context.Context, c cid.Cid, payload []byte, get GetFunc, car *datastore.Datastore, o options, seen map[string]bool, mu *sync.Mutex) error {
	if c.Prefix().Codec == cid.Raw {
		return nil
	}
	links, err := o.enumerator.Links(c, payload)
	if err != nil {
		return err
	}

	var pending []cid.Cid
	mu.Lock()
	for _, l := range links {
		k := util.Key(l)
		if seen[k] {
			continue
		}
		seen[k] = true
		pending = append(pending, l)
	}
	mu.Unlock()

	for start := 0; start < len(pending); start += o.concurrency {
		end := start + o.concurrency
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]
		payloads := make([][]byte, len(chunk))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.concurrency)
		for i, l := range chunk {
			i, l := i, l
			g.Go(func() error {
				p, err := get(gctx, l)
				if err != nil {
					return err
				}
				payloads[i] = p
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for i, l := range chunk {
			log.Debugf("writing block %s", l)
			if err := car.Put(l, payloads[i]); err != nil {
				return err
			}
			if err := walkLinks(ctx, l, payloads[i], get, car, o, seen, mu); err != nil {
				return err
			}
		}
	}

	return nil
}
