// Package header implements the CAR header: the CBOR-encoded
// {version:1, roots:[CID…]} frame that begins every archive.
package header

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"

	"github.com/ipld/go-car-datastore/util"
)

// Version is the only header version this module understands.
const Version = 1

// ErrMalformedHeader is returned when the header is not a CBOR map, or
// carries the wrong keys or types.
var ErrMalformedHeader = errors.New("car: malformed header")

// UnsupportedVersionError is returned when the header's version is not 1.
type UnsupportedVersionError struct {
	Version uint64
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("car: unsupported car version: %d", e.Version)
}

// Header is the decoded {version, roots} pair at the start of an archive.
type Header struct {
	Roots   []cid.Cid
	Version uint64
}

func init() {
	cbor.RegisterCborType(Header{})
}

// Matches reports whether two headers carry the same version and the same
// number of roots, with every root of h present in other, ignoring root
// order. Duplicate roots are not counted, so [a a] matches [a b].
func (h Header) Matches(other Header) bool {
	if h.Version != other.Version {
		return false
	}
	if len(h.Roots) != len(other.Roots) {
		return false
	}
	if len(h.Roots) == 1 {
		return h.Roots[0].Equals(other.Roots[0])
	}
	for _, r := range h.Roots {
		found := false
		for _, o := range other.Roots {
			if r.Equals(o) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Read decodes a header frame from br: one varint length, that many CBOR
// bytes, asserting version 1 and rejecting CIDv0 roots.
func Read(br *bufio.Reader) (*Header, uint64, error) {
	hb, err := util.LdRead(br, false)
	if err != nil {
		return nil, 0, err
	}

	var h Header
	if err := cbor.DecodeInto(hb, &h); err != nil {
		return nil, 0, fmt.Errorf("%w: %s", ErrMalformedHeader, err)
	}

	if h.Version != Version {
		return nil, 0, &UnsupportedVersionError{Version: h.Version}
	}

	for _, r := range h.Roots {
		if err := util.CheckCidVersion(r); err != nil {
			return nil, 0, err
		}
	}

	size := util.LdSize(hb)
	return &h, size, nil
}

// Write encodes h and writes it as a length-prefixed CBOR frame.
func Write(w io.Writer, h *Header) error {
	hb, err := cbor.DumpObject(h)
	if err != nil {
		return err
	}
	return util.LdWrite(w, hb)
}

// Size reports the on-wire size of h without writing it.
func Size(h *Header) (uint64, error) {
	hb, err := cbor.DumpObject(h)
	if err != nil {
		return 0, err
	}
	return util.LdSize(hb), nil
}
