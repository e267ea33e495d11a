// Package util implements the low-level framing shared by every CAR
// access mode: unsigned LEB128 length prefixes and the
// varint(len) ‖ CID ‖ payload block frame.
package util

import (
	"bufio"
	"errors"
	"io"

	"github.com/ipfs/go-cid"
	mbase "github.com/multiformats/go-multibase"
	"github.com/multiformats/go-varint"
)

// ErrUnexpectedEnd is returned when a source is exhausted mid-varint or
// mid-frame.
var ErrUnexpectedEnd = errors.New("car: unexpected end of input")

// ErrVarintOverflow is returned when a varint exceeds the nine-byte bound
// that fits an unsigned 63-bit value.
var ErrVarintOverflow = errors.New("car: varint overflows maximum length")

// ErrZeroLengthSection is returned by ReadNode when a frame's declared
// length is zero and the caller has not opted into treating that as EOF;
// the format requires every frame length to be positive.
var ErrZeroLengthSection = errors.New("car: zero-length section encountered")

// ErrMalformedFrame is returned when no CID can be parsed from the head of
// a frame, or the CID claims more bytes than the frame's declared length.
// A CID that fills the whole frame is accepted, with an empty payload.
var ErrMalformedFrame = errors.New("car: CID length disagrees with frame length")

// UnsupportedCidVersionError is returned whenever a CIDv0 is encountered,
// whether as a root or inside a block frame.
type UnsupportedCidVersionError struct {
	Version uint64
}

func (e *UnsupportedCidVersionError) Error() string {
	return "car: unsupported CID version: 0"
}

// CheckCidVersion rejects CID version 0; CAR files never carry it, in
// roots or in block frames.
func CheckCidVersion(c cid.Cid) error {
	if c.Version() == 0 {
		return &UnsupportedCidVersionError{Version: 0}
	}
	return nil
}

// Key renders a CID to the canonical base58btc string used as a mapping
// key throughout the readers and the index. c.String() is not enough:
// it only yields base58btc for CIDv0, and every CID reaching this
// function is v1 (v0 is rejected everywhere), for which String()
// returns base32.
func Key(c cid.Cid) string {
	s, err := c.StringOfBase(mbase.Base58BTC)
	if err != nil {
		return c.String()
	}
	return s
}

// Deprecated: use cid.CidFromBytes directly.
func ReadCid(buf []byte) (cid.Cid, int, error) {
	n, c, err := cid.CidFromBytes(buf)
	return c, n, err
}

// ReadVarint reads one LEB128-encoded length from br, translating the
// underlying varint library's own bounds into the taxonomy this module
// surfaces to callers. A clean io.EOF before the first byte is returned
// verbatim so callers can tell "no more frames" from a truncated varint.
func ReadVarint(br io.ByteReader) (uint64, error) {
	l, err := varint.ReadUvarint(br)
	if err != nil {
		if err == io.ErrUnexpectedEOF {
			return 0, ErrUnexpectedEnd
		}
		if errors.Is(err, varint.ErrOverflow) {
			return 0, ErrVarintOverflow
		}
		return 0, err
	}
	return l, nil
}

// WriteVarint writes v as a length-minimal LEB128 varint.
func WriteVarint(w io.Writer, v uint64) error {
	buf := varint.ToUvarint(v)
	_, err := w.Write(buf)
	return err
}

// VarintSize reports the encoded length of v as a LEB128 varint.
func VarintSize(v uint64) int {
	return varint.UvarintSize(v)
}

// LdWrite writes the concatenation of d as one varint(len) ‖ d frame.
func LdWrite(w io.Writer, d ...[]byte) error {
	var sum uint64
	for _, s := range d {
		sum += uint64(len(s))
	}
	if err := WriteVarint(w, sum); err != nil {
		return err
	}
	for _, s := range d {
		if _, err := w.Write(s); err != nil {
			return err
		}
	}
	return nil
}

// LdSize reports the total on-wire size of a frame carrying d.
func LdSize(d ...[]byte) uint64 {
	var sum uint64
	for _, s := range d {
		sum += uint64(len(s))
	}
	return sum + uint64(VarintSize(sum))
}

// LdRead reads one length-prefixed section from br. A clean io.EOF before
// any byte of the length is read is returned verbatim so callers can
// distinguish "no more frames" from a truncated one. zeroLenAsEOF lets a
// null-padded archive terminate cleanly on the first zero-length section.
func LdRead(br *bufio.Reader, zeroLenAsEOF bool) ([]byte, error) {
	if _, err := br.Peek(1); err != nil { // no more blocks, likely clean io.EOF
		return nil, err
	}

	l, err := ReadVarint(br)
	if err != nil {
		return nil, err
	}
	if l == 0 {
		if zeroLenAsEOF {
			return nil, io.EOF
		}
		return nil, ErrZeroLengthSection
	}

	buf := make([]byte, l)
	if _, err := io.ReadFull(br, buf); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, ErrUnexpectedEnd
		}
		return nil, err
	}

	return buf, nil
}

// ReadNode reads one block frame from br: a varint length, followed by a
// CID-prefixed buffer whose remainder is the payload.
func ReadNode(br *bufio.Reader, zeroLenAsEOF bool) (cid.Cid, []byte, error) {
	data, err := LdRead(br, zeroLenAsEOF)
	if err != nil {
		return cid.Cid{}, nil, err
	}

	n, c, err := cid.CidFromBytes(data)
	if err != nil {
		return cid.Cid{}, nil, ErrMalformedFrame
	}
	if n <= 0 || n > len(data) {
		return cid.Cid{}, nil, ErrMalformedFrame
	}
	if err := CheckCidVersion(c); err != nil {
		return cid.Cid{}, nil, err
	}

	return c, data[n:], nil
}

// WriteNode encodes one block frame for (c, payload).
func WriteNode(w io.Writer, c cid.Cid, payload []byte) error {
	if err := CheckCidVersion(c); err != nil {
		return err
	}
	return LdWrite(w, c.Bytes(), payload)
}
