package header

import (
	"bufio"
	"bytes"
	"testing"

	dag "github.com/ipfs/go-merkledag"
	mh "github.com/multiformats/go-multihash"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	root := dag.NewRawNode([]byte("root")).Cid()
	h := &Header{Version: Version, Roots: []cid.Cid{root}}

	buf := new(bytes.Buffer)
	require.NoError(t, Write(buf, h))

	size, err := Size(h)
	require.NoError(t, err)
	require.EqualValues(t, buf.Len(), size)

	got, n, err := Read(bufio.NewReader(buf))
	require.NoError(t, err)
	require.EqualValues(t, size, n)
	require.True(t, h.Matches(*got))
}

func TestReadRejectsWrongVersion(t *testing.T) {
	h := &Header{Version: 2}
	buf := new(bytes.Buffer)
	require.NoError(t, Write(buf, h))

	_, _, err := Read(bufio.NewReader(buf))
	var uv *UnsupportedVersionError
	require.ErrorAs(t, err, &uv)
	require.EqualValues(t, 2, uv.Version)
}

func TestReadRejectsCidV0Root(t *testing.T) {
	digest, err := mh.Sum([]byte("x"), mh.SHA2_256, -1)
	require.NoError(t, err)
	v0 := cid.NewCidV0(digest)

	h := &Header{Version: Version, Roots: []cid.Cid{v0}}
	buf := new(bytes.Buffer)
	require.NoError(t, Write(buf, h))

	_, _, err = Read(bufio.NewReader(buf))
	require.Error(t, err)
}

func TestMatchesIgnoresRootOrder(t *testing.T) {
	a := dag.NewRawNode([]byte("a")).Cid()
	b := dag.NewRawNode([]byte("b")).Cid()

	h1 := Header{Version: Version, Roots: []cid.Cid{a, b}}
	h2 := Header{Version: Version, Roots: []cid.Cid{b, a}}
	require.True(t, h1.Matches(h2))

	h3 := Header{Version: Version, Roots: []cid.Cid{a}}
	require.False(t, h1.Matches(h3))
}
