package car

import (
	"github.com/ipld/go-car-datastore/datastore"
	"github.com/ipld/go-car-datastore/header"
	"github.com/ipld/go-car-datastore/util"
)

// The error taxonomy (§7): one name per failure mode, re-exported here so
// callers of the top-level constructors only need to import this package.
var (
	ErrUnexpectedEnd        = util.ErrUnexpectedEnd
	ErrVarintOverflow       = util.ErrVarintOverflow
	ErrMalformedHeader      = header.ErrMalformedHeader
	ErrMalformedFrame       = util.ErrMalformedFrame
	ErrInvalidRoots         = datastore.ErrInvalidRoots
	ErrInvalidBlock         = datastore.ErrInvalidBlock
	ErrHeaderAlreadyWritten = datastore.ErrHeaderAlreadyWritten
	ErrAlreadyClosed        = datastore.ErrAlreadyClosed
	ErrUnsupportedOperation = datastore.ErrUnsupportedOperation
	ErrConcurrentIteration  = datastore.ErrConcurrentIteration
	ErrNotFound             = datastore.ErrNotFound
)

// UnsupportedVersionError reports a header version other than 1.
type UnsupportedVersionError = header.UnsupportedVersionError

// UnsupportedCidVersionError reports a CIDv0 seen in a root or a block
// frame.
type UnsupportedCidVersionError = util.UnsupportedCidVersionError
