package source

import "errors"

var (
	// ErrUnknownSource indicates that no adapter is registered for a source kind.
	ErrUnknownSource = errors.New("unknown source kind")

	// ErrInvalidCursor indicates a cursor the adapter cannot interpret.
	ErrInvalidCursor = errors.New("invalid source cursor")

	// ErrMalformedEntry indicates a source entry that could not be decoded.
	ErrMalformedEntry = errors.New("malformed source entry")
)
