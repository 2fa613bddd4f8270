package domain

import "errors"

var (
	// ErrCollectionNotFound is returned by the venue directory when its
	// backing collection has not been created yet.
	ErrCollectionNotFound = errors.New("directory collection does not exist")

	// ErrMalformedCompletion marks an upstream response that arrived but did
	// not carry a usable completion.
	ErrMalformedCompletion = errors.New("malformed completion payload")
)
