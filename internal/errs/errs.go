// Package errs holds the sentinel errors shared across packages.
package errs

import "errors"

var (
	ErrUnrecognizedRecord = errors.New("unsupported record type")
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	ErrNonNumericValue    = errors.New("non-numeric counter value")
	ErrMalformedItem      = errors.New("malformed data item")
	ErrEmissionFailure    = errors.New("metric emission failed")
	ErrUnexpectedFault    = errors.New("unexpected fault")
	ErrMissingAccount     = errors.New("mdm account is required")
)
