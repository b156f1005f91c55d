package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClosed is returned when an adapter is used after Close.
	ErrClosed = errors.New("storage is closed")

	// ErrInvalidBatchSize is returned when PullItems is asked for fewer than one record.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")
)

// SkippedRecord describes one claimed record that could not be decoded.
type SkippedRecord struct {
	// ID is the storage row id.
	ID int64

	// Key is the logical key of the record.
	Key string

	// Err is the decode failure, wrapping model.ErrMalformedPayload.
	Err error
}

// SkippedError reports records that were claimed but could not be decoded.
// It accompanies a partial result: the requests that did decode are
// returned together with it, so callers should treat it as a warning.
type SkippedError struct {
	Records []SkippedRecord
}

// Error implements error.
func (e *SkippedError) Error() string {
	keys := make([]string, len(e.Records))
	for i, r := range e.Records {
		keys[i] = r.Key
	}
	return fmt.Sprintf("skipped %d malformed record(s): %s", len(e.Records), strings.Join(keys, ", "))
}

// Unwrap exposes the individual decode failures to errors.Is.
func (e *SkippedError) Unwrap() []error {
	errs := make([]error, len(e.Records))
	for i, r := range e.Records {
		errs[i] = r.Err
	}
	return errs
}

// IsSkipped reports whether err is only a *SkippedError, meaning the
// accompanying result is usable.
func IsSkipped(err error) bool {
	var skipped *SkippedError
	return errors.As(err, &skipped)
}
