package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidBackend is returned for a backend other than memory, sqlite or postgres.
	ErrInvalidBackend = errors.New("invalid backend: must be one of memory, sqlite, postgres")

	// ErrMissingDatabaseURL is returned when the postgres backend has no connection string.
	ErrMissingDatabaseURL = errors.New("missing database URL: required for the postgres backend")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidDelay is returned when the throttle delay is negative.
	// Use 0 to disable throttling.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidWorkers is returned when the number of consumers is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidMaxRequests is returned when the request cap is negative.
	ErrInvalidMaxRequests = errors.New("invalid max requests: must be non-negative")

	// ErrInvalidLogFormat is returned for a log format other than text or json.
	ErrInvalidLogFormat = errors.New("invalid log format: must be one of text, json")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
