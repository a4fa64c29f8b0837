package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrDuplicate     = errors.New("duplicate entry")
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrReservedName is returned when a rule or taxonomy entry is named "Other"
	// or cluster_<n>.
	ErrReservedName = errors.New("reserved driver name")

	// ErrEmptyVocabulary means no term survived the document-frequency filters.
	ErrEmptyVocabulary = errors.New("empty vocabulary")
	ErrTooFewPoints    = errors.New("too few points to cluster")
	ErrNoClusters      = errors.New("no clusters found")

	ErrProviderUnavailable = errors.New("label provider unavailable")
	ErrMalformedLabel      = errors.New("malformed label response")
)
