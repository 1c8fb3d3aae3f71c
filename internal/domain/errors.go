package domain

import "errors"

var (
	// ErrInvalidQueryField is returned when a query names a field outside
	// the closed numeric field set. It indicates a caller bug, not a
	// transient condition.
	ErrInvalidQueryField = errors.New("invalid query field")

	// ErrMalformedPage is returned when a fetched feed page, or a record
	// within it, cannot be decoded into a Trade.
	ErrMalformedPage = errors.New("malformed feed page")

	// ErrNotFound is returned by lookups that matched nothing.
	ErrNotFound = errors.New("not found")
)
