package tree

import (
	"errors"
	"fmt"
)

// ErrMalformedListing matches every *MalformedListingError via errors.Is.
var ErrMalformedListing = errors.New("malformed listing")

// MalformedListingError reports a listing that violates the tree invariants.
// No partial tree is ever returned alongside it.
type MalformedListingError struct {
	Path   string
	Reason string
}

func (e *MalformedListingError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed listing: %s", e.Reason)
	}
	return fmt.Sprintf("malformed listing at %q: %s", e.Path, e.Reason)
}

// Is lets errors.Is(err, ErrMalformedListing) match.
func (e *MalformedListingError) Is(target error) bool {
	return target == ErrMalformedListing
}

func malformed(path, format string, args ...any) error {
	return &MalformedListingError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
