package hostif

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by the engine wraps exactly one of
// these, so callers can classify a failure with errors.Is regardless of
// the structured detail attached to it.
var (
	// ErrInvalidReference: a referenced handle does not exist, is
	// stale, or has a type the field does not accept.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrDuplicateKey: creation would violate a uniqueness invariant.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrImmutable: an attempt to change a create-only attribute.
	ErrImmutable = errors.New("attribute is create-only")
	// ErrInvalidValue: a value violates a type or conditional rule.
	ErrInvalidValue = errors.New("invalid value")
	// ErrInUse: removal blocked by a live dependent.
	ErrInUse = errors.New("object in use")
	// ErrNotFound: the target of get, set or remove does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrStaleHandle: the handle refers to a slot whose object has
	// since been removed.
	ErrStaleHandle = errors.New("stale handle")
	// ErrNoMatch: resolution found no applicable table entry. This is
	// a normal outcome and the caller falls back to the trap action.
	ErrNoMatch = errors.New("no matching table entry")
)

// NotFoundError is returned when a handle does not name a live object.
// Stale reports that the slot once held an object of a previous
// generation.
type NotFoundError struct {
	ID    ObjectID
	Stale bool
}

func (e NotFoundError) Error() string {
	if e.Stale {
		return fmt.Sprintf("%s %s is stale", e.ID.Type(), e.ID)
	}
	return fmt.Sprintf("%s %s does not exist", e.ID.Type(), e.ID)
}

func (e NotFoundError) Unwrap() error {
	if e.Stale {
		return ErrStaleHandle
	}
	return ErrNotFound
}

// InUseError is returned when removal is blocked by objects that still
// reference the target. Blockers is sorted and never empty.
type InUseError struct {
	ID       ObjectID
	Blockers []ObjectID
}

func (e InUseError) Error() string {
	ids := make([]string, len(e.Blockers))
	for i, b := range e.Blockers {
		ids[i] = b.String()
	}
	return fmt.Sprintf("%s %s is referenced by %s", e.ID.Type(), e.ID, strings.Join(ids, ", "))
}

func (e InUseError) Unwrap() error { return ErrInUse }

// ReferenceError is returned when an attribute names a handle that is
// not live or whose type the attribute does not accept.
type ReferenceError struct {
	Attr string
	ID   ObjectID
	// Want is the set of accepted types, zero when the handle failed
	// the liveness check rather than the type check.
	Want ObjectTypeSet
	Err  error
}

func (e ReferenceError) Error() string {
	if e.Want != 0 {
		return fmt.Sprintf("%s: %s has type %s, want one of %s", e.Attr, e.ID, e.ID.Type(), e.Want)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Attr, e.Err)
	}
	return fmt.Sprintf("%s: %s is not a live object", e.Attr, e.ID)
}

// Unwrap exposes both the reference kind and any underlying lookup
// error so callers may test for either.
func (e ReferenceError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidReference, e.Err}
	}
	return []error{ErrInvalidReference}
}

// ValueError is returned when an attribute value breaks a validity
// rule.
type ValueError struct {
	Attr   string
	Reason string
}

func (e ValueError) Error() string {
	return fmt.Sprintf("%s: %s", e.Attr, e.Reason)
}

func (e ValueError) Unwrap() error { return ErrInvalidValue }

// DuplicateKeyError is returned when a create would claim a key that is
// already held by Existing.
type DuplicateKeyError struct {
	Key      string
	Existing ObjectID
}

func (e DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s already held by %s", e.Key, e.Existing)
}

func (e DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }

// ImmutableError is returned when a set targets a create-only
// attribute.
type ImmutableError struct {
	Type ObjectType
	Attr string
}

func (e ImmutableError) Error() string {
	return fmt.Sprintf("%s attribute %s is create-only", e.Type, e.Attr)
}

func (e ImmutableError) Unwrap() error { return ErrImmutable }

// Kind returns the error kind sentinel err wraps, or nil if it wraps
// none of them.
func Kind(err error) error {
	for _, k := range []error{
		ErrInvalidReference, ErrStaleHandle, ErrNotFound, ErrInUse,
		ErrDuplicateKey, ErrImmutable, ErrInvalidValue, ErrNoMatch,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
