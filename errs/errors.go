// Package errs defines the sentinel errors returned by the flatcodec packages.
//
// Callers should match errors with errors.Is; most call sites wrap the
// sentinel with positional context using fmt.Errorf("...: %w", err).
package errs

import "errors"

// Byte region and reader errors.
var (
	// ErrOutOfBounds is returned when a read or write would cross the buffer edges.
	ErrOutOfBounds = errors.New("access out of buffer bounds")
	// ErrBufferTooSmall is returned when a buffer is too short to hold a root or prefix.
	ErrBufferTooSmall = errors.New("buffer too small")
	// ErrBufferTooLarge is returned when a buffer would exceed the 2GiB format limit.
	ErrBufferTooLarge = errors.New("buffer exceeds maximum size")
	// ErrInvalidIdentifier is returned when the file identifier does not match.
	ErrInvalidIdentifier = errors.New("file identifier mismatch")
	// ErrInvalidAlignment is returned for alignment values that are not a power of two
	// or are larger than the supported maximum.
	ErrInvalidAlignment = errors.New("invalid alignment")
)

// Core builder errors.
var (
	// ErrNestingViolation is returned when objects are started, ended or nested incorrectly,
	// or when a field slot exceeds the declared field count.
	ErrNestingViolation = errors.New("nesting violation")
	// ErrAlreadyFinished is returned when a builder is used after Finish.
	ErrAlreadyFinished = errors.New("builder already finished")
	// ErrNotFinished is returned when finished bytes are requested before Finish.
	ErrNotFinished = errors.New("builder not finished")
	// ErrRequiredFieldMissing is returned when a required table field was not written.
	ErrRequiredFieldMissing = errors.New("required field missing")
)

// Dynamic format errors.
var (
	// ErrTypeMismatch is returned by strict accessors when the stored type differs
	// from the requested one.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrUnsupportedWidth is returned when a stored bit width is invalid for the value type.
	ErrUnsupportedWidth = errors.New("unsupported bit width")
	// ErrUnsupportedType is returned when a Go value cannot be encoded.
	ErrUnsupportedType = errors.New("unsupported value type")
	// ErrKeyWithoutMap is returned when a key is added outside of a map.
	ErrKeyWithoutMap = errors.New("key added outside of a map")
	// ErrValueWithoutKey is returned when a map value is added without a preceding key.
	ErrValueWithoutKey = errors.New("map value added without a key")
	// ErrDuplicateKey is returned when a map contains the same key twice.
	ErrDuplicateKey = errors.New("duplicate map key")
	// ErrStackNotSingle is returned when Finish is called with open or multiple root values.
	ErrStackNotSingle = errors.New("value stack must hold exactly one root value")
	// ErrKeyNotFound is returned by strict map lookups for absent keys.
	ErrKeyNotFound = errors.New("key not found")
	// ErrIndexOutOfRange is returned when a vector index is outside its length.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Verifier errors.
var (
	// ErrVerification is the common wrapper for all verifier failures.
	ErrVerification = errors.New("buffer verification failed")
	// ErrMaxDepth is returned when table or container nesting exceeds the reader limit.
	ErrMaxDepth = errors.New("maximum nesting depth exceeded")
	// ErrMaxTables is returned when the table count exceeds the verifier limit.
	ErrMaxTables = errors.New("maximum table count exceeded")
)
