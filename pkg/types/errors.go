package types

import "errors"

// Database lifecycle errors.
var (
	ErrDetached        = errors.New("database is detached")
	ErrAlreadyAttached = errors.New("database is already attached")
)

// Store operation errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidID     = errors.New("invalid record ID")
	ErrInvalidName   = errors.New("invalid name")
	ErrDuplicateName = errors.New("name already in use")
)

// Type system errors.
var (
	ErrUnknownType    = errors.New("unknown type")
	ErrNotATypedValue = errors.New("not a typed value")
	ErrInvalidOption  = errors.New("invalid type option")
	ErrValidation     = errors.New("validation failed")
)

// Schema evolution and entity errors.
var (
	ErrMalformedMeta           = errors.New("malformed field metadata")
	ErrUnknownSchema           = errors.New("unknown schema")
	ErrUnknownReference        = errors.New("unknown reference")
	ErrUnknownField            = errors.New("unknown field")
	ErrUnsatisfiableConstraint = errors.New("unsatisfiable constraint")
	ErrDefaultRequired         = errors.New("default value required")
	ErrBackfillFailed          = errors.New("backfill failed")
	ErrRequiredValue           = errors.New("required value missing")
	ErrReferenceViolation      = errors.New("referenced value does not exist")
	ErrUniqueViolation         = errors.New("value must be unique")
)
