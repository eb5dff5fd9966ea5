package validators

import "errors"

var (
	ErrUnsupportedType = errors.New("unsupported type for validation")
	ErrUnknownField    = errors.New("unknown field for validation")

	ErrInvalidContentID    = errors.New("invalid content id")
	ErrInvalidKind         = errors.New("invalid content kind")
	ErrEmptyTitle          = errors.New("title is required")
	ErrTitleTooLong        = errors.New("title is too long")
	ErrDescriptionTooLong  = errors.New("description is too long")
	ErrInvalidBodyFormat   = errors.New("invalid body format")
	ErrEmptyBody           = errors.New("body is required")
	ErrBodyTooLarge        = errors.New("body is too large")
	ErrMalformedJSONBody   = errors.New("json body is not valid json")
	ErrNoFieldsToUpdate    = errors.New("at least one field must be provided for update")
	ErrConflictingEdit     = errors.New("description cannot be both set and cleared")
	ErrInvalidVisibility   = errors.New("invalid visibility")
	ErrInvalidSyncStatus   = errors.New("invalid sync status")
	ErrInvalidFilterWindow = errors.New("limit exceeds the maximum page size")
)
