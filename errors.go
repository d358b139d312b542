package flowedit

import "errors"

var (
	ErrTargetNotFound    = errors.New("flowedit: target element not found")
	ErrInvalidTargetType = errors.New("flowedit: target element has the wrong type for this operation")
	ErrAmbiguousSplice   = errors.New("flowedit: element has multiple upstream or downstream flows, refusing to splice")
	ErrDanglingReference = errors.New("flowedit: mutation would leave a dangling reference")
	ErrNoRootElement     = errors.New("flowedit: graph has no root element")
	ErrVersionConflict   = errors.New("flowedit: version number already taken")
	ErrVersionNotFound   = errors.New("flowedit: version not found")
	ErrEmptyHistory      = errors.New("flowedit: nothing to undo")
	ErrEmptyRedoStack    = errors.New("flowedit: nothing to redo")
	ErrSerialization     = errors.New("flowedit: graph serialization failed")
)

// ErrorKind is the machine-readable failure category carried by a
// MutationResult so callers can render a specific message.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindTargetNotFound    ErrorKind = "target_not_found"
	KindInvalidTargetType ErrorKind = "invalid_target_type"
	KindAmbiguousSplice   ErrorKind = "ambiguous_splice"
	KindDanglingReference ErrorKind = "dangling_reference"
	KindNoRootElement     ErrorKind = "no_root_element"
	KindVersionConflict   ErrorKind = "version_conflict"
	KindSerialization     ErrorKind = "serialization_error"
	KindInvalidSuggestion ErrorKind = "invalid_suggestion"
	KindInternal          ErrorKind = "internal"
)

// KindOf maps an engine error to its ErrorKind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrTargetNotFound):
		return KindTargetNotFound
	case errors.Is(err, ErrInvalidTargetType):
		return KindInvalidTargetType
	case errors.Is(err, ErrAmbiguousSplice):
		return KindAmbiguousSplice
	case errors.Is(err, ErrDanglingReference):
		return KindDanglingReference
	case errors.Is(err, ErrNoRootElement):
		return KindNoRootElement
	case errors.Is(err, ErrVersionConflict):
		return KindVersionConflict
	case errors.Is(err, ErrSerialization):
		return KindSerialization
	default:
		return KindInternal
	}
}
