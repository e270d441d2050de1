package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, automation.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when an automation ID does not exist.
	ErrNotFound = errors.New("automation: not found")

	// ErrValidation is the parent of every script validation failure.
	ErrValidation = errors.New("automation: validation failed")

	// ErrEmptyScript is returned for empty or whitespace-only scripts.
	ErrEmptyScript = errors.New("automation: empty script")

	// ErrInvalidSyntax is returned when an interpreted script does not parse.
	ErrInvalidSyntax = errors.New("automation: invalid syntax")

	// ErrUnknownScriptType is returned for script types with no validator.
	ErrUnknownScriptType = errors.New("automation: unknown script type")

	// ErrCorruptCatalog is returned by a Backend whose stored data cannot be decoded.
	ErrCorruptCatalog = errors.New("automation: corrupt catalog")
)
