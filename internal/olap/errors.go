package olap

import "errors"

var (
	// ErrInvalidIdentifier indicates identifier text that cannot be split into segments.
	ErrInvalidIdentifier = errors.New("olap: invalid identifier")
	// ErrDuplicateCube indicates a second cube registered under the same name.
	ErrDuplicateCube = errors.New("olap: duplicate cube")
	// ErrDuplicateMember indicates a second child with the same name under one parent.
	ErrDuplicateMember = errors.New("olap: duplicate member")
	// ErrLevelDepth indicates a member placed deeper than its hierarchy has levels.
	ErrLevelDepth = errors.New("olap: member deeper than hierarchy levels")
	// ErrUnknownMatchType indicates an unrecognized match type name.
	ErrUnknownMatchType = errors.New("olap: unknown match type")
)
