package fsops

import "errors"

// Failure kinds surfaced to the gateway. Raw OS errors never cross the
// package boundary; every operation maps them onto one of these before
// returning (errors.Is-compatible via wrapping).
var (
	// ErrAccessDenied means a path resolved outside the root.
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidPath means the path contains bytes that can never name
	// a filesystem entry (NUL, control characters).
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidName means a file or directory name is not a single
	// path segment.
	ErrInvalidName = errors.New("invalid name")

	// ErrNotFound means the path did not exist at operation time.
	ErrNotFound = errors.New("not found")

	// ErrNotADirectory means a listing was requested on a regular file.
	ErrNotADirectory = errors.New("not a directory")

	// ErrIsADirectory means a plain download was requested on a directory.
	ErrIsADirectory = errors.New("is a directory")

	// ErrExists means a rename or move target is already occupied.
	ErrExists = errors.New("already exists")
)
