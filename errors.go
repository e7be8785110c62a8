package ocflstore

import "errors"

var (
	// ErrNotObject indicates a directory expected to hold an OCFL object is
	// missing its declaration, has conflicting declarations, or declares a
	// different type.
	ErrNotObject = errors.New("not an OCFL object")

	// ErrPathConflict indicates a destination path is already occupied or has
	// the wrong kind (a regular file where a directory is needed, or vice
	// versa).
	ErrPathConflict = errors.New("path conflict")

	// ErrMissingPath indicates an object or storage root path that does not
	// exist on the backend.
	ErrMissingPath = errors.New("path does not exist")

	// ErrUnknownScheme indicates an unrecognized storage dispersal scheme.
	ErrUnknownScheme = errors.New("unknown storage scheme")

	// ErrRootConfig indicates a storage root operation was attempted without
	// the required configuration (typically a missing path).
	ErrRootConfig = errors.New("storage root is not configured")

	// ErrNotRenamer indicates the backend does not support rename, which
	// in-place conversion and object moves require.
	ErrNotRenamer = errors.New("backend does not support rename")
)
