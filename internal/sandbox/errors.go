package sandbox

import "errors"

// Error taxonomy for the sandbox engine. CommandFailure is deliberately
// absent: a non-zero command exit is returned as a Result.ReturnCode, never
// raised as an error.
var (
	// ErrBaseMissing is returned by Open when base_dir does not exist.
	ErrBaseMissing = errors.New("sandbox: base directory does not exist")

	// ErrPermissionDenied is returned by Open when the root overlay mount
	// fails with EPERM. Concealment (mknod/setxattr) failures are logged
	// and skipped rather than returned.
	ErrPermissionDenied = errors.New("sandbox: permission denied mounting overlay (are you root?)")

	// ErrMountFailed is returned by Open when the kernel refuses the root
	// overlay mount for a reason other than privilege (e.g. no overlayfs
	// support).
	ErrMountFailed = errors.New("sandbox: failed to mount root overlay")

	// ErrNotMounted is returned by Run when called on a closed session.
	ErrNotMounted = errors.New("sandbox: session is not mounted")
)
