package indexer

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to the transport layer.
var (
	// ErrInvalidWorkspace means the workspace id is empty or the root is
	// not a readable directory. Not retriable without fixing the input.
	ErrInvalidWorkspace = errors.New("invalid workspace")

	// ErrNoIndex means no snapshot has ever been published for the
	// workspace. Expected before the first successful build.
	ErrNoIndex = errors.New("no index available")

	// ErrUnknownWorkspace means the workspace was never registered.
	ErrUnknownWorkspace = errors.New("unknown workspace")

	// ErrNoJob means no build was ever triggered for the workspace.
	ErrNoJob = errors.New("no indexing job")
)

// ScanError is a root-level scan failure (root missing, unreadable, or
// the scan was canceled). Individual file failures are ScanWarnings, not
// errors.
type ScanError struct {
	Root string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Root, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// ScanWarning records a per-file problem that did not abort the scan.
type ScanWarning struct {
	Path string
	Err  error
}

func (w ScanWarning) String() string {
	return fmt.Sprintf("%s: %v", w.Path, w.Err)
}

// BuildError is a failure while assembling a snapshot. Canceled is set
// when the build stopped at a checkpoint in response to cancellation.
type BuildError struct {
	Canceled bool
	Err      error
}

func (e *BuildError) Error() string {
	if e.Canceled {
		return fmt.Sprintf("build canceled: %v", e.Err)
	}
	return fmt.Sprintf("build failed: %v", e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// InternalError is an invariant violation. It is always fatal to the
// triggering operation and never silently swallowed.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in %s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

func internalf(op, format string, args ...any) *InternalError {
	return &InternalError{Op: op, Err: fmt.Errorf(format, args...)}
}
