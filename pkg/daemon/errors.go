package daemon

import (
	stderrors "errors"

	sharederrors "github.com/fluxgate/opcore/pkg/shared/errors"
)

// ErrInternalInvariantViolation marks a bug in this package's own
// bookkeeping (e.g. dispatching on a handler of KindUnsupported) rather
// than a handler or cluster failure; it should never be reachable from
// valid input.
var ErrInternalInvariantViolation = stderrors.New("daemon: internal invariant violation")

// ErrPatchFailure wraps a failure to apply a handler's accumulated
// patch to the cluster.
func ErrPatchFailure(resource ResourceID, cause error) error {
	return sharederrors.FailedToWithDetails("apply patch", "daemon", resource.String(), cause)
}
