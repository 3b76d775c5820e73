package flow

import (
	"github.com/iov-one/flowtree/errors"
)

var (
	// ErrAllocationWeightsInvalid is returned when allocation basis points
	// do not describe a complete distribution.
	ErrAllocationWeightsInvalid = errors.Register(1200, "allocation weights invalid")

	// ErrNotAuthorizedToAllocate is returned when a strategy does not
	// allow the caller to allocate under the derived key.
	ErrNotAuthorizedToAllocate = errors.Register(1201, "not authorized to allocate")

	// ErrRecipientNotFound is returned for an unknown or removed recipient.
	ErrRecipientNotFound = errors.Register(1202, "recipient not found")

	// ErrWitnessMismatch is returned when the attested previous allocation
	// does not match the stored one.
	ErrWitnessMismatch = errors.Register(1203, "allocation witness mismatch")

	// ErrCycle is returned when adding a child would create a cycle in the
	// node tree.
	ErrCycle = errors.Register(1204, "node cycle")
)
