package payproposal

import (
	"github.com/iov-one/weave/errors"
)

var (
	// ErrThreshold is returned for an approval threshold lower than one.
	ErrThreshold = errors.Register(1510, "invalid approval threshold")

	// ErrAlreadyApproved is returned when an approver signs off twice.
	ErrAlreadyApproved = errors.Register(1511, "already approved")

	// ErrExecuted is returned when approving a proposal that was
	// already executed.
	ErrExecuted = errors.Register(1512, "proposal already executed")
)
