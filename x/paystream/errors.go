package paystream

import (
	"github.com/iov-one/weave/errors"
)

var (
	// ErrStreamClosed is returned when an operation is attempted on a
	// stream that was already cancelled.
	ErrStreamClosed = errors.Register(1500, "stream cancelled")

	// ErrStreamPaused is returned when withdrawing from a paused stream.
	ErrStreamPaused = errors.Register(1501, "stream paused")

	// ErrNotReceiptOwner is returned when a caller tries to exercise
	// withdrawal rights without owning the stream receipt.
	ErrNotReceiptOwner = errors.Register(1502, "not the receipt owner")

	// ErrInvalidStrategy is returned for an interest strategy value
	// outside of the 3-bit mask range.
	ErrInvalidStrategy = errors.Register(1503, "invalid interest strategy")

	// ErrReentrancy is returned when a guarded operation is entered
	// again before the previous call completed.
	ErrReentrancy = errors.Register(1504, "reentrant call")
)
