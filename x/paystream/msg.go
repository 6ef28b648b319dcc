package paystream

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
)

func init() {
	migration.MustRegister(1, &CreateStreamMsg{}, migration.NoModification)
	migration.MustRegister(1, &CreateBatchMsg{}, migration.NoModification)
	migration.MustRegister(1, &WithdrawMsg{}, migration.NoModification)
	migration.MustRegister(1, &CancelStreamMsg{}, migration.NoModification)
	migration.MustRegister(1, &PauseStreamMsg{}, migration.NoModification)
	migration.MustRegister(1, &ResumeStreamMsg{}, migration.NoModification)
	migration.MustRegister(1, &TransferStreamMsg{}, migration.NoModification)
	migration.MustRegister(1, &TransferReceiptMsg{}, migration.NoModification)
	migration.MustRegister(1, &RefreshStreamMsg{}, migration.NoModification)
	migration.MustRegister(1, &UpdateConfigurationMsg{}, migration.NoModification)
}

const (
	// maxBatchSize bounds the work a single batch creation can demand.
	maxBatchSize = 20
)

var _ weave.Msg = (*CreateStreamMsg)(nil)

// Path implements weave.Msg interface.
func (CreateStreamMsg) Path() string {
	return "paystream/create_stream"
}

func (m *CreateStreamMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "Source", m.Source.Validate())
	errs = errors.Append(errs, validateStreamTerms(m.Receiver, m.Amount, m.StartTime, m.CliffTime, m.EndTime, m.InterestStrategy, m.Vault))
	return errs
}

// validateStreamTerms checks the fields every stream creation path
// shares, whether direct, batched or proposal driven.
func validateStreamTerms(receiver weave.Address, amount *coin.Coin, start, cliff, end weave.UnixTime, strategy uint32, vault weave.Address) error {
	var errs error
	errs = errors.AppendField(errs, "Receiver", receiver.Validate())
	switch {
	case amount == nil:
		errs = errors.AppendField(errs, "Amount", errors.Wrap(errors.ErrAmount, "required"))
	case !amount.IsPositive():
		errs = errors.AppendField(errs, "Amount", errors.Wrap(errors.ErrAmount, "must be positive"))
	default:
		errs = errors.AppendField(errs, "Amount", amount.Validate())
	}
	errs = errors.Append(errs, validateSchedule(start, cliff, end))
	if strategy > strategyAll {
		errs = errors.AppendField(errs, "InterestStrategy", ErrInvalidStrategy)
	}
	if vault != nil {
		errs = errors.AppendField(errs, "Vault", vault.Validate())
	}
	return errs
}

func (r *StreamRequest) Validate() error {
	return validateStreamTerms(r.Receiver, r.Amount, r.StartTime, r.CliffTime, r.EndTime, r.InterestStrategy, r.Vault)
}

var _ weave.Msg = (*CreateBatchMsg)(nil)

// Path implements weave.Msg interface.
func (CreateBatchMsg) Path() string {
	return "paystream/create_batch"
}

func (m *CreateBatchMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "Source", m.Source.Validate())
	switch {
	case len(m.Requests) == 0:
		errs = errors.AppendField(errs, "Requests", errors.Wrap(errors.ErrEmpty, "at least one request required"))
	case len(m.Requests) > maxBatchSize:
		errs = errors.AppendField(errs, "Requests", errors.Wrapf(errors.ErrInput, "at most %d requests allowed", maxBatchSize))
	}
	for i, r := range m.Requests {
		if r == nil {
			errs = errors.AppendField(errs, "Requests", errors.Wrapf(errors.ErrEmpty, "request #%d", i))
			continue
		}
		if err := r.Validate(); err != nil {
			errs = errors.Append(errs, errors.Wrapf(err, "request #%d", i))
		}
	}
	return errs
}

var _ weave.Msg = (*WithdrawMsg)(nil)

// Path implements weave.Msg interface.
func (WithdrawMsg) Path() string {
	return "paystream/withdraw"
}

func (m *WithdrawMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "StreamID", validateStreamID(m.StreamID))
	return errs
}

var _ weave.Msg = (*CancelStreamMsg)(nil)

// Path implements weave.Msg interface.
func (CancelStreamMsg) Path() string {
	return "paystream/cancel_stream"
}

func (m *CancelStreamMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "StreamID", validateStreamID(m.StreamID))
	return errs
}

var _ weave.Msg = (*PauseStreamMsg)(nil)

// Path implements weave.Msg interface.
func (PauseStreamMsg) Path() string {
	return "paystream/pause_stream"
}

func (m *PauseStreamMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "StreamID", validateStreamID(m.StreamID))
	return errs
}

var _ weave.Msg = (*ResumeStreamMsg)(nil)

// Path implements weave.Msg interface.
func (ResumeStreamMsg) Path() string {
	return "paystream/resume_stream"
}

func (m *ResumeStreamMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "StreamID", validateStreamID(m.StreamID))
	return errs
}

var _ weave.Msg = (*TransferStreamMsg)(nil)

// Path implements weave.Msg interface.
func (TransferStreamMsg) Path() string {
	return "paystream/transfer_stream"
}

func (m *TransferStreamMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "StreamID", validateStreamID(m.StreamID))
	errs = errors.AppendField(errs, "Receiver", m.Receiver.Validate())
	return errs
}

var _ weave.Msg = (*TransferReceiptMsg)(nil)

// Path implements weave.Msg interface.
func (TransferReceiptMsg) Path() string {
	return "paystream/transfer_receipt"
}

func (m *TransferReceiptMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "StreamID", validateStreamID(m.StreamID))
	errs = errors.AppendField(errs, "NewOwner", m.NewOwner.Validate())
	return errs
}

var _ weave.Msg = (*RefreshStreamMsg)(nil)

// Path implements weave.Msg interface.
func (RefreshStreamMsg) Path() string {
	return "paystream/refresh_stream"
}

func (m *RefreshStreamMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "StreamID", validateStreamID(m.StreamID))
	return errs
}

var _ weave.Msg = (*UpdateConfigurationMsg)(nil)

// Path implements weave.Msg interface.
func (UpdateConfigurationMsg) Path() string {
	return "paystream/update_configuration"
}

func (m *UpdateConfigurationMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	if m.Patch == nil {
		errs = errors.AppendField(errs, "Patch", errors.Wrap(errors.ErrEmpty, "required"))
	}
	return errs
}

func validateStreamID(id []byte) error {
	if len(id) != 8 {
		return errors.Wrap(errors.ErrInput, "invalid stream id")
	}
	return nil
}
