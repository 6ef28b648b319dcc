package payproposal

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"

	"github.com/tecch-wiz/StellarStream/x/paystream"
)

func init() {
	migration.MustRegister(1, &CreateProposalMsg{}, migration.NoModification)
	migration.MustRegister(1, &ApproveProposalMsg{}, migration.NoModification)
}

var _ weave.Msg = (*CreateProposalMsg)(nil)

// Path implements weave.Msg interface.
func (CreateProposalMsg) Path() string {
	return "payproposal/create_proposal"
}

func (m *CreateProposalMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "Source", m.Source.Validate())
	terms := paystream.StreamRequest{
		Receiver:         m.Receiver,
		Amount:           m.Amount,
		StartTime:        m.StartTime,
		CliffTime:        m.CliffTime,
		EndTime:          m.EndTime,
		InterestStrategy: m.InterestStrategy,
		Vault:            m.Vault,
	}
	errs = errors.Append(errs, terms.Validate())
	if m.RequiredApprovals < 1 {
		errs = errors.AppendField(errs, "RequiredApprovals", ErrThreshold)
	}
	if m.Deadline == 0 {
		errs = errors.AppendField(errs, "Deadline", errors.Wrap(errors.ErrInput, "required"))
	}
	return errs
}

var _ weave.Msg = (*ApproveProposalMsg)(nil)

// Path implements weave.Msg interface.
func (ApproveProposalMsg) Path() string {
	return "payproposal/approve_proposal"
}

func (m *ApproveProposalMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	if len(m.ProposalID) != 8 {
		errs = errors.AppendField(errs, "ProposalID", errors.Wrap(errors.ErrInput, "invalid proposal id"))
	}
	return errs
}
