package payproposal

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
	"github.com/iov-one/weave/x"

	"github.com/tecch-wiz/StellarStream/x/paystream"
)

const (
	createProposalCost  int64 = 100
	approveProposalCost int64 = 150
)

// RegisterRoutes will instantiate and register
// all handlers in this package
func RegisterRoutes(r weave.Registry, auth x.Authenticator, cash paystream.CashController) {
	r = migration.SchemaMigratingRegistry("payproposal", r)
	bucket := NewProposalBucket()

	r.Handle(&CreateProposalMsg{}, &createProposalHandler{auth: auth, bucket: bucket})
	r.Handle(&ApproveProposalMsg{}, &approveProposalHandler{
		auth:    auth,
		bucket:  bucket,
		control: paystream.NewController(cash),
	})
}

// RegisterQuery will register proposals as "/proposals"
func RegisterQuery(qr weave.QueryRouter) {
	NewProposalBucket().Register("proposals", qr)
}

type createProposalHandler struct {
	auth   x.Authenticator
	bucket orm.ModelBucket
}

var _ weave.Handler = (*createProposalHandler)(nil)

func (h *createProposalHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: createProposalCost}, nil
}

func (h *createProposalHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	proposal := &StreamProposal{
		Metadata:          &weave.Metadata{},
		Source:            msg.Source,
		Receiver:          msg.Receiver,
		Amount:            msg.Amount,
		StartTime:         msg.StartTime,
		CliffTime:         msg.CliffTime,
		EndTime:           msg.EndTime,
		InterestStrategy:  msg.InterestStrategy,
		Vault:             msg.Vault,
		RequiredApprovals: msg.RequiredApprovals,
		Deadline:          msg.Deadline,
	}
	key, err := h.bucket.Put(db, nil, proposal)
	if err != nil {
		return nil, errors.Wrap(err, "cannot store proposal")
	}
	return &weave.DeliverResult{Data: key}, nil
}

func (h *createProposalHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*CreateProposalMsg, error) {
	var msg CreateProposalMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	if weave.IsExpired(ctx, msg.Deadline) {
		return nil, errors.Wrap(errors.ErrInput, "deadline in the past")
	}
	if !h.auth.HasAddress(ctx, msg.Source) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "source authentication required")
	}
	return &msg, nil
}

type approveProposalHandler struct {
	auth    x.Authenticator
	bucket  orm.ModelBucket
	control *paystream.Controller
}

var _ weave.Handler = (*approveProposalHandler)(nil)

func (h *approveProposalHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: approveProposalCost}, nil
}

// Deliver appends the approver. The approval that reaches the threshold
// executes the proposal: the stream is created through the paystream
// controller and the proposal becomes a terminal record. A failing
// stream creation fails the whole approval.
func (h *approveProposalHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, proposal, approver, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	proposal.Approvers = append(proposal.Approvers, approver)
	data := msg.ProposalID
	if len(proposal.Approvers) >= int(proposal.RequiredApprovals) {
		now, err := weave.BlockTime(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "block time")
		}
		streamID, err := h.control.Create(db, weave.AsUnixTime(now), proposal.Source, proposal.StreamRequest())
		if err != nil {
			return nil, errors.Wrap(err, "execute proposal")
		}
		proposal.Executed = true
		data = streamID
	}
	if _, err := h.bucket.Put(db, msg.ProposalID, proposal); err != nil {
		return nil, errors.Wrap(err, "cannot store proposal")
	}
	return &weave.DeliverResult{Data: data}, nil
}

func (h *approveProposalHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*ApproveProposalMsg, *StreamProposal, weave.Address, error) {
	var msg ApproveProposalMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, nil, errors.Wrap(err, "load msg")
	}
	var proposal StreamProposal
	if err := h.bucket.One(db, msg.ProposalID, &proposal); err != nil {
		return nil, nil, nil, errors.Wrapf(err, "proposal %x", msg.ProposalID)
	}
	if proposal.Executed {
		return nil, nil, nil, ErrExecuted
	}
	if weave.IsExpired(ctx, proposal.Deadline) {
		return nil, nil, nil, errors.Wrap(errors.ErrExpired, "proposal deadline passed")
	}
	signer := x.AnySigner(ctx, h.auth)
	if signer == nil {
		return nil, nil, nil, errors.Wrap(errors.ErrUnauthorized, "approver authentication required")
	}
	approver := signer.Address()
	if proposal.ApprovedBy(approver) {
		return nil, nil, nil, ErrAlreadyApproved
	}
	return &msg, &proposal, approver, nil
}
