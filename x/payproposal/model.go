package payproposal

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"

	"github.com/tecch-wiz/StellarStream/x/paystream"
)

func init() {
	migration.MustRegister(1, &StreamProposal{}, migration.NoModification)
}

var _ orm.CloneableData = (*StreamProposal)(nil)

func (p *StreamProposal) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", p.Metadata.Validate())
	errs = errors.AppendField(errs, "Source", p.Source.Validate())
	errs = errors.Append(errs, p.StreamRequest().Validate())
	if p.RequiredApprovals < 1 {
		errs = errors.AppendField(errs, "RequiredApprovals", ErrThreshold)
	}
	if p.Deadline == 0 {
		errs = errors.AppendField(errs, "Deadline", errors.Wrap(errors.ErrInput, "required"))
	}
	seen := make(map[string]struct{}, len(p.Approvers))
	for _, a := range p.Approvers {
		if err := a.Validate(); err != nil {
			errs = errors.AppendField(errs, "Approvers", err)
			continue
		}
		if _, ok := seen[string(a)]; ok {
			errs = errors.AppendField(errs, "Approvers", errors.Wrap(errors.ErrDuplicate, "approver listed twice"))
		}
		seen[string(a)] = struct{}{}
	}
	return errs
}

func (p *StreamProposal) Copy() orm.CloneableData {
	approvers := make([]weave.Address, len(p.Approvers))
	for i, a := range p.Approvers {
		approvers[i] = a.Clone()
	}
	return &StreamProposal{
		Metadata:          p.Metadata.Copy(),
		Source:            p.Source.Clone(),
		Receiver:          p.Receiver.Clone(),
		Amount:            p.Amount.Clone(),
		StartTime:         p.StartTime,
		CliffTime:         p.CliffTime,
		EndTime:           p.EndTime,
		InterestStrategy:  p.InterestStrategy,
		Vault:             p.Vault.Clone(),
		Approvers:         approvers,
		RequiredApprovals: p.RequiredApprovals,
		Deadline:          p.Deadline,
		Executed:          p.Executed,
	}
}

// StreamRequest returns the stream terms this proposal carries, in the
// form the paystream controller consumes on execution.
func (p *StreamProposal) StreamRequest() *paystream.StreamRequest {
	return &paystream.StreamRequest{
		Receiver:         p.Receiver,
		Amount:           p.Amount,
		StartTime:        p.StartTime,
		CliffTime:        p.CliffTime,
		EndTime:          p.EndTime,
		InterestStrategy: p.InterestStrategy,
		Vault:            p.Vault,
	}
}

// ApprovedBy returns true if the address already approved.
func (p *StreamProposal) ApprovedBy(a weave.Address) bool {
	for _, got := range p.Approvers {
		if got.Equals(a) {
			return true
		}
	}
	return false
}

var proposalSeq = orm.NewSequence("payproposal", "id")

// NewProposalBucket returns a bucket for keeping stream proposals,
// indexed by their source address.
func NewProposalBucket() orm.ModelBucket {
	b := orm.NewModelBucket("proposal", &StreamProposal{},
		orm.WithIDSequence(proposalSeq),
		orm.WithIndex("source", proposalSourceIdx, false),
	)
	return migration.NewModelBucket("payproposal", b)
}

func proposalSourceIdx(obj orm.Object) ([]byte, error) {
	if obj == nil || obj.Value() == nil {
		return nil, errors.Wrap(errors.ErrHuman, "cannot take index of nil")
	}
	p, ok := obj.Value().(*StreamProposal)
	if !ok {
		return nil, errors.Wrap(errors.ErrHuman, "can only take index of a stream proposal")
	}
	return p.Source, nil
}
