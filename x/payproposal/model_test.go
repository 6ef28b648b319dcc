package payproposal

import (
	"testing"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/weavetest"
	"github.com/iov-one/weave/weavetest/assert"
)

func TestStreamProposalValidate(t *testing.T) {
	goodProposal := func() *StreamProposal {
		return &StreamProposal{
			Metadata:          &weave.Metadata{Schema: 1},
			Source:            weavetest.NewCondition().Address(),
			Receiver:          weavetest.NewCondition().Address(),
			Amount:            coin.NewCoinp(1000, 0, "IOV"),
			StartTime:         100,
			EndTime:           200,
			RequiredApprovals: 2,
			Deadline:          300,
		}
	}

	assert.Nil(t, goodProposal().Validate())

	p := goodProposal()
	p.RequiredApprovals = 0
	assert.FieldError(t, p.Validate(), "RequiredApprovals", ErrThreshold)

	p = goodProposal()
	p.Deadline = 0
	assert.FieldError(t, p.Validate(), "Deadline", errors.ErrInput)

	p = goodProposal()
	p.EndTime = p.StartTime
	assert.FieldError(t, p.Validate(), "EndTime", errors.ErrInput)

	p = goodProposal()
	approver := weavetest.NewCondition().Address()
	p.Approvers = []weave.Address{approver, approver}
	assert.FieldError(t, p.Validate(), "Approvers", errors.ErrDuplicate)
}

func TestApprovedBy(t *testing.T) {
	one := weavetest.NewCondition().Address()
	two := weavetest.NewCondition().Address()
	p := &StreamProposal{Approvers: []weave.Address{one}}

	assert.Equal(t, true, p.ApprovedBy(one))
	assert.Equal(t, false, p.ApprovedBy(two))
}
