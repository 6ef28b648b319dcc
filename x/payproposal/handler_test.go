package payproposal_test

import (
	"context"
	"testing"
	"time"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/app"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/store"
	"github.com/iov-one/weave/weavetest"
	"github.com/iov-one/weave/weavetest/assert"
	"github.com/iov-one/weave/x"
	"github.com/iov-one/weave/x/cash"

	"github.com/tecch-wiz/StellarStream/x/payproposal"
	"github.com/tecch-wiz/StellarStream/x/paystream"
)

var (
	blockNow  = time.Unix(1600000000, 0)
	startTime = weave.AsUnixTime(blockNow)
	endTime   = startTime.Add(100 * time.Second)
	deadline  = startTime.Add(1000 * time.Second)

	source   = weavetest.NewCondition()
	receiver = weavetest.NewCondition()
	frida    = weavetest.NewCondition()
	gus      = weavetest.NewCondition()
	hanna    = weavetest.NewCondition()
)

type testEnv struct {
	t             *testing.T
	db            weave.CacheableKVStore
	router        *app.Router
	authenticator *weavetest.CtxAuth
	bank          cash.Bucket
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := store.MemStore()
	migration.MustInitPkg(db, "payproposal", "paystream", "cash")

	bank := cash.NewBucket()
	ctrl := cash.NewController(bank)
	authenticator := &weavetest.CtxAuth{Key: "auth"}
	auth := x.ChainAuth(authenticator)
	r := app.NewRouter()
	paystream.RegisterRoutes(r, auth, ctrl)
	payproposal.RegisterRoutes(r, auth, ctrl)

	conf := paystream.Configuration{
		Metadata: &weave.Metadata{Schema: 1},
		Owner:    weavetest.NewCondition().Address(),
		Treasury: weavetest.NewCondition().Address(),
	}
	if err := gconf.Save(db, "paystream", &conf); err != nil {
		t.Fatalf("cannot save configuration: %+v", err)
	}
	return &testEnv{
		t:             t,
		db:            db,
		router:        r,
		authenticator: authenticator,
		bank:          bank,
	}
}

func (e *testEnv) ctxAt(now time.Time, signers ...weave.Condition) weave.Context {
	ctx := weave.WithHeight(context.Background(), 100)
	ctx = weave.WithBlockTime(ctx, now)
	return e.authenticator.SetConditions(ctx, signers...)
}

func (e *testEnv) check(ctx weave.Context, msg weave.Msg) (*weave.CheckResult, error) {
	cache := e.db.CacheWrap()
	defer cache.Discard()
	return e.router.Check(ctx, cache, &weavetest.Tx{Msg: msg})
}

func (e *testEnv) deliver(ctx weave.Context, msg weave.Msg) (*weave.DeliverResult, error) {
	return e.router.Deliver(ctx, e.db, &weavetest.Tx{Msg: msg})
}

func (e *testEnv) setBalance(addr weave.Address, coins ...*coin.Coin) {
	e.t.Helper()
	wallet, err := cash.WalletWith(addr, coins...)
	assert.Nil(e.t, err)
	assert.Nil(e.t, e.bank.Save(e.db, wallet))
}

func (e *testEnv) loadProposal(id []byte) *payproposal.StreamProposal {
	e.t.Helper()
	var proposal payproposal.StreamProposal
	assert.Nil(e.t, payproposal.NewProposalBucket().One(e.db, id, &proposal))
	return &proposal
}

func proposalMsg() *payproposal.CreateProposalMsg {
	return &payproposal.CreateProposalMsg{
		Metadata:          &weave.Metadata{Schema: 1},
		Source:            source.Address(),
		Receiver:          receiver.Address(),
		Amount:            coin.NewCoinp(1000, 0, "IOV"),
		StartTime:         startTime,
		EndTime:           endTime,
		RequiredApprovals: 2,
		Deadline:          deadline,
	}
}

func TestCreateProposalHandler(t *testing.T) {
	cases := map[string]struct {
		signers        []weave.Condition
		mutator        func(msg *payproposal.CreateProposalMsg)
		wantCheckErr   *errors.Error
		wantDeliverErr *errors.Error
		verify         func(t *testing.T, env *testEnv)
	}{
		"happy path": {
			signers: []weave.Condition{source},
			verify: func(t *testing.T, env *testEnv) {
				proposal := env.loadProposal(weavetest.SequenceID(1))
				assert.Equal(t, source.Address(), proposal.Source)
				assert.Equal(t, receiver.Address(), proposal.Receiver)
				assert.Equal(t, uint32(2), proposal.RequiredApprovals)
				assert.Equal(t, 0, len(proposal.Approvers))
				assert.Equal(t, false, proposal.Executed)

				// No funds move until the proposal executes.
				wallet, err := env.bank.Get(env.db, source.Address())
				assert.Nil(t, err)
				if wallet != nil && !cash.AsCoins(wallet).IsEmpty() {
					t.Fatal("creating a proposal must not move funds")
				}
			},
		},
		"deadline in the past": {
			signers: []weave.Condition{source},
			mutator: func(msg *payproposal.CreateProposalMsg) {
				msg.Deadline = weave.AsUnixTime(blockNow.Add(-time.Second))
			},
			wantCheckErr:   errors.ErrInput,
			wantDeliverErr: errors.ErrInput,
		},
		"missing source signature": {
			wantCheckErr:   errors.ErrUnauthorized,
			wantDeliverErr: errors.ErrUnauthorized,
		},
		"threshold must be at least one": {
			signers: []weave.Condition{source},
			mutator: func(msg *payproposal.CreateProposalMsg) {
				msg.RequiredApprovals = 0
			},
			wantCheckErr:   payproposal.ErrThreshold,
			wantDeliverErr: payproposal.ErrThreshold,
		},
		"stream terms are validated": {
			signers: []weave.Condition{source},
			mutator: func(msg *payproposal.CreateProposalMsg) {
				msg.EndTime = msg.StartTime
			},
			wantCheckErr:   errors.ErrInput,
			wantDeliverErr: errors.ErrInput,
		},
	}
	for testName, spec := range cases {
		t.Run(testName, func(t *testing.T) {
			env := newTestEnv(t)
			msg := proposalMsg()
			if spec.mutator != nil {
				spec.mutator(msg)
			}
			ctx := env.ctxAt(blockNow, spec.signers...)
			if _, err := env.check(ctx, msg); !spec.wantCheckErr.Is(err) {
				t.Fatalf("check expected: %+v, but got %+v", spec.wantCheckErr, err)
			}
			if _, err := env.deliver(ctx, msg); !spec.wantDeliverErr.Is(err) {
				t.Fatalf("deliver expected: %+v, but got %+v", spec.wantDeliverErr, err)
			}
			if spec.verify != nil {
				spec.verify(t, env)
			}
		})
	}
}

func TestApproveProposalExecution(t *testing.T) {
	env := newTestEnv(t)
	env.setBalance(source.Address(), coin.NewCoinp(1000, 0, "IOV"))

	res, err := env.deliver(env.ctxAt(blockNow, source), proposalMsg())
	assert.Nil(t, err)
	proposalID := res.Data

	approve := &payproposal.ApproveProposalMsg{
		Metadata:   &weave.Metadata{Schema: 1},
		ProposalID: proposalID,
	}

	// The first approval is recorded without reaching the threshold.
	res, err = env.deliver(env.ctxAt(blockNow, frida), approve)
	assert.Nil(t, err)
	assert.Equal(t, proposalID, res.Data)
	proposal := env.loadProposal(proposalID)
	assert.Equal(t, 1, len(proposal.Approvers))
	assert.Equal(t, false, proposal.Executed)

	var stream paystream.Stream
	if err := paystream.NewStreamBucket().One(env.db, weavetest.SequenceID(1), &stream); !errors.ErrNotFound.Is(err) {
		t.Fatalf("no stream must exist before the threshold is reached, got %+v", err)
	}

	// The same approver cannot sign off twice.
	_, err = env.deliver(env.ctxAt(blockNow, frida), approve)
	if !payproposal.ErrAlreadyApproved.Is(err) {
		t.Fatalf("want an already approved error, got %+v", err)
	}

	// The second approval reaches the threshold and creates the stream.
	res, err = env.deliver(env.ctxAt(blockNow, gus), approve)
	assert.Nil(t, err)
	streamID := res.Data
	assert.Equal(t, weavetest.SequenceID(1), streamID)

	proposal = env.loadProposal(proposalID)
	assert.Equal(t, 2, len(proposal.Approvers))
	assert.Equal(t, true, proposal.Executed)

	assert.Nil(t, paystream.NewStreamBucket().One(env.db, streamID, &stream))
	assert.Equal(t, source.Address(), stream.Source)
	assert.Equal(t, receiver.Address(), stream.Receiver)
	assert.Equal(t, coin.NewCoinp(1000, 0, "IOV"), stream.Amount)

	custody, err := env.bank.Get(env.db, paystream.StreamCondition(streamID).Address())
	assert.Nil(t, err)
	expected, err := coin.CombineCoins(coin.NewCoin(1000, 0, "IOV"))
	assert.Nil(t, err)
	if !cash.AsCoins(custody).Equals(expected) {
		t.Fatalf("principal not locked: %s", cash.AsCoins(custody))
	}

	// An executed proposal accepts no further approvals.
	_, err = env.deliver(env.ctxAt(blockNow, hanna), approve)
	if !payproposal.ErrExecuted.Is(err) {
		t.Fatalf("want an executed proposal error, got %+v", err)
	}
}

func TestApproveProposalSingleThreshold(t *testing.T) {
	env := newTestEnv(t)
	env.setBalance(source.Address(), coin.NewCoinp(1000, 0, "IOV"))

	msg := proposalMsg()
	msg.RequiredApprovals = 1
	res, err := env.deliver(env.ctxAt(blockNow, source), msg)
	assert.Nil(t, err)

	approve := &payproposal.ApproveProposalMsg{
		Metadata:   &weave.Metadata{Schema: 1},
		ProposalID: res.Data,
	}
	res, err = env.deliver(env.ctxAt(blockNow, frida), approve)
	assert.Nil(t, err)
	assert.Equal(t, weavetest.SequenceID(1), res.Data)
	assert.Equal(t, true, env.loadProposal(approve.ProposalID).Executed)
}

func TestApproveProposalExpired(t *testing.T) {
	env := newTestEnv(t)

	msg := proposalMsg()
	msg.Deadline = startTime.Add(10 * time.Second)
	res, err := env.deliver(env.ctxAt(blockNow, source), msg)
	assert.Nil(t, err)

	approve := &payproposal.ApproveProposalMsg{
		Metadata:   &weave.Metadata{Schema: 1},
		ProposalID: res.Data,
	}
	_, err = env.deliver(env.ctxAt(blockNow.Add(20*time.Second), frida), approve)
	if !errors.ErrExpired.Is(err) {
		t.Fatalf("want an expired error, got %+v", err)
	}
}

func TestApproveProposalAtDeadline(t *testing.T) {
	env := newTestEnv(t)

	msg := proposalMsg()
	msg.Deadline = startTime.Add(10 * time.Second)
	res, err := env.deliver(env.ctxAt(blockNow, source), msg)
	assert.Nil(t, err)

	// The deadline itself is already too late, as everywhere else
	// timeouts are compared with weave.IsExpired.
	approve := &payproposal.ApproveProposalMsg{
		Metadata:   &weave.Metadata{Schema: 1},
		ProposalID: res.Data,
	}
	_, err = env.deliver(env.ctxAt(blockNow.Add(10*time.Second), frida), approve)
	if !errors.ErrExpired.Is(err) {
		t.Fatalf("want an expired error, got %+v", err)
	}
}

func TestApproveProposalRequiresSigner(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.deliver(env.ctxAt(blockNow, source), proposalMsg())
	assert.Nil(t, err)

	approve := &payproposal.ApproveProposalMsg{
		Metadata:   &weave.Metadata{Schema: 1},
		ProposalID: res.Data,
	}
	_, err = env.check(env.ctxAt(blockNow), approve)
	if !errors.ErrUnauthorized.Is(err) {
		t.Fatalf("want an unauthorized error, got %+v", err)
	}
}

func TestApproveProposalFailingExecution(t *testing.T) {
	env := newTestEnv(t)
	// The source account holds nothing, so execution cannot lock the
	// principal.
	res, err := env.deliver(env.ctxAt(blockNow, source), proposalMsg())
	assert.Nil(t, err)
	proposalID := res.Data

	approve := &payproposal.ApproveProposalMsg{
		Metadata:   &weave.Metadata{Schema: 1},
		ProposalID: proposalID,
	}
	_, err = env.deliver(env.ctxAt(blockNow, frida), approve)
	assert.Nil(t, err)

	// The approval that would execute fails as a whole and changes
	// nothing when applied through a cache.
	cache := env.db.CacheWrap()
	_, err = env.router.Deliver(env.ctxAt(blockNow, gus), cache, &weavetest.Tx{Msg: approve})
	if !errors.ErrEmpty.Is(err) {
		t.Fatalf("want an empty account error, got %+v", err)
	}
	cache.Discard()

	proposal := env.loadProposal(proposalID)
	assert.Equal(t, 1, len(proposal.Approvers))
	assert.Equal(t, false, proposal.Executed)
}
