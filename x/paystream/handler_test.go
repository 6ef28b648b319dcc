package paystream_test

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

	"github.com/tecch-wiz/StellarStream/x/paystream"
)

var (
	blockNow  = time.Unix(1600000000, 0)
	startTime = weave.AsUnixTime(blockNow)
	endTime   = startTime.Add(100 * time.Second)

	alice = weavetest.NewCondition()
	bob   = weavetest.NewCondition()
	carl  = weavetest.NewCondition()
	pete  = weavetest.NewCondition()
)

type testEnv struct {
	t             *testing.T
	db            weave.CacheableKVStore
	router        *app.Router
	authenticator *weavetest.CtxAuth
	bank          cash.Bucket
	admin         weave.Condition
	treasury      weave.Address
}

func newTestEnv(t *testing.T, feeBps uint32) *testEnv {
	t.Helper()

	db := store.MemStore()
	migration.MustInitPkg(db, "paystream", "cash")

	bank := cash.NewBucket()
	ctrl := cash.NewController(bank)
	authenticator := &weavetest.CtxAuth{Key: "auth"}
	r := app.NewRouter()
	paystream.RegisterRoutes(r, x.ChainAuth(authenticator), ctrl)

	env := &testEnv{
		t:             t,
		db:            db,
		router:        r,
		authenticator: authenticator,
		bank:          bank,
		admin:         weavetest.NewCondition(),
		treasury:      weavetest.NewCondition().Address(),
	}
	env.saveConfig(paystream.Configuration{
		Metadata: &weave.Metadata{Schema: 1},
		Owner:    env.admin.Address(),
		Treasury: env.treasury,
		FeeBps:   feeBps,
	})
	return env
}

func (e *testEnv) saveConfig(conf paystream.Configuration) {
	e.t.Helper()
	if err := gconf.Save(e.db, "paystream", &conf); err != nil {
		e.t.Fatalf("cannot save configuration: %+v", err)
	}
}

// ctxAt returns a request context with the block time set to now and
// the given conditions authenticated.
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

func (e *testEnv) checkBalance(addr weave.Address, want coin.Coin) {
	e.t.Helper()
	wallet, err := e.bank.Get(e.db, addr)
	assert.Nil(e.t, err)
	got := cash.AsCoins(wallet)
	expected, err := coin.CombineCoins(want)
	assert.Nil(e.t, err)
	if !got.Equals(expected) {
		e.t.Fatalf("unexpected balance of %s: %s", addr, got)
	}
}

func (e *testEnv) checkDrained(addr weave.Address) {
	e.t.Helper()
	wallet, err := e.bank.Get(e.db, addr)
	assert.Nil(e.t, err)
	if wallet == nil {
		return
	}
	if !cash.AsCoins(wallet).IsEmpty() {
		e.t.Fatalf("account %s is not drained: %s", addr, cash.AsCoins(wallet))
	}
}

func (e *testEnv) loadStream(id []byte) *paystream.Stream {
	e.t.Helper()
	var stream paystream.Stream
	assert.Nil(e.t, paystream.NewStreamBucket().One(e.db, id, &stream))
	return &stream
}

func (e *testEnv) loadReceipt(id []byte) *paystream.Receipt {
	e.t.Helper()
	var receipt paystream.Receipt
	assert.Nil(e.t, paystream.NewReceiptBucket().One(e.db, id, &receipt))
	return &receipt
}

func createMsg() *paystream.CreateStreamMsg {
	return &paystream.CreateStreamMsg{
		Metadata:  &weave.Metadata{Schema: 1},
		Source:    alice.Address(),
		Receiver:  bob.Address(),
		Amount:    coin.NewCoinp(1000, 0, "IOV"),
		StartTime: startTime,
		EndTime:   endTime,
	}
}

// mustCreateStream funds the source and creates a plain stream at the
// schedule start, returning the stream id.
func (e *testEnv) mustCreateStream(msg *paystream.CreateStreamMsg) []byte {
	e.t.Helper()
	e.setBalance(msg.Source, msg.Amount)
	res, err := e.deliver(e.ctxAt(blockNow, alice), msg)
	assert.Nil(e.t, err)
	return res.Data
}

func TestCreateStreamHandler(t *testing.T) {
	cases := map[string]struct {
		setup          func(ctx weave.Context, env *testEnv) weave.Context
		mutator        func(msg *paystream.CreateStreamMsg)
		wantCheckErr   *errors.Error
		wantDeliverErr *errors.Error
		verify         func(t *testing.T, env *testEnv)
	}{
		"happy path": {
			setup: func(ctx weave.Context, env *testEnv) weave.Context {
				env.setBalance(alice.Address(), coin.NewCoinp(1000, 0, "IOV"))
				return env.authenticator.SetConditions(ctx, alice)
			},
			verify: func(t *testing.T, env *testEnv) {
				id := weavetest.SequenceID(1)
				stream := env.loadStream(id)
				// A 250 bps fee leaves a 975 net principal.
				assert.Equal(t, coin.NewCoinp(975, 0, "IOV"), stream.Amount)
				assert.Equal(t, coin.NewCoinp(975, 0, "IOV"), stream.DepositedPrincipal)
				assert.Equal(t, coin.NewCoinp(0, 0, "IOV"), stream.Withdrawn)

				env.checkBalance(paystream.StreamCondition(id).Address(), coin.NewCoin(975, 0, "IOV"))
				env.checkBalance(env.treasury, coin.NewCoin(25, 0, "IOV"))
				env.checkDrained(alice.Address())

				receipt := env.loadReceipt(id)
				assert.Equal(t, bob.Address(), receipt.Owner)
				assert.Equal(t, startTime, receipt.MintedAt)
			},
		},
		"message is validated": {
			setup: func(ctx weave.Context, env *testEnv) weave.Context {
				return env.authenticator.SetConditions(ctx, alice)
			},
			mutator: func(msg *paystream.CreateStreamMsg) {
				msg.EndTime = msg.StartTime
			},
			wantCheckErr:   errors.ErrInput,
			wantDeliverErr: errors.ErrInput,
		},
		"missing source signature": {
			wantCheckErr:   errors.ErrUnauthorized,
			wantDeliverErr: errors.ErrUnauthorized,
		},
		"creation globally paused": {
			setup: func(ctx weave.Context, env *testEnv) weave.Context {
				env.setBalance(alice.Address(), coin.NewCoinp(1000, 0, "IOV"))
				env.saveConfig(paystream.Configuration{
					Metadata: &weave.Metadata{Schema: 1},
					Owner:    env.admin.Address(),
					Treasury: env.treasury,
					Paused:   true,
				})
				return env.authenticator.SetConditions(ctx, alice)
			},
			wantDeliverErr: errors.ErrState,
		},
		"empty source account": {
			setup: func(ctx weave.Context, env *testEnv) weave.Context {
				return env.authenticator.SetConditions(ctx, alice)
			},
			wantDeliverErr: errors.ErrEmpty,
		},
	}
	for testName, spec := range cases {
		t.Run(testName, func(t *testing.T) {
			env := newTestEnv(t, 250)
			msg := createMsg()
			if spec.mutator != nil {
				spec.mutator(msg)
			}
			ctx := weave.WithHeight(context.Background(), 100)
			ctx = weave.WithBlockTime(ctx, blockNow)
			if spec.setup != nil {
				ctx = spec.setup(ctx, env)
			}

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

func TestWithdrawHandler(t *testing.T) {
	env := newTestEnv(t, 0)
	streamID := env.mustCreateStream(createMsg())
	assert.Equal(t, weavetest.SequenceID(1), streamID)
	custody := paystream.StreamCondition(streamID).Address()

	withdraw := &paystream.WithdrawMsg{
		Metadata: &weave.Metadata{Schema: 1},
		StreamID: streamID,
	}

	// Only the receipt owner can withdraw.
	_, err := env.check(env.ctxAt(blockNow.Add(50*time.Second), pete), withdraw)
	if !paystream.ErrNotReceiptOwner.Is(err) {
		t.Fatalf("want a receipt owner error, got %+v", err)
	}

	// Nothing has vested at the schedule start.
	_, err = env.deliver(env.ctxAt(blockNow, bob), withdraw)
	if !errors.ErrEmpty.Is(err) {
		t.Fatalf("want an empty withdrawal error, got %+v", err)
	}

	// Half of the principal vested half way through the schedule.
	_, err = env.deliver(env.ctxAt(blockNow.Add(50*time.Second), bob), withdraw)
	assert.Nil(t, err)
	env.checkBalance(bob.Address(), coin.NewCoin(500, 0, "IOV"))
	env.checkBalance(custody, coin.NewCoin(500, 0, "IOV"))
	assert.Equal(t, coin.NewCoinp(500, 0, "IOV"), env.loadStream(streamID).Withdrawn)

	// A second withdrawal at the same moment has nothing to claim.
	_, err = env.deliver(env.ctxAt(blockNow.Add(50*time.Second), bob), withdraw)
	if !errors.ErrEmpty.Is(err) {
		t.Fatalf("want an empty withdrawal error, got %+v", err)
	}

	// The remainder is claimable any time after the schedule end.
	_, err = env.deliver(env.ctxAt(blockNow.Add(300*time.Second), bob), withdraw)
	assert.Nil(t, err)
	env.checkBalance(bob.Address(), coin.NewCoin(1000, 0, "IOV"))
	env.checkDrained(custody)
	assert.Equal(t, coin.NewCoinp(1000, 0, "IOV"), env.loadStream(streamID).Withdrawn)
}

func TestWithdrawWithVaultInterest(t *testing.T) {
	env := newTestEnv(t, 0)
	vault := weavetest.NewCondition().Address()

	msg := createMsg()
	msg.Vault = vault
	msg.InterestStrategy = paystream.StrategyToSender | paystream.StrategyToReceiver | paystream.StrategyToProtocol
	streamID := env.mustCreateStream(msg)
	env.checkBalance(vault, coin.NewCoin(1000, 0, "IOV"))

	// The vault earned 300 on top of the outstanding principal.
	env.setBalance(vault, coin.NewCoinp(1300, 0, "IOV"))

	withdraw := &paystream.WithdrawMsg{
		Metadata: &weave.Metadata{Schema: 1},
		StreamID: streamID,
	}
	_, err := env.deliver(env.ctxAt(blockNow.Add(50*time.Second), bob), withdraw)
	assert.Nil(t, err)

	// Withdrawing half the principal releases half the yield, split
	// three ways: 500 principal + 50 interest to the receiver, 50 to
	// the source and 50 to the treasury.
	env.checkBalance(bob.Address(), coin.NewCoin(550, 0, "IOV"))
	env.checkBalance(alice.Address(), coin.NewCoin(50, 0, "IOV"))
	env.checkBalance(env.treasury, coin.NewCoin(50, 0, "IOV"))
	env.checkBalance(vault, coin.NewCoin(650, 0, "IOV"))
}

func TestCancelStreamHandler(t *testing.T) {
	cases := map[string]struct {
		signer         weave.Condition
		setup          func(env *testEnv, streamID []byte)
		wantCheckErr   *errors.Error
		wantDeliverErr *errors.Error
	}{
		"cancelled by the source": {
			signer: alice,
		},
		"cancelled by the receipt owner": {
			signer: bob,
		},
		"a stranger cannot cancel": {
			signer:         pete,
			wantCheckErr:   errors.ErrUnauthorized,
			wantDeliverErr: errors.ErrUnauthorized,
		},
		"cancelling twice fails": {
			signer: alice,
			setup: func(env *testEnv, streamID []byte) {
				cancel := &paystream.CancelStreamMsg{
					Metadata: &weave.Metadata{Schema: 1},
					StreamID: streamID,
				}
				_, err := env.deliver(env.ctxAt(blockNow.Add(50*time.Second), alice), cancel)
				assert.Nil(t, err)
			},
			wantDeliverErr: paystream.ErrStreamClosed,
		},
	}
	for testName, spec := range cases {
		t.Run(testName, func(t *testing.T) {
			env := newTestEnv(t, 0)
			streamID := env.mustCreateStream(createMsg())
			if spec.setup != nil {
				spec.setup(env, streamID)
			}
			cancel := &paystream.CancelStreamMsg{
				Metadata: &weave.Metadata{Schema: 1},
				StreamID: streamID,
			}
			ctx := env.ctxAt(blockNow.Add(50*time.Second), spec.signer)
			if _, err := env.check(ctx, cancel); !spec.wantCheckErr.Is(err) {
				t.Fatalf("check expected: %+v, but got %+v", spec.wantCheckErr, err)
			}
			if _, err := env.deliver(ctx, cancel); !spec.wantDeliverErr.Is(err) {
				t.Fatalf("deliver expected: %+v, but got %+v", spec.wantDeliverErr, err)
			}
			if spec.wantDeliverErr != nil {
				return
			}

			// Cancelled half way: the vested half settles on the
			// receipt owner and the rest returns to the source.
			env.checkBalance(bob.Address(), coin.NewCoin(500, 0, "IOV"))
			env.checkBalance(alice.Address(), coin.NewCoin(500, 0, "IOV"))
			env.checkDrained(paystream.StreamCondition(streamID).Address())

			stream := env.loadStream(streamID)
			assert.Equal(t, true, stream.Cancelled)
			assert.Equal(t, coin.NewCoinp(500, 0, "IOV"), stream.Withdrawn)
		})
	}
}

func TestCancelAfterWithdraw(t *testing.T) {
	env := newTestEnv(t, 0)
	streamID := env.mustCreateStream(createMsg())

	withdraw := &paystream.WithdrawMsg{
		Metadata: &weave.Metadata{Schema: 1},
		StreamID: streamID,
	}
	_, err := env.deliver(env.ctxAt(blockNow.Add(30*time.Second), bob), withdraw)
	assert.Nil(t, err)
	env.checkBalance(bob.Address(), coin.NewCoin(300, 0, "IOV"))

	cancel := &paystream.CancelStreamMsg{
		Metadata: &weave.Metadata{Schema: 1},
		StreamID: streamID,
	}
	_, err = env.deliver(env.ctxAt(blockNow.Add(50*time.Second), alice), cancel)
	assert.Nil(t, err)

	// The receipt owner ends up with exactly the vested half, no
	// matter how much was withdrawn before the cancellation.
	env.checkBalance(bob.Address(), coin.NewCoin(500, 0, "IOV"))
	env.checkBalance(alice.Address(), coin.NewCoin(500, 0, "IOV"))
	env.checkDrained(paystream.StreamCondition(streamID).Address())
}

func TestPauseAndResumeHandlers(t *testing.T) {
	env := newTestEnv(t, 0)
	streamID := env.mustCreateStream(createMsg())

	pause := &paystream.PauseStreamMsg{
		Metadata: &weave.Metadata{Schema: 1},
		StreamID: streamID,
	}
	resume := &paystream.ResumeStreamMsg{
		Metadata: &weave.Metadata{Schema: 1},
		StreamID: streamID,
	}
	withdraw := &paystream.WithdrawMsg{
		Metadata: &weave.Metadata{Schema: 1},
		StreamID: streamID,
	}

	// Only the source can pause.
	_, err := env.check(env.ctxAt(blockNow.Add(50*time.Second), pete), pause)
	if !errors.ErrUnauthorized.Is(err) {
		t.Fatalf("want an unauthorized error, got %+v", err)
	}

	_, err = env.deliver(env.ctxAt(blockNow.Add(50*time.Second), alice), pause)
	assert.Nil(t, err)
	stream := env.loadStream(streamID)
	assert.Equal(t, true, stream.Paused)
	assert.Equal(t, startTime.Add(50*time.Second), stream.PausedAt)

	// No withdrawal from a paused stream.
	_, err = env.deliver(env.ctxAt(blockNow.Add(60*time.Second), bob), withdraw)
	if !paystream.ErrStreamPaused.Is(err) {
		t.Fatalf("want a paused stream error, got %+v", err)
	}

	// Pausing a paused stream does not move the pause time.
	_, err = env.deliver(env.ctxAt(blockNow.Add(60*time.Second), alice), pause)
	assert.Nil(t, err)
	assert.Equal(t, startTime.Add(50*time.Second), env.loadStream(streamID).PausedAt)

	_, err = env.deliver(env.ctxAt(blockNow.Add(100*time.Second), alice), resume)
	assert.Nil(t, err)
	stream = env.loadStream(streamID)
	assert.Equal(t, false, stream.Paused)
	assert.Equal(t, int64(50), stream.PausedDuration)

	// The 50 paused seconds shifted the schedule: at the original end
	// only half of the principal has vested.
	_, err = env.deliver(env.ctxAt(blockNow.Add(100*time.Second), bob), withdraw)
	assert.Nil(t, err)
	env.checkBalance(bob.Address(), coin.NewCoin(500, 0, "IOV"))

	// Resuming a running stream is a no-op.
	_, err = env.deliver(env.ctxAt(blockNow.Add(120*time.Second), alice), resume)
	assert.Nil(t, err)
	assert.Equal(t, int64(50), env.loadStream(streamID).PausedDuration)
}

func TestTransferHandlers(t *testing.T) {
	env := newTestEnv(t, 0)
	streamID := env.mustCreateStream(createMsg())

	transfer := &paystream.TransferStreamMsg{
		Metadata: &weave.Metadata{Schema: 1},
		StreamID: streamID,
		Receiver: carl.Address(),
	}

	// Only the current receiver can pass the stream on.
	_, err := env.check(env.ctxAt(blockNow, pete), transfer)
	if !errors.ErrUnauthorized.Is(err) {
		t.Fatalf("want an unauthorized error, got %+v", err)
	}

	_, err = env.deliver(env.ctxAt(blockNow, bob), transfer)
	assert.Nil(t, err)
	assert.Equal(t, carl.Address(), env.loadStream(streamID).Receiver)
	// The receipt follows the receiver.
	assert.Equal(t, carl.Address(), env.loadReceipt(streamID).Owner)

	// The receipt alone can be traded away, splitting withdrawal
	// rights from the receiver role.
	transferReceipt := &paystream.TransferReceiptMsg{
		Metadata: &weave.Metadata{Schema: 1},
		StreamID: streamID,
		NewOwner: pete.Address(),
	}
	_, err = env.deliver(env.ctxAt(blockNow, carl), transferReceipt)
	assert.Nil(t, err)
	assert.Equal(t, pete.Address(), env.loadReceipt(streamID).Owner)
	assert.Equal(t, carl.Address(), env.loadStream(streamID).Receiver)

	withdraw := &paystream.WithdrawMsg{
		Metadata: &weave.Metadata{Schema: 1},
		StreamID: streamID,
	}
	_, err = env.deliver(env.ctxAt(blockNow.Add(50*time.Second), carl), withdraw)
	if !paystream.ErrNotReceiptOwner.Is(err) {
		t.Fatalf("want a receipt owner error, got %+v", err)
	}
	_, err = env.deliver(env.ctxAt(blockNow.Add(50*time.Second), pete), withdraw)
	assert.Nil(t, err)
	env.checkBalance(pete.Address(), coin.NewCoin(500, 0, "IOV"))
}

func TestCreateBatchHandler(t *testing.T) {
	env := newTestEnv(t, 250)
	env.setBalance(alice.Address(), coin.NewCoinp(3000, 0, "IOV"))

	msg := &paystream.CreateBatchMsg{
		Metadata: &weave.Metadata{Schema: 1},
		Source:   alice.Address(),
		Requests: []*paystream.StreamRequest{
			{
				Receiver:  bob.Address(),
				Amount:    coin.NewCoinp(1000, 0, "IOV"),
				StartTime: startTime,
				EndTime:   endTime,
			},
			{
				Receiver:  carl.Address(),
				Amount:    coin.NewCoinp(2000, 0, "IOV"),
				StartTime: startTime,
				EndTime:   endTime,
			},
		},
	}
	res, err := env.deliver(env.ctxAt(blockNow, alice), msg)
	assert.Nil(t, err)
	assert.Equal(t, weavetest.SequenceID(1), res.Data)

	// One fee transfer for the whole batch.
	env.checkBalance(env.treasury, coin.NewCoin(75, 0, "IOV"))
	env.checkDrained(alice.Address())

	first := env.loadStream(weavetest.SequenceID(1))
	assert.Equal(t, coin.NewCoinp(975, 0, "IOV"), first.Amount)
	env.checkBalance(paystream.StreamCondition(weavetest.SequenceID(1)).Address(), coin.NewCoin(975, 0, "IOV"))

	second := env.loadStream(weavetest.SequenceID(2))
	assert.Equal(t, coin.NewCoinp(1950, 0, "IOV"), second.Amount)
	env.checkBalance(paystream.StreamCondition(weavetest.SequenceID(2)).Address(), coin.NewCoin(1950, 0, "IOV"))
	assert.Equal(t, carl.Address(), env.loadReceipt(weavetest.SequenceID(2)).Owner)
}

func TestCreateBatchIsAtomic(t *testing.T) {
	env := newTestEnv(t, 0)
	// Enough for the first stream only.
	env.setBalance(alice.Address(), coin.NewCoinp(1000, 0, "IOV"))

	msg := &paystream.CreateBatchMsg{
		Metadata: &weave.Metadata{Schema: 1},
		Source:   alice.Address(),
		Requests: []*paystream.StreamRequest{
			{
				Receiver:  bob.Address(),
				Amount:    coin.NewCoinp(1000, 0, "IOV"),
				StartTime: startTime,
				EndTime:   endTime,
			},
			{
				Receiver:  carl.Address(),
				Amount:    coin.NewCoinp(2000, 0, "IOV"),
				StartTime: startTime,
				EndTime:   endTime,
			},
		},
	}
	cache := env.db.CacheWrap()
	_, err := env.router.Deliver(env.ctxAt(blockNow, alice), cache, &weavetest.Tx{Msg: msg})
	if !errors.ErrAmount.Is(err) {
		t.Fatalf("want an insufficient funds error, got %+v", err)
	}
	cache.Discard()
}

func TestRefreshStreamHandler(t *testing.T) {
	env := newTestEnv(t, 0)
	streamID := env.mustCreateStream(createMsg())

	// Anyone can refresh, no signature needed.
	refresh := &paystream.RefreshStreamMsg{
		Metadata: &weave.Metadata{Schema: 1},
		StreamID: streamID,
	}
	res, err := env.deliver(env.ctxAt(blockNow.Add(10*time.Second)), refresh)
	assert.Nil(t, err)
	assert.Equal(t, streamID, res.Data)
	assert.Equal(t, coin.NewCoinp(1000, 0, "IOV"), env.loadStream(streamID).Amount)
}

func TestUpdateConfigurationHandler(t *testing.T) {
	env := newTestEnv(t, 250)

	update := &paystream.UpdateConfigurationMsg{
		Metadata: &weave.Metadata{Schema: 1},
		Patch: &paystream.Configuration{
			Metadata: &weave.Metadata{Schema: 1},
			FeeBps:   500,
		},
	}

	// Only the configuration owner can change the settings.
	_, err := env.deliver(env.ctxAt(blockNow, pete), update)
	if !errors.ErrUnauthorized.Is(err) {
		t.Fatalf("want an unauthorized error, got %+v", err)
	}

	_, err = env.deliver(env.ctxAt(blockNow, env.admin), update)
	assert.Nil(t, err)

	var conf paystream.Configuration
	assert.Nil(t, gconf.Load(env.db, "paystream", &conf))
	assert.Equal(t, uint32(500), conf.FeeBps)
	// Fields missing from the patch are left untouched.
	assert.Equal(t, env.admin.Address(), conf.Owner)
	assert.Equal(t, env.treasury, conf.Treasury)
}

func TestWithdrawRequiresBlockTime(t *testing.T) {
	env := newTestEnv(t, 0)
	streamID := env.mustCreateStream(createMsg())

	// Stream operations are time dependent and must refuse a request
	// context that carries no block time.
	ctx := env.authenticator.SetConditions(weave.WithHeight(context.Background(), 100), bob)
	_, err := env.router.Deliver(ctx, env.db, &weavetest.Tx{Msg: &paystream.WithdrawMsg{
		Metadata: &weave.Metadata{Schema: 1},
		StreamID: streamID,
	}})
	if err == nil {
		t.Fatal("expected an error for a context without a block time")
	}
}
