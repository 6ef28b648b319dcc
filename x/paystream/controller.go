package paystream

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/orm"
)

// CashController is the subset of the cash functionality needed to
// custody and settle stream funds.
type CashController interface {
	Balance(weave.KVStore, weave.Address) (coin.Coins, error)
	MoveCoins(weave.KVStore, weave.Address, weave.Address, coin.Coin) error
}

// Controller implements the stream lifecycle. It is used by the message
// handlers of this package and by extensions that create streams on
// their own, for example when an approved proposal is executed.
type Controller struct {
	cash     CashController
	streams  orm.ModelBucket
	receipts orm.ModelBucket
	guard    *guard
}

func NewController(cash CashController) *Controller {
	return &Controller{
		cash:     cash,
		streams:  NewStreamBucket(),
		receipts: NewReceiptBucket(),
		guard:    &guard{},
	}
}

// Create charges the protocol fee, locks the net principal with the
// custody account (the external vault if one is given, otherwise a
// per-stream account) and persists the stream together with its freshly
// minted receipt. It returns the stream id.
func (c *Controller) Create(db weave.KVStore, now weave.UnixTime, source weave.Address, r *StreamRequest) ([]byte, error) {
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	if conf.Paused {
		return nil, errors.Wrap(errors.ErrState, "stream creation is paused")
	}
	return c.create(db, now, source, r, conf)
}

// CreateBatch creates all requested streams of one source or none. The
// protocol fee of the whole batch is collected with a single transfer
// per ticker.
func (c *Controller) CreateBatch(db weave.KVStore, now weave.UnixTime, source weave.Address, requests []*StreamRequest) ([][]byte, error) {
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	if conf.Paused {
		return nil, errors.Wrap(errors.ErrState, "stream creation is paused")
	}
	for i, r := range requests {
		if err := r.Validate(); err != nil {
			return nil, errors.Wrapf(err, "request #%d", i)
		}
	}

	fees := make(map[string]coin.Coin)
	for _, r := range requests {
		fee := protocolFee(*r.Amount, conf.FeeBps)
		if !fee.IsPositive() {
			continue
		}
		total, ok := fees[fee.Ticker]
		if !ok {
			total = coin.NewCoin(0, 0, fee.Ticker)
		}
		total, err := total.Add(fee)
		if err != nil {
			return nil, errors.Wrap(err, "batch fee")
		}
		fees[fee.Ticker] = total
	}
	for _, fee := range fees {
		if err := c.move(db, source, conf.Treasury, fee); err != nil {
			return nil, errors.Wrap(err, "collect batch fee")
		}
	}

	// The fee was already collected for the whole batch. Each stream is
	// created over its net amount, exactly as a direct creation would.
	feeless := conf
	feeless.FeeBps = 0
	ids := make([][]byte, 0, len(requests))
	for i, r := range requests {
		net, err := r.Amount.Subtract(protocolFee(*r.Amount, conf.FeeBps))
		if err != nil {
			return nil, errors.Wrapf(err, "request #%d", i)
		}
		netReq := *r
		netReq.Amount = &net
		id, err := c.create(db, now, source, &netReq, feeless)
		if err != nil {
			return nil, errors.Wrapf(err, "request #%d", i)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Controller) create(db weave.KVStore, now weave.UnixTime, source weave.Address, r *StreamRequest, conf Configuration) ([]byte, error) {
	fee := protocolFee(*r.Amount, conf.FeeBps)
	net, err := r.Amount.Subtract(fee)
	if err != nil {
		return nil, errors.Wrap(err, "net amount")
	}
	if !net.IsPositive() {
		return nil, errors.Wrap(errors.ErrAmount, "fee consumes the full amount")
	}

	id, err := streamSeq.NextVal(db)
	if err != nil {
		return nil, errors.Wrap(err, "next stream id")
	}
	custody := weave.Address(r.Vault)
	if custody == nil {
		custody = StreamCondition(id).Address()
	}
	if err := c.move(db, source, conf.Treasury, fee); err != nil {
		return nil, errors.Wrap(err, "collect fee")
	}
	if err := c.move(db, source, custody, net); err != nil {
		return nil, errors.Wrap(err, "lock principal")
	}

	stream := &Stream{
		Metadata:           &weave.Metadata{},
		Source:             source,
		Receiver:           r.Receiver,
		Amount:             &net,
		Withdrawn:          coin.NewCoinp(0, 0, net.Ticker),
		DepositedPrincipal: &net,
		StartTime:          r.StartTime,
		CliffTime:          r.CliffTime,
		EndTime:            r.EndTime,
		InterestStrategy:   r.InterestStrategy,
		Vault:              r.Vault,
	}
	if _, err := c.streams.Put(db, id, stream); err != nil {
		return nil, errors.Wrap(err, "save stream")
	}
	receipt := &Receipt{
		Metadata: &weave.Metadata{},
		StreamID: id,
		Owner:    r.Receiver,
		MintedAt: now,
	}
	if _, err := c.receipts.Put(db, id, receipt); err != nil {
		return nil, errors.Wrap(err, "save receipt")
	}
	return id, nil
}

// WithdrawResult reports what a withdrawal paid out to the receipt
// owner.
type WithdrawResult struct {
	Principal coin.Coin
	Interest  coin.Coin
}

// Withdraw settles the vested but not yet withdrawn principal on the
// receipt owner. When the stream custody is a vault, the accrued yield
// is pro-rated to the withdrawn portion and split per the stream's
// interest strategy before the principal moves.
func (c *Controller) Withdraw(db weave.KVStore, now weave.UnixTime, streamID []byte, caller weave.Address) (*WithdrawResult, error) {
	release, err := c.guard.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	stream, err := c.Stream(db, streamID)
	if err != nil {
		return nil, err
	}
	receipt, err := c.Receipt(db, streamID)
	if err != nil {
		return nil, err
	}
	if !caller.Equals(receipt.Owner) {
		return nil, ErrNotReceiptOwner
	}
	if stream.Cancelled {
		return nil, ErrStreamClosed
	}
	if stream.Paused {
		return nil, ErrStreamPaused
	}
	amount, err := withdrawableAt(stream, now)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, errors.Wrap(errors.ErrEmpty, "nothing vested")
	}

	res := WithdrawResult{
		Principal: amount,
		Interest:  coin.NewCoin(0, 0, amount.Ticker),
	}
	custody := weave.Address(stream.Vault)
	if custody == nil {
		custody = StreamCondition(streamID).Address()
	}

	if stream.Vault != nil && stream.InterestStrategy != 0 {
		conf, err := loadConf(db)
		if err != nil {
			return nil, err
		}
		interest, err := c.accruedInterest(db, stream)
		if err != nil {
			return nil, err
		}
		portion := prorate(interest, amount, *stream.Amount)
		dist := distributeInterest(portion, stream.InterestStrategy)
		if err := c.payoutInterest(db, stream, receipt, conf, dist); err != nil {
			return nil, err
		}
		res.Interest = dist.ToReceiver
	}

	if err := c.move(db, custody, receipt.Owner, amount); err != nil {
		return nil, errors.Wrap(err, "pay out principal")
	}
	withdrawn, err := stream.Withdrawn.Add(amount)
	if err != nil {
		return nil, errors.Wrap(err, "track withdrawn")
	}
	stream.Withdrawn = &withdrawn
	if _, err := c.streams.Put(db, streamID, stream); err != nil {
		return nil, errors.Wrap(err, "save stream")
	}
	return &res, nil
}

// CancelResult reports how a cancellation settled the stream funds.
type CancelResult struct {
	ToOwner  coin.Coin
	ToSource coin.Coin
}

// Cancel terminates a stream. The full accrued vault yield is
// distributed first, then the vested but unpaid part goes to the
// receipt owner and the remainder is refunded to the source. The record
// is kept as a terminal tombstone.
func (c *Controller) Cancel(db weave.KVStore, now weave.UnixTime, streamID []byte, caller weave.Address) (*CancelResult, error) {
	release, err := c.guard.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	stream, err := c.Stream(db, streamID)
	if err != nil {
		return nil, err
	}
	receipt, err := c.Receipt(db, streamID)
	if err != nil {
		return nil, err
	}
	if !caller.Equals(stream.Source) && !caller.Equals(receipt.Owner) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "only the source or the receipt owner can cancel")
	}
	if stream.Cancelled {
		return nil, ErrStreamClosed
	}

	custody := weave.Address(stream.Vault)
	if custody == nil {
		custody = StreamCondition(streamID).Address()
	}
	if stream.Vault != nil && stream.InterestStrategy != 0 {
		conf, err := loadConf(db)
		if err != nil {
			return nil, err
		}
		interest, err := c.accruedInterest(db, stream)
		if err != nil {
			return nil, err
		}
		dist := distributeInterest(interest, stream.InterestStrategy)
		if err := c.payoutInterest(db, stream, receipt, conf, dist); err != nil {
			return nil, err
		}
	}

	unlocked := unlockedAt(stream, now)
	vested, err := withdrawableAt(stream, now)
	if err != nil {
		return nil, err
	}
	refund, err := stream.Amount.Subtract(unlocked)
	if err != nil {
		return nil, errors.Wrap(err, "refund")
	}
	if !refund.IsNonNegative() {
		refund = coin.NewCoin(0, 0, stream.Amount.Ticker)
	}
	if err := c.move(db, custody, receipt.Owner, vested); err != nil {
		return nil, errors.Wrap(err, "pay out vested")
	}
	if err := c.move(db, custody, stream.Source, refund); err != nil {
		return nil, errors.Wrap(err, "refund source")
	}

	stream.Withdrawn = &unlocked
	stream.Cancelled = true
	if _, err := c.streams.Put(db, streamID, stream); err != nil {
		return nil, errors.Wrap(err, "save stream")
	}
	return &CancelResult{ToOwner: vested, ToSource: refund}, nil
}

// Pause freezes vesting. Pausing an already paused stream is a no-op.
func (c *Controller) Pause(db weave.KVStore, now weave.UnixTime, streamID []byte, caller weave.Address) error {
	stream, err := c.Stream(db, streamID)
	if err != nil {
		return err
	}
	if !caller.Equals(stream.Source) {
		return errors.Wrap(errors.ErrUnauthorized, "only the source can pause")
	}
	if stream.Cancelled {
		return ErrStreamClosed
	}
	if stream.Paused {
		return nil
	}
	stream.Paused = true
	stream.PausedAt = now
	_, err = c.streams.Put(db, streamID, stream)
	return err
}

// Resume unfreezes vesting and extends the effective schedule by the
// time spent paused. Resuming a running stream is a no-op.
func (c *Controller) Resume(db weave.KVStore, now weave.UnixTime, streamID []byte, caller weave.Address) error {
	stream, err := c.Stream(db, streamID)
	if err != nil {
		return err
	}
	if !caller.Equals(stream.Source) {
		return errors.Wrap(errors.ErrUnauthorized, "only the source can resume")
	}
	if stream.Cancelled {
		return ErrStreamClosed
	}
	if !stream.Paused {
		return nil
	}
	if now > stream.PausedAt {
		stream.PausedDuration += int64(now - stream.PausedAt)
	}
	stream.Paused = false
	stream.PausedAt = 0
	_, err = c.streams.Put(db, streamID, stream)
	return err
}

// TransferStream reassigns the receiver. When the receipt still belongs
// to the previous receiver it follows, so withdrawal rights stay with
// the beneficiary unless they were traded away explicitly.
func (c *Controller) TransferStream(db weave.KVStore, streamID []byte, caller, newReceiver weave.Address) error {
	stream, err := c.Stream(db, streamID)
	if err != nil {
		return err
	}
	if !caller.Equals(stream.Receiver) {
		return errors.Wrap(errors.ErrUnauthorized, "only the receiver can transfer the stream")
	}
	if stream.Cancelled {
		return ErrStreamClosed
	}
	receipt, err := c.Receipt(db, streamID)
	if err != nil {
		return err
	}
	if receipt.Owner.Equals(stream.Receiver) {
		receipt.Owner = newReceiver
		if _, err := c.receipts.Put(db, streamID, receipt); err != nil {
			return errors.Wrap(err, "save receipt")
		}
	}
	stream.Receiver = newReceiver
	_, err = c.streams.Put(db, streamID, stream)
	return err
}

// TransferReceipt reassigns only the withdrawal rights.
func (c *Controller) TransferReceipt(db weave.KVStore, streamID []byte, caller, newOwner weave.Address) error {
	receipt, err := c.Receipt(db, streamID)
	if err != nil {
		return err
	}
	if !caller.Equals(receipt.Owner) {
		return ErrNotReceiptOwner
	}
	receipt.Owner = newOwner
	_, err = c.receipts.Put(db, streamID, receipt)
	return err
}

// Refresh re-saves the stream record. The durable store has no expiry,
// so this is only a storage lifetime hint.
func (c *Controller) Refresh(db weave.KVStore, streamID []byte) error {
	stream, err := c.Stream(db, streamID)
	if err != nil {
		return err
	}
	_, err = c.streams.Put(db, streamID, stream)
	return err
}

// accruedInterest returns the vault balance surplus over the
// outstanding principal.
func (c *Controller) accruedInterest(db weave.KVStore, stream *Stream) (coin.Coin, error) {
	balance, err := c.cash.Balance(db, stream.Vault)
	if err != nil {
		return coin.Coin{}, errors.Wrap(err, "vault balance")
	}
	outstanding, err := stream.DepositedPrincipal.Subtract(*stream.Withdrawn)
	if err != nil {
		return coin.Coin{}, errors.Wrap(err, "outstanding principal")
	}
	return vaultInterest(tickerBalance(balance, stream.Amount.Ticker), outstanding)
}

func (c *Controller) payoutInterest(db weave.KVStore, stream *Stream, receipt *Receipt, conf Configuration, dist InterestDistribution) error {
	if err := c.move(db, stream.Vault, stream.Source, dist.ToSender); err != nil {
		return errors.Wrap(err, "interest to sender")
	}
	if err := c.move(db, stream.Vault, receipt.Owner, dist.ToReceiver); err != nil {
		return errors.Wrap(err, "interest to receiver")
	}
	if err := c.move(db, stream.Vault, conf.Treasury, dist.ToProtocol); err != nil {
		return errors.Wrap(err, "interest to protocol")
	}
	return nil
}

func (c *Controller) move(db weave.KVStore, src, dst weave.Address, amount coin.Coin) error {
	if !amount.IsPositive() {
		return nil
	}
	return c.cash.MoveCoins(db, src, dst, amount)
}

// Stream loads a stream by id.
func (c *Controller) Stream(db weave.KVStore, id []byte) (*Stream, error) {
	var stream Stream
	if err := c.streams.One(db, id, &stream); err != nil {
		return nil, errors.Wrapf(err, "stream %x", id)
	}
	return &stream, nil
}

// Receipt loads the receipt of a stream.
func (c *Controller) Receipt(db weave.KVStore, id []byte) (*Receipt, error) {
	var receipt Receipt
	if err := c.receipts.One(db, id, &receipt); err != nil {
		return nil, errors.Wrapf(err, "receipt %x", id)
	}
	return &receipt, nil
}

func tickerBalance(coins coin.Coins, ticker string) coin.Coin {
	for _, c := range coins {
		if c != nil && c.Ticker == ticker {
			return *c
		}
	}
	return coin.NewCoin(0, 0, ticker)
}
