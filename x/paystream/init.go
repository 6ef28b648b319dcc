package paystream

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
	"github.com/iov-one/weave/x/cash"
)

// Initializer fulfils the Initializer interface to load data from the
// genesis file
type Initializer struct {
	Minter cash.CoinMinter
}

var _ weave.Initializer = (*Initializer)(nil)

// FromGenesis will parse the initial configuration and the seed streams
// from the genesis and save them to the database. The principal of every
// seed stream is minted straight into its custody account.
func (i *Initializer) FromGenesis(opts weave.Options, params weave.GenesisParams, kv weave.KVStore) error {
	if err := gconf.InitConfig(kv, opts, "paystream", &Configuration{}); err != nil {
		return errors.Wrap(err, "init config")
	}

	var streams []struct {
		Source    weave.Address  `json:"source"`
		Receiver  weave.Address  `json:"receiver"`
		Amount    coin.Coin      `json:"amount"`
		StartTime weave.UnixTime `json:"start_time"`
		CliffTime weave.UnixTime `json:"cliff_time"`
		EndTime   weave.UnixTime `json:"end_time"`
	}
	if err := opts.ReadOptions("paystream", &streams); err != nil {
		return errors.Wrap(err, "read streams")
	}

	streamBucket := NewStreamBucket()
	receiptBucket := NewReceiptBucket()
	for j, s := range streams {
		amount := s.Amount
		id, err := streamSeq.NextVal(kv)
		if err != nil {
			return errors.Wrap(err, "next stream id")
		}
		stream := Stream{
			Metadata:           &weave.Metadata{},
			Source:             s.Source,
			Receiver:           s.Receiver,
			Amount:             &amount,
			Withdrawn:          coin.NewCoinp(0, 0, amount.Ticker),
			DepositedPrincipal: &amount,
			StartTime:          s.StartTime,
			CliffTime:          s.CliffTime,
			EndTime:            s.EndTime,
		}
		if _, err := streamBucket.Put(kv, id, &stream); err != nil {
			return errors.Wrapf(err, "invalid stream at position %d", j)
		}
		receipt := Receipt{
			Metadata: &weave.Metadata{},
			StreamID: id,
			Owner:    s.Receiver,
			MintedAt: s.StartTime,
		}
		if _, err := receiptBucket.Put(kv, id, &receipt); err != nil {
			return errors.Wrapf(err, "invalid receipt at position %d", j)
		}
		if i.Minter == nil {
			return errors.Wrap(errors.ErrState, "genesis streams need a coin minter")
		}
		if err := i.Minter.CoinMint(kv, StreamCondition(id).Address(), amount); err != nil {
			return errors.Wrap(err, "failed to issue coins")
		}
	}
	return nil
}
