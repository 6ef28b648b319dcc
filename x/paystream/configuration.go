package paystream

import (
	"math/big"

	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
	"github.com/iov-one/weave/migration"
)

func init() {
	migration.MustRegister(1, &Configuration{}, migration.NoModification)
}

// maxFeeBps caps the protocol fee at 10%.
const maxFeeBps = 1000

func (c *Configuration) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", c.Metadata.Validate())
	errs = errors.AppendField(errs, "Owner", c.Owner.Validate())
	errs = errors.AppendField(errs, "Treasury", c.Treasury.Validate())
	if c.FeeBps > maxFeeBps {
		errs = errors.AppendField(errs, "FeeBps", errors.Wrapf(errors.ErrInput, "at most %d basis points", maxFeeBps))
	}
	return errs
}

func loadConf(db gconf.Store) (Configuration, error) {
	var conf Configuration
	if err := gconf.Load(db, "paystream", &conf); err != nil {
		return conf, errors.Wrap(err, "load configuration")
	}
	return conf, nil
}

// protocolFee returns the creation fee for a gross stream amount,
// floor(amount * bps / 10000).
func protocolFee(amount coin.Coin, bps uint32) coin.Coin {
	if bps == 0 || !amount.IsPositive() {
		return coin.NewCoin(0, 0, amount.Ticker)
	}
	u := coinUnits(amount)
	u.Mul(u, big.NewInt(int64(bps)))
	u.Quo(u, big.NewInt(10000))
	return unitsCoin(u, amount.Ticker)
}
