package paystream

import (
	"math/big"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
)

// unlockedAt returns how much of the stream principal is vested at the
// given time. Nothing vests before the start or the cliff. Once the
// schedule (stretched by the cumulative pause duration) is over, the
// full principal is returned directly so that integer division can
// never leave the last fraction locked. In between the vested part is
// floor(amount * effectiveElapsed / duration). A paused stream is
// evaluated at the moment it was paused, freezing the observable value.
func unlockedAt(s *Stream, now weave.UnixTime) coin.Coin {
	if s.Paused && s.PausedAt < now {
		now = s.PausedAt
	}
	zero := coin.NewCoin(0, 0, s.Amount.Ticker)
	if now <= s.StartTime {
		return zero
	}
	if s.CliffTime != 0 && now < s.CliffTime {
		return zero
	}
	if int64(now) >= int64(s.EndTime)+s.PausedDuration {
		return *s.Amount
	}
	elapsed := int64(now-s.StartTime) - s.PausedDuration
	if elapsed <= 0 {
		return zero
	}
	duration := int64(s.EndTime - s.StartTime)

	u := coinUnits(*s.Amount)
	u.Mul(u, big.NewInt(elapsed))
	u.Quo(u, big.NewInt(duration))
	return unitsCoin(u, s.Amount.Ticker)
}

// withdrawableAt returns the vested but not yet withdrawn principal,
// never negative.
func withdrawableAt(s *Stream, now weave.UnixTime) (coin.Coin, error) {
	unlocked := unlockedAt(s, now)
	got, err := unlocked.Subtract(*s.Withdrawn)
	if err != nil {
		return coin.Coin{}, errors.Wrap(err, "withdrawable")
	}
	if !got.IsPositive() {
		return coin.NewCoin(0, 0, s.Amount.Ticker), nil
	}
	return got, nil
}

// coinUnits flattens a coin into fractional units. The product of a
// coin value and an elapsed-seconds factor does not fit into int64, so
// the vesting ratio is computed over big integers.
func coinUnits(c coin.Coin) *big.Int {
	u := big.NewInt(c.Whole)
	u.Mul(u, fracUnit)
	return u.Add(u, big.NewInt(c.Fractional))
}

func unitsCoin(u *big.Int, ticker string) coin.Coin {
	var w, f big.Int
	w.QuoRem(u, fracUnit, &f)
	return coin.Coin{Whole: w.Int64(), Fractional: f.Int64(), Ticker: ticker}
}

var fracUnit = big.NewInt(coin.FracUnit)
