package paystream

import (
	"math/big"

	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
)

// Interest strategy bits. Any combination is allowed; zero means vault
// yield is left untouched in the vault.
const (
	// StrategyToSender routes a share of the vault yield back to the
	// stream source.
	StrategyToSender uint32 = 0x1
	// StrategyToReceiver routes a share of the vault yield to the
	// receipt owner.
	StrategyToReceiver uint32 = 0x2
	// StrategyToProtocol routes a share of the vault yield to the
	// protocol treasury.
	StrategyToProtocol uint32 = 0x4

	strategyAll = StrategyToSender | StrategyToReceiver | StrategyToProtocol
)

// InterestDistribution is the outcome of splitting vault yield. Total
// is always the sum of the three shares.
type InterestDistribution struct {
	ToSender   coin.Coin
	ToReceiver coin.Coin
	ToProtocol coin.Coin
	Total      coin.Coin
}

// vaultInterest returns the yield a vault generated on top of the
// outstanding principal. A vault balance below the principal produces
// zero interest, never a negative value.
func vaultInterest(balance, principal coin.Coin) (coin.Coin, error) {
	got, err := balance.Subtract(principal)
	if err != nil {
		return coin.Coin{}, errors.Wrap(err, "vault interest")
	}
	if !got.IsPositive() {
		return coin.NewCoin(0, 0, balance.Ticker), nil
	}
	return got, nil
}

// distributeInterest splits the interest equally between the parties
// selected by the strategy mask. The integer division remainder goes to
// the protocol when eligible, otherwise to the receiver, otherwise to
// the sender, so the sum of shares always equals the input.
func distributeInterest(interest coin.Coin, strategy uint32) InterestDistribution {
	zero := coin.NewCoin(0, 0, interest.Ticker)
	out := InterestDistribution{
		ToSender:   zero,
		ToReceiver: zero,
		ToProtocol: zero,
		Total:      zero,
	}
	parties := int64(0)
	for _, bit := range []uint32{StrategyToSender, StrategyToReceiver, StrategyToProtocol} {
		if strategy&bit != 0 {
			parties++
		}
	}
	if parties == 0 || !interest.IsPositive() {
		return out
	}

	var shareUnits, remUnits big.Int
	shareUnits.QuoRem(coinUnits(interest), big.NewInt(parties), &remUnits)
	share := unitsCoin(&shareUnits, interest.Ticker)
	rem := unitsCoin(&remUnits, interest.Ticker)

	if strategy&StrategyToSender != 0 {
		out.ToSender = share
	}
	if strategy&StrategyToReceiver != 0 {
		out.ToReceiver = share
	}
	if strategy&StrategyToProtocol != 0 {
		out.ToProtocol = share
	}
	switch {
	case strategy&StrategyToProtocol != 0:
		out.ToProtocol, _ = out.ToProtocol.Add(rem)
	case strategy&StrategyToReceiver != 0:
		out.ToReceiver, _ = out.ToReceiver.Add(rem)
	default:
		out.ToSender, _ = out.ToSender.Add(rem)
	}
	out.Total = interest
	return out
}

// prorate scales a value by the num/den ratio, rounding down. A ratio
// of one or more returns the value unchanged.
func prorate(value, num, den coin.Coin) coin.Coin {
	if !value.IsPositive() || !num.IsPositive() || !den.IsPositive() {
		return coin.NewCoin(0, 0, value.Ticker)
	}
	if num.Compare(den) >= 0 {
		return value
	}
	u := coinUnits(value)
	u.Mul(u, coinUnits(num))
	u.Quo(u, coinUnits(den))
	return unitsCoin(u, value.Ticker)
}
