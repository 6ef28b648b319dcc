package paystream

import (
	"testing"

	"github.com/iov-one/weave/coin"
	"github.com/stretchr/testify/assert"
)

func TestVaultInterest(t *testing.T) {
	got, err := vaultInterest(coin.NewCoin(1200, 0, "IOV"), coin.NewCoin(1000, 0, "IOV"))
	assert.NoError(t, err)
	assert.Equal(t, coin.NewCoin(200, 0, "IOV"), got)

	// A vault that lost value produced no interest.
	got, err = vaultInterest(coin.NewCoin(900, 0, "IOV"), coin.NewCoin(1000, 0, "IOV"))
	assert.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = vaultInterest(coin.NewCoin(1000, 0, "IOV"), coin.NewCoin(1000, 0, "IOV"))
	assert.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestDistributeInterest(t *testing.T) {
	cases := map[string]struct {
		interest     coin.Coin
		strategy     uint32
		wantSender   coin.Coin
		wantReceiver coin.Coin
		wantProtocol coin.Coin
	}{
		"all three parties, remainder to the protocol": {
			interest:     coin.NewCoin(100, 0, "IOV"),
			strategy:     StrategyToSender | StrategyToReceiver | StrategyToProtocol,
			wantSender:   coin.NewCoin(33, coin.FracUnit/3, "IOV"),
			wantReceiver: coin.NewCoin(33, coin.FracUnit/3, "IOV"),
			wantProtocol: coin.NewCoin(33, coin.FracUnit/3+1, "IOV"),
		},
		"sender and receiver, remainder to the receiver": {
			interest:     coin.NewCoin(0, 101, "IOV"),
			strategy:     StrategyToSender | StrategyToReceiver,
			wantSender:   coin.NewCoin(0, 50, "IOV"),
			wantReceiver: coin.NewCoin(0, 51, "IOV"),
			wantProtocol: coin.NewCoin(0, 0, "IOV"),
		},
		"receiver only": {
			interest:     coin.NewCoin(100, 0, "IOV"),
			strategy:     StrategyToReceiver,
			wantSender:   coin.NewCoin(0, 0, "IOV"),
			wantReceiver: coin.NewCoin(100, 0, "IOV"),
			wantProtocol: coin.NewCoin(0, 0, "IOV"),
		},
		"sender only keeps the remainder": {
			interest:     coin.NewCoin(0, 7, "IOV"),
			strategy:     StrategyToSender,
			wantSender:   coin.NewCoin(0, 7, "IOV"),
			wantReceiver: coin.NewCoin(0, 0, "IOV"),
			wantProtocol: coin.NewCoin(0, 0, "IOV"),
		},
		"zero mask distributes nothing": {
			interest:     coin.NewCoin(100, 0, "IOV"),
			strategy:     0,
			wantSender:   coin.NewCoin(0, 0, "IOV"),
			wantReceiver: coin.NewCoin(0, 0, "IOV"),
			wantProtocol: coin.NewCoin(0, 0, "IOV"),
		},
		"zero interest distributes nothing": {
			interest:     coin.NewCoin(0, 0, "IOV"),
			strategy:     strategyAll,
			wantSender:   coin.NewCoin(0, 0, "IOV"),
			wantReceiver: coin.NewCoin(0, 0, "IOV"),
			wantProtocol: coin.NewCoin(0, 0, "IOV"),
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			dist := distributeInterest(tc.interest, tc.strategy)
			assert.Equal(t, tc.wantSender, dist.ToSender)
			assert.Equal(t, tc.wantReceiver, dist.ToReceiver)
			assert.Equal(t, tc.wantProtocol, dist.ToProtocol)

			// The shares must account for every unit distributed.
			sum, err := dist.ToSender.Add(dist.ToReceiver)
			assert.NoError(t, err)
			sum, err = sum.Add(dist.ToProtocol)
			assert.NoError(t, err)
			if dist.Total.IsPositive() {
				assert.Equal(t, dist.Total, sum)
			} else {
				assert.True(t, sum.IsZero())
			}
		})
	}
}

func TestProrate(t *testing.T) {
	// Withdrawing half the principal releases half the interest.
	got := prorate(coin.NewCoin(300, 0, "IOV"), coin.NewCoin(500, 0, "IOV"), coin.NewCoin(1000, 0, "IOV"))
	assert.Equal(t, coin.NewCoin(150, 0, "IOV"), got)

	// Rounds down.
	got = prorate(coin.NewCoin(0, 99, "IOV"), coin.NewCoin(1, 0, "IOV"), coin.NewCoin(3, 0, "IOV"))
	assert.Equal(t, coin.NewCoin(0, 33, "IOV"), got)

	// A ratio of one or more never scales the value up.
	got = prorate(coin.NewCoin(300, 0, "IOV"), coin.NewCoin(1000, 0, "IOV"), coin.NewCoin(1000, 0, "IOV"))
	assert.Equal(t, coin.NewCoin(300, 0, "IOV"), got)
	got = prorate(coin.NewCoin(300, 0, "IOV"), coin.NewCoin(2000, 0, "IOV"), coin.NewCoin(1000, 0, "IOV"))
	assert.Equal(t, coin.NewCoin(300, 0, "IOV"), got)

	// Degenerate inputs collapse to zero.
	assert.True(t, prorate(coin.NewCoin(0, 0, "IOV"), coin.NewCoin(1, 0, "IOV"), coin.NewCoin(2, 0, "IOV")).IsZero())
	assert.True(t, prorate(coin.NewCoin(300, 0, "IOV"), coin.NewCoin(0, 0, "IOV"), coin.NewCoin(2, 0, "IOV")).IsZero())
}

func TestProtocolFee(t *testing.T) {
	assert.Equal(t, coin.NewCoin(25, 0, "IOV"), protocolFee(coin.NewCoin(1000, 0, "IOV"), 250))

	// 30 bps of 1234 is 3.702, rounded down to the fractional unit.
	assert.Equal(t, coin.NewCoin(3, 702000000, "IOV"), protocolFee(coin.NewCoin(1234, 0, "IOV"), 30))

	assert.True(t, protocolFee(coin.NewCoin(1000, 0, "IOV"), 0).IsZero())
}
