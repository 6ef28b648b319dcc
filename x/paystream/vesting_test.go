package paystream

import (
	"testing"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/weavetest"
	"github.com/stretchr/testify/assert"
)

func newTestStream(amount coin.Coin, start, cliff, end weave.UnixTime) *Stream {
	return &Stream{
		Metadata:           &weave.Metadata{Schema: 2},
		Source:             weavetest.NewCondition().Address(),
		Receiver:           weavetest.NewCondition().Address(),
		Amount:             &amount,
		Withdrawn:          coin.NewCoinp(0, 0, amount.Ticker),
		DepositedPrincipal: &amount,
		StartTime:          start,
		CliffTime:          cliff,
		EndTime:            end,
	}
}

func TestUnlockedAtLinear(t *testing.T) {
	cases := map[string]struct {
		now  weave.UnixTime
		want coin.Coin
	}{
		"before start": {
			now:  90,
			want: coin.NewCoin(0, 0, "IOV"),
		},
		"at start": {
			now:  100,
			want: coin.NewCoin(0, 0, "IOV"),
		},
		"one third, rounded down": {
			now:  133,
			want: coin.NewCoin(330, 0, "IOV"),
		},
		"half way": {
			now:  150,
			want: coin.NewCoin(500, 0, "IOV"),
		},
		"at the end": {
			now:  200,
			want: coin.NewCoin(1000, 0, "IOV"),
		},
		"past the end": {
			now:  250,
			want: coin.NewCoin(1000, 0, "IOV"),
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			s := newTestStream(coin.NewCoin(1000, 0, "IOV"), 100, 0, 200)
			assert.Equal(t, tc.want, unlockedAt(s, tc.now))
		})
	}
}

func TestUnlockedAtWithCliff(t *testing.T) {
	s := newTestStream(coin.NewCoin(1000, 0, "IOV"), 100, 150, 200)

	// Nothing unlocks before the cliff, even though time accrues.
	assert.Equal(t, coin.NewCoin(0, 0, "IOV"), unlockedAt(s, 149))
	// At the cliff the full accrued value is released at once.
	assert.Equal(t, coin.NewCoin(500, 0, "IOV"), unlockedAt(s, 150))
	assert.Equal(t, coin.NewCoin(750, 0, "IOV"), unlockedAt(s, 175))
	assert.Equal(t, coin.NewCoin(1000, 0, "IOV"), unlockedAt(s, 200))
}

func TestUnlockedAtFractional(t *testing.T) {
	// 1 IOV over 3 seconds does not divide evenly in whole units but
	// does in fractional ones.
	s := newTestStream(coin.NewCoin(1, 0, "IOV"), 0, 0, 3)

	third := coin.FracUnit / 3
	assert.Equal(t, coin.NewCoin(0, third, "IOV"), unlockedAt(s, 1))
	assert.Equal(t, coin.NewCoin(0, 2*third, "IOV"), unlockedAt(s, 2))
	// The final step releases the exact remainder, not a rounded ratio.
	assert.Equal(t, coin.NewCoin(1, 0, "IOV"), unlockedAt(s, 3))
}

func TestUnlockedAtPaused(t *testing.T) {
	s := newTestStream(coin.NewCoin(1000, 0, "IOV"), 100, 0, 200)
	s.Paused = true
	s.PausedAt = 150

	// A paused stream is frozen at the pause moment.
	assert.Equal(t, coin.NewCoin(500, 0, "IOV"), unlockedAt(s, 180))
	assert.Equal(t, coin.NewCoin(500, 0, "IOV"), unlockedAt(s, 999))
}

func TestUnlockedAtAfterResume(t *testing.T) {
	s := newTestStream(coin.NewCoin(1000, 0, "IOV"), 100, 0, 200)
	s.PausedDuration = 50

	// Paused time shifts the whole schedule: the effective end moves
	// from 200 to 250 and only 50 seconds count at 200.
	assert.Equal(t, coin.NewCoin(500, 0, "IOV"), unlockedAt(s, 200))
	assert.Equal(t, coin.NewCoin(990, 0, "IOV"), unlockedAt(s, 249))
	assert.Equal(t, coin.NewCoin(1000, 0, "IOV"), unlockedAt(s, 250))
	assert.Equal(t, coin.NewCoin(1000, 0, "IOV"), unlockedAt(s, 300))
}

func TestUnlockedAtMonotonic(t *testing.T) {
	s := newTestStream(coin.NewCoin(997, 0, "IOV"), 100, 130, 211)
	s.PausedDuration = 17

	prev := coin.NewCoin(0, 0, "IOV")
	for now := weave.UnixTime(90); now < 260; now++ {
		got := unlockedAt(s, now)
		if got.Compare(prev) < 0 {
			t.Fatalf("unlocked value decreased at %d: %s -> %s", now, prev, got)
		}
		prev = got
	}
	assert.Equal(t, coin.NewCoin(997, 0, "IOV"), prev)
}

func TestWithdrawableAt(t *testing.T) {
	s := newTestStream(coin.NewCoin(1000, 0, "IOV"), 100, 0, 200)
	s.Withdrawn = coin.NewCoinp(300, 0, "IOV")

	got, err := withdrawableAt(s, 150)
	assert.NoError(t, err)
	assert.Equal(t, coin.NewCoin(200, 0, "IOV"), got)

	// Everything vested was already taken out.
	s.Withdrawn = coin.NewCoinp(500, 0, "IOV")
	got, err = withdrawableAt(s, 150)
	assert.NoError(t, err)
	assert.True(t, got.IsZero())

	// A cancelled stream can settle more than what is unlocked right
	// now would suggest. Never report a negative value.
	s.Withdrawn = coin.NewCoinp(800, 0, "IOV")
	got, err = withdrawableAt(s, 150)
	assert.NoError(t, err)
	assert.True(t, got.IsZero())
}
