package paystream

import (
	"testing"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/weavetest"
	"github.com/iov-one/weave/weavetest/assert"
)

func TestStreamValidate(t *testing.T) {
	goodStream := func() *Stream {
		return &Stream{
			Metadata:           &weave.Metadata{Schema: 1},
			Source:             weavetest.NewCondition().Address(),
			Receiver:           weavetest.NewCondition().Address(),
			Amount:             coin.NewCoinp(1000, 0, "IOV"),
			Withdrawn:          coin.NewCoinp(0, 0, "IOV"),
			DepositedPrincipal: coin.NewCoinp(1000, 0, "IOV"),
			StartTime:          100,
			EndTime:            200,
		}
	}

	cases := map[string]struct {
		mutator   func(s *Stream)
		wantField string
		wantErr   *errors.Error
	}{
		"valid": {},
		"missing metadata": {
			mutator:   func(s *Stream) { s.Metadata = nil },
			wantField: "Metadata",
			wantErr:   errors.ErrMetadata,
		},
		"missing amount": {
			mutator:   func(s *Stream) { s.Amount = nil },
			wantField: "Amount",
			wantErr:   errors.ErrAmount,
		},
		"zero amount": {
			mutator:   func(s *Stream) { s.Amount = coin.NewCoinp(0, 0, "IOV") },
			wantField: "Amount",
			wantErr:   errors.ErrAmount,
		},
		"negative withdrawn": {
			mutator:   func(s *Stream) { s.Withdrawn = coin.NewCoinp(-1, 0, "IOV") },
			wantField: "Withdrawn",
			wantErr:   errors.ErrAmount,
		},
		"end before start": {
			mutator:   func(s *Stream) { s.EndTime = 50 },
			wantField: "EndTime",
			wantErr:   errors.ErrInput,
		},
		"end equal to start": {
			mutator:   func(s *Stream) { s.EndTime = s.StartTime },
			wantField: "EndTime",
			wantErr:   errors.ErrInput,
		},
		"cliff before start": {
			mutator:   func(s *Stream) { s.CliffTime = 50 },
			wantField: "CliffTime",
			wantErr:   errors.ErrInput,
		},
		"cliff at the end": {
			mutator:   func(s *Stream) { s.CliffTime = s.EndTime },
			wantField: "CliffTime",
			wantErr:   errors.ErrInput,
		},
		"unknown strategy bits": {
			mutator:   func(s *Stream) { s.InterestStrategy = 8 },
			wantField: "InterestStrategy",
			wantErr:   ErrInvalidStrategy,
		},
		"paused without pause time": {
			mutator:   func(s *Stream) { s.Paused = true },
			wantField: "PausedAt",
			wantErr:   errors.ErrState,
		},
		"negative paused duration": {
			mutator:   func(s *Stream) { s.PausedDuration = -1 },
			wantField: "PausedDuration",
			wantErr:   errors.ErrState,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			s := goodStream()
			if tc.mutator != nil {
				tc.mutator(s)
			}
			err := s.Validate()
			if tc.wantErr == nil {
				assert.Nil(t, err)
				return
			}
			assert.FieldError(t, err, tc.wantField, tc.wantErr)
		})
	}
}

func TestReceiptValidate(t *testing.T) {
	goodReceipt := func() *Receipt {
		return &Receipt{
			Metadata: &weave.Metadata{Schema: 1},
			StreamID: weavetest.SequenceID(1),
			Owner:    weavetest.NewCondition().Address(),
			MintedAt: 100,
		}
	}

	assert.Nil(t, goodReceipt().Validate())

	r := goodReceipt()
	r.StreamID = []byte("too-long-stream-id")
	assert.FieldError(t, r.Validate(), "StreamID", errors.ErrInput)

	r = goodReceipt()
	r.Owner = nil
	assert.FieldError(t, r.Validate(), "Owner", errors.ErrEmpty)
}

func TestStreamCondition(t *testing.T) {
	id := weavetest.SequenceID(1)
	addr := StreamCondition(id).Address()
	assert.Nil(t, addr.Validate())

	// The custody address is a pure function of the stream id.
	assert.Equal(t, addr, StreamCondition(id).Address())

	assert.Panics(t, func() {
		StreamCondition([]byte("x"))
	})
}

func TestCreateBatchMsgValidate(t *testing.T) {
	request := func() *StreamRequest {
		return &StreamRequest{
			Receiver:  weavetest.NewCondition().Address(),
			Amount:    coin.NewCoinp(100, 0, "IOV"),
			StartTime: 100,
			EndTime:   200,
		}
	}

	msg := &CreateBatchMsg{
		Metadata: &weave.Metadata{Schema: 1},
		Source:   weavetest.NewCondition().Address(),
		Requests: []*StreamRequest{request(), request()},
	}
	assert.Nil(t, msg.Validate())

	msg.Requests = nil
	assert.FieldError(t, msg.Validate(), "Requests", errors.ErrEmpty)

	msg.Requests = make([]*StreamRequest, maxBatchSize+1)
	for i := range msg.Requests {
		msg.Requests[i] = request()
	}
	assert.FieldError(t, msg.Validate(), "Requests", errors.ErrInput)
}
