package paystream

import (
	"fmt"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
)

func init() {
	migration.MustRegister(1, &Stream{}, migration.NoModification)
	migration.MustRegister(2, &Stream{}, streamPauseUpgrade)
	migration.MustRegister(1, &Receipt{}, migration.NoModification)
}

// streamPauseUpgrade migrates a schema 1 stream, which predates pause
// support, to schema 2 by initializing the pause bookkeeping fields.
func streamPauseUpgrade(db weave.ReadOnlyKVStore, m migration.Migratable) error {
	s, ok := m.(*Stream)
	if !ok {
		return errors.Wrapf(errors.ErrModel, "unexpected message type %T", m)
	}
	s.Paused = false
	s.PausedAt = 0
	s.PausedDuration = 0
	return nil
}

var _ orm.CloneableData = (*Stream)(nil)

func (s *Stream) Validate() error {
	var errs error

	errs = errors.AppendField(errs, "Metadata", s.Metadata.Validate())
	errs = errors.AppendField(errs, "Source", s.Source.Validate())
	errs = errors.AppendField(errs, "Receiver", s.Receiver.Validate())
	switch {
	case s.Amount == nil:
		errs = errors.AppendField(errs, "Amount", errors.Wrap(errors.ErrAmount, "required"))
	case !s.Amount.IsPositive():
		errs = errors.AppendField(errs, "Amount", errors.Wrap(errors.ErrAmount, "must be positive"))
	default:
		errs = errors.AppendField(errs, "Amount", s.Amount.Validate())
	}
	switch {
	case s.Withdrawn == nil:
		errs = errors.AppendField(errs, "Withdrawn", errors.Wrap(errors.ErrAmount, "required"))
	case !s.Withdrawn.IsNonNegative():
		errs = errors.AppendField(errs, "Withdrawn", errors.Wrap(errors.ErrAmount, "cannot be negative"))
	default:
		errs = errors.AppendField(errs, "Withdrawn", s.Withdrawn.Validate())
	}
	switch {
	case s.DepositedPrincipal == nil:
		errs = errors.AppendField(errs, "DepositedPrincipal", errors.Wrap(errors.ErrAmount, "required"))
	default:
		errs = errors.AppendField(errs, "DepositedPrincipal", s.DepositedPrincipal.Validate())
	}
	errs = errors.Append(errs, validateSchedule(s.StartTime, s.CliffTime, s.EndTime))
	if s.InterestStrategy > strategyAll {
		errs = errors.AppendField(errs, "InterestStrategy", ErrInvalidStrategy)
	}
	if s.Vault != nil {
		errs = errors.AppendField(errs, "Vault", s.Vault.Validate())
	}
	if s.Paused && s.PausedAt == 0 {
		errs = errors.AppendField(errs, "PausedAt", errors.Wrap(errors.ErrState, "paused stream without pause time"))
	}
	if s.PausedDuration < 0 {
		errs = errors.AppendField(errs, "PausedDuration", errors.Wrap(errors.ErrState, "cannot be negative"))
	}
	return errs
}

func (s *Stream) Copy() orm.CloneableData {
	return &Stream{
		Metadata:           s.Metadata.Copy(),
		Source:             s.Source.Clone(),
		Receiver:           s.Receiver.Clone(),
		Amount:             s.Amount.Clone(),
		Withdrawn:          s.Withdrawn.Clone(),
		DepositedPrincipal: s.DepositedPrincipal.Clone(),
		StartTime:          s.StartTime,
		CliffTime:          s.CliffTime,
		EndTime:            s.EndTime,
		InterestStrategy:   s.InterestStrategy,
		Vault:              s.Vault.Clone(),
		Cancelled:          s.Cancelled,
		Paused:             s.Paused,
		PausedAt:           s.PausedAt,
		PausedDuration:     s.PausedDuration,
	}
}

// validateSchedule checks the stream timing invariants. A zero cliff
// means no cliff. Schedule times are seconds, the block time resolution.
func validateSchedule(start, cliff, end weave.UnixTime) error {
	var errs error
	if err := start.Validate(); err != nil {
		errs = errors.AppendField(errs, "StartTime", err)
	}
	if err := end.Validate(); err != nil {
		errs = errors.AppendField(errs, "EndTime", err)
	} else if end <= start {
		errs = errors.AppendField(errs, "EndTime", errors.Wrap(errors.ErrInput, "must be after the start time"))
	}
	if cliff != 0 && (cliff < start || cliff >= end) {
		errs = errors.AppendField(errs, "CliffTime", errors.Wrap(errors.ErrInput, "must be within the stream schedule"))
	}
	return errs
}

var _ orm.CloneableData = (*Receipt)(nil)

func (r *Receipt) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", r.Metadata.Validate())
	if len(r.StreamID) != 8 {
		errs = errors.AppendField(errs, "StreamID", errors.Wrap(errors.ErrInput, "invalid stream id"))
	}
	errs = errors.AppendField(errs, "Owner", r.Owner.Validate())
	return errs
}

func (r *Receipt) Copy() orm.CloneableData {
	return &Receipt{
		Metadata: r.Metadata.Copy(),
		StreamID: append([]byte(nil), r.StreamID...),
		Owner:    r.Owner.Clone(),
		MintedAt: r.MintedAt,
	}
}

// StreamCondition returns the condition of the custody account holding
// a stream's principal when no external vault is used.
func StreamCondition(id []byte) weave.Condition {
	if len(id) != 8 {
		panic(fmt.Sprintf("invalid stream id: %X", id))
	}
	return weave.NewCondition("paystream", "seq", id)
}

var streamSeq = orm.NewSequence("paystream", "id")

// NewStreamBucket returns a bucket for keeping streams, indexed by
// their source and receiver addresses.
func NewStreamBucket() orm.ModelBucket {
	b := orm.NewModelBucket("stream", &Stream{},
		orm.WithIDSequence(streamSeq),
		orm.WithIndex("source", streamSourceIdx, false),
		orm.WithIndex("receiver", streamReceiverIdx, false),
	)
	return migration.NewModelBucket("paystream", b)
}

func streamSourceIdx(obj orm.Object) ([]byte, error) {
	s, err := asStream(obj)
	if err != nil {
		return nil, err
	}
	return s.Source, nil
}

func streamReceiverIdx(obj orm.Object) ([]byte, error) {
	s, err := asStream(obj)
	if err != nil {
		return nil, err
	}
	return s.Receiver, nil
}

func asStream(obj orm.Object) (*Stream, error) {
	if obj == nil || obj.Value() == nil {
		return nil, errors.Wrap(errors.ErrHuman, "cannot take index of nil")
	}
	s, ok := obj.Value().(*Stream)
	if !ok {
		return nil, errors.Wrap(errors.ErrHuman, "can only take index of a stream")
	}
	return s, nil
}

// NewReceiptBucket returns a bucket for keeping receipts, indexed by
// their owner. A receipt is stored under the id of its stream.
func NewReceiptBucket() orm.ModelBucket {
	b := orm.NewModelBucket("receipt", &Receipt{},
		orm.WithIndex("owner", receiptOwnerIdx, false),
	)
	return migration.NewModelBucket("paystream", b)
}

func receiptOwnerIdx(obj orm.Object) ([]byte, error) {
	if obj == nil || obj.Value() == nil {
		return nil, errors.Wrap(errors.ErrHuman, "cannot take index of nil")
	}
	r, ok := obj.Value().(*Receipt)
	if !ok {
		return nil, errors.Wrap(errors.ErrHuman, "can only take index of a receipt")
	}
	return r.Owner, nil
}
