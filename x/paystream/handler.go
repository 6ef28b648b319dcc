package paystream

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/x"
)

const (
	// pay stream creation cost up-front
	createStreamCost   int64 = 300
	withdrawCost       int64 = 100
	cancelStreamCost   int64 = 0
	pauseStreamCost    int64 = 50
	transferStreamCost int64 = 50
	refreshStreamCost  int64 = 50
)

// RegisterRoutes will instantiate and register
// all handlers in this package
func RegisterRoutes(r weave.Registry, auth x.Authenticator, cash CashController) {
	r = migration.SchemaMigratingRegistry("paystream", r)
	control := NewController(cash)

	r.Handle(&CreateStreamMsg{}, &createStreamHandler{auth: auth, control: control})
	r.Handle(&CreateBatchMsg{}, &createBatchHandler{auth: auth, control: control})
	r.Handle(&WithdrawMsg{}, &withdrawHandler{auth: auth, control: control})
	r.Handle(&CancelStreamMsg{}, &cancelStreamHandler{auth: auth, control: control})
	r.Handle(&PauseStreamMsg{}, &pauseStreamHandler{auth: auth, control: control})
	r.Handle(&ResumeStreamMsg{}, &resumeStreamHandler{auth: auth, control: control})
	r.Handle(&TransferStreamMsg{}, &transferStreamHandler{auth: auth, control: control})
	r.Handle(&TransferReceiptMsg{}, &transferReceiptHandler{auth: auth, control: control})
	r.Handle(&RefreshStreamMsg{}, &refreshStreamHandler{auth: auth, control: control})
	r.Handle(&UpdateConfigurationMsg{}, NewConfigHandler(auth))
}

// RegisterQuery will register streams as "/paystreams" and receipts as
// "/payreceipts"
func RegisterQuery(qr weave.QueryRouter) {
	NewStreamBucket().Register("paystreams", qr)
	NewReceiptBucket().Register("payreceipts", qr)
}

// blockTime returns the current block time. Every stream operation is
// time dependent, so a context without a block time is refused.
func blockTime(ctx weave.Context) (weave.UnixTime, error) {
	now, err := weave.BlockTime(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "block time")
	}
	return weave.AsUnixTime(now), nil
}

type createStreamHandler struct {
	auth    x.Authenticator
	control *Controller
}

var _ weave.Handler = (*createStreamHandler)(nil)

func (h *createStreamHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: createStreamCost}, nil
}

func (h *createStreamHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	now, err := blockTime(ctx)
	if err != nil {
		return nil, err
	}
	id, err := h.control.Create(db, now, msg.Source, &StreamRequest{
		Receiver:         msg.Receiver,
		Amount:           msg.Amount,
		StartTime:        msg.StartTime,
		CliffTime:        msg.CliffTime,
		EndTime:          msg.EndTime,
		InterestStrategy: msg.InterestStrategy,
		Vault:            msg.Vault,
	})
	if err != nil {
		return nil, err
	}
	return &weave.DeliverResult{Data: id}, nil
}

func (h *createStreamHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*CreateStreamMsg, error) {
	var msg CreateStreamMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	if !h.auth.HasAddress(ctx, msg.Source) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "source authentication required")
	}
	return &msg, nil
}

type createBatchHandler struct {
	auth    x.Authenticator
	control *Controller
}

var _ weave.Handler = (*createBatchHandler)(nil)

func (h *createBatchHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: createStreamCost * int64(len(msg.Requests))}, nil
}

func (h *createBatchHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	now, err := blockTime(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := h.control.CreateBatch(db, now, msg.Source, msg.Requests)
	if err != nil {
		return nil, err
	}
	// The ids are sequential, returning the first is enough to address
	// the whole batch.
	return &weave.DeliverResult{Data: ids[0]}, nil
}

func (h *createBatchHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*CreateBatchMsg, error) {
	var msg CreateBatchMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	if !h.auth.HasAddress(ctx, msg.Source) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "source authentication required")
	}
	return &msg, nil
}

type withdrawHandler struct {
	auth    x.Authenticator
	control *Controller
}

var _ weave.Handler = (*withdrawHandler)(nil)

func (h *withdrawHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: withdrawCost}, nil
}

func (h *withdrawHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, owner, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	now, err := blockTime(ctx)
	if err != nil {
		return nil, err
	}
	res, err := h.control.Withdraw(db, now, msg.StreamID, owner)
	if err != nil {
		return nil, err
	}
	paid, err := res.Principal.Add(res.Interest)
	if err != nil {
		return nil, errors.Wrap(err, "paid out total")
	}
	return &weave.DeliverResult{Data: []byte(paid.String())}, nil
}

func (h *withdrawHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*WithdrawMsg, weave.Address, error) {
	var msg WithdrawMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}
	receipt, err := h.control.Receipt(db, msg.StreamID)
	if err != nil {
		return nil, nil, err
	}
	if !h.auth.HasAddress(ctx, receipt.Owner) {
		return nil, nil, ErrNotReceiptOwner
	}
	return &msg, receipt.Owner, nil
}

type cancelStreamHandler struct {
	auth    x.Authenticator
	control *Controller
}

var _ weave.Handler = (*cancelStreamHandler)(nil)

func (h *cancelStreamHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: cancelStreamCost}, nil
}

func (h *cancelStreamHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, caller, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	now, err := blockTime(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := h.control.Cancel(db, now, msg.StreamID, caller); err != nil {
		return nil, err
	}
	return &weave.DeliverResult{Data: msg.StreamID}, nil
}

func (h *cancelStreamHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*CancelStreamMsg, weave.Address, error) {
	var msg CancelStreamMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}
	stream, err := h.control.Stream(db, msg.StreamID)
	if err != nil {
		return nil, nil, err
	}
	receipt, err := h.control.Receipt(db, msg.StreamID)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case h.auth.HasAddress(ctx, stream.Source):
		return &msg, stream.Source, nil
	case h.auth.HasAddress(ctx, receipt.Owner):
		return &msg, receipt.Owner, nil
	}
	return nil, nil, errors.Wrap(errors.ErrUnauthorized, "only the source or the receipt owner can cancel")
}

type pauseStreamHandler struct {
	auth    x.Authenticator
	control *Controller
}

var _ weave.Handler = (*pauseStreamHandler)(nil)

func (h *pauseStreamHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: pauseStreamCost}, nil
}

func (h *pauseStreamHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, source, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	now, err := blockTime(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.control.Pause(db, now, msg.StreamID, source); err != nil {
		return nil, err
	}
	return &weave.DeliverResult{Data: msg.StreamID}, nil
}

func (h *pauseStreamHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*PauseStreamMsg, weave.Address, error) {
	var msg PauseStreamMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}
	stream, err := h.control.Stream(db, msg.StreamID)
	if err != nil {
		return nil, nil, err
	}
	if !h.auth.HasAddress(ctx, stream.Source) {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "only the source can pause")
	}
	return &msg, stream.Source, nil
}

type resumeStreamHandler struct {
	auth    x.Authenticator
	control *Controller
}

var _ weave.Handler = (*resumeStreamHandler)(nil)

func (h *resumeStreamHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: pauseStreamCost}, nil
}

func (h *resumeStreamHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, source, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	now, err := blockTime(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.control.Resume(db, now, msg.StreamID, source); err != nil {
		return nil, err
	}
	return &weave.DeliverResult{Data: msg.StreamID}, nil
}

func (h *resumeStreamHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*ResumeStreamMsg, weave.Address, error) {
	var msg ResumeStreamMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}
	stream, err := h.control.Stream(db, msg.StreamID)
	if err != nil {
		return nil, nil, err
	}
	if !h.auth.HasAddress(ctx, stream.Source) {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "only the source can resume")
	}
	return &msg, stream.Source, nil
}

type transferStreamHandler struct {
	auth    x.Authenticator
	control *Controller
}

var _ weave.Handler = (*transferStreamHandler)(nil)

func (h *transferStreamHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: transferStreamCost}, nil
}

func (h *transferStreamHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, receiver, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	if err := h.control.TransferStream(db, msg.StreamID, receiver, msg.Receiver); err != nil {
		return nil, err
	}
	return &weave.DeliverResult{Data: msg.StreamID}, nil
}

func (h *transferStreamHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*TransferStreamMsg, weave.Address, error) {
	var msg TransferStreamMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}
	stream, err := h.control.Stream(db, msg.StreamID)
	if err != nil {
		return nil, nil, err
	}
	if !h.auth.HasAddress(ctx, stream.Receiver) {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "only the receiver can transfer the stream")
	}
	return &msg, stream.Receiver, nil
}

type transferReceiptHandler struct {
	auth    x.Authenticator
	control *Controller
}

var _ weave.Handler = (*transferReceiptHandler)(nil)

func (h *transferReceiptHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: transferStreamCost}, nil
}

func (h *transferReceiptHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, owner, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	if err := h.control.TransferReceipt(db, msg.StreamID, owner, msg.NewOwner); err != nil {
		return nil, err
	}
	return &weave.DeliverResult{Data: msg.StreamID}, nil
}

func (h *transferReceiptHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*TransferReceiptMsg, weave.Address, error) {
	var msg TransferReceiptMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}
	receipt, err := h.control.Receipt(db, msg.StreamID)
	if err != nil {
		return nil, nil, err
	}
	if !h.auth.HasAddress(ctx, receipt.Owner) {
		return nil, nil, ErrNotReceiptOwner
	}
	return &msg, receipt.Owner, nil
}

type refreshStreamHandler struct {
	auth    x.Authenticator
	control *Controller
}

var _ weave.Handler = (*refreshStreamHandler)(nil)

func (h *refreshStreamHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: refreshStreamCost}, nil
}

func (h *refreshStreamHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	if err := h.control.Refresh(db, msg.StreamID); err != nil {
		return nil, err
	}
	return &weave.DeliverResult{Data: msg.StreamID}, nil
}

// validate requires no authorization. Anyone can pay to keep a stream
// record alive.
func (h *refreshStreamHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*RefreshStreamMsg, error) {
	var msg RefreshStreamMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	return &msg, nil
}

func NewConfigHandler(auth x.Authenticator) weave.Handler {
	var conf Configuration
	return gconf.NewUpdateConfigurationHandler("paystream", &conf, auth, migration.CurrentAdmin)
}
