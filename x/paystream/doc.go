/*

Package paystream implements continuous payment streams.

A stream locks funds of a source (the sender) and unlocks them linearly
over a schedule to a receiver, optionally behind a cliff. Custody is
either a per-stream account owned by this extension or an external vault
account that may generate yield on top of the deposited principal. Any
surplus the vault holds beyond the outstanding principal is split between
sender, receiver and the protocol treasury according to a per-stream
interest strategy.

Withdrawal rights are represented by a receipt that is minted together
with the stream and can be transferred independently of the receiver.
The sender can pause and resume a stream (pausing freezes vesting and
extends the effective schedule) and either party can cancel it, which
settles the vested part on the receipt owner and refunds the rest.

A protocol fee, the treasury address and a global creation kill-switch
are kept in a gconf configuration singleton maintained by the
configuration owner.

*/
package paystream
