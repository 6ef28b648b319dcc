package paystream

// guard is an in-memory reentrancy latch shared by the settlement
// operations of one controller. It is not persisted, so a lock can
// never outlive the call that acquired it.
type guard struct {
	locked bool
}

// acquire takes the latch and returns the release function. The release
// must be deferred right away so every exit path frees the latch.
func (g *guard) acquire() (func(), error) {
	if g.locked {
		return nil, ErrReentrancy
	}
	g.locked = true
	return func() { g.locked = false }, nil
}
