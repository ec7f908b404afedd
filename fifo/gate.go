// Package fifo implements the per-shard ordering gate: read and write
// tickets are handed out in request order and must be awaited before
// touching the B-tree, so that operations become visible in the order
// they were accepted regardless of how long any individual operation
// takes to reach its transaction.
package fifo

import (
	"context"
	"sync"

	"github.com/kvshard/core/internal/rlog"
)

var logger = rlog.Get("fifo")

// Kind distinguishes a read ticket from a write ticket for logging; the
// gate enforces the same ordering discipline for both.
type Kind uint8

const (
	Read Kind = iota
	Write
)

// ErrInterrupted is returned by Ticket.Await when ctx is cancelled before
// the ticket's turn arrives.
type ErrInterrupted struct{}

func (ErrInterrupted) Error() string { return "fifo: ticket wait interrupted" }

// Gate hands out tickets in the order Enter is called and releases each
// one to its awaiter only once all strictly-earlier tickets have been
// released or dropped.
type Gate struct {
	mu   sync.Mutex
	tail <-chan struct{}
}

// NewGate returns a gate with no outstanding tickets.
func NewGate() *Gate {
	closed := make(chan struct{})
	close(closed)
	return &Gate{tail: closed}
}

// Ticket is a move-only ordering handle: obtain one with Gate.Enter, await
// it with Await, and release it exactly once (directly, or implicitly via
// Await's cancellation path) so later tickets are never stalled.
type Ticket struct {
	kind    Kind
	ready   <-chan struct{}
	release chan struct{}
	once    sync.Once
}

// Enter issues the next ticket in FIFO order. The caller must eventually
// call Release (typically via a deferred call right after Await succeeds
// and the B-tree view has been acquired), or cancel Await, or every later
// ticket on this gate deadlocks.
func (g *Gate) Enter(kind Kind) *Ticket {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := &Ticket{kind: kind, ready: g.tail, release: make(chan struct{})}
	g.tail = t.release
	logger.Debugf("ticket entered: kind=%v", kind)
	return t
}

// Await blocks until every strictly-earlier ticket on the same gate has
// been released, then returns nil. If ctx is cancelled first, Await drops
// the ticket (ensuring later tickets are still satisfied once this one's
// predecessor completes) and returns ErrInterrupted.
func (t *Ticket) Await(ctx context.Context) error {
	select {
	case <-t.ready:
		return nil
	case <-ctx.Done():
		// A dropped ticket must still preserve strict ordering among the
		// tickets that remain: releasing immediately would let a later
		// ticket jump ahead of whatever this one was still waiting on. So
		// the release is deferred to a background waiter instead of fired
		// immediately.
		go func() {
			<-t.ready
			t.Release()
		}()
		logger.Debugf("ticket wait interrupted: kind=%v", t.kind)
		return ErrInterrupted{}
	}
}

// Release satisfies this ticket for whatever is waiting behind it. It is
// idempotent: calling it more than once (e.g. once from a deferred
// cleanup and once from Await's cancellation path) is safe.
func (t *Ticket) Release() {
	t.once.Do(func() {
		logger.Debugf("ticket released: kind=%v", t.kind)
		close(t.release)
	})
}

// Kind reports whether this is a read or write ticket.
func (t *Ticket) Kind() Kind {
	return t.kind
}
