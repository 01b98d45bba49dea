package stunsocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/stunsocket/packet"
)

// Transaction is an outstanding request. It completes exactly once: with the
// matching success or error response, or with an error when the send fails,
// the socket closes or fails, the id is reused, or a waiter gives up.
type Transaction struct {
	id      uint32
	clock   TimeProvider
	sentAt  time.Time
	release func(*Transaction)

	once sync.Once
	done chan struct{}
	resp *packet.Packet
	err  error
	rtt  time.Duration
}

func newTransaction(id uint32, clock TimeProvider, release func(*Transaction)) *Transaction {
	return &Transaction{
		id:      id,
		clock:   clock,
		sentAt:  clock.Now(),
		release: release,
		done:    make(chan struct{}),
	}
}

// ID returns the correlated transaction id.
func (t *Transaction) ID() uint32 {
	return t.id
}

// Done is closed once the transaction has completed.
func (t *Transaction) Done() <-chan struct{} {
	return t.done
}

// Result returns the outcome. It is only meaningful after Done is closed.
func (t *Transaction) Result() (*packet.Packet, error) {
	select {
	case <-t.done:
		return t.resp, t.err
	default:
		return nil, fmt.Errorf("transaction 0x%08x still pending", t.id)
	}
}

// Wait blocks until the transaction completes or ctx ends. When ctx ends
// first the transaction is withdrawn from its socket, so a late response is
// treated as unsolicited.
func (t *Transaction) Wait(ctx context.Context) (*packet.Packet, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		if t.release != nil {
			t.release(t)
		}
		t.reject(fmt.Errorf("transaction 0x%08x: %w", t.id, ctx.Err()))
		<-t.done
	}
	return t.resp, t.err
}

// RTT returns the time between registration and the response. Zero unless
// the transaction resolved with a response.
func (t *Transaction) RTT() time.Duration {
	select {
	case <-t.done:
		return t.rtt
	default:
		return 0
	}
}

func (t *Transaction) resolve(pkt *packet.Packet) bool {
	completed := false
	t.once.Do(func() {
		t.resp = pkt
		t.rtt = t.clock.Now().Sub(t.sentAt)
		close(t.done)
		completed = true
	})
	return completed
}

func (t *Transaction) reject(err error) bool {
	completed := false
	t.once.Do(func() {
		t.err = err
		close(t.done)
		completed = true
	})
	return completed
}

// pendingTable maps transaction ids to their outstanding handle. At most one
// handle exists per id.
type pendingTable struct {
	mu sync.Mutex
	m  map[uint32]*Transaction
}

func newPendingTable() *pendingTable {
	return &pendingTable{m: make(map[uint32]*Transaction)}
}

// add registers tx and returns the handle it displaced, if any.
func (p *pendingTable) add(tx *Transaction) *Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	old := p.m[tx.id]
	p.m[tx.id] = tx
	return old
}

// take removes and returns the handle for id.
func (p *pendingTable) take(id uint32) *Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	tx, ok := p.m[id]
	if !ok {
		return nil
	}
	delete(p.m, id)
	return tx
}

// remove deletes tx only if it is still the registered handle for its id.
func (p *pendingTable) remove(tx *Transaction) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m[tx.id] != tx {
		return false
	}
	delete(p.m, tx.id)
	return true
}

// drain empties the table and returns every handle it held.
func (p *pendingTable) drain() []*Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	all := make([]*Transaction, 0, len(p.m))
	for id, tx := range p.m {
		all = append(all, tx)
		delete(p.m, id)
	}
	return all
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}
