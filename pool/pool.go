// File: pool/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed arena of entropy buffers with explicit per-slot ownership.
// Free, filled and ready slots wait in FIFO queues, so buffers reach the
// validator and the sink in the order they were produced.

package pool

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-rngd/api"
	"github.com/momentics/hioload-rngd/core/concurrency"
)

// Handle references one slot of a Pool. It is only meaningful to the
// goroutine that currently owns the slot.
type Handle int

// Observer is called under the pool lock for every state transition.
// It must not call back into the pool.
type Observer func(h Handle, from, to State)

// Option customizes a Pool.
type Option func(*Pool)

// WithObserver installs a transition observer.
func WithObserver(fn Observer) Option {
	return func(p *Pool) { p.observer = fn }
}

type slot struct {
	state State
	data  []byte
}

// Pool is a bounded ring of fixed-size buffers.
type Pool struct {
	mu        sync.Mutex
	slots     []slot
	blockSize int

	free   *queue.Queue // Handle values in Free state
	filled *queue.Queue // Handle values in Filled state
	ready  *queue.Queue // Handle values in ReadyForSink state

	freeCount int
	lowWater  int

	freeCond   *sync.Cond
	filledCond *sync.Cond
	readyCond  *sync.Cond

	observer Observer

	watchMu sync.Mutex
	watched map[*concurrency.Token]struct{}
}

// New allocates n buffers of blockSize bytes each.
func New(n, blockSize int, opts ...Option) (*Pool, error) {
	if n <= 0 {
		return nil, fmt.Errorf("pool: buffer count %d: %w", n, api.ErrInvalidArgument)
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("pool: block size %d: %w", blockSize, api.ErrInvalidArgument)
	}
	p := &Pool{
		slots:     make([]slot, n),
		blockSize: blockSize,
		free:      queue.New(),
		filled:    queue.New(),
		ready:     queue.New(),
		freeCount: n,
		lowWater:  n - 1, // one buffer is always in flight
		watched:   make(map[*concurrency.Token]struct{}),
	}
	p.freeCond = sync.NewCond(&p.mu)
	p.filledCond = sync.NewCond(&p.mu)
	p.readyCond = sync.NewCond(&p.mu)

	backing := make([]byte, n*blockSize)
	for i := range p.slots {
		p.slots[i] = slot{state: Free, data: backing[i*blockSize : (i+1)*blockSize : (i+1)*blockSize]}
		p.free.Add(Handle(i))
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Size returns the number of buffers.
func (p *Pool) Size() int { return len(p.slots) }

// BlockSize returns the size of every buffer in bytes.
func (p *Pool) BlockSize() int { return p.blockSize }

// Bytes returns the storage of slot h. Only the owner of h may touch it.
func (p *Pool) Bytes(h Handle) []byte {
	return p.slots[h].data
}

// State returns the current state of slot h.
func (p *Pool) State(h Handle) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots[h].state
}

// FreeCount returns the number of Free buffers.
func (p *Pool) FreeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.freeCount
}

// LowWater returns the lowest free count observed since construction.
func (p *Pool) LowWater() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lowWater
}

// Counts returns how many slots are in each state.
func (p *Pool) Counts() map[State]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[State]int, numStates)
	for _, s := range p.slots {
		out[s.state]++
	}
	return out
}

// AcquireFree blocks until a buffer is Free and hands it to the caller in
// Filling state. Returns api.ErrCancelled once tok is cancelled.
func (p *Pool) AcquireFree(tok *concurrency.Token) (Handle, error) {
	p.watch(tok)
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.free.Length() == 0 && !cancelled(tok) {
		p.freeCond.Wait()
	}
	if cancelled(tok) {
		return -1, api.ErrCancelled
	}
	h := p.free.Remove().(Handle)
	if err := p.move(h, Free, Filling); err != nil {
		return -1, err
	}
	p.freeCount--
	if p.freeCount < p.lowWater {
		p.lowWater = p.freeCount
	}
	return h, nil
}

// MarkFilled moves h from Filling to Filled and wakes the validator.
func (p *Pool) MarkFilled(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.move(h, Filling, Filled); err != nil {
		return err
	}
	p.filled.Add(h)
	p.filledCond.Signal()
	return nil
}

// AcquireFilled blocks until a Filled buffer exists and hands it over in
// Validating state.
func (p *Pool) AcquireFilled(tok *concurrency.Token) (Handle, error) {
	p.watch(tok)
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.filled.Length() == 0 && !cancelled(tok) {
		p.filledCond.Wait()
	}
	if cancelled(tok) {
		return -1, api.ErrCancelled
	}
	h := p.filled.Remove().(Handle)
	if err := p.move(h, Filled, Validating); err != nil {
		return -1, err
	}
	return h, nil
}

// MarkValidated publishes a passing buffer to the sink, or discards a
// failing one straight back to Free.
func (p *Pool) MarkValidated(h Handle, passed bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if passed {
		if err := p.move(h, Validating, ReadyForSink); err != nil {
			return err
		}
		p.ready.Add(h)
		p.readyCond.Signal()
		return nil
	}
	if err := p.move(h, Validating, Rejected); err != nil {
		return err
	}
	return p.toFree(h, Rejected)
}

// AcquireReady blocks until a validated buffer exists and hands it to the
// sink in Sending state. waited reports whether the caller had to block.
func (p *Pool) AcquireReady(tok *concurrency.Token) (h Handle, waited bool, err error) {
	p.watch(tok)
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.ready.Length() == 0 && !cancelled(tok) {
		waited = true
		p.readyCond.Wait()
	}
	if cancelled(tok) {
		return -1, waited, api.ErrCancelled
	}
	h = p.ready.Remove().(Handle)
	if err := p.move(h, ReadyForSink, Sending); err != nil {
		return -1, waited, err
	}
	return h, waited, nil
}

// Release returns a sent buffer to Free and wakes one producer.
func (p *Pool) Release(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.toFree(h, Sending)
}

// Abort returns a buffer its owner could not complete (Filling or
// Validating) to Free.
func (p *Pool) Abort(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(h); err != nil {
		return err
	}
	from := p.slots[h].state
	if from != Filling && from != Validating {
		return fmt.Errorf("pool: abort slot %d in state %s: %w", h, from, api.ErrIllegalTransition)
	}
	return p.toFree(h, from)
}

// Reclaim returns every queued Filled and ReadyForSink buffer to Free,
// discarding its content. Call it only once all pipeline loops have exited.
func (p *Pool) Reclaim() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, q := range []struct {
		q    *queue.Queue
		from State
	}{{p.filled, Filled}, {p.ready, ReadyForSink}} {
		for q.q.Length() > 0 {
			h := q.q.Remove().(Handle)
			if err := p.toFree(h, q.from); err == nil {
				n++
			}
		}
	}
	return n
}

// Interrupt wakes every blocked acquirer so it can re-check its token.
func (p *Pool) Interrupt() {
	p.mu.Lock()
	p.freeCond.Broadcast()
	p.filledCond.Broadcast()
	p.readyCond.Broadcast()
	p.mu.Unlock()
}

// toFree moves h to Free and wakes one producer. Caller holds p.mu.
func (p *Pool) toFree(h Handle, from State) error {
	if err := p.move(h, from, Free); err != nil {
		return err
	}
	p.free.Add(h)
	p.freeCount++
	p.freeCond.Signal()
	return nil
}

// move validates and applies one transition. Caller holds p.mu.
func (p *Pool) move(h Handle, from, to State) error {
	if err := p.check(h); err != nil {
		return err
	}
	cur := p.slots[h].state
	if cur != from || !Legal(from, to) {
		return fmt.Errorf("pool: slot %d %s -> %s (expected %s): %w", h, cur, to, from, api.ErrIllegalTransition)
	}
	p.slots[h].state = to
	if p.observer != nil {
		p.observer(h, from, to)
	}
	return nil
}

func (p *Pool) check(h Handle) error {
	if h < 0 || int(h) >= len(p.slots) {
		return fmt.Errorf("pool: handle %d out of range: %w", h, api.ErrInvalidArgument)
	}
	return nil
}

// watch makes sure cancelling tok wakes this pool's waiters. It must be
// called without p.mu held: OnCancel may run the hook synchronously.
func (p *Pool) watch(tok *concurrency.Token) {
	if tok == nil {
		return
	}
	p.watchMu.Lock()
	_, seen := p.watched[tok]
	if !seen {
		p.watched[tok] = struct{}{}
	}
	p.watchMu.Unlock()
	if !seen {
		tok.OnCancel(p.Interrupt)
	}
}

func cancelled(tok *concurrency.Token) bool {
	return tok != nil && tok.Cancelled()
}
