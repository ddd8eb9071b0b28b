package store

import (
	"context"
	"fmt"
	"sync"
)

// Validator checks a candidate value before it is committed.
type Validator[T any] func(ctx context.Context, value T) error

// Hook runs a committed value through a commit stage, such as writing it
// to durable storage or handing it to the engine.
type Hook[T any] func(ctx context.Context, value T) error

// CellOption configures a Cell.
type CellOption[T any] func(*cellConfig[T])

type cellConfig[T any] struct {
	validators []Validator[T]
	persist    Hook[T]
	push       Hook[T]
	clone      func(T) T
}

// WithValidator appends validators run in order during commit. The first
// failure aborts the commit with reason invalid.
func WithValidator[T any](validators ...Validator[T]) CellOption[T] {
	return func(cfg *cellConfig[T]) {
		for _, validator := range validators {
			if validator != nil {
				cfg.validators = append(cfg.validators, validator)
			}
		}
	}
}

// WithPersist sets the hook writing committed values to durable storage.
func WithPersist[T any](hook Hook[T]) CellOption[T] {
	return func(cfg *cellConfig[T]) {
		cfg.persist = hook
	}
}

// WithPush sets the hook handing committed values to the running engine.
func WithPush[T any](hook Hook[T]) CellOption[T] {
	return func(cfg *cellConfig[T]) {
		cfg.push = hook
	}
}

// WithClone sets the copy function protecting reads and forks. Values with
// reference semantics, such as documents, need a deep clone here.
func WithClone[T any](clone func(T) T) CellOption[T] {
	return func(cfg *cellConfig[T]) {
		cfg.clone = clone
	}
}

// Cell owns the committed value for one configuration domain.
type Cell[T any] struct {
	domain string
	cfg    cellConfig[T]

	mu    sync.Mutex
	value T
	draft *Draft[T]
}

// NewCell constructs a cell with its initial committed value.
func NewCell[T any](domain string, initial T, opts ...CellOption[T]) *Cell[T] {
	cfg := cellConfig[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cell := &Cell[T]{domain: domain, cfg: cfg}
	cell.value = cell.clone(initial)
	return cell
}

// Domain returns the domain name the cell guards.
func (c *Cell[T]) Domain() string {
	return c.domain
}

// Latest returns a copy of the committed value. It never blocks on an
// in-flight commit.
func (c *Cell[T]) Latest() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clone(c.value)
}

// Draft forks the committed value into a mutable working copy. Requesting
// a second draft while one is open fails with ErrDraftBusy and leaves the
// first draft's pending edits untouched.
func (c *Cell[T]) Draft() (*Draft[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.draft != nil {
		return nil, fmt.Errorf("%w: %s", ErrDraftBusy, c.domain)
	}
	draft := &Draft[T]{cell: c, value: c.clone(c.value)}
	c.draft = draft
	return draft, nil
}

func (c *Cell[T]) clone(value T) T {
	if c.cfg.clone != nil {
		return c.cfg.clone(value)
	}
	return value
}

func (c *Cell[T]) release(d *Draft[T]) {
	c.mu.Lock()
	if c.draft == d {
		c.draft = nil
	}
	c.mu.Unlock()
}

// commit runs the staged commit for d. The caller holds the draft lock, so
// commits on one cell are serialized by draft exclusivity.
func (c *Cell[T]) commit(ctx context.Context, d *Draft[T]) error {
	candidate := c.clone(d.value)

	for _, validate := range c.cfg.validators {
		if err := validate(ctx, candidate); err != nil {
			return &CommitError{Domain: c.domain, Reason: ReasonInvalid, Err: err}
		}
	}

	previous := c.Latest()

	if c.cfg.persist != nil {
		if err := c.cfg.persist(ctx, candidate); err != nil {
			return fmt.Errorf("store: commit %s: persist: %w", c.domain, err)
		}
	}

	if c.cfg.push != nil {
		if err := c.cfg.push(ctx, candidate); err != nil {
			detail := c.revert(ctx, previous)
			d.closed = true
			c.release(d)
			return &CommitError{Domain: c.domain, Reason: ReasonRejected, Detail: detail, Err: err}
		}
	}

	c.mu.Lock()
	c.value = candidate
	if c.draft == d {
		c.draft = nil
	}
	c.mu.Unlock()
	d.closed = true
	return nil
}

// revert restores durable storage and the engine to the previous value
// after a rejected push. The re-push happens exactly once; a failure while
// reverting is reported back as detail, never retried.
func (c *Cell[T]) revert(ctx context.Context, previous T) string {
	if c.cfg.persist != nil {
		if err := c.cfg.persist(ctx, previous); err != nil {
			return fmt.Sprintf("revert persist failed: %v", err)
		}
	}
	if c.cfg.push != nil {
		if err := c.cfg.push(ctx, previous); err != nil {
			return fmt.Sprintf("revert push failed: %v", err)
		}
	}
	return ""
}

// Draft is a mutable working copy forked from a cell's committed value.
// Edits stay in memory until Commit; Discard throws them away without
// touching the committed value.
type Draft[T any] struct {
	cell *Cell[T]

	mu     sync.Mutex
	value  T
	closed bool
}

// Patch applies an in-memory edit to the pending value.
func (d *Draft[T]) Patch(fn func(*T) error) error {
	if fn == nil {
		return fmt.Errorf("store: patch function is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("%w: %s", ErrDraftClosed, d.cell.domain)
	}
	return fn(&d.value)
}

// Set replaces the pending value.
func (d *Draft[T]) Set(value T) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("%w: %s", ErrDraftClosed, d.cell.domain)
	}
	d.value = d.cell.clone(value)
	return nil
}

// Value returns a copy of the pending value.
func (d *Draft[T]) Value() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cell.clone(d.value)
}

// Commit validates the pending value, persists it, and pushes it to the
// engine. A validation failure leaves the draft open for correction. An
// engine rejection restores the previous value, re-pushes it exactly once,
// and closes the draft. On success the pending value becomes Latest and
// the draft closes.
func (d *Draft[T]) Commit(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("%w: %s", ErrDraftClosed, d.cell.domain)
	}
	return d.cell.commit(ctx, d)
}

// Discard closes the draft without committing. Discarding twice is a
// no-op.
func (d *Draft[T]) Discard() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	d.cell.release(d)
}
