package channel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chanserv/internal/store"
)

const (
	defaultWriteRetries = 3
	defaultWriteBackoff = 50 * time.Millisecond
)

type opKind int

const (
	opSave opKind = iota
	opDelete
	opDefault
	opBarrier
)

type writeOp struct {
	kind     opKind
	rec      store.ChannelRecord
	name     string
	memberID string
	channel  string
	done     chan struct{}
}

// Writer applies snapshots to a ChannelStore from a single goroutine, in the
// order they were submitted. Submitting never blocks on storage, so it is safe
// to call with a channel lock held.
type Writer struct {
	store   store.ChannelStore
	log     *zerolog.Logger
	retries int
	backoff time.Duration

	mu     sync.Mutex
	queue  []writeOp
	notify chan struct{}

	failures atomic.Int64
}

// NewWriter builds a writer for st. Call Run to start applying writes.
func NewWriter(st store.ChannelStore, logger *zerolog.Logger) *Writer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Writer{
		store:   st,
		log:     logger,
		retries: defaultWriteRetries,
		backoff: defaultWriteBackoff,
		notify:  make(chan struct{}, 1),
	}
}

// SaveChannel queues a channel snapshot.
func (w *Writer) SaveChannel(rec store.ChannelRecord) {
	w.enqueue(writeOp{kind: opSave, rec: rec, name: rec.Name})
}

// DeleteChannel queues removal of a channel.
func (w *Writer) DeleteChannel(name string) {
	w.enqueue(writeOp{kind: opDelete, name: name})
}

// SaveDefault queues a default-channel update; an empty channel clears it.
func (w *Writer) SaveDefault(memberID, channel string) {
	w.enqueue(writeOp{kind: opDefault, memberID: memberID, channel: channel})
}

// Failures returns how many writes were dropped after exhausting retries.
func (w *Writer) Failures() int64 {
	return w.failures.Load()
}

// Flush waits until everything queued before the call has been applied.
func (w *Writer) Flush(ctx context.Context) error {
	done := make(chan struct{})
	w.enqueue(writeOp{kind: opBarrier, done: done})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) enqueue(op writeOp) {
	w.mu.Lock()
	w.queue = append(w.queue, op)
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func (w *Writer) take() []writeOp {
	w.mu.Lock()
	defer w.mu.Unlock()
	batch := w.queue
	w.queue = nil
	return batch
}

// Run applies queued writes until ctx is cancelled, then drains what is left.
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.apply(context.Background(), w.take())
			return nil
		case <-w.notify:
			w.apply(ctx, w.take())
		}
	}
}

func (w *Writer) apply(ctx context.Context, batch []writeOp) {
	for i, op := range batch {
		if op.kind == opBarrier {
			close(op.done)
			continue
		}
		// A later snapshot of the same channel, queued before the next flush
		// barrier, supersedes this one.
		if op.kind == opSave && supersededIn(batch[i+1:], op.name) {
			continue
		}
		w.applyWithRetry(ctx, op)
	}
}

func supersededIn(rest []writeOp, name string) bool {
	for _, next := range rest {
		switch next.kind {
		case opBarrier:
			return false
		case opSave, opDelete:
			if key(next.name) == key(name) {
				return true
			}
		}
	}
	return false
}

func (w *Writer) applyWithRetry(ctx context.Context, op writeOp) {
	var err error
	for attempt := 0; attempt < w.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(w.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				ctx = context.Background()
			}
		}
		if err = w.applyOne(ctx, op); err == nil {
			return
		}
	}

	w.failures.Add(1)
	w.log.Error().
		Err(err).
		Str("kind", KindPersistence.String()).
		Str("channel", op.name).
		Msg("dropping channel write after retries")
}

func (w *Writer) applyOne(ctx context.Context, op writeOp) error {
	switch op.kind {
	case opSave:
		if err := w.store.SaveChannel(ctx, op.rec); err != nil {
			return fmt.Errorf("save channel %s: %w", op.name, err)
		}
	case opDelete:
		if err := w.store.DeleteChannel(ctx, op.name); err != nil {
			return fmt.Errorf("delete channel %s: %w", op.name, err)
		}
	case opDefault:
		if err := w.store.SaveDefault(ctx, op.memberID, op.channel); err != nil {
			return fmt.Errorf("save default for %s: %w", op.memberID, err)
		}
	}
	return nil
}
