package db

import (
	"context"
	"database/sql"
)

// TxFn runs inside a write transaction owned by the Worker.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// writeQueueDepth bounds how many transactions may wait before callers
// block on enqueue.
const writeQueueDepth = 256

type writeOp struct {
	ctx    context.Context
	fn     TxFn
	result chan error
}

// Worker serializes every write transaction onto a single goroutine.  With
// SQLite's one-writer model this makes each TxFn an atomic unit with no
// lock contention, which is what the conditional approve/deny updates rely
// on.
type Worker struct {
	db   *sql.DB
	ops  chan writeOp
	done chan struct{}
}

func NewWorker(db *sql.DB) *Worker {
	w := &Worker{
		db:   db,
		ops:  make(chan writeOp, writeQueueDepth),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

// Close drains the queue and waits for the worker goroutine to exit.
func (w *Worker) Close() {
	close(w.ops)
	<-w.done
}

// Do submits fn and waits for its transaction to commit or roll back.  If
// the caller's context expires while the op is queued or running, Do
// returns early; the worker still finishes the transaction and the result
// lands in the buffered channel, where it is discarded.
func (w *Worker) Do(ctx context.Context, fn TxFn) error {
	op := writeOp{ctx: ctx, fn: fn, result: make(chan error, 1)}

	select {
	case w.ops <- op:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-op.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run() {
	defer close(w.done)

	for op := range w.ops {
		tx, err := w.db.BeginTx(op.ctx, nil)
		if err != nil {
			op.result <- err
			continue
		}

		if err := op.fn(op.ctx, tx); err != nil {
			_ = tx.Rollback()
			op.result <- err
			continue
		}

		op.result <- tx.Commit()
	}
}
