package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// WriteFunc is a callback that performs database writes inside a transaction.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

// DoneFunc receives the outcome of the batch a WriteFunc was part of: nil once
// it committed, otherwise the error that rolled the batch back or dropped it.
type DoneFunc func(err error)

type pendingWrite struct {
	write WriteFunc
	done  DoneFunc
}

// BatchWriter buffers write operations and flushes them in batches inside a transaction.
// A failing WriteFunc rolls back its whole batch; earlier batches stay committed.
type BatchWriter struct {
	mu          sync.Mutex
	buf         []pendingWrite
	cap         int
	flushTicker *time.Ticker
	closed      bool
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc

	commitCh chan []pendingWrite
	db       *sql.DB
	OnError  func(error)
	// Logger receives a debug record per committed batch. nil disables it.
	Logger *slog.Logger

	// lastErr stores the first asynchronous error seen by the writer. Protected by errMu.
	errMu     sync.Mutex
	lastErr   error
	committed int
}

// NewBatchWriter creates a new BatchWriter.
// ctx: values are passed to every WriteFunc; its cancellation does not abort queued batches.
// db: the database connection to use for transactions.
// bufferSize: flush when buffer reaches this size.
// flushInterval: flush after this duration (0 to disable).
func NewBatchWriter(ctx context.Context, db *sql.DB, bufferSize int, flushInterval time.Duration) *BatchWriter {
	if bufferSize <= 0 {
		bufferSize = 10
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	bw := &BatchWriter{
		buf:      make([]pendingWrite, 0, bufferSize),
		cap:      bufferSize,
		ctx:      ctx,
		cancel:   cancel,
		commitCh: make(chan []pendingWrite, 2),
		db:       db,
	}

	bw.wg.Add(1)
	go bw.committer()

	if flushInterval > 0 {
		bw.flushTicker = time.NewTicker(flushInterval)
		bw.wg.Add(1)
		go bw.loop()
	}
	return bw
}

// Submit enqueues a write function.
func (bw *BatchWriter) Submit(w WriteFunc) error {
	return bw.SubmitDone(w, nil)
}

// SubmitDone enqueues w and calls done with the outcome of its batch. done
// runs on the committer goroutine and may be nil.
func (bw *BatchWriter) SubmitDone(w WriteFunc, done DoneFunc) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.buf = append(bw.buf, pendingWrite{write: w, done: done})
	if len(bw.buf) >= bw.cap {
		bw.flushLocked()
	}
	return nil
}

// flushLocked assumes bw.mu is held. A full commit queue blocks the caller.
func (bw *BatchWriter) flushLocked() {
	if len(bw.buf) == 0 {
		return
	}
	batch := bw.buf
	bw.buf = make([]pendingWrite, 0, bw.cap)

	if bw.ctx.Err() != nil {
		bw.drop(batch)
		return
	}
	select {
	case bw.commitCh <- batch:
	case <-bw.ctx.Done():
		bw.drop(batch)
	}
}

func (bw *BatchWriter) drop(batch []pendingWrite) {
	err := fmt.Errorf("batch writer: dropping batch of %d items due to context cancellation", len(batch))
	bw.report(err)
	finish(batch, err)
}

func finish(batch []pendingWrite, err error) {
	for _, p := range batch {
		if p.done != nil {
			p.done(err)
		}
	}
}

func (bw *BatchWriter) report(err error) {
	bw.errMu.Lock()
	if bw.lastErr == nil {
		bw.lastErr = err
	}
	bw.errMu.Unlock()
	if bw.OnError != nil {
		bw.OnError(err)
	}
}

func (bw *BatchWriter) committer() {
	defer bw.wg.Done()
	for batch := range bw.commitCh {
		if err := bw.executeBatch(batch); err != nil {
			bw.report(err)
			finish(batch, err)
			continue
		}
		bw.errMu.Lock()
		bw.committed += len(batch)
		bw.errMu.Unlock()
		finish(batch, nil)
		if bw.Logger != nil {
			bw.Logger.Debug("batch committed", "items", len(batch))
		}
	}
}

func (bw *BatchWriter) executeBatch(batch []pendingWrite) error {
	// Without a DB (tests) callbacks run with a nil tx.
	if bw.db == nil {
		for _, p := range batch {
			if err := p.write(bw.ctx, nil); err != nil {
				return err
			}
		}
		return nil
	}

	// Flushes outlive Close's cancel so the last batch still commits.
	ctx := context.WithoutCancel(bw.ctx)

	tx, err := bw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	for _, p := range batch {
		if err := p.write(ctx, tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch (%d items): %w", len(batch), err)
	}
	return nil
}

func (bw *BatchWriter) loop() {
	defer bw.wg.Done()
	for {
		select {
		case <-bw.ctx.Done():
			return
		case <-bw.flushTicker.C:
			bw.mu.Lock()
			if len(bw.buf) > 0 {
				bw.flushLocked()
			}
			bw.mu.Unlock()
		}
	}
}

// Committed returns how many WriteFuncs have been committed so far.
func (bw *BatchWriter) Committed() int {
	bw.errMu.Lock()
	defer bw.errMu.Unlock()
	return bw.committed
}

// Close stops accepting submissions and waits for pending writes to complete.
// It returns the first error seen while writing.
func (bw *BatchWriter) Close() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return ErrBatchWriterClosed
	}
	bw.closed = true
	if bw.flushTicker != nil {
		bw.flushTicker.Stop()
	}
	if len(bw.buf) > 0 {
		bw.flushLocked()
	}
	bw.mu.Unlock()

	bw.cancel()
	close(bw.commitCh)
	bw.wg.Wait()

	bw.errMu.Lock()
	defer bw.errMu.Unlock()
	return bw.lastErr
}

var ErrBatchWriterClosed = &BatchWriterError{"batch writer closed"}

type BatchWriterError struct{ msg string }

func (e *BatchWriterError) Error() string { return e.msg }
