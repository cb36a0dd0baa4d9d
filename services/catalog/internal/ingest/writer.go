package ingest

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/openvalve/services/catalog/internal/store"
)

const DefaultBatchSize = 1000

// IngestionError reports a batch that could not be committed. Batches before
// it stay committed.
type IngestionError struct {
	Batch     int   // 1-based number of the failed batch
	Committed int64 // games in batches committed before the failure
	Err       error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("batch %d failed after %d committed games: %v", e.Batch, e.Committed, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// Source yields games until io.EOF.
type Source interface {
	Next() (store.Game, error)
}

// Stats describes progress so far.
type Stats struct {
	Batches  int
	Written  int64 // games handed to committed batches
	Inserted int64 // rows that were new; conflicts make this lower than Written
}

// Writer groups games into fixed-size batches and commits each one.
type Writer struct {
	Store     store.BatchInserter
	BatchSize int
	Log       *zap.Logger
	// OnBatch is called after every committed batch.
	OnBatch func(Stats)
}

func (w *Writer) batchSize() int {
	if w.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return w.BatchSize
}

func (w *Writer) logger() *zap.Logger {
	if w.Log == nil {
		return zap.NewNop()
	}
	return w.Log
}

// Run drains src sequentially: decode a batch, commit it, repeat. The final
// short batch is flushed at EOF. A decode failure returns the *DecodeError
// with the pending partial batch discarded; a commit failure returns an
// *IngestionError.
func (w *Writer) Run(ctx context.Context, src Source) (Stats, error) {
	var st Stats
	batch := make([]store.Game, 0, w.batchSize())
	for {
		g, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return st, err
		}
		batch = append(batch, g)
		if len(batch) >= w.batchSize() {
			if err := w.commit(ctx, &st, batch); err != nil {
				return st, err
			}
			batch = make([]store.Game, 0, w.batchSize())
		}
	}
	if len(batch) > 0 {
		if err := w.commit(ctx, &st, batch); err != nil {
			return st, err
		}
	}
	return st, nil
}

// RunPipelined decodes the next batch while the previous one commits.
// Batches still commit one at a time and in source order. Every full batch
// decoded before a source error is committed before that error is returned,
// so a failed run keeps the same progress as Run. Only a commit failure stops
// decoding early.
func (w *Writer) RunPipelined(ctx context.Context, src Source) (Stats, error) {
	var st Stats
	batches := make(chan []store.Game, 1)

	// commitFailed is closed by the committer when it gives up.
	commitFailed := make(chan struct{})

	var g errgroup.Group
	var decodeErr error
	g.Go(func() error {
		defer close(batches)
		send := func(batch []store.Game) bool {
			select {
			case batches <- batch:
				return true
			case <-commitFailed:
				return false
			case <-ctx.Done():
				decodeErr = ctx.Err()
				return false
			}
		}
		batch := make([]store.Game, 0, w.batchSize())
		for {
			game, err := src.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				decodeErr = err
				return nil
			}
			batch = append(batch, game)
			if len(batch) >= w.batchSize() {
				if !send(batch) {
					return nil
				}
				batch = make([]store.Game, 0, w.batchSize())
			}
		}
		if len(batch) > 0 {
			send(batch)
		}
		return nil
	})
	g.Go(func() error {
		for batch := range batches {
			if err := w.commit(ctx, &st, batch); err != nil {
				close(commitFailed)
				for range batches {
				}
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return st, err
	}
	return st, decodeErr
}

func (w *Writer) commit(ctx context.Context, st *Stats, batch []store.Game) error {
	inserted, err := w.Store.InsertBatch(ctx, batch)
	if err != nil {
		w.logger().Error("batch commit failed",
			zap.Int("batch", st.Batches+1),
			zap.Int64("committed", st.Written),
			zap.Error(err))
		return &IngestionError{Batch: st.Batches + 1, Committed: st.Written, Err: err}
	}
	st.Batches++
	st.Written += int64(len(batch))
	st.Inserted += inserted
	w.logger().Debug("batch committed",
		zap.Int("batch", st.Batches),
		zap.Int("size", len(batch)),
		zap.Int64("inserted", inserted))
	if w.OnBatch != nil {
		w.OnBatch(*st)
	}
	return nil
}
