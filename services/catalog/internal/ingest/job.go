package ingest

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/example/openvalve/internal/platform/events"
	"github.com/example/openvalve/services/catalog/internal/store"
)

// Target is a store that can be loaded from scratch.
type Target interface {
	store.BatchInserter
	store.SchemaResetter
}

// Report summarises a finished (or failed) load.
type Report struct {
	Stats
	Skipped map[SkipReason]int
}

// Job runs one bulk load of a source document into Target.
type Job struct {
	Target    Target
	BatchSize int
	// Reset drops and recreates the games table before loading.
	Reset     bool
	Pipelined bool
	Log       *zap.Logger
	// Events is optional; a nil publisher sends nothing.
	Events *events.Publisher
	// Progress receives a human-readable counter line per batch. Optional.
	Progress io.Writer
}

// Run loads r. Batches committed before a failure stay committed and are
// reflected in the returned Report.
func (j *Job) Run(ctx context.Context, r io.Reader) (Report, error) {
	log := j.Log
	if log == nil {
		log = zap.NewNop()
	}
	rep := Report{Skipped: make(map[SkipReason]int)}

	if j.Reset {
		if err := j.Target.ResetSchema(ctx); err != nil {
			return rep, fmt.Errorf("reset schema: %w", err)
		}
		log.Info("schema reset")
	}

	dec := NewDecoder(r)
	dec.OnSkip = func(key string, reason SkipReason) {
		rep.Skipped[reason]++
		log.Debug("entry skipped", zap.String("key", key), zap.String("reason", string(reason)))
	}

	w := &Writer{
		Store:     j.Target,
		BatchSize: j.BatchSize,
		Log:       log,
		OnBatch: func(st Stats) {
			if j.Progress != nil {
				fmt.Fprintf(j.Progress, "\rProcessed %d games...", st.Written)
			}
			j.Events.Publish(events.SubjectIngestBatch, "ingest_batch", map[string]any{
				"batch":    st.Batches,
				"written":  st.Written,
				"inserted": st.Inserted,
			})
		},
	}

	var err error
	if j.Pipelined {
		rep.Stats, err = w.RunPipelined(ctx, dec)
	} else {
		rep.Stats, err = w.Run(ctx, dec)
	}
	if j.Progress != nil && rep.Batches > 0 {
		fmt.Fprintln(j.Progress)
	}
	if err != nil {
		log.Error("ingest failed",
			zap.Int("batches", rep.Batches),
			zap.Int64("written", rep.Written),
			zap.Error(err))
		return rep, err
	}

	log.Info("ingest completed",
		zap.Int("batches", rep.Batches),
		zap.Int64("written", rep.Written),
		zap.Int64("inserted", rep.Inserted),
		zap.Int("skipped", rep.skippedTotal()))
	j.Events.Publish(events.SubjectIngestCompleted, "ingest_completed", map[string]any{
		"batches":  rep.Batches,
		"written":  rep.Written,
		"inserted": rep.Inserted,
		"skipped":  rep.skippedTotal(),
	})
	return rep, nil
}

func (r Report) skippedTotal() int {
	n := 0
	for _, c := range r.Skipped {
		n += c
	}
	return n
}
