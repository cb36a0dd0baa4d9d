package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/example/openvalve/internal/platform/events"
	"github.com/example/openvalve/services/catalog/internal/store"
)

type recordConn struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (c *recordConn) Publish(subj string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subjects = append(c.subjects, subj)
	c.payloads = append(c.payloads, data)
	return nil
}

func TestJob_LoadsAndReports(t *testing.T) {
	mem := store.NewMemoryCatalogStore()
	rc := &recordConn{}
	var progress bytes.Buffer

	job := &Job{
		Target:    mem,
		BatchSize: 2,
		Events:    events.New(rc, nil),
		Progress:  &progress,
	}
	rep, err := job.Run(context.Background(), strings.NewReader(sourceJSON(5)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Batches != 3 || rep.Written != 5 || rep.Inserted != 5 {
		t.Fatalf("unexpected stats %+v", rep.Stats)
	}
	if rep.Skipped[SkipMissingName] != 1 {
		t.Fatalf("expected one nameless entry skipped, got %v", rep.Skipped)
	}
	if mem.Len() != 5 {
		t.Fatalf("expected 5 rows, got %d", mem.Len())
	}
	if !strings.Contains(progress.String(), "\rProcessed 5 games...") {
		t.Fatalf("unexpected progress output %q", progress.String())
	}

	if len(rc.subjects) != 4 {
		t.Fatalf("expected 3 batch events and 1 completion, got %v", rc.subjects)
	}
	if rc.subjects[3] != events.SubjectIngestCompleted {
		t.Fatalf("expected completion last, got %q", rc.subjects[3])
	}
	var ev events.Event
	if err := json.Unmarshal(rc.payloads[3], &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Properties["inserted"] != float64(5) || ev.Properties["skipped"] != float64(1) {
		t.Fatalf("unexpected completion properties %v", ev.Properties)
	}
}

func TestJob_ResetClearsPreviousLoad(t *testing.T) {
	mem := store.NewMemoryCatalogStore()
	ctx := context.Background()
	_, _ = mem.InsertBatch(ctx, []store.Game{{AppID: 777, Name: "stale"}})

	job := &Job{Target: mem, Reset: true}
	if _, err := job.Run(ctx, strings.NewReader(sourceJSON(2))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := mem.GetByID(ctx, 777); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected stale row gone, got %v", err)
	}
	if mem.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", mem.Len())
	}
}

func TestJob_FailureSkipsCompletionEvent(t *testing.T) {
	fs := &flakyStore{MemoryCatalogStore: store.NewMemoryCatalogStore(), failOn: 2}
	rc := &recordConn{}

	job := &Job{Target: fs, BatchSize: 2, Events: events.New(rc, nil), Pipelined: true}
	rep, err := job.Run(context.Background(), strings.NewReader(sourceJSON(5)))

	var ie *IngestionError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IngestionError, got %v", err)
	}
	if rep.Written != 2 || fs.Len() != 2 {
		t.Fatalf("expected first batch kept, got written=%d rows=%d", rep.Written, fs.Len())
	}
	for _, s := range rc.subjects {
		if s == events.SubjectIngestCompleted {
			t.Fatal("completion event must not be sent on failure")
		}
	}
}

func TestJob_DecodeError(t *testing.T) {
	job := &Job{Target: store.NewMemoryCatalogStore()}
	_, err := job.Run(context.Background(), strings.NewReader(`{"1": {"name": "A"}, `))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}
