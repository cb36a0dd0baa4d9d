package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type recordConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (c *recordConn) Publish(subj string, data []byte) error {
	c.subjects = append(c.subjects, subj)
	c.payloads = append(c.payloads, data)
	return c.err
}

func TestPublish_Envelope(t *testing.T) {
	rc := &recordConn{}
	p := New(rc, nil)
	p.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	p.Publish(SubjectIngestCompleted, "ingest_completed", map[string]any{"inserted": 3})

	if len(rc.subjects) != 1 || rc.subjects[0] != SubjectIngestCompleted {
		t.Fatalf("unexpected subjects: %v", rc.subjects)
	}
	var ev Event
	if err := json.Unmarshal(rc.payloads[0], &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.EventID == "" {
		t.Fatal("expected event id")
	}
	if ev.EventName != "ingest_completed" {
		t.Fatalf("expected ingest_completed, got %q", ev.EventName)
	}
	if !ev.OccurredAt.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected occurred_at %v", ev.OccurredAt)
	}
	if ev.Properties["inserted"] != float64(3) {
		t.Fatalf("expected inserted=3, got %v", ev.Properties["inserted"])
	}
}

func TestPublish_ErrorIsSwallowed(t *testing.T) {
	rc := &recordConn{err: errors.New("nats down")}
	New(rc, nil).Publish(SubjectIngestBatch, "ingest_batch", nil)
	if len(rc.subjects) != 1 {
		t.Fatalf("expected one attempt, got %d", len(rc.subjects))
	}
}

func TestPublish_NilSafe(t *testing.T) {
	var p *Publisher
	p.Publish(SubjectIngestBatch, "ingest_batch", nil)
	New(nil, nil).Publish(SubjectIngestBatch, "ingest_batch", nil)
}
