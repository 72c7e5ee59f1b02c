package records

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteSinkRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "calls.db")

	sink, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sink.Close()

	started := time.Now().Add(-time.Minute).UTC().Truncate(time.Second)
	rec := CallRecord{
		CallSID:    "CA001",
		StreamID:   "MZ001",
		AgentID:    "sari",
		FromNumber: "+15550001111",
		StartedAt:  started,
		EndedAt:    started.Add(40 * time.Second),
		EndReason:  "caller_hangup",
		Transcript: []Utterance{
			{Role: "user", Text: "hello", At: started},
			{Role: "assistant", Text: "hi there", At: started.Add(2 * time.Second)},
		},
	}
	if err := sink.SaveCall(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := sink.LoadCall(ctx, "CA001")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.AgentID != "sari" || got.EndReason != "caller_hangup" {
		t.Fatalf("got %+v", got)
	}
	if len(got.Transcript) != 2 || got.Transcript[1].Text != "hi there" {
		t.Fatalf("transcript %+v", got.Transcript)
	}
}

func TestSQLiteSinkUpsert(t *testing.T) {
	ctx := context.Background()
	sink, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "calls.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sink.Close()

	rec := CallRecord{CallSID: "CA002", StartedAt: time.Now(), EndedAt: time.Now(), EndReason: "error"}
	if err := sink.SaveCall(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec.EndReason = "completed"
	if err := sink.SaveCall(ctx, rec); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, err := sink.LoadCall(ctx, "CA002")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.EndReason != "completed" {
		t.Fatalf("end reason = %q", got.EndReason)
	}
}
