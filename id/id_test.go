package id_test

import (
	"strings"
	"testing"
	"time"

	"github.com/mrexodia/sjq/id"
)

func TestNewJobID(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 123456000, time.UTC)
	got := id.NewJobID(now, "ingest")
	want := id.JobID("20260831T120000.123456Z:ingest")
	if got != want {
		t.Errorf("NewJobID = %q, want %q", got, want)
	}
	if got.Topic() != "ingest" {
		t.Errorf("Topic = %q, want %q", got.Topic(), "ingest")
	}
}

func TestNewJobID_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2026, 8, 31, 14, 0, 0, 0, loc)
	got := id.NewJobID(now, "transform")
	if !strings.HasPrefix(got.String(), "20260831T120000.000000Z:") {
		t.Errorf("expected UTC timestamp, got %q", got)
	}
}

func TestParseJobID(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"20260831T120000.123456Z:ingest", false},
		{"20260831T120000.123456Z:", true},
		{"20260831T120000.123456Z", true},
		{"not-a-timestamp:ingest", true},
		{"", true},
	}
	for _, tt := range tests {
		_, err := id.ParseJobID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseJobID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestJobID_Safe(t *testing.T) {
	j := id.JobID("20260831T120000.123456Z:ingest")
	want := "20260831T120000.123456Z-ingest"
	if got := j.Safe(); got != want {
		t.Errorf("Safe = %q, want %q", got, want)
	}
}

func TestNewWorkerID(t *testing.T) {
	w := id.NewWorkerID()
	if w.IsNil() {
		t.Fatal("expected non-nil worker id")
	}
	if !strings.HasPrefix(w.String(), "wkr_") {
		t.Errorf("expected wkr_ prefix, got %q", w.String())
	}
	if w.String() == id.NewWorkerID().String() {
		t.Error("two worker ids should differ")
	}
}

func TestWorkerID_Holder(t *testing.T) {
	w := id.NewWorkerID()
	h := w.Holder()
	if !strings.Contains(h, w.String()) || !strings.Contains(h, "pid=") {
		t.Errorf("holder %q missing worker id or pid", h)
	}
}

func TestWorkerID_Zero(t *testing.T) {
	var w id.WorkerID
	if !w.IsNil() {
		t.Error("zero value should be nil")
	}
	if w.String() != "" {
		t.Errorf("zero value String = %q, want empty", w.String())
	}
}
