package runner_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mrexodia/sjq"
	"github.com/mrexodia/sjq/id"
	"github.com/mrexodia/sjq/job"
	"github.com/mrexodia/sjq/queue"
	"github.com/mrexodia/sjq/runner"
	"github.com/mrexodia/sjq/store"
	redisstore "github.com/mrexodia/sjq/store/redis"
	"github.com/mrexodia/sjq/topics"
)

type fixture struct {
	conn     *redisstore.Store
	jobs     *job.Store
	queues   *queue.Manager
	runner   *runner.Runner
	dataDir  string
	topicDir string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	conn := redisstore.New(client)
	dataDir := t.TempDir()
	topicDir := t.TempDir()

	jobs := job.NewStore(conn)
	queues := queue.NewManager(conn)
	reg := topics.NewRegistry(topicDir)
	return &fixture{
		conn:     conn,
		jobs:     jobs,
		queues:   queues,
		runner:   runner.New(jobs, queues, reg, dataDir),
		dataDir:  dataDir,
		topicDir: topicDir,
	}
}

// writeHandler installs an executable shell handler for topic. Handlers
// receive --input $2 --output $4 [--attachment $6].
func (f *fixture) writeHandler(t *testing.T, topic, script string) {
	t.Helper()
	path := filepath.Join(f.topicDir, topic+".sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) createAndClaim(t *testing.T, topic string, payload string, attachmentPath string) id.JobID {
	t.Helper()
	ctx := context.Background()
	if _, err := f.jobs.Create(ctx, topic, json.RawMessage(payload), attachmentPath, ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	jobID, ok, err := f.queues.ClaimNext(ctx, topic, time.Second)
	if err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}
	return jobID
}

func (f *fixture) queueLen(t *testing.T, state store.State, topic string) int64 {
	t.Helper()
	n, err := f.conn.LLen(context.Background(), store.QueueKey(state, topic))
	if err != nil {
		t.Fatalf("llen: %v", err)
	}
	return n
}

func TestProcessSuccessWithChaining(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.writeHandler(t, "ingest", `echo '{"data": {"n": 2}, "next_topics": "transform"}' > "$4"`)

	jobID := f.createAndClaim(t, "ingest", `{"n": 1}`, "")

	outcome, err := f.runner.Process(ctx, "ingest", jobID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome != runner.OutcomeSuccess {
		t.Fatalf("outcome = %q", outcome)
	}

	// The ingest job is acked and its record discarded.
	if n := f.queueLen(t, store.StateProcessing, "ingest"); n != 0 {
		t.Errorf("processing length = %d", n)
	}
	if _, err := f.jobs.Load(ctx, jobID); !errors.Is(err, sjq.ErrJobNotFound) {
		t.Errorf("record after ack = %v, want ErrJobNotFound", err)
	}

	// Exactly one chained job exists on transform with lineage intact.
	nextID, ok, err := f.queues.Peek(ctx, "transform", 0)
	if err != nil || !ok {
		t.Fatalf("transform peek: ok=%v err=%v", ok, err)
	}
	next, err := f.jobs.Load(ctx, nextID)
	if err != nil {
		t.Fatalf("load next: %v", err)
	}
	if next.ParentJobID != jobID.String() {
		t.Errorf("parent = %q, want %q", next.ParentJobID, jobID)
	}
	if string(next.Data) != `{"n": 2}` {
		t.Errorf("next data = %s", next.Data)
	}
	if n := f.queueLen(t, store.StateIncoming, "transform"); n != 1 {
		t.Errorf("transform incoming length = %d, want 1", n)
	}
}

func TestProcessMultipleNextTopics(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.writeHandler(t, "ingest", `echo '{"data": 7, "next_topics": ["x", "y"]}' > "$4"`)

	jobID := f.createAndClaim(t, "ingest", `{}`, "")

	outcome, err := f.runner.Process(ctx, "ingest", jobID)
	if err != nil || outcome != runner.OutcomeSuccess {
		t.Fatalf("process: outcome=%q err=%v", outcome, err)
	}

	for _, topic := range []string{"x", "y"} {
		nextID, ok, err := f.queues.Peek(ctx, topic, 0)
		if err != nil || !ok {
			t.Fatalf("%s peek: ok=%v err=%v", topic, ok, err)
		}
		next, err := f.jobs.Load(ctx, nextID)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if next.ParentJobID != jobID.String() {
			t.Errorf("%s parent = %q", topic, next.ParentJobID)
		}
		if string(next.Data) != "7" {
			t.Errorf("%s data = %s", topic, next.Data)
		}
	}
}

func TestProcessHandlerFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.writeHandler(t, "ingest", `echo "boom" >&2; exit 2`)

	jobID := f.createAndClaim(t, "ingest", `{"n": 1}`, "")

	outcome, err := f.runner.Process(ctx, "ingest", jobID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome != runner.OutcomeFailed {
		t.Fatalf("outcome = %q, want failed", outcome)
	}

	// Routed to the failed queue, record retained for retry.
	if n := f.queueLen(t, store.StateFailed, "ingest"); n != 1 {
		t.Errorf("failed length = %d, want 1", n)
	}
	if _, err := f.jobs.Load(ctx, jobID); err != nil {
		t.Errorf("record should survive a handler failure: %v", err)
	}

	// Metadata captured the attempt.
	meta := readMetadata(t, f.dataDir, jobID)
	if meta.ExitCode != 2 {
		t.Errorf("exit_code = %d, want 2", meta.ExitCode)
	}
	if !strings.Contains(meta.Stderr, "boom") {
		t.Errorf("stderr = %q, want boom captured", meta.Stderr)
	}
	if len(meta.Command) == 0 || !strings.HasSuffix(meta.Command[0], "ingest.sh") {
		t.Errorf("command = %v", meta.Command)
	}
}

func TestProcessMalformedNextTopics(t *testing.T) {
	f := setup(t)
	f.writeHandler(t, "ingest", `echo '{"data": 1, "next_topics": 42}' > "$4"`)

	jobID := f.createAndClaim(t, "ingest", `{}`, "")

	outcome, err := f.runner.Process(context.Background(), "ingest", jobID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome != runner.OutcomeFailed {
		t.Fatalf("outcome = %q, want failed", outcome)
	}
	if n := f.queueLen(t, store.StateFailed, "ingest"); n != 1 {
		t.Errorf("failed length = %d, want 1", n)
	}
}

func TestProcessNextTopicsWithoutData(t *testing.T) {
	f := setup(t)
	f.writeHandler(t, "ingest", `echo '{"next_topics": "transform"}' > "$4"`)

	jobID := f.createAndClaim(t, "ingest", `{}`, "")

	outcome, err := f.runner.Process(context.Background(), "ingest", jobID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome != runner.OutcomeFailed {
		t.Fatalf("outcome = %q, want failed", outcome)
	}
	if n := f.queueLen(t, store.StateFailed, "ingest"); n != 1 {
		t.Errorf("failed length = %d, want 1", n)
	}
	// Nothing was chained off the incomplete output.
	if n := f.queueLen(t, store.StateIncoming, "transform"); n != 0 {
		t.Errorf("transform incoming length = %d, want 0", n)
	}
	if _, err := f.jobs.Load(context.Background(), jobID); err != nil {
		t.Errorf("record should survive for retry: %v", err)
	}
}

// An explicit null data value satisfies the contract; only an absent field
// does not.
func TestProcessNullDataChains(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.writeHandler(t, "ingest", `echo '{"data": null, "next_topics": "transform"}' > "$4"`)

	jobID := f.createAndClaim(t, "ingest", `{}`, "")

	outcome, err := f.runner.Process(ctx, "ingest", jobID)
	if err != nil || outcome != runner.OutcomeSuccess {
		t.Fatalf("process: outcome=%q err=%v", outcome, err)
	}
	nextID, ok, err := f.queues.Peek(ctx, "transform", 0)
	if err != nil || !ok {
		t.Fatalf("transform peek: ok=%v err=%v", ok, err)
	}
	if nextID.Topic() != "transform" {
		t.Errorf("next id = %q", nextID)
	}
}

func TestProcessMissingHandler(t *testing.T) {
	f := setup(t)

	jobID := f.createAndClaim(t, "ghost", `{}`, "")

	outcome, err := f.runner.Process(context.Background(), "ghost", jobID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome != runner.OutcomeFatal {
		t.Fatalf("outcome = %q, want fatal", outcome)
	}
	if n := f.queueLen(t, store.StateFatal, "ghost"); n != 1 {
		t.Errorf("fatal length = %d, want 1", n)
	}
	// Record retained for postmortem.
	if _, err := f.jobs.Load(context.Background(), jobID); err != nil {
		t.Errorf("record should survive a fatal failure: %v", err)
	}
}

func TestProcessMissingRecord(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.writeHandler(t, "ingest", `echo '{"data": 1}' > "$4"`)

	// An id in the queue with no record behind it.
	ghost := "20260831T120000.000000Z:ingest"
	if err := f.conn.RPush(ctx, store.QueueKey(store.StateIncoming, "ingest"), ghost); err != nil {
		t.Fatal(err)
	}
	jobID, ok, err := f.queues.ClaimNext(ctx, "ingest", time.Second)
	if err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}

	outcome, err := f.runner.Process(ctx, "ingest", jobID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome != runner.OutcomeFatal {
		t.Fatalf("outcome = %q, want fatal", outcome)
	}
}

func TestProcessMissingAttachmentBlob(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.writeHandler(t, "ingest", `echo '{"data": 1}' > "$4"`)

	// A record claiming an attachment whose blob is absent.
	jobID := id.JobID("20260831T120000.000000Z:ingest")
	record := &job.Job{ID: jobID, Data: json.RawMessage(`{}`), HasAttachment: true}
	data, err := record.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if err := f.conn.Set(ctx, store.JobKey(jobID.String()), data); err != nil {
		t.Fatal(err)
	}
	if err := f.conn.RPush(ctx, store.QueueKey(store.StateIncoming, "ingest"), jobID.String()); err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.queues.ClaimNext(ctx, "ingest", time.Second); err != nil {
		t.Fatal(err)
	}

	outcome, err := f.runner.Process(ctx, "ingest", jobID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome != runner.OutcomeFatal {
		t.Fatalf("outcome = %q, want fatal", outcome)
	}
	if n := f.queueLen(t, store.StateFatal, "ingest"); n != 1 {
		t.Errorf("fatal length = %d, want 1", n)
	}
	if _, err := f.jobs.Load(ctx, jobID); err != nil {
		t.Errorf("record should not be deleted: %v", err)
	}
}

func TestProcessPassesAttachment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.writeHandler(t, "ingest",
		`if [ "$5" = "--attachment" ] && [ -f "$6" ]; then echo '{"data": "ok"}' > "$4"; else exit 1; fi`)

	blobPath := filepath.Join(t.TempDir(), "blob.bin")
	if err := os.WriteFile(blobPath, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	jobID := f.createAndClaim(t, "ingest", `{}`, blobPath)

	outcome, err := f.runner.Process(ctx, "ingest", jobID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome != runner.OutcomeSuccess {
		t.Fatalf("outcome = %q, want success", outcome)
	}

	// Attachment blob is discarded on ack.
	if _, err := f.jobs.LoadAttachment(ctx, jobID); !errors.Is(err, sjq.ErrAttachmentNotFound) {
		t.Errorf("attachment after ack = %v, want ErrAttachmentNotFound", err)
	}
}

func TestProcessRetryRoundTrip(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.writeHandler(t, "ingest", `exit 2`)

	jobID := f.createAndClaim(t, "ingest", `{"n": 1}`, "")
	if _, err := f.runner.Process(ctx, "ingest", jobID); err != nil {
		t.Fatal(err)
	}

	moved, err := f.queues.Retry(ctx, "ingest")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(moved) != 1 || moved[0] != jobID {
		t.Fatalf("retried %v, want [%s]", moved, jobID)
	}

	// The job is claimable again and still loadable.
	got, ok, err := f.queues.ClaimNext(ctx, "ingest", time.Second)
	if err != nil || !ok || got != jobID {
		t.Fatalf("reclaim: got=%q ok=%v err=%v", got, ok, err)
	}
	if _, err := f.jobs.Load(ctx, jobID); err != nil {
		t.Errorf("load after retry: %v", err)
	}
}

func TestDebugDoesNotTouchQueues(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.writeHandler(t, "ingest", `echo '{"data": 5, "next_topics": "transform"}' > "$4"`)

	if _, err := f.jobs.Create(ctx, "ingest", json.RawMessage(`{"n": 1}`), "", ""); err != nil {
		t.Fatal(err)
	}

	meta, err := f.runner.Debug(ctx, "ingest", 0)
	if err != nil {
		t.Fatalf("debug: %v", err)
	}
	if meta == nil || meta.ExitCode != 0 {
		t.Fatalf("metadata = %+v", meta)
	}

	// The job stays in incoming and no chained job was created.
	if n := f.queueLen(t, store.StateIncoming, "ingest"); n != 1 {
		t.Errorf("incoming length = %d, want 1", n)
	}
	if n := f.queueLen(t, store.StateProcessing, "ingest"); n != 0 {
		t.Errorf("processing length = %d, want 0", n)
	}
	if n := f.queueLen(t, store.StateIncoming, "transform"); n != 0 {
		t.Errorf("transform incoming length = %d, want 0 (no chaining in debug)", n)
	}
}

func TestDebugHandlerFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.writeHandler(t, "ingest", `exit 3`)

	if _, err := f.jobs.Create(ctx, "ingest", json.RawMessage(`{}`), "", ""); err != nil {
		t.Fatal(err)
	}

	meta, err := f.runner.Debug(ctx, "ingest", 0)
	if !errors.Is(err, sjq.ErrHandlerFailed) {
		t.Fatalf("err = %v, want ErrHandlerFailed", err)
	}
	if meta == nil || meta.ExitCode != 3 {
		t.Fatalf("metadata = %+v, want exit code 3", meta)
	}
	// Still no queue mutation on failure.
	if n := f.queueLen(t, store.StateFailed, "ingest"); n != 0 {
		t.Errorf("failed length = %d, want 0", n)
	}
}

func TestDebugEmptyPosition(t *testing.T) {
	f := setup(t)

	_, err := f.runner.Debug(context.Background(), "ingest", 4)
	if !errors.Is(err, sjq.ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func readMetadata(t *testing.T, dataDir string, jobID id.JobID) *job.Metadata {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dataDir, jobID.Safe()+"-metadata.json"))
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	var meta job.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	return &meta
}
