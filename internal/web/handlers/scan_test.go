package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/gallery"
	"go.uber.org/zap"
)

// fakeIndexer reports one progress step and returns summary or err.
// With block set it waits for cancellation instead.
type fakeIndexer struct {
	summary gallery.Summary
	err     error
	block   bool

	calls chan scanCall
}

type scanCall struct {
	root      string
	recursive bool
	force     bool
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{calls: make(chan scanCall, 1)}
}

func (f *fakeIndexer) IndexDirectory(ctx context.Context, root string, recursive, force bool, onProgress func(gallery.Progress)) (gallery.Summary, error) {
	f.calls <- scanCall{root: root, recursive: recursive, force: force}
	onProgress(gallery.Progress{Path: filepath.Join(root, "a.jpg"), Total: 1, Done: 1, Processed: 1})
	if f.block {
		<-ctx.Done()
		return gallery.Summary{}, ctx.Err()
	}
	return f.summary, f.err
}

func startScan(t *testing.T, h *ScanHandler, body string) string {
	t.Helper()
	recorder := httptest.NewRecorder()
	h.Start(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/scan", strings.NewReader(body)))
	assertStatusCode(t, recorder, http.StatusAccepted)
	var resp map[string]string
	parseJSONResponse(t, recorder, &resp)
	if resp["status"] != string(JobStatusPending) {
		t.Errorf("status = %q, want %q", resp["status"], JobStatusPending)
	}
	return resp["job_id"]
}

func waitForStatus(t *testing.T, jm *JobManager, id string, want JobStatus) *ScanJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job := jm.GetJob(id)
		if job != nil && job.GetStatus() == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", id, want)
	return nil
}

func TestScanHandler_Start_Validation(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"invalid json", "{", errInvalidRequestBody},
		{"missing path", `{"force":true}`, "path is required"},
		{"missing directory", `{"path":"` + filepath.Join(dir, "nope") + `"}`, "path is not a directory"},
		{"file instead of directory", `{"path":"` + file + `"}`, "path is not a directory"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			jm := NewJobManager()
			h := NewScanHandler(newFakeIndexer(), jm, config.ScanConfig{Recursive: true}, zap.NewNop())
			recorder := httptest.NewRecorder()

			h.Start(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/scan", strings.NewReader(tc.body)))

			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertJSONError(t, recorder, tc.wantErr)
			if jobs := jm.ListJobs(); len(jobs) != 0 {
				t.Errorf("created %d jobs, want none", len(jobs))
			}
		})
	}
}

func TestScanHandler_Completes(t *testing.T) {
	dir := t.TempDir()
	indexer := newFakeIndexer()
	indexer.summary = gallery.Summary{Total: 1, Processed: 1, Faces: 2}
	jm := NewJobManager()
	h := NewScanHandler(indexer, jm, config.ScanConfig{Recursive: true}, zap.NewNop())

	id := startScan(t, h, `{"path":"`+dir+`","recursive":false,"force":true}`)

	call := <-indexer.calls
	if call.root != filepath.Clean(dir) || call.recursive || !call.force {
		t.Errorf("IndexDirectory called with %+v", call)
	}

	job := waitForStatus(t, jm, id, JobStatusCompleted)
	snap := job.Snapshot()
	if snap.Result == nil || snap.Result.Faces != 2 {
		t.Errorf("result = %+v, want summary with 2 faces", snap.Result)
	}
	if snap.Progress.Processed != 1 {
		t.Errorf("progress = %+v, want one processed", snap.Progress)
	}
	if snap.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	recorder := httptest.NewRecorder()
	h.Status(recorder, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/scan/"+id, nil), map[string]string{"jobId": id}))
	assertStatusCode(t, recorder, http.StatusOK)
	var got ScanJobSnapshot
	parseJSONResponse(t, recorder, &got)
	if got.ID != id || got.Status != JobStatusCompleted || !got.Options.Force {
		t.Errorf("Status() = %+v", got)
	}
}

func TestScanHandler_DefaultRecursive(t *testing.T) {
	indexer := newFakeIndexer()
	h := NewScanHandler(indexer, NewJobManager(), config.ScanConfig{Recursive: true}, zap.NewNop())

	startScan(t, h, `{"path":"`+t.TempDir()+`"}`)

	if call := <-indexer.calls; !call.recursive || call.force {
		t.Errorf("IndexDirectory called with %+v, want recursive without force", call)
	}
}

func TestScanHandler_Fails(t *testing.T) {
	indexer := newFakeIndexer()
	indexer.err = errors.New("disk gone")
	jm := NewJobManager()
	h := NewScanHandler(indexer, jm, config.ScanConfig{}, zap.NewNop())

	id := startScan(t, h, `{"path":"`+t.TempDir()+`"}`)
	<-indexer.calls

	job := waitForStatus(t, jm, id, JobStatusFailed)
	if snap := job.Snapshot(); snap.Error != "disk gone" {
		t.Errorf("error = %q, want %q", snap.Error, "disk gone")
	}
}

func TestScanHandler_Cancel(t *testing.T) {
	indexer := newFakeIndexer()
	indexer.block = true
	jm := NewJobManager()
	h := NewScanHandler(indexer, jm, config.ScanConfig{}, zap.NewNop())

	id := startScan(t, h, `{"path":"`+t.TempDir()+`"}`)
	<-indexer.calls

	cancel := func() bool {
		recorder := httptest.NewRecorder()
		h.Cancel(recorder, requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/api/v1/scan/"+id, nil), map[string]string{"jobId": id}))
		assertStatusCode(t, recorder, http.StatusOK)
		var resp map[string]bool
		parseJSONResponse(t, recorder, &resp)
		return resp["cancelled"]
	}

	if !cancel() {
		t.Fatal("first Cancel() = false, want true")
	}
	job := waitForStatus(t, jm, id, JobStatusCancelled)
	deadline := time.Now().Add(5 * time.Second)
	for job.Snapshot().CompletedAt == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if job.GetStatus() != JobStatusCancelled {
		t.Errorf("status after finish = %s, want cancelled", job.GetStatus())
	}
	if cancel() {
		t.Error("second Cancel() = true, want false for a finished job")
	}

	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := jm.Wait(ctx); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestScanHandler_UnknownJob(t *testing.T) {
	h := NewScanHandler(newFakeIndexer(), NewJobManager(), config.ScanConfig{}, zap.NewNop())
	params := map[string]string{"jobId": "missing"}

	for name, fn := range map[string]http.HandlerFunc{"status": h.Status, "cancel": h.Cancel, "events": h.Events} {
		t.Run(name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			fn(recorder, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/scan/missing", nil), params))
			assertStatusCode(t, recorder, http.StatusNotFound)
			assertJSONError(t, recorder, "job not found")
		})
	}
}

func TestScanHandler_EventsForFinishedJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob("job-1", "/photos", ScanJobOptions{}, func() {})
	job.finish(gallery.Summary{Total: 3, Processed: 3}, nil)
	h := NewScanHandler(newFakeIndexer(), jm, config.ScanConfig{}, zap.NewNop())

	recorder := httptest.NewRecorder()
	h.Events(recorder, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/scan/job-1/events", nil), map[string]string{"jobId": "job-1"}))

	if ct := recorder.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	body := recorder.Body.String()
	if !strings.HasPrefix(body, "event: status\ndata: ") {
		t.Fatalf("body = %q, want a status event", body)
	}
	if !strings.Contains(body, `"status":"completed"`) {
		t.Errorf("body = %q, want completed status", body)
	}
}
