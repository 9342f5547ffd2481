package indexer

import (
	"errors"
	"testing"
)

func TestJob_Lifecycle(t *testing.T) {
	job := newJob("ws", nil)

	status := job.Status()
	if status.State != JobQueued {
		t.Fatalf("New job state = %s, want queued", status.State)
	}
	if status.ID == "" {
		t.Error("Job id is empty")
	}

	if err := job.run(); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if job.Status().State != JobRunning {
		t.Fatalf("State after run = %s, want running", job.Status().State)
	}

	if err := job.succeed(7); err != nil {
		t.Fatalf("succeed() error = %v", err)
	}
	status = job.Status()
	if status.State != JobSucceeded {
		t.Fatalf("State after succeed = %s, want succeeded", status.State)
	}
	if status.SnapshotVersion != 7 {
		t.Errorf("SnapshotVersion = %d, want 7", status.SnapshotVersion)
	}
}

func TestJob_TerminalStatesStick(t *testing.T) {
	job := newJob("ws", nil)
	if err := job.run(); err != nil {
		t.Fatal(err)
	}
	if err := job.succeed(1); err != nil {
		t.Fatal(err)
	}

	var internal *InternalError
	if err := job.run(); !errors.As(err, &internal) {
		t.Errorf("run() on succeeded job error = %v, want *InternalError", err)
	}
	if err := job.fail(FailBuild, errors.New("late failure")); !errors.As(err, &internal) {
		t.Errorf("fail() on succeeded job error = %v, want *InternalError", err)
	}
	if job.Status().State != JobSucceeded {
		t.Errorf("State regressed to %s", job.Status().State)
	}
}

func TestJob_FailFromQueued(t *testing.T) {
	job := newJob("ws", nil)

	if err := job.fail(FailScan, errors.New("root missing")); err != nil {
		t.Fatalf("fail() error = %v", err)
	}

	status := job.Status()
	if status.State != JobFailed {
		t.Fatalf("State = %s, want failed", status.State)
	}
	if status.Reason != FailScan {
		t.Errorf("Reason = %s, want scan_error", status.Reason)
	}
	if status.Error == "" {
		t.Error("Error message is empty")
	}

	if err := job.succeed(1); err == nil {
		t.Error("succeed() accepted on failed job")
	}
}

func TestJob_InvalidTransitions(t *testing.T) {
	job := newJob("ws", nil)

	if err := job.succeed(1); err == nil {
		t.Error("succeed() accepted on queued job")
	}

	if err := job.run(); err != nil {
		t.Fatal(err)
	}
	if err := job.run(); err == nil {
		t.Error("run() accepted twice")
	}
}

func TestJob_MonotonicCounters(t *testing.T) {
	job := newJob("ws", nil)

	job.setFilesTotal(10)
	job.setFilesTotal(5) // must not decrease
	if got := job.Status().FilesTotal; got != 10 {
		t.Errorf("FilesTotal = %d, want 10", got)
	}
	job.setFilesTotal(12)
	if got := job.Status().FilesTotal; got != 12 {
		t.Errorf("FilesTotal = %d, want 12", got)
	}

	job.noteFileScanned(3)
	job.noteFileScanned(0)
	status := job.Status()
	if status.FilesScanned != 2 {
		t.Errorf("FilesScanned = %d, want 2", status.FilesScanned)
	}
	if status.SymbolsExtracted != 3 {
		t.Errorf("SymbolsExtracted = %d, want 3", status.SymbolsExtracted)
	}
}
