package indexer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// JobState is the lifecycle state of one build attempt.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// FailureReason captures why a job failed.
type FailureReason string

const (
	FailScan     FailureReason = "scan_error"
	FailBuild    FailureReason = "build_error"
	FailCanceled FailureReason = "canceled"
	FailInternal FailureReason = "internal_error"
)

// Job is one attempt to build a snapshot for a workspace. Transitions
// are monotonic: Queued → Running → Succeeded | Failed, and terminal
// states never transition again. Progress counters only increase.
type Job struct {
	id          string
	workspaceID string

	mu         sync.Mutex
	state      JobState
	reason     FailureReason
	errMsg     string
	version    uint64 // published snapshot version when Succeeded
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
	cancel     context.CancelFunc

	filesTotal       atomic.Int64
	filesScanned     atomic.Int64
	symbolsExtracted atomic.Int64
}

// newJob creates a job in the Queued state.
func newJob(workspaceID string, cancel context.CancelFunc) *Job {
	return &Job{
		id:          uuid.NewString(),
		workspaceID: workspaceID,
		state:       JobQueued,
		createdAt:   time.Now(),
		cancel:      cancel,
	}
}

// ID returns the job id.
func (j *Job) ID() string { return j.id }

// run transitions Queued → Running.
func (j *Job) run() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != JobQueued {
		return internalf("job.run", "cannot start job in state %s", j.state)
	}
	j.state = JobRunning
	j.startedAt = time.Now()
	return nil
}

// succeed transitions Running → Succeeded with the published version.
func (j *Job) succeed(version uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != JobRunning {
		return internalf("job.succeed", "cannot succeed job in state %s", j.state)
	}
	j.state = JobSucceeded
	j.version = version
	j.finishedAt = time.Now()
	return nil
}

// fail transitions Queued|Running → Failed with a captured cause.
func (j *Job) fail(reason FailureReason, err error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == JobSucceeded || j.state == JobFailed {
		return internalf("job.fail", "cannot fail job in state %s", j.state)
	}
	j.state = JobFailed
	j.reason = reason
	if err != nil {
		j.errMsg = err.Error()
	}
	j.finishedAt = time.Now()
	return nil
}

// requestCancel asks the running build to stop at its next checkpoint.
// No effect on terminal jobs.
func (j *Job) requestCancel() {
	j.mu.Lock()
	terminal := j.state == JobSucceeded || j.state == JobFailed
	cancel := j.cancel
	j.mu.Unlock()
	if terminal || cancel == nil {
		return
	}
	cancel()
}

// active reports whether the job still owns the workspace's build slot.
func (j *Job) active() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state == JobQueued || j.state == JobRunning
}

// setFilesTotal records the discovered file count. The total never
// decreases within a job.
func (j *Job) setFilesTotal(n int) {
	for {
		cur := j.filesTotal.Load()
		if int64(n) <= cur || j.filesTotal.CompareAndSwap(cur, int64(n)) {
			return
		}
	}
}

// noteFileScanned bumps the progress counters for one captured file.
func (j *Job) noteFileScanned(symbols int) {
	j.filesScanned.Add(1)
	j.symbolsExtracted.Add(int64(symbols))
}

// JobStatus is a point-in-time view of a job, safe to serialize.
type JobStatus struct {
	ID               string        `json:"id"`
	WorkspaceID      string        `json:"workspace_id"`
	State            JobState      `json:"state"`
	Reason           FailureReason `json:"reason,omitempty"`
	Error            string        `json:"error,omitempty"`
	FilesTotal       int64         `json:"files_total"`
	FilesScanned     int64         `json:"files_scanned"`
	SymbolsExtracted int64         `json:"symbols_extracted"`
	SnapshotVersion  uint64        `json:"snapshot_version,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       time.Time     `json:"finished_at"`
}

// Status returns a consistent view of the job. Safe to call from any
// number of readers concurrently with the single builder.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobStatus{
		ID:               j.id,
		WorkspaceID:      j.workspaceID,
		State:            j.state,
		Reason:           j.reason,
		Error:            j.errMsg,
		FilesTotal:       j.filesTotal.Load(),
		FilesScanned:     j.filesScanned.Load(),
		SymbolsExtracted: j.symbolsExtracted.Load(),
		SnapshotVersion:  j.version,
		CreatedAt:        j.createdAt,
		StartedAt:        j.startedAt,
		FinishedAt:       j.finishedAt,
	}
}
