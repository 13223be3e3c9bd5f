package core

import "time"

// JobState is the lifecycle state of a download job.
type JobState string

const (
	JobPending      JobState = "pending"
	JobConnecting   JobState = "connecting"
	JobTransferring JobState = "transferring"
	JobCompleted    JobState = "completed"
	JobFailed       JobState = "failed"
	JobCancelled    JobState = "cancelled"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// DownloadJob is a point-in-time snapshot of one tracked transfer.
// Snapshots are returned by value; callers never alias manager state.
type DownloadJob struct {
	// ID is opaque and unique for the process lifetime.
	ID    string   `json:"downloadId"`
	State JobState `json:"state"`
	URL   string   `json:"url"`
	// Filename is the target file name within the category directory.
	Filename string `json:"filename"`
	Category string `json:"category"`
	// TargetPath is the absolute destination path.
	TargetPath string `json:"targetPath"`
	// BytesDownloaded is monotonically non-decreasing while transferring.
	BytesDownloaded int64 `json:"bytesDownloaded"`
	// BytesTotal is 0 when the source did not declare a length; callers
	// must then show absolute bytes only.
	BytesTotal int64 `json:"bytesTotal,omitempty"`
	// Rate is the recent transfer rate in bytes per second.
	Rate float64 `json:"transferRate"`
	// Error is set only in the failed state.
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

// SizeKnown reports whether the source declared a content length.
func (j DownloadJob) SizeKnown() bool { return j.BytesTotal > 0 }

// Percent returns transfer progress 0-100, or -1 when the size is unknown.
func (j DownloadJob) Percent() int {
	if !j.SizeKnown() {
		return -1
	}
	p := int(j.BytesDownloaded * 100 / j.BytesTotal)
	if p > 100 {
		p = 100
	}
	return p
}
