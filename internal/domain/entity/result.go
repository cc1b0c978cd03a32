package entity

import "time"

// FailureKind decides what happens to the queue message of a failed job.
type FailureKind string

const (
	// FailureTransient leaves the message unacknowledged for redelivery.
	FailureTransient FailureKind = "transient"
	// FailureTerminal dead-letters and acknowledges the message.
	FailureTerminal FailureKind = "terminal"
)

type JobResult struct {
	Success      bool        `json:"success"`
	Error        string      `json:"error,omitempty"`
	Kind         FailureKind `json:"kind,omitempty"`
	File         string      `json:"file"`
	ProcessedKey string      `json:"processed_key,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

func Succeeded(file, processedKey string) JobResult {
	return JobResult{
		Success:      true,
		File:         file,
		ProcessedKey: processedKey,
		Timestamp:    time.Now().UTC(),
	}
}

func Failed(file string, kind FailureKind, msg string) JobResult {
	return JobResult{
		Success:   false,
		Error:     msg,
		Kind:      kind,
		File:      file,
		Timestamp: time.Now().UTC(),
	}
}

// ShouldAcknowledge reports whether the message behind this result is done
// with: success, or a failure that redelivery cannot fix.
func (r JobResult) ShouldAcknowledge() bool {
	return r.Success || r.Kind == FailureTerminal
}
