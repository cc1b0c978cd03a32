package entity

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidJob = errors.New("invalid processing job")

// ProcessingJob is the queue payload snapshot. Filename drives the download;
// ID addresses the live record for the status update.
type ProcessingJob struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
}

func NewProcessingJob(v *VideoRecord) ProcessingJob {
	return ProcessingJob{ID: v.ID, Filename: v.Filename}
}

func (j ProcessingJob) Encode() ([]byte, error) {
	return json.Marshal(j)
}

func DecodeProcessingJob(body []byte) (ProcessingJob, error) {
	var job ProcessingJob
	if err := json.Unmarshal(body, &job); err != nil {
		return ProcessingJob{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if job.ID <= 0 || job.Filename == "" {
		return ProcessingJob{}, fmt.Errorf("%w: id and filename are required", ErrInvalidJob)
	}
	return job, nil
}

// QueueMessage is a received delivery. ReceiptHandle is only meaningful to
// the queue that issued it and is never persisted.
type QueueMessage struct {
	Body          []byte
	ReceiptHandle string

	// Attempt counts deliveries of this job, starting at 1. Zero means the
	// queue could not tell.
	Attempt int
}
