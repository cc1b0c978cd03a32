package entity

import (
	"errors"
	"path"
	"strings"
	"time"
)

type VideoStatus string

const (
	VideoStatusUploaded  VideoStatus = "uploaded"
	VideoStatusProcessed VideoStatus = "processed"
)

// Logical prefixes inside the content bucket.
const (
	UnprocessedPrefix = "unprocessed-videos/"
	ProcessedPrefix   = "processed-videos/"
)

var (
	ErrVideoNotFound     = errors.New("video not found")
	ErrVideoNotDeletable = errors.New("video already processed and cannot be deleted")
	ErrAlreadyVoted      = errors.New("user already voted for this video")
)

// VideoRecord is one submitted clip. ProcessedAt is non-nil exactly when
// Status is VideoStatusProcessed, and Filename always names the object
// currently stored in the bucket.
type VideoRecord struct {
	ID          int64
	Title       string
	Filename    string
	Status      VideoStatus
	UploadedAt  time.Time
	ProcessedAt *time.Time
	OwnerID     int64
	VotesCount  int
	IsPublic    bool
}

func NewVideoRecord(title, filename string, ownerID int64) *VideoRecord {
	return &VideoRecord{
		Title:      title,
		Filename:   filename,
		Status:     VideoStatusUploaded,
		UploadedAt: time.Now().UTC(),
		OwnerID:    ownerID,
		IsPublic:   true,
	}
}

// MarkProcessed moves the record to processed, swapping the filename to the
// processed key. Repeating it keeps the first ProcessedAt.
func (v *VideoRecord) MarkProcessed(processedKey string, at time.Time) {
	v.Status = VideoStatusProcessed
	v.Filename = processedKey
	if v.ProcessedAt == nil {
		at = at.UTC()
		v.ProcessedAt = &at
	}
}

func (v *VideoRecord) IsProcessed() bool {
	return v.Status == VideoStatusProcessed
}

// CanDelete reports whether the owner may still remove the record.
func (v *VideoRecord) CanDelete() bool {
	return v.Status == VideoStatusUploaded
}

// Votable reports whether the record is open for public voting.
func (v *VideoRecord) Votable() bool {
	return v.IsProcessed() && v.IsPublic
}

// ProcessedKey derives "<processed prefix><basename>_processed<ext>" from an
// original storage key.
func ProcessedKey(originalKey string) string {
	base := path.Base(originalKey)
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".mp4"
	}
	return ProcessedPrefix + name + "_processed" + ext
}

// RankingEntry is one owner's accumulated votes across processed videos.
type RankingEntry struct {
	OwnerID int64
	Player  string
	Votes   int64
}
