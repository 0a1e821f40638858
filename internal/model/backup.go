package model

import "time"

type BackupStatus string

const (
	BackupStatusPending   BackupStatus = "pending"
	BackupStatusUploading BackupStatus = "uploading"
	BackupStatusCompleted BackupStatus = "completed"
	BackupStatusFailed    BackupStatus = "failed"
)

// Backup is one encrypted database snapshot in object storage.
type Backup struct {
	ID           int64        `json:"id"`
	Filename     string       `json:"filename"`
	ObjectKey    string       `json:"object_key"`
	SizeBytes    int64        `json:"size_bytes"`
	Status       BackupStatus `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
