package entity

import "time"

type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentFile  AttachmentType = "file"
	AttachmentAudio AttachmentType = "audio"
	AttachmentVideo AttachmentType = "video"
)

type UploadStatus string

const (
	UploadUploading UploadStatus = "uploading"
	UploadCompleted UploadStatus = "completed"
	UploadFailed    UploadStatus = "failed"
)

// Attachment holds the media metadata of an image/file message. The core
// stores only the write-once storage key; the URL is resolved through the
// external object store.
type Attachment struct {
	ID           string         `gorm:"primaryKey" json:"id"`
	MessageID    string         `gorm:"not null;index" json:"messageId"`
	Type         AttachmentType `gorm:"not null" json:"type"`
	Filename     string         `gorm:"not null" json:"filename"`
	MimeType     string         `gorm:"not null" json:"mimeType"`
	Size         int64          `json:"size"`
	StorageKey   string         `json:"storageKey,omitempty"`
	URL          string         `json:"url,omitempty"`
	ThumbnailURL string         `json:"thumbnailUrl,omitempty"`
	Width        int            `json:"width,omitempty"`
	Height       int            `json:"height,omitempty"`
	Duration     int            `json:"duration,omitempty"` // Seconds, audio/video only
	UploadStatus UploadStatus   `gorm:"index" json:"uploadStatus,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"createdAt"`
}
