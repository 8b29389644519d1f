package models

import "time"

// FileObject is one filesystem entry returned by the panel's file API.
type FileObject struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Mime       string    `json:"mimetype"`
	IsFile     bool      `json:"is_file"`
	Mode       string    `json:"mode"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Backup is fully owned by the backend; the portal only issues commands.
type Backup struct {
	ID          string     `json:"uuid"`
	Name        string     `json:"name"`
	Bytes       int64      `json:"bytes"`
	Checksum    *string    `json:"checksum,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Completed reports whether the backend has finished writing the archive.
func (b *Backup) Completed() bool {
	return b.CompletedAt != nil
}

// SignedURL is a short-lived download or upload location.
type SignedURL struct {
	URL string `json:"url"`
}
