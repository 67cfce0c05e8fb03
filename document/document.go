package document

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrInvalidFilename = errors.New("invalid filename")
)

// Document joins a stored file with its metadata entry. Size and
// UploadTime are read from storage on every listing.
type Document struct {
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	UploadTime time.Time `json:"upload_time"`
	URL        string    `json:"url"`
	Label      string    `json:"label"`
	Selected   bool      `json:"selected"`
}

// Update is a partial metadata change. Nil fields are left untouched.
type Update struct {
	Label    *string `json:"label"`
	Selected *bool   `json:"selected"`
}
