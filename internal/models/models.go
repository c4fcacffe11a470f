// internal/models/models.go
package models

import "time"

// EditorImage is one uploaded image: a database record plus a file on disk.
// IDs are assigned by the database and only ever grow, so content can embed
// a stable `data-image-id="<id>"` marker.
type EditorImage struct {
	ID            int64     `db:"id" json:"id"`
	FilePath      string    `db:"file_path" json:"-"`             // absolute path of the stored file
	URL           string    `db:"url" json:"url"`                 // public locator served under the media prefix
	ThumbnailPath string    `db:"thumbnail_path" json:"-"`        // empty until the processor has run
	Status        string    `db:"status" json:"status"`           // pending, processing, done, error
	UploadedBy    *string   `db:"uploaded_by" json:"uploaded_by"` // token subject, nil for anonymous rows
	UploadedAt    time.Time `db:"uploaded_at" json:"uploaded_at"`
}

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusError      = "error"
)
