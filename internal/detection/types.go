package detection

import "time"

// Record is a single detection log entry.
type Record struct {
	// ID is assigned by the store on insert, monotonically increasing.
	ID int64 `json:"id"`

	// Timestamp is the insert time, immutable after creation.
	Timestamp time.Time `json:"ts"`

	// ImagePath is the URL path of the stored frame. The record owns
	// the file: removing the record implies the file should go too.
	ImagePath string `json:"image_path"`

	// IsCat is the classification outcome.
	IsCat bool `json:"is_cat"`

	// Message carries diagnostics: classifier errors, too-dark notices,
	// or the device-supplied annotation. Empty when nothing to report.
	Message string `json:"message,omitempty"`
}

// Removed identifies a trimmed record so the caller can unlink its file.
type Removed struct {
	ID        int64
	ImagePath string
}
