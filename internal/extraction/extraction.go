package extraction

import "time"

// Extraction is the outcome of one successful text extraction.
// The image itself is never kept.
type Extraction struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	Text         string    `json:"text"`
	Found        bool      `json:"found"` // false when Text is the no-text sentinel
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	PayloadBytes int       `json:"payload_bytes"` // Size of the JPEG sent to the model
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
}
