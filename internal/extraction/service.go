package extraction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/arabic-ocr/internal/scanning"
)

// ErrHistoryDisabled is returned by history operations when no DB is configured
var ErrHistoryDisabled = errors.New("extraction history is disabled")

// IDGenerator generates unique IDs for extractions
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service runs extractions and optionally records them
type Service struct {
	db          DB
	model       scanning.Model
	extractor   *scanning.Extractor
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source.
// db may be nil, which disables history.
func NewService(db DB, model scanning.Model) *Service {
	return NewServiceWithDeps(db, model, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, model scanning.Model, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		model:       model,
		extractor:   scanning.NewExtractor(model),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	filenameDisallowed = regexp.MustCompile(`[^\p{L}\p{N}\s\-_]`)
	filenameSpaces     = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	// Keep letters and digits of any script, spaces, hyphens and underscores
	base = filenameDisallowed.ReplaceAllString(base, "")
	base = filenameSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	// Truncate to 50 runes so Arabic names are not cut mid-character
	if runes := []rune(base); len(runes) > 50 {
		base = string(runes[:50])
	}

	if base == "" {
		base = "image"
	}

	if ext != "" {
		ext = "." + filenameDisallowed.ReplaceAllString(ext[1:], "")
		if ext == "." {
			ext = ""
		}
	}

	return base + ext
}

// HistoryEnabled reports whether extractions are recorded
func (s *Service) HistoryEnabled() bool {
	return s.db != nil
}

// Extract normalizes the image read from r, extracts its Arabic text and
// records the result when history is enabled.
//
// Errors from the scanning package are returned unwrapped so callers can
// classify them: *scanning.DecodeError, *scanning.IOError or
// scanning.ErrExtractionFailed.
func (s *Service) Extract(ctx context.Context, filename string, r io.Reader) (*Extraction, error) {
	payload, text, err := s.extractor.Scan(ctx, r)
	if err != nil {
		slog.Debug("Extraction rejected", "filename", filename, "error", err)
		return nil, err
	}

	extraction := &Extraction{
		ID:           s.idGenerator.Generate(),
		Filename:     sanitizeFilename(filename),
		Text:         text,
		Found:        text != scanning.NoTextFound,
		Width:        payload.Width,
		Height:       payload.Height,
		PayloadBytes: len(payload.Data),
		Model:        s.model.Name(),
		CreatedAt:    s.timeSource.Now(),
	}

	if s.db != nil {
		// History is best effort; the caller still gets the text
		if err := s.db.SaveExtraction(extraction); err != nil {
			slog.Warn("Failed to record extraction", "id", extraction.ID, "error", err)
		}
	}

	return extraction, nil
}

// GetExtraction retrieves a recorded extraction by ID
func (s *Service) GetExtraction(id string) (*Extraction, error) {
	if s.db == nil {
		return nil, ErrHistoryDisabled
	}
	extraction, err := s.db.GetExtraction(id)
	if err != nil {
		return nil, fmt.Errorf("getting extraction: %w", err)
	}
	return extraction, nil
}

// ListExtractions returns recorded extractions, newest first
func (s *Service) ListExtractions() ([]*Extraction, error) {
	if s.db == nil {
		return nil, ErrHistoryDisabled
	}
	extractions, err := s.db.ListExtractions()
	if err != nil {
		return nil, fmt.Errorf("listing extractions: %w", err)
	}
	sort.SliceStable(extractions, func(i, j int) bool {
		return extractions[i].CreatedAt.After(extractions[j].CreatedAt)
	})
	return extractions, nil
}

// DeleteExtraction removes a recorded extraction
func (s *Service) DeleteExtraction(id string) error {
	if s.db == nil {
		return ErrHistoryDisabled
	}
	if err := s.db.DeleteExtraction(id); err != nil {
		return fmt.Errorf("deleting extraction: %w", err)
	}
	return nil
}
