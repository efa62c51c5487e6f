package scanning

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
)

// PayloadMIMEType is the MIME type of every normalized payload
const PayloadMIMEType = "image/jpeg"

// Payload is a normalized image ready to be submitted for extraction
type Payload struct {
	Data   []byte
	Width  int
	Height int
}

// MIMEType returns the MIME type of the payload data
func (p *Payload) MIMEType() string {
	return PayloadMIMEType
}

// Base64 returns the payload as plain standard base64 with no data URL prefix
func (p *Payload) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// GenerationConfig holds the inference options sent with every request
type GenerationConfig struct {
	Temperature    float32
	ThinkingBudget int32
}

// Request is a single extraction request sent to a Model
type Request struct {
	Image       *Payload
	Instruction string
	Config      GenerationConfig
}

// Model defines the interface for the external text recognition service
type Model interface {
	// Name returns a short identifier for logging
	Name() string
	// Generate submits the request and returns the raw text output.
	// An empty string is a valid response.
	Generate(ctx context.Context, req Request) (string, error)
	// Close closes the model and releases resources
	Close() error
}

// ErrExtractionFailed is returned for any failure while talking to the model.
// Its message is shown to users as is.
var ErrExtractionFailed = errors.New("فشلت عملية الاستخراج. حاول مرة أخرى.")

// DecodeError is returned when the input cannot be decoded as an image
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IOError is returned when reading the input fails before decoding starts
type IOError struct {
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("reading image: %v", e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
