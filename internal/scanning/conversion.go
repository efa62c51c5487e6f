package scanning

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"io"
	"math"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	// MaxWidth is the widest payload ever produced; wider images are scaled down
	MaxWidth = 1600
	// JPEGQuality is the encoder quality on the 1-100 scale
	JPEGQuality = 80

	// maxPixels rejects decompression bombs before the full decode
	maxPixels = 100_000_000
)

// Normalize reads an image, scales it down to at most MaxWidth pixels wide,
// flattens it onto a white background and re-encodes it as JPEG.
//
// A failed read returns *IOError. Input that is not a decodable image returns
// *DecodeError.
func Normalize(r io.Reader) (*Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &IOError{Err: err}
	}

	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width, height := targetSize(bounds.Dx(), bounds.Dy())
	canvas := render(img, width, height)

	encoded, err := encodeJPEG(canvas)
	if err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	return &Payload{
		Data:   encoded,
		Width:  width,
		Height: height,
	}, nil
}

// decodeImage turns raw bytes into a pixel surface, picking the decoder from
// the leading magic bytes
func decodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: errors.New("empty input")}
	}

	var (
		img image.Image
		err error
	)
	switch {
	case isPDFFormat(data):
		img, err = pdfToImage(data)
	case isHEICFormat(data):
		img, err = heicToImage(data)
	default:
		img, err = decodeStandard(data)
	}
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	// A surface we cannot draw onto is treated as undecodable
	bounds := img.Bounds()
	if err := checkDimensions(bounds.Dx(), bounds.Dy()); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return img, nil
}

// decodeStandard decodes any format registered with the image package
func decodeStandard(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, WebP, BMP, TIFF, HEIC, HEIF, PDF: %w", err)
		}
		return nil, fmt.Errorf("reading image header: %w", err)
	}
	if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// HEIC decoders, swapped out in tests
var (
	heicDecodeConfig = heic.DecodeConfig
	heicDecode       = heic.Decode
)

// heicToImage decodes a HEIC/HEIF image once its header passes checkDimensions.
// Go's standard image package doesn't support HEIC.
func heicToImage(data []byte) (image.Image, error) {
	cfg, err := heicDecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading HEIC/HEIF header: %w", err)
	}
	if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, err := heicDecode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
	}
	return img, nil
}

// pdfDPI is the resolution the first PDF page is rendered at
const pdfDPI = 300.0

// pdfToImage renders the first page of a PDF once its rendered size passes
// checkDimensions
func pdfToImage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	bound, err := doc.Bound(0)
	if err != nil {
		return nil, fmt.Errorf("reading PDF page size: %w", err)
	}
	if err := checkDimensions(pdfRenderSize(bound)); err != nil {
		return nil, err
	}

	img, err := doc.ImageDPI(0, pdfDPI)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// pdfRenderSize converts a page bound in points to pixels at pdfDPI
func pdfRenderSize(bound image.Rectangle) (int, int) {
	scale := pdfDPI / 72
	return int(math.Ceil(float64(bound.Dx()) * scale)), int(math.Ceil(float64(bound.Dy()) * scale))
}

func checkDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image has no pixels (%dx%d)", width, height)
	}
	if int64(width)*int64(height) > maxPixels {
		return fmt.Errorf("image is too large (%dx%d)", width, height)
	}
	return nil
}

// targetSize returns the payload dimensions for a source of the given size.
// Images are only ever scaled down, and both sides use the same ratio.
func targetSize(width, height int) (int, int) {
	if width <= MaxWidth {
		return width, height
	}
	ratio := float64(MaxWidth) / float64(width)
	newHeight := int(math.Round(float64(height) * ratio))
	if newHeight < 1 {
		newHeight = 1
	}
	return MaxWidth, newHeight
}

// render draws src onto an opaque white surface of the given size.
// JPEG has no alpha channel, so transparent regions must become white rather
// than black.
func render(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// encodeJPEG encodes img at JPEGQuality
func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// isPDFFormat checks for the %PDF- header
func isPDFFormat(data []byte) bool {
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
// HEIC files typically start with specific magic bytes
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	// ftyp box with brand 'heic', 'heif', 'mif1', 'msf1' at offset 4
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}
	return false
}
