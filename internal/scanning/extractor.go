package scanning

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// NoTextFound is returned in place of an empty model response
const NoTextFound = "لم يتم العثور على نصوص عربية واضحة."

// arabicExtractionPrompt is sent with every image. It asks for Arabic words
// only, laid out as in the image, with no preamble.
const arabicExtractionPrompt = `
استخرج النص العربي من هذه الصورة.
التعليمات الصارمة:
1. استخرج الكلمات العربية فقط.
2. احذف تماماً أي حروف إنجليزية، أرقام غير عربية، أو رموز تقنية.
3. نسق النص في أسطر وفقرات مرتبة كما تظهر في الصورة.
4. قم بتصحيح الأخطاء المطبعية البائتة لضمان جودة النص.
5. لا تضع أي مقدمات (مثل: "إليك النص...")، أريد النص المستخرج فقط.
`

// extractionConfig favours determinism and latency over reasoning
var extractionConfig = GenerationConfig{
	Temperature:    0,
	ThinkingBudget: 0,
}

// Extractor sends normalized images to a Model and cleans up the answer
type Extractor struct {
	model Model
}

// NewExtractor creates a new Extractor backed by model
func NewExtractor(model Model) *Extractor {
	return &Extractor{model: model}
}

// NewRequest builds the request sent for a payload
func NewRequest(p *Payload) Request {
	return Request{
		Image:       p,
		Instruction: arabicExtractionPrompt,
		Config:      extractionConfig,
	}
}

// Extract runs one inference call for the payload.
// The result is trimmed, and an empty answer becomes NoTextFound. Any model
// failure is logged and returned as ErrExtractionFailed, as is a nil or empty
// payload, which never reaches the model.
func (e *Extractor) Extract(ctx context.Context, p *Payload) (string, error) {
	if p == nil || len(p.Data) == 0 {
		slog.Error("Extraction error", "model", e.model.Name(), "error", "empty payload")
		return "", ErrExtractionFailed
	}

	text, err := e.model.Generate(ctx, NewRequest(p))
	if err != nil {
		slog.Error("Extraction error",
			"model", e.model.Name(),
			"payload_size", len(p.Data),
			"error", err,
		)
		return "", ErrExtractionFailed
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return NoTextFound, nil
	}
	return text, nil
}

// Scan normalizes a raw image and extracts its text.
// Normalization errors are returned as is.
func (e *Extractor) Scan(ctx context.Context, r io.Reader) (*Payload, string, error) {
	payload, err := Normalize(r)
	if err != nil {
		return nil, "", err
	}
	text, err := e.Extract(ctx, payload)
	if err != nil {
		return payload, "", err
	}
	return payload, text, nil
}
