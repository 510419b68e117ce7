// Package ocr recovers the text layer of PDF documents.
package ocr

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/config"
)

// ErrNoTextLayer is returned when a PDF yields no readable text.
var ErrNoTextLayer = eris.New("ocr: no text layer")

// Extractor extracts text content from PDF bytes.
type Extractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// NewExtractor creates an Extractor based on config. Provider "auto" uses
// pdftotext and falls back to Mistral OCR for scanned PDFs when a Mistral
// key is configured.
func NewExtractor(cfg config.OCRConfig, mistral config.ProviderConfig) (Extractor, error) {
	switch cfg.Provider {
	case "local", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral":
		if mistral.Key == "" {
			return nil, eris.New("ocr: mistral provider requires providers.mistral.key")
		}
		return NewMistralOCR(mistral.Key, cfg.MistralModel, mistral.BaseURL), nil
	case "auto":
		local := NewPdfToText(cfg.PdfToTextPath)
		if mistral.Key == "" {
			return local, nil
		}
		return Chain{local, NewMistralOCR(mistral.Key, cfg.MistralModel, mistral.BaseURL)}, nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// Chain tries each extractor in order and returns the first non-blank text.
type Chain []Extractor

// ExtractText implements Extractor.
func (c Chain) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	if len(c) == 0 {
		return "", eris.New("ocr: empty extractor chain")
	}
	var last error
	for i, ext := range c {
		text, err := ext.ExtractText(ctx, pdf)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", eris.Wrap(ctx.Err(), "ocr: extraction canceled")
		}
		if i < len(c)-1 {
			zap.L().Debug("ocr: extractor failed, trying next", zap.Int("position", i), zap.Error(err))
		}
		last = err
	}
	return "", last
}

// blank reports whether text has no visible characters. pdftotext emits a
// form feed per page even when the page is an image.
func blank(text string) bool {
	return strings.TrimSpace(strings.ReplaceAll(text, "\f", "")) == ""
}
