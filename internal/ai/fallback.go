package ai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/textscan/comprobante-service/internal/extractor"
	"github.com/textscan/comprobante-service/internal/models"
)

// Fallback tries the model-backed path first and falls back to the rule-based
// extractor when the backend is unavailable or returns non-conforming output.
// Single shot, no retry; any other error propagates unchanged.
type Fallback struct {
	Primary   extractor.Extractor
	Secondary extractor.Extractor
	Logger    *slog.Logger
}

// NewFallback wires the model-backed extractor in front of the rule-based one.
func NewFallback(primary, secondary extractor.Extractor, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{Primary: primary, Secondary: secondary, Logger: logger}
}

func (f *Fallback) Extract(ctx context.Context, rawText string) (*models.Comprobante, error) {
	c, err := f.Primary.Extract(ctx, rawText)
	if err == nil {
		return c, nil
	}

	var unavailable *BackendUnavailableError
	var violation *SchemaViolationError
	if errors.As(err, &unavailable) || errors.As(err, &violation) {
		f.Logger.Warn("model extraction failed, falling back to rules", "error", err)
		return f.Secondary.Extract(ctx, rawText)
	}

	return nil, err
}
