package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ProgressFunc receives fractional progress in [0, 1] while an image is
// being recognized. Callbacks are coarse (per stage, not per scanline).
type ProgressFunc func(fraction float64)

// TesseractOCR shells out to the tesseract CLI, the same binary probed by
// the health check.
type TesseractOCR struct {
	language string
}

// NewTesseractOCR creates a tesseract-backed engine.
func NewTesseractOCR(language string) *TesseractOCR {
	if language == "" {
		language = "spa"
	}
	return &TesseractOCR{
		language: language,
	}
}

// ExtractText performs OCR on preprocessed image bytes. The returned float is
// the recognition duration in seconds. Cancelable through ctx; progress is
// optional and may be nil.
func (t *TesseractOCR) ExtractText(ctx context.Context, imageBytes []byte, progress ProgressFunc) (string, float64, error) {
	start := time.Now()
	report := func(f float64) {
		if progress != nil {
			progress(f)
		}
	}
	report(0)

	tmpDir := os.TempDir()
	inputFile := filepath.Join(tmpDir, fmt.Sprintf("ocr_%d.jpg", os.Getpid()))
	if err := os.WriteFile(inputFile, imageBytes, 0644); err != nil {
		return "", 0, fmt.Errorf("failed to write temp image: %w", err)
	}
	defer os.Remove(inputFile)
	report(0.1)

	// "stdout" makes tesseract print the recognized text instead of
	// writing an output file.
	cmd := exec.CommandContext(ctx, "tesseract", inputFile, "stdout", "-l", t.language)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", time.Since(start).Seconds(), ctx.Err()
		}
		return "", time.Since(start).Seconds(), fmt.Errorf("tesseract failed: %w - %s", err, stderr.String())
	}
	report(0.9)

	text := strings.TrimSpace(stdout.String())
	report(1)
	return text, time.Since(start).Seconds(), nil
}
