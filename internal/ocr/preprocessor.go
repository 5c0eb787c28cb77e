package ocr

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// Preprocessor handles image preprocessing for optimal OCR results
type Preprocessor struct{}

// NewPreprocessor creates a new image preprocessor
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{}
}

// PreprocessImage reads and enhances an image file for better OCR reading
func (p *Preprocessor) PreprocessImage(imagePath string) ([]byte, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, err
	}
	return p.PreprocessImageFromBytes(imageData)
}

// PreprocessImageFromBytes applies image enhancement filters
// Uses ImageMagick for: grayscale, contrast, denoise, sharpen
func (p *Preprocessor) PreprocessImageFromBytes(imageData []byte) ([]byte, error) {
	// Create temp files
	tmpDir := os.TempDir()
	inputFile := filepath.Join(tmpDir, fmt.Sprintf("input_%d.jpg", os.Getpid()))
	outputFile := filepath.Join(tmpDir, fmt.Sprintf("output_%d.jpg", os.Getpid()))

	// Write input image
	if err := os.WriteFile(inputFile, imageData, 0644); err != nil {
		return imageData, nil // Fallback to original
	}
	defer os.Remove(inputFile)
	defer os.Remove(outputFile)

	// Pipeline: resize (if too large) -> grayscale -> contrast -> denoise -> sharpen
	args := []string{
		inputFile,
		// Resize if larger than 2000px (keeps aspect ratio)
		"-resize", "2000x2000>",
		// Convert to grayscale for better text contrast
		"-colorspace", "Gray",
		// Normalize histogram (auto-contrast)
		"-normalize",
		// Increase contrast
		"-contrast-stretch", "2%x1%",
		// Light denoise
		"-despeckle",
		// Sharpen text edges
		"-sharpen", "0x1",
		// Slight unsharp mask for text clarity
		"-unsharp", "0x0.5+0.5+0",
		// High quality output
		"-quality", "95",
		outputFile,
	}

	// Try 'magick' first (ImageMagick 7), fallback to 'convert' (ImageMagick 6)
	var cmd *exec.Cmd
	if _, err := exec.LookPath("magick"); err == nil {
		cmd = exec.Command("magick", args...)
	} else {
		cmd = exec.Command("convert", args...)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// If ImageMagick fails, return original image
		slog.Warn("imagemagick preprocessing failed", "error", err, "stderr", stderr.String())
		return imageData, nil
	}

	// Read processed image
	processed, err := os.ReadFile(outputFile)
	if err != nil {
		return imageData, nil // Fallback to original
	}

	slog.Debug("image enhanced", "in_bytes", len(imageData), "out_bytes", len(processed))
	return processed, nil
}
