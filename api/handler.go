package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/textscan/comprobante-service/internal/auth"
	"github.com/textscan/comprobante-service/internal/db"
	"github.com/textscan/comprobante-service/internal/extractor"
	"github.com/textscan/comprobante-service/internal/models"
	"github.com/textscan/comprobante-service/internal/ocr"
	"github.com/textscan/comprobante-service/internal/services"
	"github.com/textscan/comprobante-service/internal/storage"
)

const (
	MaxUploadSize = 10 * 1024 * 1024 // 10MB
	Version       = "1.0.0"
)

// Handler handles HTTP requests for receipt processing
type Handler struct {
	config    *models.Config
	extractor extractor.Extractor
	logger    *slog.Logger
}

// NewHandler creates a new API handler. The extractor is selected at startup
// from the configured extraction mode.
func NewHandler(config *models.Config, ext extractor.Extractor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		config:    config,
		extractor: ext,
		logger:    logger,
	}
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Auth
	router.HandleFunc("/api/login", auth.LoginHandler).Methods("POST")

	// Processing pipeline: image -> OCR -> extraction. The result is returned
	// for review; persisting it is a separate POST.
	router.HandleFunc("/api/process-receipt", h.ProcessReceipt).Methods("POST")
	router.HandleFunc("/api/extract-text", h.ExtractFromText).Methods("POST")

	// Comprobante CRUD
	router.HandleFunc("/api/comprobantes", h.SaveComprobante).Methods("POST")
	router.HandleFunc("/api/comprobantes", h.GetComprobantes).Methods("GET")
	router.HandleFunc("/api/comprobantes/{id}", h.GetComprobante).Methods("GET")
	router.HandleFunc("/api/comprobantes/{id}", h.DeleteComprobante).Methods("DELETE")

	// Statistics
	router.HandleFunc("/api/stats", h.GetStats).Methods("GET")

	// Health check
	router.HandleFunc("/health", h.Health).Methods("GET")

	return router
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status      string            `json:"status"`
	Version     string            `json:"version"`
	Timestamp   string            `json:"timestamp"`
	Uptime      string            `json:"uptime"`
	Memory      MemoryStats       `json:"memory"`
	Tesseract   ServiceStatus     `json:"tesseract"`
	ImageMagick ServiceStatus     `json:"imageMagick"`
	Database    ServiceStatus     `json:"database"`
	Storage     ServiceStatus     `json:"storage"`
	Extraction  map[string]string `json:"extraction"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health endpoint - enhanced for monitoring
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	tesseractStatus := h.checkTesseract()
	imageMagickStatus := h.checkImageMagick()
	databaseStatus := h.checkDatabase()
	storageStatus := h.checkStorage()

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Tesseract:   tesseractStatus,
		ImageMagick: imageMagickStatus,
		Database:    databaseStatus,
		Storage:     storageStatus,
		Extraction: map[string]string{
			"mode":      h.config.Extraction.Mode,
			"provider":  h.config.AI.DefaultProvider,
			"ocrEngine": h.config.OCR.Engine,
		},
	}

	// Text extraction works without OCR; only mark degraded when the image
	// pipeline is down
	if !tesseractStatus.Available || !imageMagickStatus.Available {
		response.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

// checkTesseract verifies Tesseract OCR is available
func (h *Handler) checkTesseract() ServiceStatus {
	cmd := exec.Command("tesseract", "--version")
	output, err := cmd.CombinedOutput()

	if err != nil {
		return ServiceStatus{
			Available: false,
			Error:     "tesseract not found or not executable",
		}
	}

	version := "unknown"
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		version = strings.TrimSpace(lines[0])
	}

	return ServiceStatus{
		Available: true,
		Version:   version,
	}
}

// checkImageMagick verifies ImageMagick is available
func (h *Handler) checkImageMagick() ServiceStatus {
	cmd := exec.Command("convert", "-version")
	output, err := cmd.CombinedOutput()

	if err != nil {
		return ServiceStatus{
			Available: false,
			Error:     "imagemagick not found or not executable",
		}
	}

	version := "unknown"
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		version = strings.TrimSpace(lines[0])
	}

	return ServiceStatus{
		Available: true,
		Version:   version,
	}
}

// checkDatabase verifies PostgreSQL connection
func (h *Handler) checkDatabase() ServiceStatus {
	if db.Pool == nil {
		return ServiceStatus{
			Available: false,
			Error:     "database pool not initialized",
		}
	}

	return ServiceStatus{
		Available: true,
		Version:   "PostgreSQL via PgBouncer",
	}
}

// checkStorage verifies MinIO connection
func (h *Handler) checkStorage() ServiceStatus {
	if storage.Client == nil {
		return ServiceStatus{
			Available: false,
			Error:     "storage client not initialized",
		}
	}

	return ServiceStatus{
		Available: true,
		Version:   "MinIO S3",
	}
}

// ProcessReceipt handles the full pipeline: upload, preprocess, OCR, extract.
// The assembled comprobante is returned for review and is not persisted here.
func (h *Handler) ProcessReceipt(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	startTime := time.Now()

	if _, err := auth.GetClaimsFromContext(ctx); err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized: "+err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.sendError(w, http.StatusBadRequest, "File too large or invalid form data")
		return
	}

	// Accept both "file" and "image" field names
	file, header, err := r.FormFile("file")
	if err != nil {
		file, header, err = r.FormFile("image")
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "No file provided (use 'file' or 'image' field)")
			return
		}
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	language := r.FormValue("language")
	if language == "" {
		language = h.config.OCR.Language
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	filename := fmt.Sprintf("%s_%s%s",
		time.Now().Format("20060102_150405"),
		uuid.New().String()[:8],
		storage.GetFileExtension(contentType),
	)

	// Upload to MinIO (if configured). Image storage is optional.
	var imagenPath string
	if storage.Client != nil {
		imagenPath, err = storage.UploadReceiptImage(
			ctx,
			filename,
			bytes.NewReader(imageData),
			int64(len(imageData)),
			contentType,
		)
		if err != nil {
			h.logger.Warn("failed to upload image to MinIO", "error", err)
			imagenPath = ""
		}
	}

	comprobante, ocrDuration, aiDuration, err := h.processReceipt(ctx, imageData, language)

	totalDuration := time.Since(startTime).Seconds()

	if err != nil {
		response := models.ProcessResponse{
			Success:       false,
			Error:         err.Error(),
			TotalDuration: totalDuration,
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
		return
	}

	comprobante.ImagenPath = imagenPath

	// Persist immediately when possible; the record stays editable through
	// POST /api/comprobantes either way
	validation := services.ValidateComprobante(comprobante)
	var saved *db.SavedComprobante
	if db.Pool != nil && validation.Valid {
		saved, err = db.SaveComprobante(ctx, comprobante)
		if err != nil {
			h.logger.Warn("failed to save processed comprobante", "error", err)
			saved = nil
		}
	}

	responseData := map[string]interface{}{
		"success":       true,
		"comprobante":   comprobante,
		"validation":    validation,
		"savedToDb":     saved != nil,
		"ocrDuration":   ocrDuration,
		"aiDuration":    aiDuration,
		"totalDuration": totalDuration,
	}
	if saved != nil {
		responseData["id"] = saved.ID
		responseData["fechaCreacion"] = saved.FechaCreacion
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(responseData)
}

// ExtractTextRequest is the body for text-only extraction
type ExtractTextRequest struct {
	Text string `json:"text"`
}

// ExtractFromText runs extraction over already-OCRed text, skipping the image
// pipeline entirely.
func (h *Handler) ExtractFromText(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	startTime := time.Now()

	if _, err := auth.GetClaimsFromContext(ctx); err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ExtractTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	comprobante, err := h.extractor.Extract(ctx, req.Text)
	totalDuration := time.Since(startTime).Seconds()

	if err != nil {
		var invalidInput *extractor.InvalidInputError
		if errors.As(err, &invalidInput) {
			h.sendError(w, http.StatusBadRequest, invalidInput.Error())
			return
		}
		response := models.ProcessResponse{
			Success:       false,
			Error:         err.Error(),
			TotalDuration: totalDuration,
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
		return
	}

	json.NewEncoder(w).Encode(models.ProcessResponse{
		Success:       true,
		Comprobante:   comprobante,
		AIDuration:    totalDuration,
		TotalDuration: totalDuration,
	})
}

// SaveComprobante persists a reviewed/edited comprobante. Validation errors
// block the save; warnings are returned alongside the stored record.
func (h *Handler) SaveComprobante(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	if _, err := auth.GetClaimsFromContext(ctx); err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	var comprobante models.Comprobante
	if err := json.NewDecoder(r.Body).Decode(&comprobante); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	validation := services.ValidateComprobante(&comprobante)
	if !validation.Valid {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":    false,
			"error":      "validation failed",
			"validation": validation,
		})
		return
	}

	saved, err := db.SaveComprobante(ctx, &comprobante)
	if err != nil {
		h.logger.Error("failed to save comprobante", "error", err)
		h.sendError(w, http.StatusInternalServerError, "failed to save comprobante")
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":     true,
		"comprobante": saved,
		"validation":  validation,
	})
}

// GetComprobantes returns stored comprobantes, newest first, paginated
func (h *Handler) GetComprobantes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	if _, err := auth.GetClaimsFromContext(ctx); err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	comprobantes, total, err := db.GetComprobantes(ctx, page, limit)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get comprobantes: %v", err))
		return
	}

	// Generate presigned URLs for images
	for i := range comprobantes {
		if comprobantes[i].Data.ImagenPath != "" && storage.Client != nil {
			if presignedURL, err := storage.GetPresignedURL(ctx, comprobantes[i].Data.ImagenPath); err == nil {
				comprobantes[i].Data.ImagenPath = presignedURL
			}
		}
	}

	totalPages := (total + limit - 1) / limit

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":      true,
		"comprobantes": comprobantes,
		"total":        total,
		"page":         page,
		"limit":        limit,
		"totalPages":   totalPages,
	})
}

// GetComprobante returns a single stored comprobante
func (h *Handler) GetComprobante(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	if _, err := auth.GetClaimsFromContext(ctx); err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid comprobante id")
		return
	}

	saved, err := db.GetComprobante(ctx, id)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to get comprobante")
		return
	}
	if saved == nil {
		h.sendError(w, http.StatusNotFound, "comprobante not found")
		return
	}

	if saved.Data.ImagenPath != "" && storage.Client != nil {
		if presignedURL, err := storage.GetPresignedURL(ctx, saved.Data.ImagenPath); err == nil {
			saved.Data.ImagenPath = presignedURL
		}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":     true,
		"comprobante": saved,
	})
}

// DeleteComprobante removes a comprobante and its stored image
func (h *Handler) DeleteComprobante(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	if _, err := auth.GetClaimsFromContext(ctx); err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid comprobante id")
		return
	}

	// Delete the image first (ignore errors)
	if storage.Client != nil {
		if saved, err := db.GetComprobante(ctx, id); err == nil && saved != nil && saved.Data.ImagenPath != "" {
			_ = storage.DeleteImage(ctx, saved.Data.ImagenPath)
		}
	}

	if err := db.DeleteComprobante(ctx, id); err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to delete comprobante")
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "comprobante deleted",
	})
}

// GetStats returns monthly statistics
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	if _, err := auth.GetClaimsFromContext(ctx); err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	stats, err := db.GetMonthlyStats(ctx)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"stats":   stats,
	})
}

// processReceipt runs preprocessing, OCR and extraction over the image bytes
func (h *Handler) processReceipt(ctx context.Context, imageData []byte, language string) (*models.Comprobante, float64, float64, error) {
	preprocessor := ocr.NewPreprocessor()
	processedImage, err := preprocessor.PreprocessImageFromBytes(imageData)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("image preprocessing failed: %w", err)
	}

	tesseract := ocr.NewTesseractOCR(language)
	text, ocrDuration, err := tesseract.ExtractText(ctx, processedImage, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("OCR failed: %w", err)
	}

	extractStart := time.Now()
	comprobante, err := h.extractor.Extract(ctx, text)
	if err != nil {
		return nil, ocrDuration, 0, fmt.Errorf("extraction failed: %w", err)
	}
	aiDuration := time.Since(extractStart).Seconds()

	return comprobante, ocrDuration, aiDuration, nil
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
