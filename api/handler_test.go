package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/textscan/comprobante-service/internal/auth"
	"github.com/textscan/comprobante-service/internal/extractor"
	"github.com/textscan/comprobante-service/internal/models"
)

type stubExtractor struct {
	result *models.Comprobante
	err    error
}

func (s *stubExtractor) Extract(ctx context.Context, rawText string) (*models.Comprobante, error) {
	return s.result, s.err
}

func testConfig() *models.Config {
	return &models.Config{
		Port: 8080,
		OCR:  models.OCRConfig{Engine: "tesseract", Language: "spa"},
		AI:   models.AIConfig{DefaultProvider: "openai"},
		Extraction: models.ExtractionConfig{
			Mode: "rules",
		},
	}
}

func testComprobante() *models.Comprobante {
	now := time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)
	return extractor.Assemble(now, extractor.StandardDefaults(), extractor.Fields{
		NumeroSecuencia: "443556",
	})
}

func newTestServer(t *testing.T, ext extractor.Extractor) http.Handler {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	if err := auth.Init(); err != nil {
		t.Fatalf("auth.Init() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	handler := NewHandler(testConfig(), ext, logger)
	return auth.JWTMiddleware(handler.SetupRoutes())
}

func authHeader(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken("user-1", "test@example.com", "Test", "admin")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return "Bearer " + token
}

func TestHealthDoesNotRequireAuth(t *testing.T) {
	server := newTestServer(t, &stubExtractor{result: testComprobante()})

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	// Status depends on whether tesseract/imagemagick exist on the host;
	// either way the body must decode and identify the service
	var health HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decoding health response: %v", err)
	}
	if health.Version != Version {
		t.Errorf("Version = %q, want %q", health.Version, Version)
	}
	if health.Extraction["mode"] != "rules" {
		t.Errorf("Extraction mode = %q, want rules", health.Extraction["mode"])
	}
}

func TestEndpointsRequireAuth(t *testing.T) {
	server := newTestServer(t, &stubExtractor{result: testComprobante()})

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/process-receipt"},
		{"POST", "/api/extract-text"},
		{"POST", "/api/comprobantes"},
		{"GET", "/api/comprobantes"},
		{"GET", "/api/comprobantes/1"},
		{"DELETE", "/api/comprobantes/1"},
		{"GET", "/api/stats"},
	}

	for _, e := range endpoints {
		req := httptest.NewRequest(e.method, e.path, nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token: status = %d, want 401", e.method, e.path, rec.Code)
		}
	}
}

func TestExtractFromText(t *testing.T) {
	want := testComprobante()
	server := newTestServer(t, &stubExtractor{result: want})

	body, _ := json.Marshal(ExtractTextRequest{Text: "Transferencia No. 443556"})
	req := httptest.NewRequest("POST", "/api/extract-text", bytes.NewReader(body))
	req.Header.Set("Authorization", authHeader(t))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp models.ProcessResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("Success = false, error = %q", resp.Error)
	}
	if resp.Comprobante.NumeroSecuencia != want.NumeroSecuencia {
		t.Errorf("NumeroSecuencia = %q, want %q", resp.Comprobante.NumeroSecuencia, want.NumeroSecuencia)
	}
}

func TestExtractFromTextInvalidBody(t *testing.T) {
	server := newTestServer(t, &stubExtractor{result: testComprobante()})

	req := httptest.NewRequest("POST", "/api/extract-text", strings.NewReader("not json"))
	req.Header.Set("Authorization", authHeader(t))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestExtractFromTextInvalidInput(t *testing.T) {
	server := newTestServer(t, &stubExtractor{
		err: &extractor.InvalidInputError{Reason: "text is not valid UTF-8"},
	})

	body, _ := json.Marshal(ExtractTextRequest{Text: "whatever"})
	req := httptest.NewRequest("POST", "/api/extract-text", bytes.NewReader(body))
	req.Header.Set("Authorization", authHeader(t))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for invalid input", rec.Code)
	}
}

func TestSaveComprobanteWithoutDatabase(t *testing.T) {
	server := newTestServer(t, &stubExtractor{result: testComprobante()})

	body, _ := json.Marshal(testComprobante())
	req := httptest.NewRequest("POST", "/api/comprobantes", bytes.NewReader(body))
	req.Header.Set("Authorization", authHeader(t))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when database is down", rec.Code)
	}
}

func TestGetComprobantesWithoutDatabase(t *testing.T) {
	server := newTestServer(t, &stubExtractor{result: testComprobante()})

	req := httptest.NewRequest("GET", "/api/comprobantes?page=1&limit=10", nil)
	req.Header.Set("Authorization", authHeader(t))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when database is down", rec.Code)
	}
}
