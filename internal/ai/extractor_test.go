package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/textscan/comprobante-service/internal/extractor"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

type fixedSequence struct {
	value string
}

func (s fixedSequence) Generate(ctx context.Context) (string, error) {
	return s.value, nil
}

type stubProvider struct {
	response string
	err      error
	prompt   string
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) ExtractData(ctx context.Context, prompt string) (string, error) {
	p.prompt = prompt
	if p.err != nil {
		return "", p.err
	}
	return p.response, nil
}

var testNow = time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)

func newTestModel(provider Provider) *Model {
	return NewModel(provider, fixedClock{testNow}, fixedSequence{value: "882301"}, extractor.StandardDefaults())
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantSeq  string
		wantDoc  string
		wantTel  string
		wantID   string
		valor    string
		hasValor bool
	}{
		{
			name:     "plain json",
			response: `{"numeroSecuencia":"443556","documentoComprobante":"12345678","telefono":"099 555 1234","identificacion":"1717695588","valor":500,"descuento":150,"pago":500}`,
			wantSeq:  "443556",
			wantDoc:  "12345678",
			wantTel:  "099 555 1234",
			wantID:   "1717695588",
			valor:    "500",
			hasValor: true,
		},
		{
			name: "markdown fences",
			response: "```json\n" +
				`{"numeroSecuencia":"443556","valor":410.5}` +
				"\n```",
			wantSeq:  "443556",
			valor:    "410.5",
			hasValor: true,
		},
		{
			name:     "amounts as strings with separators",
			response: `{"numeroSecuencia":"1","valor":"1,350.00"}`,
			wantSeq:  "1",
			valor:    "1350",
			hasValor: true,
		},
		{
			name:     "surrounding prose",
			response: `Aqui esta el resultado: {"numeroSecuencia":"7","valor":200} espero que sirva`,
			wantSeq:  "7",
			valor:    "200",
			hasValor: true,
		},
		{
			name:     "identification with separators is normalized",
			response: `{"identificacion":"170-715-8364"}`,
			wantID:   "1707158364",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := parseResponse(tt.response)
			if err != nil {
				t.Fatalf("parseResponse() error = %v", err)
			}
			if fields.NumeroSecuencia != tt.wantSeq {
				t.Errorf("NumeroSecuencia = %q, want %q", fields.NumeroSecuencia, tt.wantSeq)
			}
			if fields.DocumentoComprobante != tt.wantDoc {
				t.Errorf("DocumentoComprobante = %q, want %q", fields.DocumentoComprobante, tt.wantDoc)
			}
			if fields.Telefono != tt.wantTel {
				t.Errorf("Telefono = %q, want %q", fields.Telefono, tt.wantTel)
			}
			if fields.Identificacion != tt.wantID {
				t.Errorf("Identificacion = %q, want %q", fields.Identificacion, tt.wantID)
			}
			if fields.HasValor != tt.hasValor {
				t.Fatalf("HasValor = %v, want %v", fields.HasValor, tt.hasValor)
			}
			if tt.hasValor && fields.Valor.String() != tt.valor {
				t.Errorf("Valor = %s, want %s", fields.Valor, tt.valor)
			}
		})
	}
}

func TestParseResponsePagoDefaultsToValor(t *testing.T) {
	fields, err := parseResponse(`{"numeroSecuencia":"1","valor":500}`)
	if err != nil {
		t.Fatalf("parseResponse() error = %v", err)
	}
	if !fields.HasPago || fields.Pago.String() != "500" {
		t.Errorf("Pago = %s (has=%v), want 500 mirrored from valor", fields.Pago, fields.HasPago)
	}
}

func TestParseResponseSchemaViolations(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"empty", ""},
		{"no json object", "no pude procesar el texto"},
		{"malformed json", `{"numeroSecuencia": }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseResponse(tt.response)
			var schemaErr *SchemaViolationError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("parseResponse(%q) error = %v, want SchemaViolationError", tt.response, err)
			}
		})
	}
}

func TestModelExtract(t *testing.T) {
	provider := &stubProvider{
		response: `{"numeroSecuencia":"443556","documentoComprobante":"12345678","telefono":"099 555 1234","identificacion":"1717695588","valor":500,"descuento":150,"pago":500}`,
	}
	model := newTestModel(provider)

	c, err := model.Extract(context.Background(), "texto del recibo")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if c.NumeroSecuencia != "443556" {
		t.Errorf("NumeroSecuencia = %q", c.NumeroSecuencia)
	}
	if c.Pie.DocumentoComprobante != "12345678" {
		t.Errorf("DocumentoComprobante = %q", c.Pie.DocumentoComprobante)
	}
	if got := c.Totales.Total.StringFixed(2); got != "500.00" {
		t.Errorf("Total = %s, want 500.00", got)
	}
	if got := c.Totales.Descuentos.StringFixed(2); got != "150.00" {
		t.Errorf("Descuentos = %s, want 150.00", got)
	}
	if c.TextoOCROriginal != "texto del recibo" {
		t.Error("TextoOCROriginal not preserved")
	}
	if !strings.Contains(provider.prompt, "texto del recibo") {
		t.Error("prompt does not include the OCR text")
	}
}

func TestModelExtractGeneratesSequenceWhenMissing(t *testing.T) {
	provider := &stubProvider{response: `{"valor":200}`}
	model := newTestModel(provider)

	c, err := model.Extract(context.Background(), "recibo sin numero")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if c.NumeroSecuencia != "882301" {
		t.Errorf("NumeroSecuencia = %q, want generated %q", c.NumeroSecuencia, "882301")
	}
	if c.Pie.DocumentoComprobante != "882301" {
		t.Errorf("DocumentoComprobante = %q, want sequence fallback", c.Pie.DocumentoComprobante)
	}
}

func TestModelExtractBackendUnavailable(t *testing.T) {
	provider := &stubProvider{err: errors.New("connection refused")}
	model := newTestModel(provider)

	_, err := model.Extract(context.Background(), "texto")

	var backendErr *BackendUnavailableError
	if !errors.As(err, &backendErr) {
		t.Fatalf("Extract() error = %v, want BackendUnavailableError", err)
	}
	if backendErr.Provider != "stub" {
		t.Errorf("Provider = %q, want stub", backendErr.Provider)
	}
}

func TestModelExtractInvalidUTF8(t *testing.T) {
	model := newTestModel(&stubProvider{response: "{}"})

	_, err := model.Extract(context.Background(), "texto \xff\xfe")

	var invalidInput *extractor.InvalidInputError
	if !errors.As(err, &invalidInput) {
		t.Fatalf("Extract() error = %v, want InvalidInputError", err)
	}
}
