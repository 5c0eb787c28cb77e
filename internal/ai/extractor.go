// Package ai implements the model-backed extraction variant: the same
// contract as the rule-based extractor, with the field set and defaults
// expressed as a schema prompt to a text-completion backend.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/textscan/comprobante-service/internal/extractor"
	"github.com/textscan/comprobante-service/internal/models"
)

// Model is the generative-model-backed Extractor. The extraction logic
// (which fields, what defaults, what derivations) lives in the prompt schema;
// the output contract is identical to the rule-based variant.
type Model struct {
	provider Provider
	clock    extractor.Clock
	sequence extractor.SequenceGenerator
	defaults extractor.Defaults
}

// NewModel creates a model-backed extractor on the given provider.
func NewModel(provider Provider, clock extractor.Clock, sequence extractor.SequenceGenerator, defaults extractor.Defaults) *Model {
	if clock == nil {
		clock = extractor.SystemClock()
	}
	if sequence == nil {
		sequence = &extractor.TimestampSuffixGenerator{Clock: clock}
	}
	return &Model{
		provider: provider,
		clock:    clock,
		sequence: sequence,
		defaults: defaults,
	}
}

// Extract sends the OCR text to the model, parses the structured response and
// assembles the final record through the shared assembler so the two variants
// cannot drift apart.
func (m *Model) Extract(ctx context.Context, rawText string) (*models.Comprobante, error) {
	if !utf8.ValidString(rawText) {
		return nil, &extractor.InvalidInputError{Reason: "text is not valid UTF-8"}
	}

	response, err := m.provider.ExtractData(ctx, m.buildPrompt(rawText))
	if err != nil {
		return nil, &BackendUnavailableError{Provider: m.provider.Name(), Err: err}
	}

	fields, err := parseResponse(response)
	if err != nil {
		return nil, err
	}

	if fields.NumeroSecuencia == "" {
		generated, err := m.sequence.Generate(ctx)
		if err != nil {
			return nil, fmt.Errorf("sequence generation failed: %w", err)
		}
		fields.NumeroSecuencia = generated
	}

	c := extractor.Assemble(m.clock.Now(), m.defaults, fields)
	c.TextoOCROriginal = rawText
	return c, nil
}

// buildPrompt declares the comprobante field set with a per-field extraction
// instruction. The schema must stay in lockstep with the rule-based patterns.
func (m *Model) buildPrompt(ocrText string) string {
	return fmt.Sprintf(`Eres un EXPERTO en comprobantes de pago de arriendo del Ecuador. Tu trabajo es extraer los datos de este texto OCR.

## CAMPOS A EXTRAER

Devuelve SOLO JSON valido (sin markdown, sin comentarios):
{
  "numeroSecuencia": "numero del comprobante - busca 'Nº', 'No.', 'Numero', 'Secuencia', 'Ref' seguido de digitos, null si no aparece",
  "documentoComprobante": "numero de documento o voucher bancario - busca 'Comprobante:', 'Documento No', 'Doc', 'Recibo' seguido de digitos, null si no aparece",
  "telefono": "telefono del receptor en formato XXX XXX XXXX - busca 'Tel', 'Telefono', 'Cel', 'Celular', null si no aparece",
  "identificacion": "cedula (10 digitos) o RUC (13 digitos) del receptor - busca 'CI', 'Cedula', 'RUC', null si no aparece",
  "valor": numero (el monto MAS GRANDE que aparezca, con dos decimales, null si no hay montos),
  "descuento": numero (monto mayor menos el segundo mayor cuando hay dos o mas montos, 0 si no),
  "pago": numero (igual al valor, null si no hay montos)
}

## REGLAS CRITICAS
1. El VALOR siempre es el monto MAS GRANDE del texto ($, USD, dolares, o etiquetado 'Valor', 'Monto', 'Total', 'Pago')
2. NUNCA inventes datos - usa null si no puedes leer un campo
3. Los montos deben ser numeros decimales (no strings)
4. Cedula ecuatoriana: 10 digitos. RUC: 13 digitos. Quita guiones y espacios
5. NO calcules montos que no aparezcan en el texto; el descuento es la unica resta permitida

AHORA ANALIZA EL TEXTO y extrae los datos.

Texto del comprobante:
%s`, ocrText)
}

// parseResponse converts the model JSON into extraction fields, tolerating
// markdown fences and loose number formats.
func parseResponse(response string) (extractor.Fields, error) {
	var fields extractor.Fields

	cleaned := stripFences(response)
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return fields, &SchemaViolationError{Detail: "no JSON object in response"}
	}
	cleaned = cleaned[start : end+1]

	// interface{} amounts tolerate numbers, strings, and thousands separators
	var raw struct {
		NumeroSecuencia      string      `json:"numeroSecuencia"`
		DocumentoComprobante string      `json:"documentoComprobante"`
		Telefono             string      `json:"telefono"`
		Identificacion       string      `json:"identificacion"`
		Valor                interface{} `json:"valor"`
		Descuento            interface{} `json:"descuento"`
		Pago                 interface{} `json:"pago"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return fields, &SchemaViolationError{Detail: "JSON parse error", Err: err}
	}

	fields.NumeroSecuencia = cleanDigits(raw.NumeroSecuencia)
	fields.DocumentoComprobante = cleanDigits(raw.DocumentoComprobante)
	fields.Telefono = strings.TrimSpace(raw.Telefono)
	fields.Identificacion = cleanDigits(raw.Identificacion)

	if v, ok := parseDecimal(raw.Valor); ok {
		fields.Valor = v
		fields.HasValor = true
	}
	if v, ok := parseDecimal(raw.Pago); ok {
		fields.Pago = v
		fields.HasPago = true
	} else if fields.HasValor {
		fields.Pago = fields.Valor
		fields.HasPago = true
	}
	if v, ok := parseDecimal(raw.Descuento); ok && !v.IsNegative() {
		fields.Descuento = v
	}

	return fields, nil
}

func stripFences(response string) string {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}

// parseDecimal handles flexible number parsing from interface{}.
// Supports: numbers, strings, strings with commas (e.g., "3,965.34").
func parseDecimal(v interface{}) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case string:
		if val == "" {
			return decimal.Zero, false
		}
		cleaned := strings.ReplaceAll(val, ",", "")
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case json.Number:
		d, err := decimal.NewFromString(string(val))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

func cleanDigits(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
