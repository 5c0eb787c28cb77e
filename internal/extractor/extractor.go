// Package extractor turns unstructured OCR text from payment receipts into a
// fully populated comprobante record. The rule-based implementation here is
// pure pattern matching; the ai package provides a model-backed implementation
// of the same contract.
package extractor

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/textscan/comprobante-service/internal/models"
)

// Extractor is the common contract of both extraction variants: always a
// fully populated record, never partial. "Field not found" is resolved via
// defaults, never reported as an error.
type Extractor interface {
	Extract(ctx context.Context, rawText string) (*models.Comprobante, error)
}

// InvalidInputError reports a truly invalid invocation. Missing fields are
// never an error; this is reserved for input that is not valid text.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

// Titulo is the fixed record title.
const Titulo = "Comprobante de pago"

const (
	defaultFormaPago              = "Forma de pago en dólares, transferencia."
	defaultInformacionRelacionada = "Banco Internacional Cta. Ahorros: 608032998."
	defaultUnidad                 = "Otro ingreso"
	defaultTelefonoReceptor       = "099 480 6251"
	defaultIdentificacionReceptor = "1707158364"
)

// defaultValor applies when no monetary candidate is found in the text.
var defaultValor = decimal.NewFromFloat(350.00)

// Defaults carries the static identity blocks merged into every record.
type Defaults struct {
	Emisor   models.Emisor
	Receptor models.Receptor // FechaCobro is ignored; always today
}

// StandardDefaults returns the built-in issuer/recipient identity blocks.
// Config may override individual blocks.
func StandardDefaults() Defaults {
	return Defaults{
		Emisor: models.Emisor{
			Nombre:    "OLGER RODRIGO FLORES FLORES",
			RUC:       "1703684785001",
			Direccion: "Real Audiencia",
			Telefono:  "0983502111",
		},
		Receptor: models.Receptor{
			Nombre:    "AMADA HORTENCIA CISNEROS BURBANO",
			Direccion: "Calle Real Audiencia N-63-141 y Los Cedros",
		},
	}
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// Fields is the intermediate extraction result. Empty strings and unset
// amount flags mean "not found"; Assemble resolves them against the defaults
// uniformly for both extraction variants.
type Fields struct {
	NumeroSecuencia      string
	DocumentoComprobante string
	Telefono             string
	Identificacion       string

	Valor     decimal.Decimal
	Descuento decimal.Decimal
	Pago      decimal.Decimal
	HasValor  bool
	HasPago   bool
}

// Assemble merges extracted fields with the static defaults into the final
// record. NumeroSecuencia must already be resolved (extracted or generated).
// Every field follows the same rule: use the extracted value if present, else
// the default.
func Assemble(now time.Time, d Defaults, f Fields) *models.Comprobante {
	valor := defaultValor
	if f.HasValor {
		valor = f.Valor
	}
	descuento := f.Descuento
	pago := valor
	if f.HasPago {
		pago = f.Pago
	}

	telefono := f.Telefono
	if telefono == "" {
		telefono = defaultTelefonoReceptor
	}
	identificacion := f.Identificacion
	if identificacion == "" {
		identificacion = defaultIdentificacionReceptor
	}
	documento := f.DocumentoComprobante
	if documento == "" {
		documento = f.NumeroSecuencia
	}

	receptor := d.Receptor
	receptor.Telefono = telefono
	receptor.Identificacion = identificacion
	receptor.FechaCobro = now.Format("2006-01-02")

	detalle := fmt.Sprintf("Arriendo de casa, mes de %s %d",
		spanishMonths[now.Month()-1], now.Year())

	return &models.Comprobante{
		Titulo:          Titulo,
		NumeroSecuencia: f.NumeroSecuencia,
		Emisor:          d.Emisor,
		Receptor:        receptor,
		Items: []models.Item{
			{
				Unidad:    defaultUnidad,
				Detalle:   detalle,
				Valor:     valor,
				Descuento: descuento,
				Pago:      pago,
			},
		},
		Pie: models.Pie{
			FormaPago:              defaultFormaPago,
			DocumentoComprobante:   documento,
			InformacionRelacionada: defaultInformacionRelacionada,
		},
		Totales: models.Totales{
			Subtotal:   valor,
			Descuentos: descuento,
			Total:      pago,
		},
		ProcessedAt: now,
	}
}

// Rules is the rule-based Extractor: an ordered list of regular expressions
// per field, fallback defaults, and arithmetic derivation of totals. It holds
// no mutable state and is safe for concurrent use.
type Rules struct {
	clock    Clock
	sequence SequenceGenerator
	defaults Defaults
}

// NewRules creates a rule-based extractor. A nil clock uses the system clock;
// a nil generator uses the timestamp-suffix strategy.
func NewRules(clock Clock, sequence SequenceGenerator, defaults Defaults) *Rules {
	if clock == nil {
		clock = SystemClock()
	}
	if sequence == nil {
		sequence = &TimestampSuffixGenerator{Clock: clock}
	}
	return &Rules{
		clock:    clock,
		sequence: sequence,
		defaults: defaults,
	}
}

// Extract processes OCR text and returns a structured comprobante. Empty or
// whitespace-only input falls through every not-found path and yields an
// all-defaults record.
func (r *Rules) Extract(ctx context.Context, rawText string) (*models.Comprobante, error) {
	if !utf8.ValidString(rawText) {
		return nil, &InvalidInputError{Reason: "text is not valid UTF-8"}
	}

	var f Fields

	seq, ok := extractSequenceNumber(rawText)
	if !ok {
		generated, err := r.sequence.Generate(ctx)
		if err != nil {
			return nil, fmt.Errorf("sequence generation failed: %w", err)
		}
		seq = generated
	}
	f.NumeroSecuencia = seq

	// Falls back to the sequence number inside Assemble when unmatched.
	f.DocumentoComprobante, _ = extractDocumentNumber(rawText)
	f.Telefono, _ = extractPhoneNumber(rawText)
	f.Identificacion, _ = extractIdentificationNumber(rawText)

	a := extractAmounts(rawText)
	if a.found > 0 {
		f.Valor = a.valor
		f.Pago = a.pago
		f.HasValor = true
		f.HasPago = true
	}
	f.Descuento = a.descuento

	c := Assemble(r.clock.Now(), r.defaults, f)
	c.TextoOCROriginal = rawText
	return c, nil
}
