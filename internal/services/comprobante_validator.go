package services

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/textscan/comprobante-service/internal/models"
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field    string `json:"field"`
	Code     string `json:"code"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ValidationWarning represents a non-critical issue
type ValidationWarning struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ComputedValues holds calculated/expected values
type ComputedValues struct {
	SubtotalEsperado float64 `json:"subtotal_esperado"`
	TotalEsperado    float64 `json:"total_esperado"`
	Descuentos       float64 `json:"descuentos"`
}

// ValidationResult is the response from validation. Warnings never block
// persistence; they flag the record for review.
type ValidationResult struct {
	Valid       bool                `json:"valid"`
	NeedsReview bool                `json:"needs_review"`
	Errors      []ValidationError   `json:"errors"`
	Warnings    []ValidationWarning `json:"warnings"`
	Computed    ComputedValues      `json:"computed"`
}

var phoneShapeRegex = regexp.MustCompile(`^\d{10}$`)

// ValidateComprobante checks structural and arithmetic consistency of an
// extracted or user-edited comprobante.
func ValidateComprobante(c *models.Comprobante) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if c.NumeroSecuencia == "" {
		result.addError(ValidationError{
			Field:   "numeroSecuencia",
			Code:    "SECUENCIA_VACIA",
			Message: "el numero de secuencia no puede estar vacio",
		})
	}
	if c.Pie.DocumentoComprobante == "" {
		result.addError(ValidationError{
			Field:   "pie.documentoComprobante",
			Code:    "DOCUMENTO_VACIO",
			Message: "el documento comprobante no puede estar vacio",
		})
	}

	if len(c.Items) == 0 {
		result.addError(ValidationError{
			Field:   "items",
			Code:    "SIN_ITEMS",
			Message: "el comprobante no tiene items",
		})
	} else {
		last := c.Items[len(c.Items)-1]

		// Single-item passthrough: totals mirror the last line item
		if !c.Totales.Subtotal.Equal(last.Valor) {
			result.addError(ValidationError{
				Field:    "totales.subtotal",
				Code:     "SUBTOTAL_INCONSISTENTE",
				Expected: last.Valor.StringFixed(2),
				Actual:   c.Totales.Subtotal.StringFixed(2),
			})
		}
		if !c.Totales.Total.Equal(last.Pago) {
			result.addError(ValidationError{
				Field:    "totales.total",
				Code:     "TOTAL_INCONSISTENTE",
				Expected: last.Pago.StringFixed(2),
				Actual:   c.Totales.Total.StringFixed(2),
			})
		}

		result.Computed = ComputedValues{
			SubtotalEsperado: last.Valor.InexactFloat64(),
			TotalEsperado:    last.Pago.InexactFloat64(),
			Descuentos:       c.Totales.Descuentos.InexactFloat64(),
		}
	}

	for _, d := range []struct {
		field string
		value decimal.Decimal
	}{
		{"totales.subtotal", c.Totales.Subtotal},
		{"totales.descuentos", c.Totales.Descuentos},
		{"totales.total", c.Totales.Total},
	} {
		if d.value.IsNegative() {
			result.addError(ValidationError{
				Field:   d.field,
				Code:    "MONTO_NEGATIVO",
				Actual:  d.value.StringFixed(2),
				Message: "los montos no pueden ser negativos",
			})
		}
	}

	if _, err := time.Parse("2006-01-02", c.Receptor.FechaCobro); err != nil {
		result.addError(ValidationError{
			Field:   "receptor.fechaCobro",
			Code:    "FECHA_INVALIDA",
			Actual:  c.Receptor.FechaCobro,
			Message: "la fecha de cobro debe tener formato YYYY-MM-DD",
		})
	}

	validateIdentification(c.Receptor.Identificacion, result)

	if phone := stripSeparators(c.Receptor.Telefono); !phoneShapeRegex.MatchString(phone) {
		result.addWarning(ValidationWarning{
			Field:   "receptor.telefono",
			Code:    "TELEFONO_FORMATO",
			Message: "el telefono no tiene 10 digitos",
		})
	}

	return result
}

// validateIdentification applies the Ecuadorian check-digit rules: cedula is
// 10 digits with a mod-10 check digit, RUC for natural persons is a valid
// cedula plus the "001" establishment suffix.
func validateIdentification(id string, result *ValidationResult) {
	digits := stripSeparators(id)

	switch len(digits) {
	case 10:
		if !validCedula(digits) {
			result.addWarning(ValidationWarning{
				Field:   "receptor.identificacion",
				Code:    "CEDULA_DIGITO_VERIFICADOR",
				Message: "la cedula no pasa la verificacion modulo 10",
			})
		}
	case 13:
		if !validCedula(digits[:10]) {
			result.addWarning(ValidationWarning{
				Field:   "receptor.identificacion",
				Code:    "RUC_BASE_INVALIDA",
				Message: "los primeros 10 digitos del RUC no forman una cedula valida",
			})
		}
		if digits[10:] != "001" {
			result.addWarning(ValidationWarning{
				Field:   "receptor.identificacion",
				Code:    "RUC_SUFIJO",
				Message: "el RUC de persona natural termina en 001",
			})
		}
	default:
		result.addWarning(ValidationWarning{
			Field:   "receptor.identificacion",
			Code:    "IDENTIFICACION_LONGITUD",
			Message: "la identificacion debe tener 10 (cedula) o 13 (RUC) digitos",
		})
	}
}

// validCedula checks the mod-10 verification digit of an Ecuadorian cedula.
// Odd positions (1st, 3rd, ...) are doubled, products above 9 subtract 9; the
// check digit completes the sum to the next multiple of 10.
func validCedula(digits string) bool {
	if len(digits) != 10 {
		return false
	}
	province := int(digits[0]-'0')*10 + int(digits[1]-'0')
	if province < 1 || province > 24 {
		return false
	}
	if digits[2]-'0' > 5 {
		return false
	}

	sum := 0
	for i := 0; i < 9; i++ {
		d := int(digits[i] - '0')
		if i%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	check := (10 - sum%10) % 10
	return check == int(digits[9]-'0')
}

func stripSeparators(s string) string {
	return strings.NewReplacer(" ", "", "-", "", ".", "").Replace(s)
}

func (r *ValidationResult) addError(e ValidationError) {
	r.Errors = append(r.Errors, e)
	r.Valid = false
	r.NeedsReview = true
}

func (r *ValidationResult) addWarning(w ValidationWarning) {
	r.Warnings = append(r.Warnings, w)
	r.NeedsReview = true
}
