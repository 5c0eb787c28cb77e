package extractor

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// fieldPattern is one entry in an ordered trial list. Order is a deliberate
// priority ranking: the first pattern that matches wins and later entries are
// never consulted.
type fieldPattern struct {
	re      *regexp.Regexp
	capture int
}

// Sequence number labels, highest priority first.
var sequencePatterns = []fieldPattern{
	{regexp.MustCompile(`(?i)(?:n[ºo°]|numero|no\.?)\s*:?\s*(\d+)`), 1},
	{regexp.MustCompile(`(?i)(?:secuencia|seq)\s*:?\s*(\d+)`), 1},
	{regexp.MustCompile(`(?i)(?:ref|referencia)\s*:?\s*(\d+)`), 1},
}

// Document/comprobante number. The bare "comprobante:" form outranks the
// labeled variants; the long-form entry picks up 8+ digit bank voucher numbers.
var documentPatterns = []fieldPattern{
	{regexp.MustCompile(`(?i)comprobante\s*:?\s*(\d+)`), 1},
	{regexp.MustCompile(`(?i)(?:comprobante|documento|recibo)\s*(?:n[ºo°]|numero|no\.?)?\s*:?\s*(\d+)`), 1},
	{regexp.MustCompile(`(?i)(?:doc|comp)\s*:?\s*(\d+)`), 1},
	{regexp.MustCompile(`(?i)(?:comprobante|voucher|recibo)\s*:?\s*(\d{8,})`), 1},
}

// Phone numbers in the local 3-3-4 grouping, labeled form first.
var phonePatterns = []fieldPattern{
	{regexp.MustCompile(`(?i)(?:tel|telefono|phone|cel|celular)\s*:?\s*(\d{3}[\s\-]?\d{3}[\s\-]?\d{4})`), 1},
	{regexp.MustCompile(`(\d{3}[\s\-]?\d{3}[\s\-]?\d{4})`), 1},
}

// Identification numbers: labeled cedula (10 digits), labeled RUC (13 digits),
// then any bare 10-13 digit run. The trial order is kept exactly as-is even
// though a bare run can shadow a labeled RUC appearing later in the list; the
// regression tests pin this behavior.
var identificationPatterns = []fieldPattern{
	{regexp.MustCompile(`(?i)(?:ci|cedula|identificacion|id)\s*:?\s*(\d{10})`), 1},
	{regexp.MustCompile(`(?i)(?:ruc)\s*:?\s*(\d{13})`), 1},
	{regexp.MustCompile(`(\d{10,13})`), 1},
}

// Monetary candidates: $-prefixed, currency-word suffixed, and labeled amounts.
// All three families contribute to one candidate list.
var amountPatterns = []fieldPattern{
	{regexp.MustCompile(`\$(\d+(?:\.\d{2})?)`), 1},
	{regexp.MustCompile(`(?i)(\d+(?:\.\d{2})?)\s*(?:usd|dolares?|dollars?)`), 1},
	{regexp.MustCompile(`(?i)(?:valor|monto|total|pago)\s*:?\s*\$?(\d+(?:\.\d{2})?)`), 1},
}

// matchFirst walks an ordered pattern list and returns the captured group of
// the first pattern that matches anywhere in text.
func matchFirst(text string, patterns []fieldPattern) (string, bool) {
	for _, p := range patterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			return m[p.capture], true
		}
	}
	return "", false
}

func extractSequenceNumber(text string) (string, bool) {
	return matchFirst(text, sequencePatterns)
}

func extractDocumentNumber(text string) (string, bool) {
	return matchFirst(text, documentPatterns)
}

func extractPhoneNumber(text string) (string, bool) {
	return matchFirst(text, phonePatterns)
}

func extractIdentificationNumber(text string) (string, bool) {
	return matchFirst(text, identificationPatterns)
}

// amounts is the result of reconciling monetary candidates found in the text.
// Zero-valued fields mean "not found"; the assembler applies the defaults.
type amounts struct {
	valor     decimal.Decimal
	descuento decimal.Decimal
	pago      decimal.Decimal
	found     int // number of candidates collected
}

// extractAmounts collects every monetary candidate across all pattern
// families, sorts descending, and assigns by rank: the largest amount is
// assumed to be the receipt total, the gap to the second-largest becomes the
// discount. Ties keep their collection order (stable sort).
func extractAmounts(text string) amounts {
	var candidates []decimal.Decimal
	for _, p := range amountPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			v, err := strconv.ParseFloat(m[p.capture], 64)
			if err != nil || v <= 0 {
				continue
			}
			candidates = append(candidates, decimal.NewFromFloat(v))
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].GreaterThan(candidates[j])
	})

	a := amounts{found: len(candidates)}
	if len(candidates) > 0 {
		a.valor = candidates[0]
		a.pago = candidates[0]
	}
	if len(candidates) > 1 {
		a.descuento = candidates[0].Sub(candidates[1])
	}
	return a
}
