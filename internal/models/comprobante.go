package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Comprobante represents a structured payment receipt extracted from OCR text
type Comprobante struct {
	Titulo          string   `json:"titulo"`
	NumeroSecuencia string   `json:"numeroSecuencia"`
	Emisor          Emisor   `json:"emisor"`
	Receptor        Receptor `json:"receptor"`
	Items           []Item   `json:"items"`
	Pie             Pie      `json:"pie"`
	Totales         Totales  `json:"totales"`

	// Raw data
	TextoOCROriginal string `json:"textoOcrOriginal,omitempty"` // Complete OCR text
	ImagenPath       string `json:"imagenPath,omitempty"`       // Stored image path

	// Metadata
	ProcessedAt time.Time `json:"processedAt,omitempty"` // When it was extracted
}

// Emisor is the issuing party (landlord) identity block
type Emisor struct {
	Nombre    string `json:"nombre"`
	RUC       string `json:"ruc"`
	Direccion string `json:"direccion"`
	Telefono  string `json:"telefono"`
}

// Receptor is the paying party block
type Receptor struct {
	Nombre         string `json:"nombre"`
	Telefono       string `json:"telefono"`
	Direccion      string `json:"direccion"`
	Identificacion string `json:"identificacion"` // Cedula (10 digits) or RUC (13 digits)
	FechaCobro     string `json:"fechaCobro"`     // YYYY-MM-DD
}

// Item represents a line item in a comprobante
type Item struct {
	Unidad    string          `json:"unidad"`
	Detalle   string          `json:"detalle"`
	Valor     decimal.Decimal `json:"valor"`
	Descuento decimal.Decimal `json:"descuento"`
	Pago      decimal.Decimal `json:"pago"`
}

// Pie is the footer block with payment and bank boilerplate
type Pie struct {
	FormaPago              string `json:"formaPago"`
	DocumentoComprobante   string `json:"documentoComprobante"`
	InformacionRelacionada string `json:"informacionRelacionada"`
}

// Totales holds the aggregate amounts
type Totales struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Descuentos decimal.Decimal `json:"descuentos"`
	Total      decimal.Decimal `json:"total"`
}

// ProcessResponse represents the output of receipt processing
type ProcessResponse struct {
	Success     bool         `json:"success"`
	Comprobante *Comprobante `json:"comprobante,omitempty"`
	Error       string       `json:"error,omitempty"`

	// Processing metadata
	OCRDuration   float64 `json:"ocrDuration,omitempty"` // OCR time in seconds
	AIDuration    float64 `json:"aiDuration,omitempty"`  // Extraction time in seconds
	TotalDuration float64 `json:"totalDuration"`         // Total processing time
}
