package extractor

import (
	"testing"
)

func TestExtractSequenceNumber(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  string
		found bool
	}{
		{"labeled no", "Transferencia No. 443556 realizada", "443556", true},
		{"labeled numero", "numero: 789123", "789123", true},
		{"ordinal sign", "Nº 55512", "55512", true},
		{"secuencia label", "secuencia 120045", "120045", true},
		{"referencia label", "Referencia: 990011", "990011", true},
		{"no label outranks referencia", "Ref: 111 No: 222", "222", true},
		{"nothing", "sin datos utiles", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := extractSequenceNumber(tt.text)
			if found != tt.found || got != tt.want {
				t.Errorf("extractSequenceNumber(%q) = %q, %v; want %q, %v",
					tt.text, got, found, tt.want, tt.found)
			}
		})
	}
}

func TestExtractDocumentNumber(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  string
		found bool
	}{
		{"bare comprobante label", "Comprobante: 12345678", "12345678", true},
		{"documento label", "Documento No: 8877", "8877", true},
		{"doc shorthand", "doc 445566", "445566", true},
		{"long voucher", "voucher 0005523341", "0005523341", true},
		{"comprobante outranks documento", "Documento: 99 Comprobante: 12345678", "12345678", true},
		{"no digits", "comprobante sin numero", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := extractDocumentNumber(tt.text)
			if found != tt.found || got != tt.want {
				t.Errorf("extractDocumentNumber(%q) = %q, %v; want %q, %v",
					tt.text, got, found, tt.want, tt.found)
			}
		})
	}
}

func TestExtractPhoneNumber(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  string
		found bool
	}{
		{"labeled with spaces", "Tel: 099 480 6251", "099 480 6251", true},
		{"labeled with dashes", "cel 098-765-4321", "098-765-4321", true},
		{"bare", "llamar al 0991234567", "0991234567", true},
		{"none", "sin contacto", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := extractPhoneNumber(tt.text)
			if found != tt.found || got != tt.want {
				t.Errorf("extractPhoneNumber(%q) = %q, %v; want %q, %v",
					tt.text, got, found, tt.want, tt.found)
			}
		})
	}
}

func TestExtractIdentificationNumber(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  string
		found bool
	}{
		{"labeled cedula", "CI: 1707158364", "1707158364", true},
		{"labeled ruc", "RUC: 1703684785001", "1703684785001", true},
		{"bare run", "identidad 17071583640011", "1707158364001", true},
		// The labeled RUC pattern is tried before the bare run, so a 13-digit
		// RUC appearing after a bare 10-digit number still wins.
		{"labeled ruc beats earlier bare run", "cuenta 6080329981 RUC: 1703684785001", "1703684785001", true},
		{"labeled cedula beats labeled ruc", "RUC: 1703684785001 CI: 1707158364", "1707158364", true},
		{"too short", "id 12345", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := extractIdentificationNumber(tt.text)
			if found != tt.found || got != tt.want {
				t.Errorf("extractIdentificationNumber(%q) = %q, %v; want %q, %v",
					tt.text, got, found, tt.want, tt.found)
			}
		})
	}
}

func TestExtractAmounts(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		found         int
		wantValor     string
		wantDescuento string
		wantPago      string
	}{
		{
			name:          "largest wins and gap is discount",
			text:          "Se recibieron $500 menos $350 y $120",
			found:         3,
			wantValor:     "500",
			wantDescuento: "150",
			wantPago:      "500",
		},
		{
			name:          "single amount has no discount",
			text:          "pagó $200 en efectivo",
			found:         1,
			wantValor:     "200",
			wantDescuento: "0",
			wantPago:      "200",
		},
		{
			name:          "currency word form",
			text:          "350.00 dolares recibidos",
			found:         1,
			wantValor:     "350",
			wantDescuento: "0",
			wantPago:      "350",
		},
		{
			name:          "labeled amount without symbol",
			text:          "Valor: 410.50",
			found:         1,
			wantValor:     "410.5",
			wantDescuento: "0",
			wantPago:      "410.5",
		},
		{
			name:  "zero amounts are discarded",
			text:  "$0 y $0.00",
			found: 0,
		},
		{
			name:  "no amounts",
			text:  "texto sin montos",
			found: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractAmounts(tt.text)
			if got.found != tt.found {
				t.Fatalf("found = %d, want %d", got.found, tt.found)
			}
			if tt.found == 0 {
				return
			}
			if got.valor.String() != tt.wantValor {
				t.Errorf("valor = %s, want %s", got.valor, tt.wantValor)
			}
			if got.descuento.String() != tt.wantDescuento {
				t.Errorf("descuento = %s, want %s", got.descuento, tt.wantDescuento)
			}
			if got.pago.String() != tt.wantPago {
				t.Errorf("pago = %s, want %s", got.pago, tt.wantPago)
			}
		})
	}
}
