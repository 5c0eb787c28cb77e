package db

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/textscan/comprobante-service/internal/models"
)

// SavedComprobante is a persisted record with its storage identity.
type SavedComprobante struct {
	ID              int64              `json:"id"`
	NumeroSecuencia string             `json:"numeroSecuencia"`
	Data            models.Comprobante `json:"comprobanteData"`
	FechaCreacion   time.Time          `json:"fechaCreacion"`
}

// SaveComprobante persists a comprobante header plus its ordered items in one
// transaction and fills in the assigned id and creation timestamp.
func SaveComprobante(ctx context.Context, c *models.Comprobante) (*SavedComprobante, error) {
	if Pool == nil {
		return nil, ErrNoDatabase
	}

	tx, err := Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	saved := &SavedComprobante{
		NumeroSecuencia: c.NumeroSecuencia,
		Data:            *c,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO comprobantes (
			numero_secuencia, titulo, emisor_nombre, emisor_ruc, emisor_direccion, emisor_telefono,
			receptor_nombre, receptor_telefono, receptor_direccion, receptor_identificacion, receptor_fecha_cobro,
			forma_pago, documento_comprobante, informacion_relacionada,
			subtotal, descuentos, total, texto_ocr_original, imagen_path
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, fecha_creacion
	`,
		c.NumeroSecuencia, c.Titulo,
		c.Emisor.Nombre, c.Emisor.RUC, c.Emisor.Direccion, c.Emisor.Telefono,
		c.Receptor.Nombre, c.Receptor.Telefono, c.Receptor.Direccion,
		c.Receptor.Identificacion, c.Receptor.FechaCobro,
		c.Pie.FormaPago, c.Pie.DocumentoComprobante, c.Pie.InformacionRelacionada,
		c.Totales.Subtotal.InexactFloat64(), c.Totales.Descuentos.InexactFloat64(),
		c.Totales.Total.InexactFloat64(), c.TextoOCROriginal, c.ImagenPath,
	).Scan(&saved.ID, &saved.FechaCreacion)
	if err != nil {
		return nil, fmt.Errorf("insert comprobante: %w", err)
	}

	for i, item := range c.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO comprobante_items (comprobante_id, unidad, detalle, valor, descuento, pago, orden)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, saved.ID, item.Unidad, item.Detalle,
			item.Valor.InexactFloat64(), item.Descuento.InexactFloat64(),
			item.Pago.InexactFloat64(), i+1)
		if err != nil {
			return nil, fmt.Errorf("insert item %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return saved, nil
}

// GetComprobante retrieves a single comprobante by ID with its items.
// Returns (nil, nil) when the record does not exist.
func GetComprobante(ctx context.Context, id int64) (*SavedComprobante, error) {
	if Pool == nil {
		return nil, ErrNoDatabase
	}

	rows, err := Pool.Query(ctx, comprobanteSelect+` WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	saved, err := scanComprobante(rows)
	if err != nil {
		return nil, err
	}
	rows.Close()

	if err := loadItems(ctx, saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// GetComprobantes returns a page of comprobantes, newest first, plus the
// total record count.
func GetComprobantes(ctx context.Context, page, limit int) ([]SavedComprobante, int, error) {
	if Pool == nil {
		return nil, 0, ErrNoDatabase
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	var total int
	if err := Pool.QueryRow(ctx, `SELECT COUNT(*) FROM comprobantes`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count comprobantes: %w", err)
	}

	rows, err := Pool.Query(ctx,
		comprobanteSelect+` ORDER BY fecha_creacion DESC LIMIT $1 OFFSET $2`,
		limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []SavedComprobante
	for rows.Next() {
		saved, err := scanComprobante(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *saved)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range result {
		if err := loadItems(ctx, &result[i]); err != nil {
			return nil, 0, err
		}
	}
	return result, total, nil
}

// DeleteComprobante removes a comprobante and its items.
func DeleteComprobante(ctx context.Context, id int64) error {
	if Pool == nil {
		return ErrNoDatabase
	}
	if _, err := Pool.Exec(ctx, `DELETE FROM comprobante_items WHERE comprobante_id = $1`, id); err != nil {
		return err
	}
	_, err := Pool.Exec(ctx, `DELETE FROM comprobantes WHERE id = $1`, id)
	return err
}

// NextDailySequence atomically increments and returns the per-day counter
// that backs generated sequence numbers. day is YYYY-MM-DD.
func NextDailySequence(ctx context.Context, day string) (int, error) {
	if Pool == nil {
		return 0, ErrNoDatabase
	}

	var counter int
	err := Pool.QueryRow(ctx, `
		INSERT INTO secuencias_diarias (dia, contador)
		VALUES ($1, 1)
		ON CONFLICT (dia) DO UPDATE SET contador = secuencias_diarias.contador + 1
		RETURNING contador
	`, day).Scan(&counter)
	if err != nil {
		return 0, fmt.Errorf("next daily sequence: %w", err)
	}
	return counter, nil
}

// MonthlyStats represents monthly statistics
type MonthlyStats struct {
	Month             string  `json:"month"`
	TotalComprobantes int     `json:"total_comprobantes"`
	TotalSubtotal     float64 `json:"total_subtotal"`
	TotalDescuentos   float64 `json:"total_descuentos"`
	TotalMonto        float64 `json:"total_monto"`
}

// GetMonthlyStats returns statistics for the current month
func GetMonthlyStats(ctx context.Context) (*MonthlyStats, error) {
	if Pool == nil {
		return nil, ErrNoDatabase
	}

	stats := &MonthlyStats{
		Month: time.Now().Format("2006-01"),
	}
	err := Pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(subtotal), 0),
			COALESCE(SUM(descuentos), 0),
			COALESCE(SUM(total), 0)
		FROM comprobantes
		WHERE DATE_TRUNC('month', fecha_creacion) = DATE_TRUNC('month', CURRENT_DATE)
	`).Scan(&stats.TotalComprobantes, &stats.TotalSubtotal, &stats.TotalDescuentos, &stats.TotalMonto)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

const comprobanteSelect = `
	SELECT id, COALESCE(numero_secuencia, ''), COALESCE(titulo, ''),
	       COALESCE(emisor_nombre, ''), COALESCE(emisor_ruc, ''), COALESCE(emisor_direccion, ''), COALESCE(emisor_telefono, ''),
	       COALESCE(receptor_nombre, ''), COALESCE(receptor_telefono, ''), COALESCE(receptor_direccion, ''),
	       COALESCE(receptor_identificacion, ''), COALESCE(receptor_fecha_cobro, ''),
	       COALESCE(forma_pago, ''), COALESCE(documento_comprobante, ''), COALESCE(informacion_relacionada, ''),
	       COALESCE(subtotal, 0), COALESCE(descuentos, 0), COALESCE(total, 0),
	       COALESCE(texto_ocr_original, ''), COALESCE(imagen_path, ''), fecha_creacion
	FROM comprobantes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComprobante(row rowScanner) (*SavedComprobante, error) {
	var saved SavedComprobante
	var subtotal, descuentos, total float64

	err := row.Scan(
		&saved.ID, &saved.NumeroSecuencia, &saved.Data.Titulo,
		&saved.Data.Emisor.Nombre, &saved.Data.Emisor.RUC,
		&saved.Data.Emisor.Direccion, &saved.Data.Emisor.Telefono,
		&saved.Data.Receptor.Nombre, &saved.Data.Receptor.Telefono,
		&saved.Data.Receptor.Direccion, &saved.Data.Receptor.Identificacion,
		&saved.Data.Receptor.FechaCobro,
		&saved.Data.Pie.FormaPago, &saved.Data.Pie.DocumentoComprobante,
		&saved.Data.Pie.InformacionRelacionada,
		&subtotal, &descuentos, &total,
		&saved.Data.TextoOCROriginal, &saved.Data.ImagenPath, &saved.FechaCreacion,
	)
	if err != nil {
		return nil, err
	}

	saved.Data.NumeroSecuencia = saved.NumeroSecuencia
	saved.Data.Totales = models.Totales{
		Subtotal:   decimal.NewFromFloat(subtotal),
		Descuentos: decimal.NewFromFloat(descuentos),
		Total:      decimal.NewFromFloat(total),
	}
	return &saved, nil
}

func loadItems(ctx context.Context, saved *SavedComprobante) error {
	rows, err := Pool.Query(ctx, `
		SELECT COALESCE(unidad, ''), COALESCE(detalle, ''),
		       COALESCE(valor, 0), COALESCE(descuento, 0), COALESCE(pago, 0)
		FROM comprobante_items
		WHERE comprobante_id = $1
		ORDER BY orden
	`, saved.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	saved.Data.Items = nil
	for rows.Next() {
		var item models.Item
		var valor, descuento, pago float64
		if err := rows.Scan(&item.Unidad, &item.Detalle, &valor, &descuento, &pago); err != nil {
			return err
		}
		item.Valor = decimal.NewFromFloat(valor)
		item.Descuento = decimal.NewFromFloat(descuento)
		item.Pago = decimal.NewFromFloat(pago)
		saved.Data.Items = append(saved.Data.Items, item)
	}
	return rows.Err()
}
