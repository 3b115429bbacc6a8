package broker

// instruments.go — tabla de referencia de futuros desde el dump CSV.
//
// El dump de /instruments/NFO lista todos los derivados del segmento. De
// cada subyacente interesa solo el contrato FUT sin vencer más cercano, que
// es donde está la liquidez del carry.

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alejandrodnm/kitebot/internal/domain"
)

const (
	instrumentsPath = "/instruments/NFO"

	// el dump se regenera una vez al día; recachear por hora es de sobra
	instrumentsTTL = time.Hour
)

// FuturesRefs implementa ports.InstrumentProvider. Devuelve el contrato de
// futuros vigente más cercano de cada subyacente pedido; los subyacentes
// sin contrato se omiten del mapa.
func (c *Client) FuturesRefs(ctx context.Context, symbols []string) (map[string]domain.InstrumentRef, error) {
	rows, err := c.instrumentDump(ctx)
	if err != nil {
		return nil, fmt.Errorf("broker.FuturesRefs: %w", err)
	}

	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		if s != "" {
			wanted[s] = true
		}
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	refs := make(map[string]domain.InstrumentRef, len(wanted))
	for _, row := range rows {
		if !wanted[row.Name] || row.Expiry.Before(today) {
			continue
		}
		if current, ok := refs[row.Name]; ok && !row.Expiry.Before(current.Expiry) {
			continue
		}
		refs[row.Name] = domain.InstrumentRef{
			Symbol:        row.Name,
			FuturesSymbol: row.TradingSymbol,
			Exchange:      row.Exchange,
			Expiry:        row.Expiry,
			LotSize:       row.LotSize,
		}
	}

	if len(refs) < len(wanted) {
		slog.Debug("subyacentes sin contrato FUT vigente",
			"pedidos", len(wanted),
			"con_contrato", len(refs),
		)
	}
	return refs, nil
}

// instrumentDump devuelve las filas FUT del dump, cacheadas hasta que vence
// el TTL. El dump pesa varios MB; bajarlo en cada ciclo de escaneo no tiene
// sentido.
func (c *Client) instrumentDump(ctx context.Context) ([]instrumentRow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dump != nil && time.Since(c.dumpAt) < instrumentsTTL {
		return c.dump, nil
	}

	var rows []instrumentRow
	err := c.doWithRetry(ctx, c.dataLimiter, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+instrumentsPath, nil)
		if err != nil {
			return nil, err
		}
		c.authorize(req)
		req.Header.Set("Accept", "text/csv")
		return c.http.Do(req)
	}, func(resp *http.Response) error {
		parsed, err := parseInstrumentsCSV(resp.Body)
		if err != nil {
			return err
		}
		rows = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.dump = rows
	c.dumpAt = time.Now()
	slog.Info("dump de instrumentos refrescado", "futuros", len(rows))
	return rows, nil
}

// parseInstrumentsCSV extrae las filas FUT del dump. Las columnas se
// resuelven por nombre de cabecera, no por posición.
func parseInstrumentsCSV(r io.Reader) ([]instrumentRow, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("leer cabecera del dump: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"tradingsymbol", "name", "expiry", "lot_size", "instrument_type", "exchange"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("dump sin columna %q", required)
		}
	}

	var rows []instrumentRow
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("leer fila del dump: %w", err)
		}
		if rec[col["instrument_type"]] != "FUT" {
			continue
		}
		expiry, err := time.ParseInLocation("2006-01-02", rec[col["expiry"]], time.UTC)
		if err != nil {
			// sin vencimiento parseable la fila no sirve como referencia
			continue
		}
		lotSize, err := strconv.Atoi(rec[col["lot_size"]])
		if err != nil || lotSize <= 0 {
			continue
		}
		rows = append(rows, instrumentRow{
			TradingSymbol: rec[col["tradingsymbol"]],
			Name:          rec[col["name"]],
			Expiry:        expiry,
			LotSize:       lotSize,
			Exchange:      rec[col["exchange"]],
		})
	}
	return rows, nil
}
