package broker

// quotes.go — cotizaciones spot y de futuros vía GET /quote.

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/alejandrodnm/kitebot/internal/domain"
)

const (
	quotePath       = "/quote"
	quoteBatchMax   = 500 // máx instrumentos por llamada según la API
	quoteTimeLayout = "2006-01-02 15:04:05"
)

// istLocation es la zona de la bolsa. El broker manda timestamps en hora
// local sin indicador de zona.
var istLocation = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*3600+30*60)
	}
	return loc
}()

// Quotes implementa ports.QuoteProvider. Pide la última cotización de cada
// par (venue, símbolo) en batches y devuelve solo las quotes válidas: qué
// hacer con los huecos lo decide el scorer, no el adapter.
func (c *Client) Quotes(ctx context.Context, venues, symbols []string) (domain.QuoteSet, error) {
	keys := make([]string, 0, len(venues)*len(symbols))
	for _, venue := range venues {
		for _, symbol := range symbols {
			if venue == "" || symbol == "" {
				continue
			}
			keys = append(keys, venue+":"+symbol)
		}
	}

	quotes := make(domain.QuoteSet)
	got := 0
	for start := 0; start < len(keys); start += quoteBatchMax {
		end := min(start+quoteBatchMax, len(keys))

		query := url.Values{}
		for _, key := range keys[start:end] {
			query.Add("i", key)
		}

		var batch map[string]quoteDTO
		if err := c.get(ctx, c.dataLimiter, quotePath, query, &batch); err != nil {
			return nil, fmt.Errorf("broker.Quotes: %w", err)
		}

		for key, dto := range batch {
			venue, symbol, ok := strings.Cut(key, ":")
			if !ok {
				continue
			}
			q := domain.Quote{
				Symbol:    symbol,
				Venue:     venue,
				Price:     dto.LastPrice,
				Volume:    dto.Volume,
				Timestamp: parseQuoteTime(dto.Timestamp),
			}
			if err := q.Validate(); err != nil {
				slog.Debug("quote descartada", "instrumento", key, "err", err)
				continue
			}
			quotes.Put(q)
			got++
		}
	}

	slog.Debug("quotes recibidas", "pedidas", len(keys), "validas", got)
	return quotes, nil
}

// parseQuoteTime convierte la hora de bolsa a UTC. Una hora imparseable se
// queda en cero: Quote.Stale trata el cero como sin límite de edad.
func parseQuoteTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(quoteTimeLayout, s, istLocation)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
