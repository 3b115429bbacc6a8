package ports

import (
	"context"

	"github.com/alejandrodnm/kitebot/internal/domain"
)

// QuoteProvider obtiene cotizaciones del broker.
type QuoteProvider interface {
	// Quotes devuelve la última cotización de cada símbolo en cada venue.
	// Los símbolos sin datos se omiten del set, no son un error: el scorer
	// decide qué hacer con los huecos.
	Quotes(ctx context.Context, venues []string, symbols []string) (domain.QuoteSet, error)
}

// InstrumentProvider expone la tabla de referencia de futuros del broker.
type InstrumentProvider interface {
	// FuturesRefs devuelve la fila de referencia del contrato de futuros
	// del mes corriente de cada subyacente: tradingsymbol, vencimiento y
	// lot size. Los subyacentes sin contrato se omiten del mapa.
	FuturesRefs(ctx context.Context, symbols []string) (map[string]domain.InstrumentRef, error)
}
