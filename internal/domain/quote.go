package domain

import (
	"fmt"
	"sort"
	"time"
)

// Quote es la última cotización de un símbolo en un venue concreto.
// Los campos se validan al ingerir: una quote incompleta es una condición
// DataUnavailable, nunca un cero que se propaga en silencio.
type Quote struct {
	Symbol    string
	Venue     string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// Validate comprueba que la quote tiene los campos mínimos para puntuar.
func (q Quote) Validate() error {
	switch {
	case q.Symbol == "":
		return fmt.Errorf("domain.Quote: sin símbolo: %w", ErrDataUnavailable)
	case q.Venue == "":
		return fmt.Errorf("domain.Quote: %s sin venue: %w", q.Symbol, ErrDataUnavailable)
	case q.Price <= 0:
		return fmt.Errorf("domain.Quote: %s@%s precio %.4f inválido: %w", q.Symbol, q.Venue, q.Price, ErrDataUnavailable)
	case q.Volume < 0:
		return fmt.Errorf("domain.Quote: %s@%s volumen %.2f inválido: %w", q.Symbol, q.Venue, q.Volume, ErrDataUnavailable)
	}
	return nil
}

// Stale devuelve true si la quote es más vieja que maxAge respecto a now.
// Con maxAge <= 0 no hay límite de edad.
func (q Quote) Stale(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 || q.Timestamp.IsZero() {
		return false
	}
	return now.Sub(q.Timestamp) > maxAge
}

// QuoteSet agrupa la última quote conocida por símbolo y venue.
type QuoteSet map[string]map[string]Quote

// Put registra la quote, reemplazando la anterior del mismo (símbolo, venue).
func (qs QuoteSet) Put(q Quote) {
	venues, ok := qs[q.Symbol]
	if !ok {
		venues = make(map[string]Quote)
		qs[q.Symbol] = venues
	}
	venues[q.Venue] = q
}

// Get devuelve la quote de un (símbolo, venue) si existe.
func (qs QuoteSet) Get(symbol, venue string) (Quote, bool) {
	q, ok := qs[symbol][venue]
	return q, ok
}

// Symbols devuelve los símbolos presentes, ordenados para que cualquier
// recorrido sobre el set sea determinista.
func (qs QuoteSet) Symbols() []string {
	symbols := make([]string, 0, len(qs))
	for s := range qs {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
