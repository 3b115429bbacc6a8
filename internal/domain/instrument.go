package domain

import (
	"strings"
	"time"
)

// InstrumentRef es la fila de referencia de un contrato de futuros: el
// tradingsymbol con el que se opera, su vencimiento y el tamaño de lote.
// Se obtiene del dump de instrumentos del broker, nunca se inventa.
type InstrumentRef struct {
	Symbol        string // subyacente (p.ej. RELIANCE)
	FuturesSymbol string // tradingsymbol del contrato (p.ej. RELIANCE25AUG)
	Exchange      string // venue de derivados donde cotiza el contrato
	Expiry        time.Time
	LotSize       int
}

// DaysToExpiry devuelve los días naturales completos hasta el vencimiento.
// Un contrato vencido o que vence hoy devuelve <= 0 y queda fuera de juego.
func (r InstrumentRef) DaysToExpiry(now time.Time) int {
	return DaysBetween(now, r.Expiry)
}

// DaysBetween cuenta días naturales de from a to, truncando horas.
func DaysBetween(from, to time.Time) int {
	const day = 24 * time.Hour
	f := from.UTC().Truncate(day)
	t := to.UTC().Truncate(day)
	return int(t.Sub(f) / day)
}

// FormatFuturesSymbol construye el tradingsymbol de un futuro al estilo del
// broker: subyacente + año de dos dígitos + mes de tres letras en mayúsculas
// (RELIANCE + 2026-08 -> RELIANCE26AUG).
func FormatFuturesSymbol(symbol string, expiry time.Time) string {
	return strings.ToUpper(strings.TrimSpace(symbol)) + strings.ToUpper(expiry.Format("06Jan"))
}
