package broker

import (
	"encoding/json"
	"time"
)

// DTOs raw de la API del broker. Solo se usan dentro de este paquete; la
// conversión a tipos de dominio se hace donde se consume cada endpoint.

// kiteEnvelope es el sobre común de todas las respuestas JSON. data queda
// raw hasta conocer el tipo concreto del endpoint.
type kiteEnvelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

// quoteDTO es una cotización de GET /quote, indexada por "VENUE:SYMBOL".
type quoteDTO struct {
	LastPrice float64 `json:"last_price"`
	Volume    float64 `json:"volume"`
	Timestamp string  `json:"timestamp"` // hora de bolsa sin zona, "2006-01-02 15:04:05"
}

// marginsDTO es el bloque equity de GET /user/margins.
type marginsDTO struct {
	Equity struct {
		Net       float64 `json:"net"`
		Available struct {
			Cash        float64 `json:"cash"`
			LiveBalance float64 `json:"live_balance"`
		} `json:"available"`
	} `json:"equity"`
}

// orderAckDTO es el data de POST /orders/regular.
type orderAckDTO struct {
	OrderID string `json:"order_id"`
}

// instrumentRow es una fila FUT ya parseada del dump CSV de instrumentos.
type instrumentRow struct {
	TradingSymbol string
	Name          string // subyacente
	Expiry        time.Time
	LotSize       int
	Exchange      string
}
