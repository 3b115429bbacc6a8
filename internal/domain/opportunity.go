package domain

import "time"

// ArbitrageOpportunity es un spread puntuado entre los dos venues de cash.
// Es una foto del instante del escaneo: precios, volúmenes y score juntos,
// lista para el gate de riesgo o para persistir.
type ArbitrageOpportunity struct {
	Symbol string

	// --- Precios por venue ---
	VenueA      string
	VenueB      string
	VenueAPrice float64
	VenueBPrice float64
	VolumeA     float64
	VolumeB     float64

	// --- Spread y calificación ---
	AbsDiff    float64 // |precioA - precioB|, en moneda
	PctDiff    float64 // AbsDiff sobre el precio menor, en %
	Score      float64 // 0-100, ponderado por liquidez
	Profitable bool    // supera umbral y coste de ida y vuelta

	ObservedAt time.Time
}

// BuyVenue devuelve el venue con el precio menor, donde se compra.
func (o ArbitrageOpportunity) BuyVenue() string {
	if o.VenueAPrice <= o.VenueBPrice {
		return o.VenueA
	}
	return o.VenueB
}

// SellVenue devuelve el venue con el precio mayor, donde se vende.
func (o ArbitrageOpportunity) SellVenue() string {
	if o.VenueAPrice <= o.VenueBPrice {
		return o.VenueB
	}
	return o.VenueA
}

// BuyPrice devuelve el precio del lado de compra.
func (o ArbitrageOpportunity) BuyPrice() float64 {
	if o.VenueAPrice <= o.VenueBPrice {
		return o.VenueAPrice
	}
	return o.VenueBPrice
}

// SellPrice devuelve el precio del lado de venta.
func (o ArbitrageOpportunity) SellPrice() float64 {
	if o.VenueAPrice <= o.VenueBPrice {
		return o.VenueBPrice
	}
	return o.VenueAPrice
}

// MinVolume devuelve el volumen del lado menos líquido, que es el que manda
// en el scoring.
func (o ArbitrageOpportunity) MinVolume() float64 {
	if o.VolumeA <= o.VolumeB {
		return o.VolumeA
	}
	return o.VolumeB
}

// ExpectedProfitPerShare devuelve el beneficio bruto por acción si ambas
// patas se llenan a los precios observados.
func (o ArbitrageOpportunity) ExpectedProfitPerShare() float64 {
	return o.AbsDiff
}

// CashFuturesOpportunity es un premium cash-futures puntuado para un
// subyacente: contado en el venue cash contra su futuro del mes corriente.
type CashFuturesOpportunity struct {
	Symbol string

	// --- Contado y futuro ---
	CashVenue     string
	FuturesVenue  string
	FuturesSymbol string // tradingsymbol del contrato
	CashPrice     float64
	FuturesPrice  float64
	CashVolume    float64
	FuturesVolume float64

	// --- Premium y calificación ---
	Premium           float64 // futuro - contado, en moneda
	PctPremium        float64 // Premium sobre el contado, en %
	AnnualizedPremium float64 // PctPremium anualizado a 365 días
	DaysToExpiry      int
	Expiry            time.Time
	LotSize           int
	Score             float64 // 0-100, ponderado por tiempo y liquidez

	ObservedAt time.Time
}

// MinVolume devuelve el volumen del lado menos líquido del par.
func (o CashFuturesOpportunity) MinVolume() float64 {
	if o.CashVolume <= o.FuturesVolume {
		return o.CashVolume
	}
	return o.FuturesVolume
}

// ExpectedProfitPerShare devuelve el premium bruto por acción capturado si
// ambas patas se llenan a los precios observados.
func (o CashFuturesOpportunity) ExpectedProfitPerShare() float64 {
	return o.Premium
}
