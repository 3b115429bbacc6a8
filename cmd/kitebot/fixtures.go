package main

// fixtures.go — datos de mercado locales para -dry-run.

import (
	"context"
	"time"

	"github.com/alejandrodnm/kitebot/internal/domain"
)

// El venue secundario cotiza con un desvío fijo sobre el primario y el
// futuro con un premium fijo sobre el contado, así un escaneo dry-run
// siempre tiene algo que puntuar sin tocar la API.
const (
	fixtureSpreadPct    = 0.35
	fixturePremiumPct   = 0.9
	fixtureDaysToExpiry = 24
	fixtureLotSize      = 250
	fixtureVolumeA      = 900_000.0
	fixtureVolumeB      = 300_000.0
)

var fixtureSpot = map[string]float64{
	"RELIANCE":  2850.55,
	"TCS":       4120.10,
	"INFY":      1890.35,
	"HDFCBANK":  1655.80,
	"ICICIBANK": 1245.20,
}

type fixtureMarket struct {
	futuresVenue string
	expiry       time.Time
	prices       map[string]float64 // contado por subyacente, futuro por tradingsymbol
}

func newFixtureMarket(futuresVenue string) *fixtureMarket {
	f := &fixtureMarket{
		futuresVenue: futuresVenue,
		expiry:       time.Now().UTC().AddDate(0, 0, fixtureDaysToExpiry).Truncate(24 * time.Hour),
		prices:       make(map[string]float64, 2*len(fixtureSpot)),
	}
	for symbol, spot := range fixtureSpot {
		f.prices[symbol] = spot
		f.prices[domain.FormatFuturesSymbol(symbol, f.expiry)] = spot * (1 + fixturePremiumPct/100)
	}
	return f
}

func (f *fixtureMarket) Quotes(_ context.Context, venues, symbols []string) (domain.QuoteSet, error) {
	quotes := make(domain.QuoteSet)
	now := time.Now().UTC()
	for _, symbol := range symbols {
		base, ok := f.prices[symbol]
		if !ok {
			continue
		}
		for i, venue := range venues {
			price, volume := base, fixtureVolumeA
			if i > 0 {
				price = base * (1 + fixtureSpreadPct/100)
				volume = fixtureVolumeB
			}
			quotes.Put(domain.Quote{
				Symbol:    symbol,
				Venue:     venue,
				Price:     price,
				Volume:    volume,
				Timestamp: now,
			})
		}
	}
	return quotes, nil
}

func (f *fixtureMarket) FuturesRefs(_ context.Context, symbols []string) (map[string]domain.InstrumentRef, error) {
	refs := make(map[string]domain.InstrumentRef, len(symbols))
	for _, symbol := range symbols {
		if _, ok := fixtureSpot[symbol]; !ok {
			continue
		}
		refs[symbol] = domain.InstrumentRef{
			Symbol:        symbol,
			FuturesSymbol: domain.FormatFuturesSymbol(symbol, f.expiry),
			Exchange:      f.futuresVenue,
			Expiry:        f.expiry,
			LotSize:       fixtureLotSize,
		}
	}
	return refs, nil
}
