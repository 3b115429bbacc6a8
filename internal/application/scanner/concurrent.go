package scanner

// concurrent.go — worker pool para el scoring paralelo de la watchlist.
//
// Con watchlists grandes (100+ símbolos) puntuar en paralelo mantiene el
// ciclo muy por debajo del intervalo de escaneo. El orden final no depende
// del orden de llegada: el ranking con desempates totales lo hace
// determinista, el camino paralelo y el secuencial producen lo mismo.

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/alejandrodnm/kitebot/internal/domain"
)

// scoreArbitrageConcurrent puntúa todos los símbolos con quote en ambos
// venues usando un worker pool y devuelve las oportunidades rankeadas.
//
// Si workers <= 0 usa runtime.NumCPU() × 2.
func scoreArbitrageConcurrent(ctx context.Context, quotes domain.QuoteSet, cfg Config, now time.Time) []domain.ArbitrageOpportunity {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	type work struct {
		a domain.Quote
		b domain.Quote
	}

	symbols := quotes.Symbols()
	workCh := make(chan work, len(symbols))
	resultCh := make(chan domain.ArbitrageOpportunity, len(symbols))

	// Worker pool: cada worker toma pares de workCh y envía resultados a resultCh.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range workCh {
				if ctx.Err() != nil {
					continue // ciclo cancelado, drenar sin puntuar
				}
				opp, ok := domain.ScoreArbitragePair(w.a, w.b, cfg.Arbitrage, now)
				if !ok {
					slog.Debug("arbitrage pair skipped", "symbol", w.a.Symbol)
					continue
				}
				resultCh <- opp
			}
		}()
	}

	// Alimentar el work channel con los símbolos que cotizan en ambos venues.
	queued := 0
	for _, symbol := range symbols {
		a, okA := quotes.Get(symbol, cfg.VenueA)
		b, okB := quotes.Get(symbol, cfg.VenueB)
		if !okA || !okB {
			slog.Debug("missing venue quote", "symbol", symbol)
			continue
		}
		workCh <- work{a: a, b: b}
		queued++
	}
	close(workCh)

	// Cerrar resultCh cuando todos los workers terminen.
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	opps := make([]domain.ArbitrageOpportunity, 0, queued)
	for opp := range resultCh {
		opps = append(opps, opp)
	}

	domain.RankArbitrage(opps)

	slog.Debug("concurrent arbitrage scoring complete",
		"symbols_queued", queued,
		"opportunities", len(opps),
		"workers", workers,
	)

	return opps
}

// scoreCashFuturesConcurrent puntúa los pares contado/futuro con el mismo
// esquema de pool y devuelve las oportunidades rankeadas.
func scoreCashFuturesConcurrent(ctx context.Context, cash, futures domain.QuoteSet, refs map[string]domain.InstrumentRef, cfg Config, now time.Time) []domain.CashFuturesOpportunity {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	type work struct {
		cash domain.Quote
		fut  domain.Quote
		ref  domain.InstrumentRef
	}

	symbols := cash.Symbols()
	workCh := make(chan work, len(symbols))
	resultCh := make(chan domain.CashFuturesOpportunity, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range workCh {
				if ctx.Err() != nil {
					continue
				}
				opp, ok := domain.ScoreCashFuturesPair(w.cash, w.fut, w.ref, cfg.CashFutures, now)
				if !ok {
					slog.Debug("cash-futures pair skipped", "symbol", w.cash.Symbol)
					continue
				}
				resultCh <- opp
			}
		}()
	}

	queued := 0
	for _, symbol := range symbols {
		ref, okR := refs[symbol]
		if !okR {
			slog.Debug("no futures contract for symbol", "symbol", symbol)
			continue
		}
		cq, okC := cash.Get(symbol, cfg.VenueA)
		fq, okF := futures.Get(ref.FuturesSymbol, cfg.FuturesVenue)
		if !okC || !okF {
			slog.Debug("missing cash or futures quote", "symbol", symbol)
			continue
		}
		workCh <- work{cash: cq, fut: fq, ref: ref}
		queued++
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	opps := make([]domain.CashFuturesOpportunity, 0, queued)
	for opp := range resultCh {
		opps = append(opps, opp)
	}

	domain.RankCashFutures(opps)

	slog.Debug("concurrent cash-futures scoring complete",
		"symbols_queued", queued,
		"opportunities", len(opps),
		"workers", workers,
	)

	return opps
}
