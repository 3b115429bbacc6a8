package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/kitebot/internal/domain"
	"github.com/alejandrodnm/kitebot/internal/ports"
)

// Config contiene la configuración del scanner.
type Config struct {
	ScanInterval time.Duration
	Symbols      []string // watchlist de subyacentes
	VenueA       string
	VenueB       string
	FuturesVenue string
	Workers      int  // goroutines para scoring paralelo (0 = NumCPU*2)
	Once         bool // solo un ciclo y salir

	Arbitrage   domain.ArbitrageParams
	CashFutures domain.CashFuturesParams
}

// ScanResult son las oportunidades rankeadas de un ciclo completo.
type ScanResult struct {
	Arbitrage   []domain.ArbitrageOpportunity
	CashFutures []domain.CashFuturesOpportunity
	Duration    time.Duration
}

// Scanner es el orquestador principal del loop de escaneo.
type Scanner struct {
	cfg                Config
	quotes             ports.QuoteProvider
	instruments        ports.InstrumentProvider
	store              ports.SpreadStore
	notifier           ports.Notifier
	inFlight           atomic.Bool     // garantiza un único ciclo a la vez
	previousProfitable map[string]bool // símbolos profitable del ciclo anterior para alertas
}

// New crea un Scanner con todas las dependencias inyectadas.
// store puede ser nil para escanear sin persistir.
func New(
	cfg Config,
	quotes ports.QuoteProvider,
	instruments ports.InstrumentProvider,
	store ports.SpreadStore,
	notifier ports.Notifier,
) *Scanner {
	return &Scanner{
		cfg:                cfg,
		quotes:             quotes,
		instruments:        instruments,
		store:              store,
		notifier:           notifier,
		previousProfitable: make(map[string]bool),
	}
}

// Run ejecuta el loop de escaneo hasta que el contexto se cancele.
// Si cfg.Once está activo, solo ejecuta un ciclo.
func (s *Scanner) Run(ctx context.Context) error {
	slog.Info("scanner starting",
		"interval", s.cfg.ScanInterval,
		"symbols", len(s.cfg.Symbols),
		"once", s.cfg.Once,
		"workers", s.cfg.Workers,
	)

	if err := s.runCycle(ctx); err != nil {
		slog.Error("scan cycle failed", "err", err)
		if s.cfg.Once {
			return err
		}
	}

	if s.cfg.Once {
		return nil
	}

	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scanner stopped")
			return nil
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				slog.Error("scan cycle failed", "err", err)
			}
		}
	}
}

// RunOnce ejecuta exactamente un ciclo de escaneo y devuelve las oportunidades,
// sin notificar ni persistir.
func (s *Scanner) RunOnce(ctx context.Context) (ScanResult, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return ScanResult{}, fmt.Errorf("scanner.RunOnce: %w", domain.ErrBusy)
	}
	defer s.inFlight.Store(false)
	return s.cycle(ctx)
}

// runCycle ejecuta un ciclo completo y notifica/persiste los resultados.
// Si el ciclo anterior sigue corriendo, el tick se descarta en vez de
// encolarse: nunca hay dos ciclos solapados.
func (s *Scanner) runCycle(ctx context.Context) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		slog.Warn("previous scan cycle still running, skipping tick")
		return nil
	}
	defer s.inFlight.Store(false)

	res, err := s.cycle(ctx)
	if err != nil {
		return err
	}

	// Detectar spreads profitable nuevos y emitir alertas
	s.emitSpreadAlerts(res.Arbitrage)

	if err := s.notifier.NotifyScan(ctx, res.Arbitrage, res.CashFutures); err != nil {
		slog.Warn("notifier error", "err", err)
	}

	if s.store != nil {
		if err := s.store.SaveArbitrageSpreads(ctx, res.Arbitrage); err != nil {
			slog.Warn("storage error", "table", "arbitrage_spreads", "err", err)
		}
		if err := s.store.SaveCashFuturesSpreads(ctx, res.CashFutures); err != nil {
			slog.Warn("storage error", "table", "cash_futures_spreads", "err", err)
		}
	}

	slog.Info("scan cycle complete",
		"arbitrage", len(res.Arbitrage),
		"profitable", countProfitable(res.Arbitrage),
		"cash_futures", len(res.CashFutures),
		"duration", res.Duration.Round(time.Millisecond),
	)
	return nil
}

// cycle hace fetch → concurrent score → rank para las dos estrategias.
func (s *Scanner) cycle(ctx context.Context) (ScanResult, error) {
	start := time.Now()
	now := start.UTC()

	cash, err := s.quotes.Quotes(ctx, []string{s.cfg.VenueA, s.cfg.VenueB}, s.cfg.Symbols)
	if err != nil {
		return ScanResult{}, fmt.Errorf("scanner.cycle: fetch cash quotes: %w", err)
	}

	// Scoring paralelo de ambas estrategias sobre el mismo snapshot de cash
	arb := scoreArbitrageConcurrent(ctx, cash, s.cfg, now)
	cf := s.cashFuturesPass(ctx, cash, now)

	return ScanResult{
		Arbitrage:   arb,
		CashFutures: cf,
		Duration:    time.Since(start),
	}, nil
}

// cashFuturesPass resuelve referencias y quotes de futuros y puntúa los
// pares. Un fallo aquí degrada el ciclo a solo-arbitraje en vez de tirarlo:
// los resultados de cash siguen siendo válidos.
func (s *Scanner) cashFuturesPass(ctx context.Context, cash domain.QuoteSet, now time.Time) []domain.CashFuturesOpportunity {
	refs, err := s.instruments.FuturesRefs(ctx, s.cfg.Symbols)
	if err != nil {
		slog.Warn("futures refs unavailable, skipping cash-futures pass", "err", err)
		return nil
	}
	if len(refs) == 0 {
		return nil
	}

	futSymbols := make([]string, 0, len(refs))
	for _, ref := range refs {
		futSymbols = append(futSymbols, ref.FuturesSymbol)
	}
	sort.Strings(futSymbols)

	futures, err := s.quotes.Quotes(ctx, []string{s.cfg.FuturesVenue}, futSymbols)
	if err != nil {
		slog.Warn("futures quotes unavailable, skipping cash-futures pass", "err", err)
		return nil
	}

	return scoreCashFuturesConcurrent(ctx, cash, futures, refs, s.cfg, now)
}

// emitSpreadAlerts registra alertas para símbolos profitable nuevos (no
// vistos profitable en el ciclo anterior).
func (s *Scanner) emitSpreadAlerts(opps []domain.ArbitrageOpportunity) {
	newProfitable := make(map[string]bool, len(opps))

	for _, opp := range opps {
		if !opp.Profitable {
			continue
		}
		newProfitable[opp.Symbol] = true

		if s.previousProfitable[opp.Symbol] {
			continue // ya conocido
		}

		slog.Warn("NEW ARBITRAGE SPREAD",
			"symbol", opp.Symbol,
			"buy", fmt.Sprintf("%s@%.2f", opp.BuyVenue(), opp.BuyPrice()),
			"sell", fmt.Sprintf("%s@%.2f", opp.SellVenue(), opp.SellPrice()),
			"pct_diff", fmt.Sprintf("%.3f%%", opp.PctDiff),
			"score", fmt.Sprintf("%.2f", opp.Score),
		)
	}

	s.previousProfitable = newProfitable
}

// countProfitable cuenta las oportunidades marcadas profitable.
func countProfitable(opps []domain.ArbitrageOpportunity) int {
	n := 0
	for _, o := range opps {
		if o.Profitable {
			n++
		}
	}
	return n
}
