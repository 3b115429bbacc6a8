package risk

// gate.go — admisión de candidatos por margen disponible.
//
// El gate decide qué oportunidades proceden a ejecución. Es un greedy de
// una sola pasada en orden de ranking: cada candidato que cabe reserva su
// margen y decrementa el presupuesto. NO es un knapsack óptimo: un
// candidato grande admitido puede desplazar a dos pequeños que juntos
// rendirían más. Es una aproximación deliberada, barata y predecible.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/kitebot/internal/domain"
	"github.com/alejandrodnm/kitebot/internal/ports"
)

// Config controla el cálculo de margen.
type Config struct {
	// MarginRates mapea producto a fracción del valor de la orden que el
	// broker bloquea como margen.
	MarginRates map[domain.Product]float64
	// DefaultMarginRate aplica a productos sin entrada en MarginRates.
	DefaultMarginRate float64
	// LotSizes fija lot sizes a mano por símbolo, por encima del dump de
	// instrumentos del broker.
	LotSizes map[string]int
}

// Candidate es una oportunidad lista para admisión: sus legs ya
// construidas, el precio de referencia para legs a mercado y el beneficio
// esperado a precios observados.
type Candidate struct {
	Symbol         string
	Strategy       domain.Strategy
	Score          float64
	Legs           []domain.OrderIntent
	ReferencePrice float64 // precio observado del lado de compra
	ExpectedProfit float64
}

// Rejection es un candidato rechazado con su condición tipada.
type Rejection struct {
	Candidate Candidate
	Reason    error   // envuelve ErrInsufficientMargin o ErrConfigurationMissing
	Required  float64 // margen que necesitaba, 0 si no llegó a calcularse
}

// Decision es el resultado de una pasada de admisión.
type Decision struct {
	Admitted        []Candidate
	Rejected        []Rejection
	AvailableMargin float64
	MarginReserved  float64
}

// Gate aplica el presupuesto de margen a candidatos rankeados.
type Gate struct {
	cfg     Config
	account ports.AccountProvider
}

// New crea un Gate. account puede ser nil si solo se usa AdmitWithin con
// un presupuesto explícito.
func New(cfg Config, account ports.AccountProvider) *Gate {
	return &Gate{cfg: cfg, account: account}
}

// rate devuelve la fracción de margen de un producto.
func (g *Gate) rate(product domain.Product) float64 {
	if r, ok := g.cfg.MarginRates[product]; ok && r > 0 {
		return r
	}
	return g.cfg.DefaultMarginRate
}

// lotSize devuelve el lot size efectivo de un símbolo: el override de
// configuración manda sobre el del dump de instrumentos.
func (g *Gate) lotSize(symbol string, fromRef int) int {
	if ls, ok := g.cfg.LotSizes[symbol]; ok && ls > 0 {
		return ls
	}
	return fromRef
}

// NewArbitrageCandidate construye el par de legs de un spread entre
// venues: compra en el venue barato primero, venta en el caro después.
// Ambas legs van intradía (MIS), la venta en el venue B no necesita
// holdings previos.
func (g *Gate) NewArbitrageCandidate(opp domain.ArbitrageOpportunity, quantity int, orderType domain.OrderType) (Candidate, error) {
	if quantity <= 0 {
		return Candidate{}, fmt.Errorf("risk.NewArbitrageCandidate: %s: quantity %d must be positive", opp.Symbol, quantity)
	}

	buy := domain.OrderIntent{
		Symbol:    opp.Symbol,
		Venue:     opp.BuyVenue(),
		Side:      domain.SideBuy,
		Quantity:  quantity,
		OrderType: orderType,
		Product:   domain.ProductMIS,
		Leg:       1,
	}
	sell := domain.OrderIntent{
		Symbol:    opp.Symbol,
		Venue:     opp.SellVenue(),
		Side:      domain.SideSell,
		Quantity:  quantity,
		OrderType: orderType,
		Product:   domain.ProductMIS,
		Leg:       2,
	}
	if orderType == domain.OrderTypeLimit {
		buy.Price = opp.BuyPrice()
		sell.Price = opp.SellPrice()
	}

	return Candidate{
		Symbol:         opp.Symbol,
		Strategy:       domain.StrategyArbitrage,
		Score:          opp.Score,
		Legs:           []domain.OrderIntent{buy, sell},
		ReferencePrice: opp.BuyPrice(),
		ExpectedProfit: opp.AbsDiff * float64(quantity),
	}, nil
}

// NewCashFuturesCandidate construye el par contado/futuro: compra del
// contado en CNC primero, venta del futuro en NRML después. La cantidad
// son lots × lot size en ambas legs para quedar cubierto 1:1.
//
// Sin lot size conocido no se opera un derivado: asumir 1 sería mentirle
// al gate de margen por el factor del lote entero.
func (g *Gate) NewCashFuturesCandidate(opp domain.CashFuturesOpportunity, lots int, orderType domain.OrderType) (Candidate, error) {
	if lots <= 0 {
		return Candidate{}, fmt.Errorf("risk.NewCashFuturesCandidate: %s: lots %d must be positive", opp.Symbol, lots)
	}
	lotSize := g.lotSize(opp.Symbol, opp.LotSize)
	if lotSize <= 0 {
		return Candidate{}, fmt.Errorf("risk.NewCashFuturesCandidate: %s: no lot size for %s: %w",
			opp.Symbol, opp.FuturesSymbol, domain.ErrConfigurationMissing)
	}
	quantity := lots * lotSize

	buyCash := domain.OrderIntent{
		Symbol:    opp.Symbol,
		Venue:     opp.CashVenue,
		Side:      domain.SideBuy,
		Quantity:  quantity,
		OrderType: orderType,
		Product:   domain.ProductCNC,
		Leg:       1,
	}
	sellFutures := domain.OrderIntent{
		Symbol:    opp.FuturesSymbol,
		Venue:     opp.FuturesVenue,
		Side:      domain.SideSell,
		Quantity:  quantity,
		OrderType: orderType,
		Product:   domain.ProductNRML,
		LotSize:   lotSize,
		Leg:       2,
	}
	if orderType == domain.OrderTypeLimit {
		buyCash.Price = opp.CashPrice
		sellFutures.Price = opp.FuturesPrice
	}

	return Candidate{
		Symbol:         opp.Symbol,
		Strategy:       domain.StrategyCashFutures,
		Score:          opp.Score,
		Legs:           []domain.OrderIntent{buyCash, sellFutures},
		ReferencePrice: opp.CashPrice,
		ExpectedProfit: opp.Premium * float64(quantity),
	}, nil
}

// MarginRequired suma el margen aproximado de todas las legs del
// candidato: precio × cantidad × tasa del producto. Las legs a mercado
// usan el precio de referencia observado; el delta entre venues es
// despreciable a efectos de margen.
func (g *Gate) MarginRequired(c Candidate) (float64, error) {
	var total float64
	for _, leg := range c.Legs {
		if err := leg.Validate(); err != nil {
			return 0, fmt.Errorf("risk.MarginRequired: %w", err)
		}
		// Derivados sin lot size no se estiman nunca
		if leg.Product == domain.ProductNRML && leg.LotSize <= 0 {
			return 0, fmt.Errorf("risk.MarginRequired: %s: derivative leg without lot size: %w",
				leg.Symbol, domain.ErrConfigurationMissing)
		}
		price := leg.Price
		if price <= 0 {
			price = c.ReferencePrice
		}
		if price <= 0 {
			return 0, fmt.Errorf("risk.MarginRequired: %s: no reference price for market leg: %w",
				leg.Symbol, domain.ErrDataUnavailable)
		}
		total += price * float64(leg.Quantity) * g.rate(leg.Product)
	}
	return total, nil
}

// Admit consulta el margen vivo de la cuenta y aplica AdmitWithin.
func (g *Gate) Admit(ctx context.Context, candidates []Candidate) (Decision, error) {
	available, err := g.account.AvailableMargin(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("risk.Admit: fetch available margin: %w", err)
	}
	return g.AdmitWithin(candidates, available), nil
}

// AdmitWithin recorre los candidatos en el orden recibido (ya rankeados)
// admitiendo los que caben en el presupuesto, que se decrementa con cada
// admisión. Los rechazos salen con su condición tipada, nunca en silencio.
func (g *Gate) AdmitWithin(candidates []Candidate, availableMargin float64) Decision {
	d := Decision{AvailableMargin: availableMargin}
	budget := availableMargin

	var stats admissionStats
	for _, c := range candidates {
		required, err := g.MarginRequired(c)
		if err != nil {
			d.Rejected = append(d.Rejected, Rejection{Candidate: c, Reason: err})
			stats.record(err)
			continue
		}
		if required > budget {
			shortfall := &domain.MarginShortfallError{
				Symbol:          c.Symbol,
				MarginShortfall: domain.MarginShortfall{Required: required, Available: budget},
			}
			d.Rejected = append(d.Rejected, Rejection{Candidate: c, Reason: shortfall, Required: required})
			stats.record(shortfall)
			continue
		}
		budget -= required
		d.Admitted = append(d.Admitted, c)
		stats.admitted++
	}

	d.MarginReserved = availableMargin - budget
	stats.log(len(candidates), availableMargin, d.MarginReserved)
	return d
}

// Recheck re-evalúa el margen de UN candidato contra el margen vivo de la
// cuenta. Se usa justo antes de enviar la primera leg: si el margen cayó
// desde la admisión, la secuencia se aborta antes de mandar nada.
func (g *Gate) Recheck(ctx context.Context, c Candidate) error {
	available, err := g.account.AvailableMargin(ctx)
	if err != nil {
		return fmt.Errorf("risk.Recheck: fetch available margin: %w", err)
	}
	required, err := g.MarginRequired(c)
	if err != nil {
		return err
	}
	if required > available {
		return &domain.MarginShortfallError{
			Symbol:          c.Symbol,
			MarginShortfall: domain.MarginShortfall{Required: required, Available: available},
		}
	}
	return nil
}

type admissionStats struct {
	admitted, insufficientMargin, configMissing, invalid int
}

func (s *admissionStats) record(err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientMargin):
		s.insufficientMargin++
	case errors.Is(err, domain.ErrConfigurationMissing):
		s.configMissing++
	default:
		s.invalid++
	}
}

func (s *admissionStats) log(total int, available, reserved float64) {
	slog.Info("risk: admission pass",
		"candidates", total,
		"admitted", s.admitted,
		"skip_margin", s.insufficientMargin,
		"skip_config", s.configMissing,
		"skip_invalid", s.invalid,
		"available", fmt.Sprintf("%.2f", available),
		"reserved", fmt.Sprintf("%.2f", reserved),
	)
}
