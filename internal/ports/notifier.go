package ports

import (
	"context"

	"github.com/alejandrodnm/kitebot/internal/domain"
)

// Notifier presenta los resultados de un ciclo de escaneo al usuario.
type Notifier interface {
	// NotifyScan muestra las oportunidades de ambas estrategias, ya
	// rankeadas. En la implementación de consola imprime tablas.
	NotifyScan(ctx context.Context, arb []domain.ArbitrageOpportunity, cf []domain.CashFuturesOpportunity) error
}
