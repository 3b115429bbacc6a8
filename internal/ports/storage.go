package ports

import (
	"context"

	"github.com/alejandrodnm/kitebot/internal/domain"
)

// SpreadStore persiste los resultados de cada ciclo y el historial de
// ejecución. Es append-only: las observaciones nunca se actualizan, solo
// se insertan, y el timestamp lo asigna el almacén al escribir.
type SpreadStore interface {
	// SaveArbitrageSpreads persiste las oportunidades de arbitraje de un
	// ciclo, todas con el mismo timestamp de inserción.
	SaveArbitrageSpreads(ctx context.Context, opps []domain.ArbitrageOpportunity) error

	// SaveCashFuturesSpreads persiste las oportunidades cash-futures de un
	// ciclo.
	SaveCashFuturesSpreads(ctx context.Context, opps []domain.CashFuturesOpportunity) error

	// SaveOrderSequence persiste una secuencia en estado terminal junto a
	// todas sus legs, las fallidas incluidas.
	SaveOrderSequence(ctx context.Context, seq domain.OrderSequence) error

	// SaveUnwind añade al historial la orden de unwind de una secuencia ya
	// persistida, como leg 3 del mismo correlation ID.
	SaveUnwind(ctx context.Context, correlationID string, res domain.ExecutionResult) error

	// GetSequence recupera una secuencia persistida con sus legs.
	GetSequence(ctx context.Context, correlationID string) (domain.OrderSequence, error)

	// ArbitrageHistory devuelve las observaciones de los últimos
	// lookbackDays, ascendentes por timestamp. Con symbol vacío devuelve
	// todos los símbolos.
	ArbitrageHistory(ctx context.Context, symbol string, lookbackDays int) ([]domain.ArbitrageSpread, error)

	// CashFuturesHistory es el equivalente para premiums cash-futures.
	CashFuturesHistory(ctx context.Context, symbol string, lookbackDays int) ([]domain.CashFuturesSpread, error)

	// SequenceHistory devuelve las secuencias de los últimos lookbackDays,
	// ascendentes por timestamp.
	SequenceHistory(ctx context.Context, lookbackDays int) ([]domain.SequenceRecord, error)

	// OrderHistory devuelve las legs enviadas en los últimos lookbackDays,
	// ascendentes por timestamp. Con symbol vacío devuelve todas.
	OrderHistory(ctx context.Context, symbol string, lookbackDays int) ([]domain.OrderRecord, error)

	// CleanupOldData borra lo estrictamente anterior a la ventana de
	// retención y devuelve cuántas filas cayeron de cada tabla.
	CleanupOldData(ctx context.Context, retentionDays int) (domain.CleanupResult, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
