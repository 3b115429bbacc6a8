package storage

// sqlite.go — histórico append-only de spreads en SQLite.
//
// Estrategia:
//   - Las observaciones nunca se actualizan: cada ciclo inserta filas
//     nuevas y las lecturas devuelven ventanas ascendentes por timestamp.
//   - El timestamp lo asigna el almacén al escribir, con un layout fijo
//     cuyo orden lexicográfico coincide con el cronológico. Todas las
//     filas de un mismo ciclo comparten el instante de inserción.
//   - La retención es una pasada explícita (CleanupOldData), nunca un
//     prune silencioso al arrancar: borrar histórico es una decisión del
//     operador.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/kitebot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Observaciones de spreads entre venues, una fila por símbolo y ciclo
CREATE TABLE IF NOT EXISTS arbitrage_spreads (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol        TEXT    NOT NULL,
    venue_a_price REAL    NOT NULL DEFAULT 0,
    venue_b_price REAL    NOT NULL DEFAULT 0,
    abs_diff      REAL    NOT NULL DEFAULT 0,
    pct_diff      REAL    NOT NULL DEFAULT 0,
    score         REAL    NOT NULL DEFAULT 0,
    volume_a      REAL    NOT NULL DEFAULT 0,
    volume_b      REAL    NOT NULL DEFAULT 0,
    profitable    INTEGER NOT NULL DEFAULT 0,
    created_at    TEXT    NOT NULL
);

-- Observaciones de premiums cash-futures
CREATE TABLE IF NOT EXISTS cash_futures_spreads (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol             TEXT    NOT NULL,
    cash_price         REAL    NOT NULL DEFAULT 0,
    futures_price      REAL    NOT NULL DEFAULT 0,
    premium            REAL    NOT NULL DEFAULT 0,
    pct_premium        REAL    NOT NULL DEFAULT 0,
    annualized_premium REAL    NOT NULL DEFAULT 0,
    days_to_expiry     INTEGER NOT NULL DEFAULT 0,
    expiry             TEXT    NOT NULL DEFAULT '',
    score              REAL    NOT NULL DEFAULT 0,
    created_at         TEXT    NOT NULL
);

-- Secuencias de ejecución en estado terminal, inmutables
CREATE TABLE IF NOT EXISTS order_sequences (
    correlation_id  TEXT PRIMARY KEY,
    symbol          TEXT    NOT NULL,
    strategy        TEXT    NOT NULL,
    state           TEXT    NOT NULL,
    quantity        INTEGER NOT NULL DEFAULT 0,
    expected_profit REAL    NOT NULL DEFAULT 0,
    created_at      TEXT    NOT NULL
);

-- Una fila por leg enviada, fallidas y unwinds incluidos
CREATE TABLE IF NOT EXISTS order_history (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    correlation_id TEXT    NOT NULL,
    symbol         TEXT    NOT NULL,
    leg            INTEGER NOT NULL,
    venue          TEXT    NOT NULL,
    side           TEXT    NOT NULL,
    quantity       INTEGER NOT NULL DEFAULT 0,
    price          REAL    NOT NULL DEFAULT 0,
    order_type     TEXT    NOT NULL DEFAULT '',
    product        TEXT    NOT NULL DEFAULT '',
    lot_size       INTEGER NOT NULL DEFAULT 0,
    order_id       TEXT    NOT NULL DEFAULT '',
    status         TEXT    NOT NULL,
    message        TEXT    NOT NULL DEFAULT '',
    created_at     TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_arb_symbol_at ON arbitrage_spreads(symbol, created_at);
CREATE INDEX IF NOT EXISTS idx_arb_at        ON arbitrage_spreads(created_at);
CREATE INDEX IF NOT EXISTS idx_cf_symbol_at  ON cash_futures_spreads(symbol, created_at);
CREATE INDEX IF NOT EXISTS idx_cf_at         ON cash_futures_spreads(created_at);
CREATE INDEX IF NOT EXISTS idx_seq_at        ON order_sequences(created_at);
CREATE INDEX IF NOT EXISTS idx_orders_corr   ON order_history(correlation_id);
CREATE INDEX IF NOT EXISTS idx_orders_sym_at ON order_history(symbol, created_at);
`

// timeLayout serializa timestamps como TEXT en UTC. El layout de anchura
// fija hace que el orden lexicográfico de la columna sea el cronológico,
// así los índices por created_at sirven tanto para ventanas como para el
// corte de retención.
const timeLayout = "2006-01-02 15:04:05.000"

// SQLiteStore implementa ports.SpreadStore sobre SQLite (pure Go, sin CGo).
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time // inyectable en tests para fijar timestamps
}

// New abre (o crea) la base de datos en la ruta dada y aplica el schema.
func New(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.New: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.New: apply schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// SaveArbitrageSpreads inserta las oportunidades de un ciclo, todas con el
// mismo timestamp de inserción.
func (s *SQLiteStore) SaveArbitrageSpreads(ctx context.Context, opps []domain.ArbitrageOpportunity) error {
	if len(opps) == 0 {
		return nil
	}
	now := s.now().UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveArbitrageSpreads: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO arbitrage_spreads
			(symbol, venue_a_price, venue_b_price, abs_diff, pct_diff, score,
			 volume_a, volume_b, profitable, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveArbitrageSpreads: prepare: %w", err)
	}
	defer stmt.Close()

	for _, opp := range opps {
		if _, err := stmt.ExecContext(ctx,
			opp.Symbol,
			opp.VenueAPrice,
			opp.VenueBPrice,
			opp.AbsDiff,
			opp.PctDiff,
			opp.Score,
			opp.VolumeA,
			opp.VolumeB,
			boolToInt(opp.Profitable),
			now,
		); err != nil {
			return fmt.Errorf("storage.SaveArbitrageSpreads: insert %s: %w", opp.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveArbitrageSpreads: commit: %w", err)
	}
	return nil
}

// SaveCashFuturesSpreads inserta los premiums de un ciclo.
func (s *SQLiteStore) SaveCashFuturesSpreads(ctx context.Context, opps []domain.CashFuturesOpportunity) error {
	if len(opps) == 0 {
		return nil
	}
	now := s.now().UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveCashFuturesSpreads: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cash_futures_spreads
			(symbol, cash_price, futures_price, premium, pct_premium,
			 annualized_premium, days_to_expiry, expiry, score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveCashFuturesSpreads: prepare: %w", err)
	}
	defer stmt.Close()

	for _, opp := range opps {
		expiry := ""
		if !opp.Expiry.IsZero() {
			expiry = opp.Expiry.UTC().Format(timeLayout)
		}
		if _, err := stmt.ExecContext(ctx,
			opp.Symbol,
			opp.CashPrice,
			opp.FuturesPrice,
			opp.Premium,
			opp.PctPremium,
			opp.AnnualizedPremium,
			opp.DaysToExpiry,
			expiry,
			opp.Score,
			now,
		); err != nil {
			return fmt.Errorf("storage.SaveCashFuturesSpreads: insert %s: %w", opp.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveCashFuturesSpreads: commit: %w", err)
	}
	return nil
}

// ArbitrageHistory devuelve las observaciones de los últimos lookbackDays,
// ascendentes por timestamp. Con symbol vacío devuelve toda la watchlist;
// con lookbackDays <= 0 no recorta la ventana.
func (s *SQLiteStore) ArbitrageHistory(ctx context.Context, symbol string, lookbackDays int) ([]domain.ArbitrageSpread, error) {
	q := `SELECT id, symbol, venue_a_price, venue_b_price, abs_diff, pct_diff,
	             score, volume_a, volume_b, profitable, created_at
	      FROM arbitrage_spreads
	      WHERE created_at >= ?`
	args := []any{s.cutoff(lookbackDays)}
	if symbol != "" {
		q += ` AND symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ArbitrageHistory: query: %w", err)
	}
	defer rows.Close()

	var out []domain.ArbitrageSpread
	for rows.Next() {
		var r domain.ArbitrageSpread
		var profitable int
		var createdAt string
		if err := rows.Scan(
			&r.ID, &r.Symbol, &r.VenueAPrice, &r.VenueBPrice, &r.AbsDiff,
			&r.PctDiff, &r.Score, &r.VolumeA, &r.VolumeB, &profitable, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("storage.ArbitrageHistory: scan row: %w", err)
		}
		r.Profitable = profitable == 1
		r.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("storage.ArbitrageHistory: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CashFuturesHistory es el equivalente para premiums cash-futures.
func (s *SQLiteStore) CashFuturesHistory(ctx context.Context, symbol string, lookbackDays int) ([]domain.CashFuturesSpread, error) {
	q := `SELECT id, symbol, cash_price, futures_price, premium, pct_premium,
	             annualized_premium, days_to_expiry, expiry, score, created_at
	      FROM cash_futures_spreads
	      WHERE created_at >= ?`
	args := []any{s.cutoff(lookbackDays)}
	if symbol != "" {
		q += ` AND symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.CashFuturesHistory: query: %w", err)
	}
	defer rows.Close()

	var out []domain.CashFuturesSpread
	for rows.Next() {
		var r domain.CashFuturesSpread
		var expiry, createdAt string
		if err := rows.Scan(
			&r.ID, &r.Symbol, &r.CashPrice, &r.FuturesPrice, &r.Premium,
			&r.PctPremium, &r.AnnualizedPremium, &r.DaysToExpiry, &expiry,
			&r.Score, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("storage.CashFuturesHistory: scan row: %w", err)
		}
		if expiry != "" {
			r.Expiry, err = parseTime(expiry)
			if err != nil {
				return nil, fmt.Errorf("storage.CashFuturesHistory: %w", err)
			}
		}
		r.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("storage.CashFuturesHistory: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CleanupOldData borra lo estrictamente anterior a la ventana de
// retención. Una fila escrita exactamente en el corte se conserva. El
// corte se calcula en UTC restando días de calendario, así un cleanup
// durante un cambio de hora local no mueve la frontera.
func (s *SQLiteStore) CleanupOldData(ctx context.Context, retentionDays int) (domain.CleanupResult, error) {
	var result domain.CleanupResult
	if retentionDays <= 0 {
		return result, fmt.Errorf("storage.CleanupOldData: retention %d days must be positive", retentionDays)
	}
	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays).Format(timeLayout)

	for _, target := range []struct {
		table string
		count *int64
	}{
		{"arbitrage_spreads", &result.ArbitrageDeleted},
		{"cash_futures_spreads", &result.CashFuturesDeleted},
		{"order_sequences", &result.SequencesDeleted},
		{"order_history", &result.OrdersDeleted},
	} {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM `+target.table+` WHERE created_at < ?`, cutoff)
		if err != nil {
			return result, fmt.Errorf("storage.CleanupOldData: delete from %s: %w", target.table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return result, fmt.Errorf("storage.CleanupOldData: rows affected %s: %w", target.table, err)
		}
		*target.count = n
	}
	return result, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// cutoff devuelve el límite inferior de una ventana de lookback en el
// layout de la columna. lookbackDays <= 0 no recorta nada.
func (s *SQLiteStore) cutoff(lookbackDays int) string {
	if lookbackDays <= 0 {
		return ""
	}
	return s.now().UTC().AddDate(0, 0, -lookbackDays).Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", v, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
